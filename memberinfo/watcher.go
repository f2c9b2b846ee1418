// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package memberinfo

import (
	"context"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/roomkit/eventbus"
)

// Watcher recomputes the Info of a single member whenever something that affects it changes.
type Watcher struct {
	engine   *Engine
	roomID   id.RoomID
	userID   id.UserID
	onChange func(*Info)
	scope    eventbus.Scope
}

// Watch starts watching the given member. onChange is called on the goroutine that emits the event,
// after power level changes of either user in the room, membership changes of either user in the room
// and presence changes of the watched user.
func (e *Engine) Watch(bus *eventbus.Bus, roomID id.RoomID, userID id.UserID, onChange func(*Info)) *Watcher {
	w := &Watcher{
		engine:   e,
		roomID:   roomID,
		userID:   userID,
		onChange: onChange,
	}
	w.scope.Add(
		bus.PowerLevel.Subscribe(w.onMemberEvent),
		bus.Membership.Subscribe(w.onMemberEvent),
		bus.Presence.Subscribe(w.onPresence),
	)
	return w
}

func (w *Watcher) isRelevant(userID id.UserID) bool {
	return userID == w.userID || userID == w.engine.UserID
}

func (w *Watcher) onMemberEvent(ctx context.Context, evt *eventbus.MemberEvent) {
	if evt.Room.ID != w.roomID || evt.Member == nil || !w.isRelevant(evt.Member.UserID) {
		return
	}
	w.emit(ctx)
}

func (w *Watcher) onPresence(ctx context.Context, evt *eventbus.PresenceEvent) {
	if evt.Presence == nil || evt.Presence.UserID != w.userID {
		return
	}
	w.emit(ctx)
}

func (w *Watcher) emit(ctx context.Context) {
	info, err := w.engine.Info(w.roomID, w.userID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Stringer("room_id", w.roomID).
			Stringer("user_id", w.userID).
			Msg("Failed to recompute member info")
		return
	}
	w.onChange(info)
}

// Close stops watching. It is safe to call multiple times.
func (w *Watcher) Close() {
	w.scope.Close()
}

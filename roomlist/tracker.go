// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package roomlist maintains the sorted list of rooms the user sees, along with unread and highlight markers.
package roomlist

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/roomkit/confuser"
	"go.mau.fi/roomkit/eventbus"
	"go.mau.fi/roomkit/roomstore"
)

// Highlighter decides whether an event should highlight its room, usually by evaluating push rules.
type Highlighter interface {
	IsHighlight(ctx context.Context, room *roomstore.Room, evt *event.Event) bool
}

type RoomSource interface {
	Rooms() []*roomstore.Room
}

type Options struct {
	// HideConferenceRooms hides the private rooms between the user and conference bots.
	HideConferenceRooms bool
	Codec               confuser.Codec
}

// Snapshot is the state of the room list at one point in time. Snapshots are never modified after being returned.
type Snapshot struct {
	Rooms    []*roomstore.Room
	Activity ActivityMap
	Selected id.RoomID
}

type Tracker struct {
	UserID      id.UserID
	Rooms       RoomSource
	Highlighter Highlighter
	Options     Options

	lock     sync.RWMutex
	state    *Snapshot
	onChange func(*Snapshot)
	scope    eventbus.Scope
}

// NewTracker creates a tracker and subscribes it to the bus. The tracker stays subscribed until Close is called.
func NewTracker(bus *eventbus.Bus, rooms RoomSource, highlighter Highlighter, userID id.UserID, opts Options) *Tracker {
	if opts.Codec == (confuser.Codec{}) {
		opts.Codec = confuser.Default
	}
	t := &Tracker{
		UserID:      userID,
		Rooms:       rooms,
		Highlighter: highlighter,
		Options:     opts,
		state:       &Snapshot{Activity: ActivityMap{}},
	}
	t.scope.Add(
		bus.RoomAdded.Subscribe(t.onRoomEvent),
		bus.RoomName.Subscribe(t.onRoomEvent),
		bus.Membership.Subscribe(t.onMembership),
		bus.Timeline.Subscribe(t.onTimeline),
	)
	t.Refresh()
	return t
}

// Close unsubscribes the tracker from the bus. It is safe to call multiple times.
func (t *Tracker) Close() {
	t.scope.Close()
}

// OnChange sets a function that is called with the new snapshot every time the state is replaced.
func (t *Tracker) OnChange(fn func(*Snapshot)) {
	t.lock.Lock()
	t.onChange = fn
	t.lock.Unlock()
}

func (t *Tracker) Snapshot() *Snapshot {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.state
}

// update replaces the state with the result of fn and notifies the change listener.
// fn must not modify the snapshot it receives.
func (t *Tracker) update(fn func(prev *Snapshot) *Snapshot) {
	t.lock.Lock()
	next := fn(t.state)
	changed := next != t.state
	t.state = next
	onChange := t.onChange
	t.lock.Unlock()
	if changed && onChange != nil {
		onChange(next)
	}
}

// Refresh recomputes the visible rooms and their order from the room source.
//
// The list is built while holding the state lock, so concurrent refreshes can't store an outdated list over a newer one.
func (t *Tracker) Refresh() {
	t.update(func(prev *Snapshot) *Snapshot {
		return &Snapshot{Rooms: t.visibleRooms(), Activity: prev.Activity, Selected: prev.Selected}
	})
}

// SetSelectedRoom marks the room as the one the user is looking at and clears its activity.
func (t *Tracker) SetSelectedRoom(roomID id.RoomID) {
	t.update(func(prev *Snapshot) *Snapshot {
		return &Snapshot{Rooms: prev.Rooms, Activity: prev.Activity.clear(roomID), Selected: roomID}
	})
}

func (t *Tracker) visibleRooms() []*roomstore.Room {
	var rooms []*roomstore.Room
	for _, room := range t.Rooms.Rooms() {
		if t.isVisible(room) {
			rooms = append(rooms, room)
		}
	}
	slices.SortStableFunc(rooms, func(a, b *roomstore.Room) int {
		if cmp := b.SortingTimestamp.Compare(a.SortingTimestamp); cmp != 0 {
			return cmp
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return rooms
}

func (t *Tracker) isVisible(room *roomstore.Room) bool {
	own := room.GetMember(t.UserID)
	if own == nil || (own.Membership != event.MembershipJoin && own.Membership != event.MembershipInvite) {
		return false
	}
	return !t.Options.HideConferenceRooms || !t.isConferenceRoom(room)
}

// isConferenceRoom checks if the room is a private room between the user and the conference bot of some other room.
func (t *Tracker) isConferenceRoom(room *roomstore.Room) bool {
	joined := room.JoinedMembers()
	if len(joined) != 2 {
		return false
	}
	for _, member := range joined {
		if member.UserID == t.UserID {
			continue
		}
		groupRoomID, ok := t.Options.Codec.Decode(member.UserID)
		return ok && groupRoomID != room.ID
	}
	return false
}

func (t *Tracker) onRoomEvent(ctx context.Context, evt *eventbus.RoomEvent) {
	t.Refresh()
}

func (t *Tracker) onMembership(ctx context.Context, evt *eventbus.MemberEvent) {
	t.Refresh()
}

func (t *Tracker) onTimeline(ctx context.Context, evt *eventbus.TimelineEvent) {
	if !evt.IsLive() {
		return
	}
	t.markActivity(ctx, evt)
	t.Refresh()
}

func (t *Tracker) markActivity(ctx context.Context, evt *eventbus.TimelineEvent) {
	roomID := evt.Room.ID
	if evt.Event.Sender == t.UserID || t.Snapshot().Selected == roomID {
		return
	}
	level := ActivityUnread
	if t.Highlighter != nil && t.Highlighter.IsHighlight(ctx, evt.Room, evt.Event) {
		level = ActivityHighlight
	}
	t.update(func(prev *Snapshot) *Snapshot {
		// The selection may have changed while evaluating push rules
		if prev.Selected == roomID {
			return prev
		}
		activity := prev.Activity.raise(roomID, level)
		if activity.Get(roomID) == prev.Activity.Get(roomID) {
			return prev
		}
		zerolog.Ctx(ctx).Trace().
			Stringer("room_id", roomID).
			Stringer("activity", level).
			Msg("Room activity increased")
		return &Snapshot{Rooms: prev.Rooms, Activity: activity, Selected: prev.Selected}
	})
}

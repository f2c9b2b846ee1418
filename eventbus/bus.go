// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package eventbus delivers room model changes to the components that track them.
//
// Components subscribe when they're constructed and release their subscriptions
// through a Subscription or Scope when they're torn down.
package eventbus

import (
	"maunium.net/go/mautrix/event"

	"go.mau.fi/roomkit/roomstore"
)

type TimelineEvent struct {
	Event *event.Event
	Room  *roomstore.Room
	// BackPaginated is true for historical events fetched with /messages.
	BackPaginated bool
	// InitialSync is true for events from the first sync after startup.
	InitialSync bool
}

// IsLive returns true if the event was appended to the end of the timeline by an incremental sync.
func (te *TimelineEvent) IsLive() bool {
	return !te.BackPaginated && !te.InitialSync
}

type MemberEvent struct {
	Event  *event.Event
	Room   *roomstore.Room
	Member *roomstore.Member

	PrevMembership event.Membership
}

type RoomEvent struct {
	Event *event.Event
	Room  *roomstore.Room
}

type PresenceEvent struct {
	Event    *event.Event
	Presence *roomstore.Presence
}

// Bus contains one topic per kind of change the room model can report.
type Bus struct {
	RoomAdded  Topic[*RoomEvent]
	RoomName   Topic[*RoomEvent]
	Timeline   Topic[*TimelineEvent]
	Membership Topic[*MemberEvent]
	// PowerLevel is emitted once for every member whose effective power level changed.
	PowerLevel Topic[*MemberEvent]
	Presence   Topic[*PresenceEvent]
}

func New() *Bus {
	return &Bus{}
}

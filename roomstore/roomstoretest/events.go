// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package roomstoretest contains helpers for building the events that the room model consumes in tests.
package roomstoretest

import (
	"encoding/json"
	"time"

	"go.mau.fi/util/exerrors"
	"go.mau.fi/util/random"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/roomkit/roomstore"
)

func newEventID() id.EventID {
	return id.EventID("$" + random.String(24))
}

// StateEvent builds a state event with both the raw and the parsed content filled.
func StateEvent(roomID id.RoomID, sender id.UserID, evtType event.Type, stateKey string, content any) *event.Event {
	evtType.Class = event.StateEventType
	return &event.Event{
		Type:     evtType,
		RoomID:   roomID,
		Sender:   sender,
		StateKey: &stateKey,
		ID:       newEventID(),
		Content: event.Content{
			VeryRaw: exerrors.Must(json.Marshal(content)),
			Parsed:  content,
		},
		Mautrix: event.MautrixInfo{EventSource: event.SourceState},
	}
}

func MemberEvent(roomID id.RoomID, userID id.UserID, membership event.Membership) *event.Event {
	return StateEvent(roomID, userID, event.StateMember, userID.String(), &event.MemberEventContent{
		Membership: membership,
	})
}

func PowerLevelsEvent(roomID id.RoomID, sender id.UserID, content *event.PowerLevelsEventContent) *event.Event {
	return StateEvent(roomID, sender, event.StatePowerLevels, "", content)
}

func NameEvent(roomID id.RoomID, sender id.UserID, name string) *event.Event {
	return StateEvent(roomID, sender, event.StateRoomName, "", &event.RoomNameEventContent{Name: name})
}

// MessageEvent builds a live m.room.message text event.
func MessageEvent(roomID id.RoomID, sender id.UserID, body string, ts time.Time) *event.Event {
	content := &event.MessageEventContent{MsgType: event.MsgText, Body: body}
	return &event.Event{
		Type:      event.EventMessage,
		RoomID:    roomID,
		Sender:    sender,
		ID:        newEventID(),
		Timestamp: ts.UnixMilli(),
		Content: event.Content{
			VeryRaw: exerrors.Must(json.Marshal(content)),
			Parsed:  content,
		},
		Mautrix: event.MautrixInfo{EventSource: event.SourceJoin | event.SourceTimeline},
	}
}

func PresenceEvent(userID id.UserID, presence event.Presence, lastActiveAgo time.Duration) *event.Event {
	content := &event.PresenceEventContent{Presence: presence, LastActiveAgo: lastActiveAgo.Milliseconds()}
	return &event.Event{
		Type:    event.EphemeralEventPresence,
		Sender:  userID,
		Content: event.Content{VeryRaw: exerrors.Must(json.Marshal(content)), Parsed: content},
		Mautrix: event.MautrixInfo{EventSource: event.SourcePresence},
	}
}

// Fill applies the given events to the store in order and panics if any of them fails.
func Fill(store *roomstore.Store, evts ...*event.Event) {
	for _, evt := range evts {
		exerrors.Must(store.Apply(evt))
	}
}

// JoinedRoom creates a room in the store with the given users joined.
func JoinedRoom(store *roomstore.Store, roomID id.RoomID, userIDs ...id.UserID) {
	for _, userID := range userIDs {
		Fill(store, MemberEvent(roomID, userID, event.MembershipJoin))
	}
}

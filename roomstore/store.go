// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package roomstore contains the client-side model of the rooms the user is in: members, power levels,
// names and activity timestamps, built from the events received through sync.
package roomstore

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/slices"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Presence is the last known presence of a user.
type Presence struct {
	UserID          id.UserID
	Presence        event.Presence
	LastActiveAgo   time.Duration
	CurrentlyActive bool
}

// Change describes what an event changed in the room model.
type Change struct {
	Room *Room

	RoomAdded   bool
	NameChanged bool
	Bumped      bool

	Membership     *Member
	PrevMembership event.Membership

	// PowerLevels contains every member whose effective power level was changed by the event.
	PowerLevels []*Member

	Presence *Presence
}

// Store holds the latest snapshot of every known room.
type Store struct {
	lock     sync.RWMutex
	rooms    map[id.RoomID]*Room
	presence map[id.UserID]*Presence
}

func New() *Store {
	return &Store{
		rooms:    make(map[id.RoomID]*Room),
		presence: make(map[id.UserID]*Presence),
	}
}

// GetRoom returns the current snapshot of the given room, or nil if the room isn't known.
func (s *Store) GetRoom(roomID id.RoomID) *Room {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.rooms[roomID]
}

// Rooms returns the current snapshot of every known room sorted by room ID.
func (s *Store) Rooms() []*Room {
	s.lock.RLock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	s.lock.RUnlock()
	slices.SortFunc(rooms, func(a, b *Room) int {
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return rooms
}

// Presence returns the last known presence of the given user, or nil if no presence event has been seen.
func (s *Store) Presence(userID id.UserID) *Presence {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.presence[userID]
}

// EnsureRoom adds an empty room to the model if it doesn't exist yet.
func (s *Store) EnsureRoom(roomID id.RoomID) (*Room, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	room, ok := s.rooms[roomID]
	if ok {
		return room, false
	}
	room = newRoom(roomID)
	s.rooms[roomID] = room
	return room, true
}

func parseContent(evt *event.Event) error {
	if evt.Content.Parsed != nil || len(evt.Content.VeryRaw) == 0 {
		return nil
	}
	return evt.Content.ParseRaw(evt.Type)
}

func bumpsSortingTimestamp(evt *event.Event) bool {
	switch evt.Type.Type {
	case event.EventMessage.Type, event.EventEncrypted.Type, event.EventSticker.Type, event.CallInvite.Type:
		return evt.StateKey == nil
	default:
		return false
	}
}

// Apply updates the room model with the given event and reports what changed.
//
// Events that the model doesn't care about still create the room if it wasn't known before.
func (s *Store) Apply(evt *event.Event) (*Change, error) {
	if evt.Type.Type == event.EphemeralEventPresence.Type {
		return s.applyPresence(evt)
	} else if evt.RoomID == "" {
		return nil, nil
	}

	isState := evt.StateKey != nil
	if isState {
		switch evt.Type.Type {
		case event.StateMember.Type, event.StatePowerLevels.Type, event.StateRoomName.Type:
			if err := parseContent(evt); err != nil {
				return nil, fmt.Errorf("failed to parse %s content: %w", evt.Type.Type, err)
			}
		}
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	change := &Change{}
	prev, ok := s.rooms[evt.RoomID]
	if !ok {
		prev = newRoom(evt.RoomID)
		change.RoomAdded = true
	}
	next := prev.clone()

	if isState {
		switch evt.Type.Type {
		case event.StateMember.Type:
			userID := id.UserID(*evt.StateKey)
			if prevContent, ok := next.members[userID]; ok {
				change.PrevMembership = prevContent.Membership
			}
			content := evt.Content.AsMember()
			next.members[userID] = content
			change.Membership = next.member(userID, content)
		case event.StatePowerLevels.Type:
			next.powerLevels = evt.Content.AsPowerLevels()
			next.powerLevelsEvent = evt
			change.PowerLevels = changedPowerLevels(prev, next)
		case event.StateRoomName.Type:
			next.Name = evt.Content.AsRoomName().Name
			change.NameChanged = next.Name != prev.Name
		}
	}

	if evt.Timestamp > 0 && (bumpsSortingTimestamp(evt) || next.SortingTimestamp.IsZero()) {
		ts := time.UnixMilli(evt.Timestamp)
		if now := time.Now(); ts.After(now) {
			ts = now
		}
		if ts.After(next.SortingTimestamp) {
			next.SortingTimestamp = ts
			change.Bumped = true
		}
	}

	s.rooms[evt.RoomID] = next
	change.Room = next
	return change, nil
}

func changedPowerLevels(prev, next *Room) []*Member {
	userIDs := make(map[id.UserID]struct{}, len(next.members))
	for userID := range next.members {
		userIDs[userID] = struct{}{}
	}
	for _, pl := range []*event.PowerLevelsEventContent{prev.powerLevels, next.powerLevels} {
		if pl != nil {
			for userID := range pl.Users {
				userIDs[userID] = struct{}{}
			}
		}
	}
	var changed []*Member
	for userID := range userIDs {
		if prev.powerLevelOf(userID) == next.powerLevelOf(userID) {
			continue
		}
		member := next.GetMember(userID)
		if member == nil {
			member = &Member{RoomID: next.ID, UserID: userID, PowerLevel: next.powerLevelOf(userID)}
		}
		changed = append(changed, member)
	}
	slices.SortFunc(changed, func(a, b *Member) int {
		return strings.Compare(string(a.UserID), string(b.UserID))
	})
	return changed
}

func (s *Store) applyPresence(evt *event.Event) (*Change, error) {
	if err := parseContent(evt); err != nil {
		return nil, fmt.Errorf("failed to parse presence content: %w", err)
	}
	content := evt.Content.AsPresence()
	presence := &Presence{
		UserID:          evt.Sender,
		Presence:        content.Presence,
		LastActiveAgo:   time.Duration(content.LastActiveAgo) * time.Millisecond,
		CurrentlyActive: content.CurrentlyActive,
	}
	s.lock.Lock()
	s.presence[evt.Sender] = presence
	s.lock.Unlock()
	return &Change{Presence: presence}, nil
}

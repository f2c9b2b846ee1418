// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package roomstore

import (
	"strings"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Member is a snapshot of a single room member, including their current power level.
type Member struct {
	RoomID      id.RoomID
	UserID      id.UserID
	Membership  event.Membership
	Displayname string
	PowerLevel  int
}

// Room is an immutable snapshot of the client-side state of a room.
//
// The Store replaces the whole snapshot whenever an event changes the room,
// so a *Room can be held and read without locking.
type Room struct {
	ID               id.RoomID
	Name             string
	SortingTimestamp time.Time

	members          map[id.UserID]*event.MemberEventContent
	powerLevels      *event.PowerLevelsEventContent
	powerLevelsEvent *event.Event
}

func newRoom(roomID id.RoomID) *Room {
	return &Room{
		ID:      roomID,
		members: make(map[id.UserID]*event.MemberEventContent),
	}
}

func (r *Room) clone() *Room {
	cloned := *r
	cloned.members = maps.Clone(r.members)
	return &cloned
}

// DisplayName returns the room name, or the room ID if the room doesn't have one.
func (r *Room) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return string(r.ID)
}

func (r *Room) powerLevelOf(userID id.UserID) int {
	if r.powerLevels == nil {
		return 0
	}
	return r.powerLevels.GetUserLevel(userID)
}

func (r *Room) member(userID id.UserID, content *event.MemberEventContent) *Member {
	return &Member{
		RoomID:      r.ID,
		UserID:      userID,
		Membership:  content.Membership,
		Displayname: content.Displayname,
		PowerLevel:  r.powerLevelOf(userID),
	}
}

// GetMember returns the given user's membership in the room, or nil if no member event has been seen for them.
func (r *Room) GetMember(userID id.UserID) *Member {
	content, ok := r.members[userID]
	if !ok {
		return nil
	}
	return r.member(userID, content)
}

// Members returns every member the room model knows about, sorted by user ID.
func (r *Room) Members() []*Member {
	return r.filterMembers(func(*event.MemberEventContent) bool { return true })
}

// JoinedMembers returns the members whose membership is join, sorted by user ID.
func (r *Room) JoinedMembers() []*Member {
	return r.filterMembers(func(content *event.MemberEventContent) bool {
		return content.Membership == event.MembershipJoin
	})
}

func (r *Room) filterMembers(fn func(*event.MemberEventContent) bool) []*Member {
	output := make([]*Member, 0, len(r.members))
	for userID, content := range r.members {
		if fn(content) {
			output = append(output, r.member(userID, content))
		}
	}
	slices.SortFunc(output, func(a, b *Member) int {
		return strings.Compare(string(a.UserID), string(b.UserID))
	})
	return output
}

// JoinedMemberCount returns the number of members with join membership.
func (r *Room) JoinedMemberCount() int {
	count := 0
	for _, content := range r.members {
		if content.Membership == event.MembershipJoin {
			count++
		}
	}
	return count
}

// PowerLevels returns the content of the current m.room.power_levels event, or nil if the room doesn't have one.
// The returned value is shared between snapshots and must not be modified.
func (r *Room) PowerLevels() *event.PowerLevelsEventContent {
	return r.powerLevels
}

// PowerLevelsEvent returns the full m.room.power_levels event that PowerLevels was parsed from.
func (r *Room) PowerLevelsEvent() *event.Event {
	return r.powerLevelsEvent
}

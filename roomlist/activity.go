// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package roomlist

import (
	"golang.org/x/exp/maps"
	"maunium.net/go/mautrix/id"
)

type ActivityLevel int

const (
	ActivityNone ActivityLevel = iota
	ActivityUnread
	ActivityHighlight
)

func (al ActivityLevel) String() string {
	switch al {
	case ActivityNone:
		return "none"
	case ActivityUnread:
		return "unread"
	case ActivityHighlight:
		return "highlight"
	default:
		return "unknown"
	}
}

// ActivityMap contains the activity level of every room that has unseen activity.
//
// Maps handed out by the tracker are never modified afterwards: every update creates a new map.
type ActivityMap map[id.RoomID]ActivityLevel

// Get returns the activity level of the room, or ActivityNone if the room has no activity.
func (am ActivityMap) Get(roomID id.RoomID) ActivityLevel {
	return am[roomID]
}

// raise returns a copy of the map with the room's level set to the higher of the current level and the given level.
// If the level wouldn't change, the map itself is returned.
func (am ActivityMap) raise(roomID id.RoomID, level ActivityLevel) ActivityMap {
	if am[roomID] >= level {
		return am
	}
	updated := maps.Clone(am)
	if updated == nil {
		updated = make(ActivityMap, 1)
	}
	updated[roomID] = level
	return updated
}

// clear returns a copy of the map without the given room. If the room has no activity, the map itself is returned.
func (am ActivityMap) clear(roomID id.RoomID) ActivityMap {
	if _, ok := am[roomID]; !ok {
		return am
	}
	updated := maps.Clone(am)
	delete(updated, roomID)
	return updated
}

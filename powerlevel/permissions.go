// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package powerlevel decides what a room member may do to another member based on the room's power levels.
//
// Everything in this package is fail-closed: a room without a power level event grants no permissions
// and nobody in it is considered muted.
package powerlevel

import (
	"maunium.net/go/mautrix/event"

	"go.mau.fi/roomkit/roomstore"
)

// PermissionSet contains the moderation actions that one member may take against another.
type PermissionSet struct {
	Kick bool
	Ban  bool
	Mute bool
}

// Calculate returns the actions self may take against target.
//
// A member can only affect members with a strictly lower power level than their own.
func Calculate(self, target *roomstore.Member, pl *event.PowerLevelsEventContent) (can PermissionSet) {
	if pl == nil || self == nil || target == nil {
		return
	} else if target.PowerLevel >= self.PowerLevel {
		return
	}
	can.Kick = self.PowerLevel >= pl.Kick()
	can.Ban = self.PowerLevel >= pl.Ban()
	can.Mute = self.PowerLevel >= EditPowerLevel(pl)
	return
}

// EditPowerLevel returns the level needed to send m.room.power_levels, which is what muting someone requires.
func EditPowerLevel(pl *event.PowerLevelsEventContent) int {
	return pl.GetEventLevel(event.StatePowerLevels)
}

// LevelToSend returns the level needed to send m.room.message.
func LevelToSend(pl *event.PowerLevelsEventContent) int {
	return pl.GetEventLevel(event.EventMessage)
}

// IsMuted checks if the target is currently unable to send messages.
func IsMuted(target *roomstore.Member, pl *event.PowerLevelsEventContent) bool {
	if pl == nil || target == nil {
		return false
	}
	return target.PowerLevel < LevelToSend(pl)
}

// MuteToggleLevel returns the power level that toggles the target's mute state:
// LevelToSend for muted members and one below it for everyone else.
//
// The decision is always derived from the given power levels, so callers must pass the current state
// rather than remembering whether they muted someone earlier.
func MuteToggleLevel(target *roomstore.Member, pl *event.PowerLevelsEventContent) (level int, ok bool) {
	if pl == nil || target == nil {
		return 0, false
	}
	level = LevelToSend(pl)
	if !IsMuted(target, pl) {
		level--
	}
	return level, true
}

// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package powerlevel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mau.fi/util/ptr"
	"maunium.net/go/mautrix/event"

	"go.mau.fi/roomkit/powerlevel"
	"go.mau.fi/roomkit/roomstore"
)

func member(level int) *roomstore.Member {
	return &roomstore.Member{
		RoomID:     "!room:example.com",
		UserID:     "@user:example.com",
		Membership: event.MembershipJoin,
		PowerLevel: level,
	}
}

func TestCalculate_NoPowerLevels(t *testing.T) {
	assert.Equal(t, powerlevel.PermissionSet{}, powerlevel.Calculate(member(100), member(0), nil))
}

func TestCalculate_NilMembers(t *testing.T) {
	pl := &event.PowerLevelsEventContent{}
	assert.Equal(t, powerlevel.PermissionSet{}, powerlevel.Calculate(nil, member(0), pl))
	assert.Equal(t, powerlevel.PermissionSet{}, powerlevel.Calculate(member(100), nil, pl))
}

func TestCalculate_CannotAffectEqualOrHigher(t *testing.T) {
	pl := &event.PowerLevelsEventContent{KickPtr: ptr.Ptr(0), BanPtr: ptr.Ptr(0), StateDefaultPtr: ptr.Ptr(0)}
	assert.Equal(t, powerlevel.PermissionSet{}, powerlevel.Calculate(member(50), member(50), pl))
	assert.Equal(t, powerlevel.PermissionSet{}, powerlevel.Calculate(member(50), member(100), pl))
}

func TestCalculate_Thresholds(t *testing.T) {
	pl := &event.PowerLevelsEventContent{KickPtr: ptr.Ptr(50), BanPtr: ptr.Ptr(50)}
	can := powerlevel.Calculate(member(50), member(0), pl)
	assert.True(t, can.Kick)
	assert.True(t, can.Ban)
	// state_default defaults to 50
	assert.True(t, can.Mute)

	pl = &event.PowerLevelsEventContent{KickPtr: ptr.Ptr(50), BanPtr: ptr.Ptr(75)}
	can = powerlevel.Calculate(member(60), member(0), pl)
	assert.True(t, can.Kick)
	assert.False(t, can.Ban)
}

func TestCalculate_MuteUsesPowerLevelsEventLevel(t *testing.T) {
	pl := &event.PowerLevelsEventContent{
		StateDefaultPtr: ptr.Ptr(10),
		Events:          map[string]int{event.StatePowerLevels.Type: 100},
	}
	assert.False(t, powerlevel.Calculate(member(50), member(0), pl).Mute)

	pl = &event.PowerLevelsEventContent{StateDefaultPtr: ptr.Ptr(10)}
	assert.True(t, powerlevel.Calculate(member(50), member(0), pl).Mute)

	// An explicit zero override must not fall back to state_default
	pl = &event.PowerLevelsEventContent{
		StateDefaultPtr: ptr.Ptr(100),
		Events:          map[string]int{event.StatePowerLevels.Type: 0},
	}
	assert.True(t, powerlevel.Calculate(member(1), member(0), pl).Mute)
}

func TestIsMuted(t *testing.T) {
	assert.False(t, powerlevel.IsMuted(member(-100), nil))

	pl := &event.PowerLevelsEventContent{EventsDefault: 0}
	assert.True(t, powerlevel.IsMuted(member(-1), pl))
	assert.False(t, powerlevel.IsMuted(member(0), pl))

	pl = &event.PowerLevelsEventContent{EventsDefault: 0, Events: map[string]int{event.EventMessage.Type: 10}}
	assert.True(t, powerlevel.IsMuted(member(9), pl))
	assert.False(t, powerlevel.IsMuted(member(10), pl))
}

func TestMuteToggleLevel(t *testing.T) {
	_, ok := powerlevel.MuteToggleLevel(member(0), nil)
	assert.False(t, ok)

	pl := &event.PowerLevelsEventContent{EventsDefault: 0}
	level, ok := powerlevel.MuteToggleLevel(member(0), pl)
	assert.True(t, ok)
	assert.Equal(t, -1, level)

	level, ok = powerlevel.MuteToggleLevel(member(-1), pl)
	assert.True(t, ok)
	assert.Equal(t, 0, level)

	pl = &event.PowerLevelsEventContent{Events: map[string]int{event.EventMessage.Type: 20}}
	level, _ = powerlevel.MuteToggleLevel(member(50), pl)
	assert.Equal(t, 19, level)
	level, _ = powerlevel.MuteToggleLevel(member(5), pl)
	assert.Equal(t, 20, level)
}

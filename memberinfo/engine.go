// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package memberinfo computes what the user can see about and do to a single room member.
package memberinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/roomkit"
	"go.mau.fi/roomkit/powerlevel"
	"go.mau.fi/roomkit/roomstore"
)

type Client interface {
	Kick(ctx context.Context, roomID id.RoomID, userID id.UserID, reason string) error
	Ban(ctx context.Context, roomID id.RoomID, userID id.UserID, reason string) error
	SetPowerLevels(ctx context.Context, roomID id.RoomID, content json.RawMessage) error
	CreateRoom(ctx context.Context, req *mautrix.ReqCreateRoom) (id.RoomID, error)
}

type RoomSource interface {
	GetRoom(roomID id.RoomID) *roomstore.Room
	Rooms() []*roomstore.Room
	Presence(userID id.UserID) *roomstore.Presence
}

// Info is the derived view of a member from the point of view of the current user.
type Info struct {
	RoomID id.RoomID
	UserID id.UserID

	// Member is nil if the room model has no member event for the user.
	Member        *roomstore.Member
	Presence      *roomstore.Presence
	LastActiveAgo time.Duration

	Can   powerlevel.PermissionSet
	Muted bool
}

type Engine struct {
	UserID id.UserID
	Client Client
	Rooms  RoomSource
}

func NewEngine(userID id.UserID, client Client, rooms RoomSource) *Engine {
	return &Engine{UserID: userID, Client: client, Rooms: rooms}
}

func (e *Engine) getRoom(roomID id.RoomID) (*roomstore.Room, error) {
	room := e.Rooms.GetRoom(roomID)
	if room == nil {
		return nil, fmt.Errorf("%w %s", roomkit.ErrUnknownRoom, roomID)
	}
	return room, nil
}

// Info returns the current view of the member. Nothing is cached: every call reads the latest room snapshot.
func (e *Engine) Info(roomID id.RoomID, userID id.UserID) (*Info, error) {
	room, err := e.getRoom(roomID)
	if err != nil {
		return nil, err
	}
	return e.info(room, userID), nil
}

func (e *Engine) info(room *roomstore.Room, userID id.UserID) *Info {
	pl := room.PowerLevels()
	target := room.GetMember(userID)
	info := &Info{
		RoomID:   room.ID,
		UserID:   userID,
		Member:   target,
		Presence: e.Rooms.Presence(userID),
		Can:      powerlevel.Calculate(room.GetMember(e.UserID), target, pl),
		Muted:    powerlevel.IsMuted(target, pl),
	}
	if info.Presence != nil {
		info.LastActiveAgo = info.Presence.LastActiveAgo
	}
	return info
}

func (e *Engine) checkPermission(roomID id.RoomID, userID id.UserID, allowed func(powerlevel.PermissionSet) bool) (*roomstore.Room, error) {
	room, err := e.getRoom(roomID)
	if err != nil {
		return nil, err
	}
	if !allowed(e.info(room, userID).Can) {
		return nil, fmt.Errorf("%w to act on %s in %s", roomkit.ErrPermissionDenied, userID, roomID)
	}
	return room, nil
}

// Kick removes the user from the room. The room model is only updated when the resulting membership event arrives.
func (e *Engine) Kick(ctx context.Context, roomID id.RoomID, userID id.UserID, reason string) error {
	_, err := e.checkPermission(roomID, userID, func(can powerlevel.PermissionSet) bool { return can.Kick })
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Debug().
		Stringer("room_id", roomID).
		Stringer("user_id", userID).
		Msg("Kicking user")
	err = e.Client.Kick(ctx, roomID, userID, reason)
	if err != nil {
		return roomkit.NewOperationError("kick", roomID, userID, err)
	}
	return nil
}

func (e *Engine) Ban(ctx context.Context, roomID id.RoomID, userID id.UserID, reason string) error {
	_, err := e.checkPermission(roomID, userID, func(can powerlevel.PermissionSet) bool { return can.Ban })
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Debug().
		Stringer("room_id", roomID).
		Stringer("user_id", userID).
		Msg("Banning user")
	err = e.Client.Ban(ctx, roomID, userID, reason)
	if err != nil {
		return roomkit.NewOperationError("ban", roomID, userID, err)
	}
	return nil
}

// ToggleMute mutes the user if they can currently send messages and unmutes them otherwise.
//
// The mute state is read from the power levels at the time of the call, and the new power level event is
// the previous one with only the user's level changed.
func (e *Engine) ToggleMute(ctx context.Context, roomID id.RoomID, userID id.UserID) (muted bool, err error) {
	room, err := e.getRoom(roomID)
	if err != nil {
		return false, err
	} else if room.PowerLevelsEvent() == nil {
		return false, fmt.Errorf("%w: %s", roomkit.ErrNoPowerLevels, roomID)
	}
	room, err = e.checkPermission(roomID, userID, func(can powerlevel.PermissionSet) bool { return can.Mute })
	if err != nil {
		return false, err
	}
	target := room.GetMember(userID)
	level, ok := powerlevel.MuteToggleLevel(target, room.PowerLevels())
	if !ok {
		return false, fmt.Errorf("%w: %s", roomkit.ErrNoPowerLevels, roomID)
	}
	prior := room.PowerLevelsEvent()
	content, err := powerlevel.WithUserLevel(prior, userID, level)
	if err != nil {
		return false, fmt.Errorf("failed to build power levels: %w", err)
	}
	muted = !powerlevel.IsMuted(target, room.PowerLevels())
	logEvt := zerolog.Ctx(ctx).Debug().
		Stringer("room_id", roomID).
		Stringer("user_id", userID).
		Int("level", level).
		Bool("muted", muted)
	if prevLevel, explicit := powerlevel.UserLevelIn(prior.Content.VeryRaw, userID); explicit {
		logEvt = logEvt.Int("prev_level", prevLevel)
	}
	logEvt.Msg("Changing user power level to toggle mute")
	err = e.Client.SetPowerLevels(ctx, roomID, content)
	if err != nil {
		return false, roomkit.NewOperationError("set power level of", roomID, userID, err)
	}
	return muted, nil
}

// FindDirectChat returns a room where the only joined members are the current user and the given user.
func (e *Engine) FindDirectChat(userID id.UserID) id.RoomID {
	for _, room := range e.Rooms.Rooms() {
		joined := room.JoinedMembers()
		if len(joined) != 2 {
			continue
		}
		if (joined[0].UserID == e.UserID && joined[1].UserID == userID) ||
			(joined[1].UserID == e.UserID && joined[0].UserID == userID) {
			return room.ID
		}
	}
	return ""
}

// StartChat returns a direct chat with the given user, creating one if none exists yet.
func (e *Engine) StartChat(ctx context.Context, userID id.UserID) (roomID id.RoomID, created bool, err error) {
	if userID == e.UserID {
		return "", false, fmt.Errorf("can't start a chat with yourself")
	}
	if roomID = e.FindDirectChat(userID); roomID != "" {
		return roomID, false, nil
	}
	roomID, err = e.Client.CreateRoom(ctx, &mautrix.ReqCreateRoom{
		Preset:   "private_chat",
		Invite:   []id.UserID{userID},
		IsDirect: true,
	})
	if err != nil {
		return "", false, roomkit.NewOperationError("create direct chat with", "", userID, err)
	}
	zerolog.Ctx(ctx).Debug().
		Stringer("room_id", roomID).
		Stringer("user_id", userID).
		Msg("Created direct chat")
	return roomID, true, nil
}

// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package conference places calls in group rooms through a conference bot.
//
// The conference server is represented by a synthetic user per group room (see package confuser).
// To call a group room, the bot is invited to the group room and the actual 1:1 call is placed
// in a private room between the user and the bot.
package conference

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/roomkit"
	"go.mau.fi/roomkit/confuser"
	"go.mau.fi/roomkit/roomstore"
	"go.mau.fi/roomkit/voip"
)

const bridgeRoomPreset = "private_chat"

type Client interface {
	Invite(ctx context.Context, roomID id.RoomID, userID id.UserID) error
	CreateRoom(ctx context.Context, req *mautrix.ReqCreateRoom) (id.RoomID, error)
}

type RoomSource interface {
	GetRoom(roomID id.RoomID) *roomstore.Room
	Rooms() []*roomstore.Room
}

type CallFactory interface {
	NewCall(roomID id.RoomID) *voip.Call
}

// Bridge sets up conference calls on behalf of a single user.
type Bridge struct {
	UserID id.UserID
	Client Client
	Rooms  RoomSource
	Calls  CallFactory
	Codec  confuser.Codec
	Log    zerolog.Logger
}

func NewBridge(userID id.UserID, client Client, rooms RoomSource, calls CallFactory) *Bridge {
	return &Bridge{
		UserID: userID,
		Client: client,
		Rooms:  rooms,
		Calls:  calls,
		Codec:  confuser.Default,
		Log:    zerolog.Nop(),
	}
}

// SetupConferenceCall makes sure the conference bot is in the group room and returns a call
// bound to the private room between the user and the bot.
//
// If the group room isn't known, the error wraps roomkit.ErrUnknownRoom. Failed invites and room
// creations are returned as *roomkit.OperationError and are not retried.
func (b *Bridge) SetupConferenceCall(ctx context.Context, groupRoomID id.RoomID) (*voip.Call, error) {
	botID := b.Codec.Encode(groupRoomID)
	log := b.Log.With().
		Str("action", "setup conference call").
		Stringer("group_room_id", groupRoomID).
		Stringer("conference_user_id", botID).
		Logger()
	ctx = log.WithContext(ctx)

	err := b.ensureBotInvited(ctx, groupRoomID, botID)
	if err != nil {
		return nil, err
	}
	roomID := b.FindBridgeRoom(groupRoomID)
	if roomID != "" {
		log.Debug().Stringer("room_id", roomID).Msg("Found existing conference room")
	} else {
		roomID, err = b.createBridgeRoom(ctx, botID)
		if err != nil {
			return nil, err
		}
		log.Debug().Stringer("room_id", roomID).Msg("Created new conference room")
	}
	return b.Calls.NewCall(roomID), nil
}

func (b *Bridge) ensureBotInvited(ctx context.Context, groupRoomID id.RoomID, botID id.UserID) error {
	groupRoom := b.Rooms.GetRoom(groupRoomID)
	if groupRoom == nil {
		return fmt.Errorf("%w %s", roomkit.ErrUnknownRoom, groupRoomID)
	}
	member := groupRoom.GetMember(botID)
	if member != nil && member.Membership == event.MembershipJoin {
		return nil
	}
	zerolog.Ctx(ctx).Debug().Msg("Inviting conference user to group room")
	err := b.Client.Invite(ctx, groupRoomID, botID)
	if err != nil {
		return roomkit.NewOperationError("invite conference user", groupRoomID, botID, err)
	}
	return nil
}

// FindBridgeRoom returns the existing private room between the user and the conference bot of the given group room.
//
// A room only matches if exactly two members are joined: the user and the bot derived from this specific
// group room. The group room itself never matches, even if the user and the bot are the only ones in it.
// Without a user ID, nothing matches.
func (b *Bridge) FindBridgeRoom(groupRoomID id.RoomID) id.RoomID {
	botID := b.Codec.Encode(groupRoomID)
	for _, room := range b.Rooms.Rooms() {
		if room.ID == groupRoomID {
			continue
		}
		joined := room.JoinedMembers()
		if len(joined) != 2 {
			continue
		}
		var hasBot, hasUser bool
		for _, member := range joined {
			switch member.UserID {
			case botID:
				hasBot = true
			case b.UserID:
				hasUser = true
			}
		}
		if hasBot && hasUser {
			return room.ID
		}
	}
	return ""
}

func (b *Bridge) createBridgeRoom(ctx context.Context, botID id.UserID) (id.RoomID, error) {
	roomID, err := b.Client.CreateRoom(ctx, &mautrix.ReqCreateRoom{
		Preset: bridgeRoomPreset,
		Invite: []id.UserID{botID},
	})
	if err != nil {
		return "", roomkit.NewOperationError("create conference room", "", botID, err)
	}
	return roomID, nil
}

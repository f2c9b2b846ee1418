// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package voip contains the handle for a 1:1 Matrix VoIP call bound to a single room.
package voip

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

const (
	// Version is the m.call.* event version that calls are placed with.
	Version = event.CallVersion("1")
	// DefaultLifetime is how long the invite stays valid if the caller doesn't specify a lifetime.
	DefaultLifetime = 60 * time.Second
)

// Sender sends message events into a room.
type Sender interface {
	SendMessageEvent(ctx context.Context, roomID id.RoomID, eventType event.Type, content any) (id.EventID, error)
}

// Call is a call placed in a single room. Signalling events are sent to that room only.
type Call struct {
	RoomID  id.RoomID
	CallID  string
	PartyID string

	sender Sender
}

// Factory constructs calls bound to a room.
type Factory struct {
	Sender Sender
}

// NewCall creates a call handle for the given room. Nothing is sent until Invite is called.
func (f *Factory) NewCall(roomID id.RoomID) *Call {
	return &Call{
		RoomID:  roomID,
		CallID:  xid.New().String(),
		PartyID: xid.New().String(),
		sender:  f.Sender,
	}
}

func (c *Call) base() event.BaseCallEventContent {
	return event.BaseCallEventContent{
		CallID:  c.CallID,
		PartyID: c.PartyID,
		Version: Version,
	}
}

// Invite sends the m.call.invite event with the given SDP offer.
func (c *Call) Invite(ctx context.Context, offerSDP string, lifetime time.Duration) (id.EventID, error) {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	content := &event.CallInviteEventContent{
		BaseCallEventContent: c.base(),
		Lifetime:             int(lifetime.Milliseconds()),
		Offer: event.CallData{
			SDP:  offerSDP,
			Type: event.CallDataTypeOffer,
		},
	}
	zerolog.Ctx(ctx).Debug().
		Stringer("room_id", c.RoomID).
		Str("call_id", c.CallID).
		Msg("Sending call invite")
	evtID, err := c.sender.SendMessageEvent(ctx, c.RoomID, event.CallInvite, content)
	if err != nil {
		return "", fmt.Errorf("failed to send call invite: %w", err)
	}
	return evtID, nil
}

// Hangup sends the m.call.hangup event.
func (c *Call) Hangup(ctx context.Context, reason event.CallHangupReason) error {
	content := &event.CallHangupEventContent{
		BaseCallEventContent: c.base(),
		Reason:               reason,
	}
	_, err := c.sender.SendMessageEvent(ctx, c.RoomID, event.CallHangup, content)
	if err != nil {
		return fmt.Errorf("failed to send call hangup: %w", err)
	}
	return nil
}

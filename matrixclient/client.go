// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package matrixclient connects the room model and event bus to a mautrix client.
//
// Sync responses are applied to the room model and the resulting changes are emitted on the bus.
// The client also implements the narrow interfaces that the other packages use for homeserver requests.
package matrixclient

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
	"maunium.net/go/mautrix/pushrules"

	"go.mau.fi/roomkit/eventbus"
	"go.mau.fi/roomkit/roomstore"
)

type Client struct {
	Matrix *mautrix.Client
	Store  *roomstore.Store
	Bus    *eventbus.Bus

	pushRules   atomic.Pointer[pushrules.PushRuleset]
	initialSync atomic.Bool
	// eventLock serializes applying events and emitting them, as pagination runs outside the sync goroutine.
	eventLock sync.Mutex
}

func New(cli *mautrix.Client, store *roomstore.Store, bus *eventbus.Bus) *Client {
	return &Client{
		Matrix: cli,
		Store:  store,
		Bus:    bus,
	}
}

// Register adds the sync handlers of the client to the given syncer.
func (c *Client) Register(syncer *mautrix.DefaultSyncer) {
	syncer.OnSync(c.onSync)
	if c.Matrix.StateStore != nil {
		syncer.OnEvent(c.Matrix.StateStoreSyncHandler)
	}
	syncer.OnEvent(c.HandleEvent)
}

func (c *Client) onSync(ctx context.Context, resp *mautrix.RespSync, since string) bool {
	c.initialSync.Store(since == "")
	return true
}

// Sync runs the sync loop of the underlying client until the context is canceled or syncing fails.
func (c *Client) Sync(ctx context.Context) error {
	return c.Matrix.SyncWithContext(ctx)
}

// HandleEvent applies a single synced event to the room model and emits the resulting changes.
func (c *Client) HandleEvent(ctx context.Context, evt *event.Event) {
	if evt.Type.Type == pushRulesType.Type && evt.RoomID == "" {
		c.updatePushRules(ctx, evt)
		return
	}
	log := zerolog.Ctx(ctx).With().
		Stringer("room_id", evt.RoomID).
		Stringer("event_id", evt.ID).
		Str("event_type", evt.Type.Type).
		Logger()
	c.eventLock.Lock()
	defer c.eventLock.Unlock()
	change, err := c.Store.Apply(evt)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to apply event to room model")
		return
	} else if change == nil {
		return
	}
	isTimeline := evt.Mautrix.EventSource&event.SourceTimeline != 0
	c.emit(log.WithContext(ctx), evt, change, isTimeline, &eventbus.TimelineEvent{
		Event:       evt,
		Room:        change.Room,
		InitialSync: c.initialSync.Load(),
	})
}

func (c *Client) emit(ctx context.Context, evt *event.Event, change *roomstore.Change, isTimeline bool, timeline *eventbus.TimelineEvent) {
	if change.RoomAdded {
		c.Bus.RoomAdded.Emit(ctx, &eventbus.RoomEvent{Event: evt, Room: change.Room})
	}
	if change.NameChanged {
		c.Bus.RoomName.Emit(ctx, &eventbus.RoomEvent{Event: evt, Room: change.Room})
	}
	if change.Membership != nil {
		c.Bus.Membership.Emit(ctx, &eventbus.MemberEvent{
			Event:          evt,
			Room:           change.Room,
			Member:         change.Membership,
			PrevMembership: change.PrevMembership,
		})
	}
	for _, member := range change.PowerLevels {
		c.Bus.PowerLevel.Emit(ctx, &eventbus.MemberEvent{Event: evt, Room: change.Room, Member: member})
	}
	if isTimeline {
		c.Bus.Timeline.Emit(ctx, timeline)
	}
	if change.Presence != nil {
		c.Bus.Presence.Emit(ctx, &eventbus.PresenceEvent{Event: evt, Presence: change.Presence})
	}
}

// Paginate fetches older events of the room and emits them as back-paginated timeline events.
//
// Historical state events are not applied to the room model, as it already contains the current state.
func (c *Client) Paginate(ctx context.Context, roomID id.RoomID, from string, limit int) (*mautrix.RespMessages, error) {
	resp, err := c.Matrix.Messages(ctx, roomID, from, "", mautrix.DirectionBackward, nil, limit)
	if err != nil {
		return nil, err
	}
	log := zerolog.Ctx(ctx)
	c.eventLock.Lock()
	defer c.eventLock.Unlock()
	for _, evt := range resp.Chunk {
		if evt.RoomID == "" {
			evt.RoomID = roomID
		}
		var change *roomstore.Change
		if evt.StateKey == nil {
			change, err = c.Store.Apply(evt)
			if err != nil {
				log.Warn().Err(err).Stringer("event_id", evt.ID).Msg("Failed to apply paginated event to room model")
				continue
			}
		} else {
			room, added := c.Store.EnsureRoom(roomID)
			change = &roomstore.Change{Room: room, RoomAdded: added}
		}
		c.emit(ctx, evt, change, true, &eventbus.TimelineEvent{
			Event:         evt,
			Room:          change.Room,
			BackPaginated: true,
		})
	}
	log.Debug().
		Stringer("room_id", roomID).
		Int("event_count", len(resp.Chunk)).
		Str("next_token", resp.End).
		Msg("Paginated room history")
	return resp, nil
}

func (c *Client) UserID() id.UserID {
	return c.Matrix.UserID
}

func (c *Client) Invite(ctx context.Context, roomID id.RoomID, userID id.UserID) error {
	_, err := c.Matrix.InviteUser(ctx, roomID, &mautrix.ReqInviteUser{UserID: userID})
	return err
}

func (c *Client) CreateRoom(ctx context.Context, req *mautrix.ReqCreateRoom) (id.RoomID, error) {
	resp, err := c.Matrix.CreateRoom(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.RoomID, nil
}

func (c *Client) Kick(ctx context.Context, roomID id.RoomID, userID id.UserID, reason string) error {
	_, err := c.Matrix.KickUser(ctx, roomID, &mautrix.ReqKickUser{UserID: userID, Reason: reason})
	return err
}

func (c *Client) Ban(ctx context.Context, roomID id.RoomID, userID id.UserID, reason string) error {
	_, err := c.Matrix.BanUser(ctx, roomID, &mautrix.ReqBanUser{UserID: userID, Reason: reason})
	return err
}

// SetPowerLevels replaces the m.room.power_levels state of the room with the given raw content.
func (c *Client) SetPowerLevels(ctx context.Context, roomID id.RoomID, content json.RawMessage) error {
	_, err := c.Matrix.SendStateEvent(ctx, roomID, event.StatePowerLevels, "", content)
	return err
}

func (c *Client) SendMessageEvent(ctx context.Context, roomID id.RoomID, eventType event.Type, content any) (id.EventID, error) {
	resp, err := c.Matrix.SendMessageEvent(ctx, roomID, eventType, content)
	if err != nil {
		return "", err
	}
	return resp.EventID, nil
}

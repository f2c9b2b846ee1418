// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package memberinfo_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/roomkit"
	"go.mau.fi/roomkit/eventbus"
	"go.mau.fi/roomkit/memberinfo"
	"go.mau.fi/roomkit/powerlevel"
	"go.mau.fi/roomkit/roomstore"
	"go.mau.fi/roomkit/roomstore/roomstoretest"
)

const (
	me    = id.UserID("@me:example.com")
	alice = id.UserID("@alice:example.com")
	bob   = id.UserID("@bob:example.com")
	room  = id.RoomID("!room:example.com")
)

type fakeClient struct {
	kicked      []id.UserID
	banned      []id.UserID
	powerLevels []json.RawMessage
	creates     []*mautrix.ReqCreateRoom
	err         error
}

func (fc *fakeClient) Kick(ctx context.Context, roomID id.RoomID, userID id.UserID, reason string) error {
	if fc.err != nil {
		return fc.err
	}
	fc.kicked = append(fc.kicked, userID)
	return nil
}

func (fc *fakeClient) Ban(ctx context.Context, roomID id.RoomID, userID id.UserID, reason string) error {
	if fc.err != nil {
		return fc.err
	}
	fc.banned = append(fc.banned, userID)
	return nil
}

func (fc *fakeClient) SetPowerLevels(ctx context.Context, roomID id.RoomID, content json.RawMessage) error {
	if fc.err != nil {
		return fc.err
	}
	fc.powerLevels = append(fc.powerLevels, content)
	return nil
}

func (fc *fakeClient) CreateRoom(ctx context.Context, req *mautrix.ReqCreateRoom) (id.RoomID, error) {
	if fc.err != nil {
		return "", fc.err
	}
	fc.creates = append(fc.creates, req)
	return "!dm:example.com", nil
}

// rawPowerLevels builds a power level event that only has raw content, like events coming from sync.
func rawPowerLevels(roomID id.RoomID, raw string) *event.Event {
	stateKey := ""
	return &event.Event{
		Type:     event.StatePowerLevels,
		RoomID:   roomID,
		Sender:   me,
		StateKey: &stateKey,
		ID:       "$pl",
		Content:  event.Content{VeryRaw: json.RawMessage(raw)},
	}
}

const defaultPowerLevels = `{
	"users": {"@me:example.com": 100, "@bob:example.com": 100},
	"events_default": 0,
	"kick": 50,
	"ban": 50,
	"com.example.custom": {"keep": true}
}`

func assertLevel(t *testing.T, content json.RawMessage, userID id.UserID, expected int) {
	t.Helper()
	level, ok := powerlevel.UserLevelIn(content, userID)
	require.True(t, ok, "user %s missing from power levels", userID)
	assert.Equal(t, expected, level)
}

func newEngine(t *testing.T) (*memberinfo.Engine, *roomstore.Store, *fakeClient) {
	t.Helper()
	store := roomstore.New()
	roomstoretest.JoinedRoom(store, room, me, alice, bob)
	roomstoretest.Fill(store, rawPowerLevels(room, defaultPowerLevels))
	client := &fakeClient{}
	return memberinfo.NewEngine(me, client, store), store, client
}

func TestInfo(t *testing.T) {
	engine, store, _ := newEngine(t)
	roomstoretest.Fill(store, roomstoretest.PresenceEvent(alice, event.PresenceOnline, 5*time.Second))

	info, err := engine.Info(room, alice)
	require.NoError(t, err)
	require.NotNil(t, info.Member)
	assert.Equal(t, event.MembershipJoin, info.Member.Membership)
	assert.Equal(t, 5*time.Second, info.LastActiveAgo)
	assert.Equal(t, event.PresenceOnline, info.Presence.Presence)
	assert.True(t, info.Can.Kick)
	assert.True(t, info.Can.Ban)
	assert.True(t, info.Can.Mute)
	assert.False(t, info.Muted)

	info, err = engine.Info(room, bob)
	require.NoError(t, err)
	assert.Equal(t, 100, info.Member.PowerLevel)
	assert.False(t, info.Can.Kick)
	assert.Nil(t, info.Presence)
}

func TestInfo_UnknownRoom(t *testing.T) {
	engine, _, _ := newEngine(t)
	_, err := engine.Info("!missing:example.com", alice)
	assert.ErrorIs(t, err, roomkit.ErrUnknownRoom)
}

func TestInfo_NoPowerLevels(t *testing.T) {
	store := roomstore.New()
	roomstoretest.JoinedRoom(store, room, me, alice)
	engine := memberinfo.NewEngine(me, &fakeClient{}, store)
	info, err := engine.Info(room, alice)
	require.NoError(t, err)
	assert.Equal(t, powerlevel.PermissionSet{}, info.Can)
	assert.False(t, info.Muted)
}

func TestKickAndBan(t *testing.T) {
	engine, _, client := newEngine(t)
	ctx := context.Background()
	require.NoError(t, engine.Kick(ctx, room, alice, ""))
	require.NoError(t, engine.Ban(ctx, room, alice, "spam"))
	assert.Equal(t, []id.UserID{alice}, client.kicked)
	assert.Equal(t, []id.UserID{alice}, client.banned)
}

func TestKick_PermissionDenied(t *testing.T) {
	engine, _, client := newEngine(t)
	err := engine.Kick(context.Background(), room, bob, "")
	assert.ErrorIs(t, err, roomkit.ErrPermissionDenied)
	assert.Empty(t, client.kicked)
}

func TestBan_NetworkFailure(t *testing.T) {
	engine, store, client := newEngine(t)
	client.err = mautrix.MForbidden
	err := engine.Ban(context.Background(), room, alice, "")
	assert.ErrorIs(t, err, roomkit.ErrNetworkOperationFailed)
	assert.ErrorIs(t, err, mautrix.MForbidden)
	// Nothing changes locally until the membership event arrives
	assert.Equal(t, event.MembershipJoin, store.GetRoom(room).GetMember(alice).Membership)
}

func TestToggleMute(t *testing.T) {
	engine, store, client := newEngine(t)
	ctx := context.Background()

	muted, err := engine.ToggleMute(ctx, room, alice)
	require.NoError(t, err)
	assert.True(t, muted)
	require.Len(t, client.powerLevels, 1)
	content := client.powerLevels[0]
	assertLevel(t, content, alice, -1)
	assertLevel(t, content, me, 100)
	assert.True(t, gjson.GetBytes(content, `com\.example\.custom.keep`).Bool())

	// Toggling again without the confirming event still derives the state from the room model
	muted, err = engine.ToggleMute(ctx, room, alice)
	require.NoError(t, err)
	assert.True(t, muted)

	roomstoretest.Fill(store, rawPowerLevels(room, string(content)))
	info, err := engine.Info(room, alice)
	require.NoError(t, err)
	assert.True(t, info.Muted)

	muted, err = engine.ToggleMute(ctx, room, alice)
	require.NoError(t, err)
	assert.False(t, muted)
	assertLevel(t, client.powerLevels[2], alice, 0)
}

func TestToggleMute_NoPowerLevels(t *testing.T) {
	store := roomstore.New()
	roomstoretest.JoinedRoom(store, room, me, alice)
	client := &fakeClient{}
	engine := memberinfo.NewEngine(me, client, store)
	_, err := engine.ToggleMute(context.Background(), room, alice)
	assert.ErrorIs(t, err, roomkit.ErrNoPowerLevels)
	assert.NotErrorIs(t, err, roomkit.ErrPermissionDenied)
	assert.Empty(t, client.powerLevels)

	_, err = engine.ToggleMute(context.Background(), "!missing:example.com", alice)
	assert.ErrorIs(t, err, roomkit.ErrUnknownRoom)
}

func TestToggleMute_PermissionDenied(t *testing.T) {
	engine, _, client := newEngine(t)
	_, err := engine.ToggleMute(context.Background(), room, bob)
	assert.ErrorIs(t, err, roomkit.ErrPermissionDenied)
	assert.Empty(t, client.powerLevels)
}

func TestToggleMute_NetworkFailure(t *testing.T) {
	engine, _, client := newEngine(t)
	client.err = errors.New("timeout")
	_, err := engine.ToggleMute(context.Background(), room, alice)
	var opErr *roomkit.OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, alice, opErr.UserID)
}

func TestStartChat(t *testing.T) {
	engine, store, client := newEngine(t)
	ctx := context.Background()

	roomID, created, err := engine.StartChat(ctx, alice)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, id.RoomID("!dm:example.com"), roomID)
	require.Len(t, client.creates, 1)
	assert.True(t, client.creates[0].IsDirect)
	assert.Equal(t, []id.UserID{alice}, client.creates[0].Invite)

	roomstoretest.JoinedRoom(store, "!existing:example.com", me, alice)
	roomID, created, err = engine.StartChat(ctx, alice)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id.RoomID("!existing:example.com"), roomID)
	assert.Len(t, client.creates, 1)
}

func TestWatcher(t *testing.T) {
	engine, store, _ := newEngine(t)
	bus := eventbus.New()
	var infos []*memberinfo.Info
	watcher := engine.Watch(bus, room, alice, func(info *memberinfo.Info) {
		infos = append(infos, info)
	})
	ctx := context.Background()
	snapshot := store.GetRoom(room)

	bus.PowerLevel.Emit(ctx, &eventbus.MemberEvent{Room: snapshot, Member: snapshot.GetMember(alice)})
	bus.PowerLevel.Emit(ctx, &eventbus.MemberEvent{Room: snapshot, Member: snapshot.GetMember(me)})
	// Unrelated member and unrelated room
	bus.PowerLevel.Emit(ctx, &eventbus.MemberEvent{Room: snapshot, Member: snapshot.GetMember(bob)})
	roomstoretest.JoinedRoom(store, "!other:example.com", alice)
	other := store.GetRoom("!other:example.com")
	bus.Membership.Emit(ctx, &eventbus.MemberEvent{Room: other, Member: other.GetMember(alice)})

	bus.Presence.Emit(ctx, &eventbus.PresenceEvent{Presence: &roomstore.Presence{UserID: alice}})
	bus.Presence.Emit(ctx, &eventbus.PresenceEvent{Presence: &roomstore.Presence{UserID: bob}})
	assert.Len(t, infos, 3)

	watcher.Close()
	watcher.Close()
	bus.PowerLevel.Emit(ctx, &eventbus.MemberEvent{Room: snapshot, Member: snapshot.GetMember(alice)})
	assert.Len(t, infos, 3)
	assert.Equal(t, 0, bus.PowerLevel.Len())
	assert.Equal(t, 0, bus.Presence.Len())
}

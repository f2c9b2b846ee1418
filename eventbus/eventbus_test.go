// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package eventbus_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"go.mau.fi/roomkit/eventbus"
)

func TestTopic_EmitOrder(t *testing.T) {
	var topic eventbus.Topic[int]
	var calls []string
	topic.Subscribe(func(ctx context.Context, payload int) {
		calls = append(calls, "first")
	})
	topic.Subscribe(func(ctx context.Context, payload int) {
		calls = append(calls, "second")
	})
	topic.Emit(context.Background(), 1)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestSubscription_Close(t *testing.T) {
	var topic eventbus.Topic[int]
	var received []int
	sub := topic.Subscribe(func(ctx context.Context, payload int) {
		received = append(received, payload)
	})
	topic.Emit(context.Background(), 1)
	sub.Close()
	sub.Close()
	topic.Emit(context.Background(), 2)
	assert.Equal(t, []int{1}, received)
	assert.Equal(t, 0, topic.Len())
}

func TestSubscription_CloseWhileEmitting(t *testing.T) {
	var topic eventbus.Topic[int]
	var sub *eventbus.Subscription
	calls := 0
	sub = topic.Subscribe(func(ctx context.Context, payload int) {
		calls++
		sub.Close()
	})
	otherCalls := 0
	topic.Subscribe(func(ctx context.Context, payload int) {
		otherCalls++
	})
	topic.Emit(context.Background(), 1)
	topic.Emit(context.Background(), 2)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, otherCalls)
}

func TestScope_Close(t *testing.T) {
	bus := eventbus.New()
	var scope eventbus.Scope
	scope.Add(
		bus.RoomAdded.Subscribe(func(ctx context.Context, evt *eventbus.RoomEvent) {}),
		bus.Timeline.Subscribe(func(ctx context.Context, evt *eventbus.TimelineEvent) {}),
	)
	assert.Equal(t, 1, bus.RoomAdded.Len())
	assert.Equal(t, 1, bus.Timeline.Len())
	scope.Close()
	assert.Equal(t, 0, bus.RoomAdded.Len())
	assert.Equal(t, 0, bus.Timeline.Len())

	scope.Add(bus.Presence.Subscribe(func(ctx context.Context, evt *eventbus.PresenceEvent) {}))
	assert.Equal(t, 0, bus.Presence.Len())
}

func TestTimelineEvent_IsLive(t *testing.T) {
	assert.True(t, (&eventbus.TimelineEvent{}).IsLive())
	assert.False(t, (&eventbus.TimelineEvent{BackPaginated: true}).IsLive())
	assert.False(t, (&eventbus.TimelineEvent{InitialSync: true}).IsLive())
}

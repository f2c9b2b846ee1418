// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package eventbus

import (
	"context"
	"sync"

	"golang.org/x/exp/slices"
)

type Handler[T any] func(ctx context.Context, payload T)

type subscriber[T any] struct {
	id      uint64
	handler Handler[T]
}

// Topic is a list of handlers for a single kind of event.
//
// Handlers are called synchronously in the order they subscribed, on the goroutine that calls Emit.
type Topic[T any] struct {
	lock   sync.RWMutex
	subs   []subscriber[T]
	nextID uint64
}

// Subscribe adds a handler to the topic. The handler stays subscribed until the returned subscription is closed.
func (t *Topic[T]) Subscribe(handler Handler[T]) *Subscription {
	t.lock.Lock()
	t.nextID++
	subID := t.nextID
	t.subs = append(t.subs, subscriber[T]{id: subID, handler: handler})
	t.lock.Unlock()
	return newSubscription(func() {
		t.lock.Lock()
		t.subs = slices.DeleteFunc(t.subs, func(sub subscriber[T]) bool {
			return sub.id == subID
		})
		t.lock.Unlock()
	})
}

// Emit calls every handler with the payload.
//
// The handler list is copied before calling, so handlers may subscribe or unsubscribe while running.
func (t *Topic[T]) Emit(ctx context.Context, payload T) {
	t.lock.RLock()
	subs := slices.Clone(t.subs)
	t.lock.RUnlock()
	for _, sub := range subs {
		sub.handler(ctx, payload)
	}
}

// Len returns the number of active subscriptions.
func (t *Topic[T]) Len() int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return len(t.subs)
}

// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package eventbus

import (
	"sync"
)

// Subscription is a handle to a subscribed handler. Closing it unsubscribes the handler.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func newSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Close unsubscribes the handler. It is safe to call multiple times.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// Scope collects subscriptions that share a lifetime, like all the handlers of a single component.
type Scope struct {
	lock   sync.Mutex
	subs   []*Subscription
	closed bool
}

// Add registers a subscription in the scope. If the scope has already been closed, the subscription is closed immediately.
func (s *Scope) Add(subs ...*Subscription) {
	s.lock.Lock()
	if !s.closed {
		s.subs = append(s.subs, subs...)
		s.lock.Unlock()
		return
	}
	s.lock.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}

// Close closes every subscription in the scope in reverse order of addition.
func (s *Scope) Close() {
	s.lock.Lock()
	subs := s.subs
	s.subs = nil
	s.closed = true
	s.lock.Unlock()
	for i := len(subs) - 1; i >= 0; i-- {
		subs[i].Close()
	}
}

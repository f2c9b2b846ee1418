// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package matrixclient

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
	"maunium.net/go/mautrix/pushrules"

	"go.mau.fi/roomkit/roomstore"
)

var pushRulesType = event.Type{Type: "m.push_rules", Class: event.AccountDataEventType}

type pushRoom struct {
	room   *roomstore.Room
	userID id.UserID
}

var _ pushrules.Room = (*pushRoom)(nil)

func (pr *pushRoom) GetOwnDisplayname() string {
	member := pr.room.GetMember(pr.userID)
	if member == nil {
		return ""
	}
	return member.Displayname
}

func (pr *pushRoom) GetMemberCount() int {
	return pr.room.JoinedMemberCount()
}

// LoadPushRules fetches the push rules of the user. Later changes are picked up from account data in sync.
func (c *Client) LoadPushRules(ctx context.Context) error {
	rules, err := c.Matrix.GetPushRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to get push rules: %w", err)
	}
	c.SetPushRules(rules)
	return nil
}

func (c *Client) SetPushRules(rules *pushrules.PushRuleset) {
	c.pushRules.Store(rules)
}

func (c *Client) updatePushRules(ctx context.Context, evt *event.Event) {
	rules, err := pushrules.EventToPushRules(evt)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to parse push rules from account data")
		return
	}
	c.SetPushRules(rules)
	zerolog.Ctx(ctx).Debug().Msg("Updated push rules")
}

// IsHighlight evaluates the push rules of the user against the event. Without push rules, nothing is highlighted.
func (c *Client) IsHighlight(ctx context.Context, room *roomstore.Room, evt *event.Event) bool {
	rules := c.pushRules.Load()
	if rules == nil || room == nil {
		return false
	}
	return rules.GetActions(&pushRoom{room: room, userID: c.Matrix.UserID}, evt).Should().Highlight
}

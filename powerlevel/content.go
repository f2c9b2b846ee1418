// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package powerlevel

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.mau.fi/util/exgjson"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

var ErrNoPriorEvent = errors.New("no prior power level event")

// WithUserLevel returns the content of prior with only the given user's level replaced.
//
// The raw content is edited directly so that fields mautrix doesn't know about survive the round trip.
func WithUserLevel(prior *event.Event, userID id.UserID, level int) (json.RawMessage, error) {
	if prior == nil {
		return nil, ErrNoPriorEvent
	}
	raw := prior.Content.VeryRaw
	if len(raw) == 0 {
		var err error
		raw, err = json.Marshal(prior.Content.Parsed)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal prior power levels: %w", err)
		}
	}
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return nil, fmt.Errorf("prior power level content is not a JSON object")
	}
	updated, err := sjson.SetBytes(raw, exgjson.Path("users", userID.String()), level)
	if err != nil {
		return nil, fmt.Errorf("failed to set user level: %w", err)
	}
	return updated, nil
}

// UserLevelIn reads the explicit level of the user from raw power level content.
// The second return value is false if the user isn't listed in the users map.
func UserLevelIn(raw json.RawMessage, userID id.UserID) (int, bool) {
	res := gjson.GetBytes(raw, exgjson.Path("users", userID.String()))
	if !res.Exists() {
		return 0, false
	}
	return int(res.Int()), true
}

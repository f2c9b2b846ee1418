// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package confuser encodes room IDs into the synthetic user IDs of conference bots and back.
//
// A conference user ID looks like @fs_<unpadded base64 of the room ID>:matrix.org. The conference server
// joins a group room as that user and hosts the actual call there.
package confuser

import (
	"encoding/base64"
	"regexp"
	"strings"

	"maunium.net/go/mautrix/id"
)

const (
	DefaultPrefix = "fs_"
	DefaultDomain = "matrix.org"
)

// Default is the codec used by the package-level functions.
var Default = Codec{Prefix: DefaultPrefix, Domain: DefaultDomain}

var decodedRoomIDRegex = regexp.MustCompile(`^!.+:.+$`)

// Codec converts between group room IDs and conference user IDs.
type Codec struct {
	// Prefix is prepended to the base64 part of the localpart.
	Prefix string
	// Domain is the server name of the conference users.
	Domain string
}

func (c Codec) marker() string {
	return "@" + c.Prefix
}

// Encode returns the conference user ID for the given group room.
func (c Codec) Encode(roomID id.RoomID) id.UserID {
	encoded := base64.RawStdEncoding.EncodeToString([]byte(roomID))
	return id.UserID(c.marker() + encoded + ":" + c.Domain)
}

// Decode returns the group room ID that the given conference user ID was derived from.
// The second return value is false if the user ID isn't a conference user.
func (c Codec) Decode(userID id.UserID) (id.RoomID, bool) {
	localpart, ok := strings.CutPrefix(string(userID), c.marker())
	if !ok {
		return "", false
	}
	localpart, _, _ = strings.Cut(localpart, ":")
	localpart = strings.TrimRight(localpart, "=")
	if localpart == "" {
		return "", false
	}
	decoded, err := base64.RawStdEncoding.DecodeString(localpart)
	if err != nil || !decodedRoomIDRegex.Match(decoded) {
		return "", false
	}
	return id.RoomID(decoded), true
}

// IsConferenceUser checks if the given user ID is a conference bot.
//
// Many ordinary users can happen to start with the prefix, so anything that doesn't decode into something
// that looks like a room ID is simply not a conference user.
func (c Codec) IsConferenceUser(userID id.UserID) bool {
	_, ok := c.Decode(userID)
	return ok
}

// IsBridgeFor checks if the given user ID is the conference bot of the given group room specifically.
func (c Codec) IsBridgeFor(userID id.UserID, roomID id.RoomID) bool {
	decoded, ok := c.Decode(userID)
	return ok && decoded == roomID
}

func Encode(roomID id.RoomID) id.UserID {
	return Default.Encode(roomID)
}

func Decode(userID id.UserID) (id.RoomID, bool) {
	return Default.Decode(userID)
}

func IsConferenceUser(userID id.UserID) bool {
	return Default.IsConferenceUser(userID)
}

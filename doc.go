// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package roomkit contains the client-side logic of a Matrix chat client that sits on top of mautrix-go:
// conference call bridging, member moderation permissions and the live room list.
//
// The subpackages are layered leaf-first: confuser and powerlevel are pure functions, roomstore and eventbus
// hold the client-side room model and event delivery, and conference, memberinfo and roomlist build on those.
// matrixclient connects everything to a real *mautrix.Client.
package roomkit

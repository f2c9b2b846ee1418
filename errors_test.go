// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package roomkit_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"maunium.net/go/mautrix"

	"go.mau.fi/roomkit"
)

func TestOperationError_Is(t *testing.T) {
	err := roomkit.NewOperationError("invite", "!room:example.com", "@user:example.com", mautrix.MForbidden)
	assert.ErrorIs(t, err, roomkit.ErrNetworkOperationFailed)
	assert.ErrorIs(t, err, mautrix.MForbidden)
	assert.False(t, errors.Is(err, roomkit.ErrUnknownRoom))
}

func TestOperationError_Message(t *testing.T) {
	cause := errors.New("boom")
	assert.Equal(t, "failed to invite @user:example.com in !room:example.com: boom",
		roomkit.NewOperationError("invite", "!room:example.com", "@user:example.com", cause).Error())
	assert.Equal(t, "failed to create room: boom",
		roomkit.NewOperationError("create room", "", "", cause).Error())
}

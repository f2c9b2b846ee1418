// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package roomkit

import (
	"errors"
	"fmt"

	"maunium.net/go/mautrix/id"
)

var (
	// ErrUnknownRoom is returned when an operation references a room that isn't in the local room model.
	ErrUnknownRoom = errors.New("unknown room")
	// ErrNetworkOperationFailed is matched by every *OperationError.
	ErrNetworkOperationFailed = errors.New("network operation failed")
	// ErrPermissionDenied is returned by actions that were gated by the permission evaluator.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNoPowerLevels is returned by actions that need to rewrite the power level event when the room has none.
	ErrNoPowerLevels = errors.New("room has no power levels")
)

// OperationError is returned when a homeserver request made on behalf of the user fails.
//
// Local derived state is never updated based on the request, so callers only need to display the error.
type OperationError struct {
	Op     string
	RoomID id.RoomID
	UserID id.UserID
	Err    error
}

func NewOperationError(op string, roomID id.RoomID, userID id.UserID, err error) *OperationError {
	return &OperationError{Op: op, RoomID: roomID, UserID: userID, Err: err}
}

func (oe *OperationError) Error() string {
	switch {
	case oe.RoomID != "" && oe.UserID != "":
		return fmt.Sprintf("failed to %s %s in %s: %v", oe.Op, oe.UserID, oe.RoomID, oe.Err)
	case oe.RoomID != "":
		return fmt.Sprintf("failed to %s in %s: %v", oe.Op, oe.RoomID, oe.Err)
	default:
		return fmt.Sprintf("failed to %s: %v", oe.Op, oe.Err)
	}
}

func (oe *OperationError) Unwrap() []error {
	return []error{ErrNetworkOperationFailed, oe.Err}
}

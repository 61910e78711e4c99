// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
)

// FailureContent replaces the assistant placeholder when the connection
// fails before the stream reaches a terminal event.
const FailureContent = "Request failed, please try again."

// Precondition failures. They are reported before any state is mutated
// and before any network call is made.
var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrNoSession    = errors.New("no session selected")
	ErrNoToken      = errors.New("not authenticated")
	ErrBusy         = errors.New("session already has a request in flight")
)

// PreconditionError wraps one of the precondition sentinels.
type PreconditionError struct {
	SessionID string
	Err       error
	// Cause is the underlying failure, if any (for example a token
	// refresh error behind ErrNoToken).
	Cause error
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	msg := e.Err.Error()
	if e.SessionID != "" {
		msg = fmt.Sprintf("session %s: %s", e.SessionID, msg)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the sentinel and the cause.
func (e *PreconditionError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// IsPrecondition reports whether err is a precondition rejection.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

func precondition(sessionID string, sentinel, cause error) error {
	return &PreconditionError{SessionID: sessionID, Err: sentinel, Cause: cause}
}

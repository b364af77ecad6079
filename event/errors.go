// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"fmt"

	"github.com/go-kairei/kairei/types"
)

// ErrorKind discriminates event failures.
type ErrorKind int

const (
	// KindNotRegistered is an emission of an unknown event type.
	KindNotRegistered ErrorKind = iota
	// KindDuplicateRegistration is a second registration of one event type.
	KindDuplicateRegistration
	// KindTypeMismatch is a parameter of the wrong type.
	KindTypeMismatch
	// KindParametersLengthNotMatched is a wrong parameter count.
	KindParametersLengthNotMatched
	// KindSendFailed is a delivery failure.
	KindSendFailed
	// KindTimedOut is a request that saw no response within its timeout.
	KindTimedOut
	// KindCancelled is a request abandoned by cancellation or shutdown.
	KindCancelled
)

var eventErrorCodes = map[ErrorKind]string{
	KindNotRegistered:              "EVENT_0001",
	KindDuplicateRegistration:      "EVENT_0002",
	KindTypeMismatch:               "EVENT_0003",
	KindParametersLengthNotMatched: "EVENT_0004",
	KindSendFailed:                 "EVENT_0005",
	KindTimedOut:                   "EVENT_0006",
	KindCancelled:                  "EVENT_0007",
}

// Error is a structured event failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Event   types.EventType
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] event %s: %s", eventErrorCodes[e.Kind], e.Event, e.Message)
}

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == KindTimedOut
}

// IsCancelled reports whether err is a cancelled request.
func IsCancelled(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == KindCancelled
}

// Lagged reports that a subscriber's bounded backlog overflowed and Count
// events were dropped. The subscription remains valid.
type Lagged struct {
	Count uint64
}

// Error implements the error interface.
func (l *Lagged) Error() string {
	return fmt.Sprintf("subscription lagged, %d events dropped", l.Count)
}

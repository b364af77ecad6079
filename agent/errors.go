// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"fmt"
)

// ErrorKind discriminates runtime failures.
type ErrorKind int

const (
	// KindHandlerNotFound is a request with no matching answer handler.
	KindHandlerNotFound ErrorKind = iota
	// KindAgentNotFound is a reference to an unregistered agent.
	KindAgentNotFound
	// KindScalingShortfall is a scale-down finding fewer instances than
	// requested.
	KindScalingShortfall
	// KindInvalidState is an illegal lifecycle transition.
	KindInvalidState
	// KindExecution is a handler execution failure.
	KindExecution
)

var runtimeErrorCodes = map[ErrorKind]string{
	KindHandlerNotFound:  "RUNTIME_0001",
	KindAgentNotFound:    "RUNTIME_0002",
	KindScalingShortfall: "RUNTIME_0003",
	KindInvalidState:     "RUNTIME_0004",
	KindExecution:        "RUNTIME_0005",
}

// Error is a structured runtime failure. Handler failures are captured into
// Err responses or feature-failure events; they never crash the agent.
type Error struct {
	Kind    ErrorKind
	Agent   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] agent %s: %s: %v", runtimeErrorCodes[e.Kind], e.Agent, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] agent %s: %s", runtimeErrorCodes[e.Kind], e.Agent, e.Message)
}

// Unwrap exposes the wrapped error.
func (e *Error) Unwrap() error { return e.Err }

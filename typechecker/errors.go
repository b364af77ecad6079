// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package typechecker

import (
	"fmt"
	"strings"

	"github.com/go-kairei/kairei/types"
)

// ErrorKind discriminates type-check failures.
type ErrorKind int

const (
	// KindTypeMismatch is a value of the wrong type.
	KindTypeMismatch ErrorKind = iota
	// KindUndefinedVariable is a reference to an undeclared variable.
	KindUndefinedVariable
	// KindUndefinedFunction is a call to an unknown function.
	KindUndefinedFunction
	// KindInvalidOperand is a binary operator applied to unsupported types.
	KindInvalidOperand
	// KindInvalidReturn is a return violating the handler contract.
	KindInvalidReturn
	// KindInferenceFailure is an expression whose type cannot be inferred.
	KindInferenceFailure
	// KindArityMismatch is a call with the wrong argument count.
	KindArityMismatch
)

var errorCodes = map[ErrorKind]string{
	KindTypeMismatch:      "TYPE_0001",
	KindUndefinedVariable: "TYPE_0002",
	KindUndefinedFunction: "TYPE_0003",
	KindInvalidOperand:    "TYPE_0004",
	KindInvalidReturn:     "TYPE_0005",
	KindInferenceFailure:  "TYPE_0006",
	KindArityMismatch:     "TYPE_0007",
}

// Error is one type-check failure with its span and a short suggestion.
type Error struct {
	Kind       ErrorKind
	Message    string
	Suggestion string
	Span       types.Span

	// Agent and Handler locate the failure for multi-agent sources.
	Agent   string
	Handler string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s/%s at %s: %s", errorCodes[e.Kind], e.Agent, e.Handler, e.Span, e.Message)
}

// Diagnostic converts the error into a [types.Diagnostic].
func (e *Error) Diagnostic() *types.Diagnostic {
	return &types.Diagnostic{
		Severity:   types.SeverityError,
		Code:       errorCodes[e.Kind],
		Message:    e.Message,
		Suggestion: e.Suggestion,
		Span:       e.Span,
	}
}

// CheckErrors aggregates the independent failures found in one pass. The
// checker fails fast within a handler but continues to the next one, so one
// pass can report several.
type CheckErrors struct {
	Errors []*Error
}

// Error implements the error interface.
func (e *CheckErrors) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d type errors:", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&b, "\n  - %s", err)
	}
	return b.String()
}

// Unwrap exposes the individual errors to errors.As/Is.
func (e *CheckErrors) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		out[i] = err
	}
	return out
}

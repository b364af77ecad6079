// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

// Package provider implements the capability-typed provider pipeline: a
// composition of plugins plus an LLM backend executed per request. Plugins
// contribute prompt sections and observe responses; the request itself is
// read-only for them.
package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-kairei/kairei/types"
)

// RequestInput is the caller's query plus structured parameters.
type RequestInput struct {
	Query      string
	Parameters map[string]types.Value
}

// Config tunes one provider execution.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int

	// Options holds provider-specific knobs.
	Options map[string]types.Value
}

// ProviderRequest is one request through the pipeline. It is read-only for
// plugins: they may only add sections to the outgoing prompt and observe the
// response.
type ProviderRequest struct {
	Input  RequestInput
	Config *Config
}

// ResponseMetadata describes a completed LLM call.
type ResponseMetadata struct {
	Model        string
	FinishReason string
	InputTokens  int64
	OutputTokens int64
	CreatedAt    time.Time
}

// LLMResponse is the raw backend response before post-processing.
type LLMResponse struct {
	Content  string
	Metadata ResponseMetadata
}

// ProviderResponse is the pipeline's final output.
type ProviderResponse struct {
	Output   string
	Metadata ResponseMetadata
}

// Section is one plugin-contributed fragment of the outgoing prompt.
// Sections are assembled in ascending priority order.
type Section struct {
	Content  string
	Priority int
	Metadata map[string]string
}

// ErrorKind discriminates provider failures.
type ErrorKind int

const (
	// KindAuthentication is a credential failure.
	KindAuthentication ErrorKind = iota
	// KindConfiguration is an invalid provider configuration.
	KindConfiguration
	// KindMissingCapabilities is an unsatisfied capability requirement.
	KindMissingCapabilities
	// KindAPI is a backend API failure.
	KindAPI
	// KindFetchFailed is a retrieval failure inside a plugin.
	KindFetchFailed
	// KindInvalidRequest is a malformed provider request.
	KindInvalidRequest
	// KindInternal is an unexpected internal failure.
	KindInternal
)

var providerErrorCodes = map[ErrorKind]string{
	KindAuthentication:      "PROVIDER_0001",
	KindConfiguration:       "PROVIDER_0002",
	KindMissingCapabilities: "PROVIDER_0003",
	KindAPI:                 "PROVIDER_0004",
	KindFetchFailed:         "PROVIDER_0005",
	KindInvalidRequest:      "PROVIDER_0006",
	KindInternal:            "PROVIDER_0007",
}

// Error is a structured provider failure. It aborts the single request and
// propagates to the requesting handler.
type Error struct {
	Kind     ErrorKind
	Provider string
	Message  string

	// Missing lists the unsatisfied capabilities for
	// [KindMissingCapabilities].
	Missing []Capability

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if len(e.Missing) > 0 {
		parts := make([]string, len(e.Missing))
		for i, c := range e.Missing {
			parts[i] = string(c)
		}
		msg = fmt.Sprintf("%s: missing capabilities [%s]", msg, strings.Join(parts, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] provider %s: %s: %v", providerErrorCodes[e.Kind], e.Provider, msg, e.Err)
	}
	return fmt.Sprintf("[%s] provider %s: %s", providerErrorCodes[e.Kind], e.Provider, msg)
}

// Unwrap exposes the wrapped error.
func (e *Error) Unwrap() error { return e.Err }

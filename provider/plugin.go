// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"

	"github.com/go-kairei/kairei/types"
)

// PluginContext is the per-request view handed to plugins. The request is
// read-only; State carries values shared between a plugin's section and
// response phases within one execution.
type PluginContext struct {
	Request *ProviderRequest
	State   map[string]types.Value
}

// NewPluginContext returns a context for one pipeline execution.
func NewPluginContext(req *ProviderRequest) *PluginContext {
	return &PluginContext{Request: req, State: make(map[string]types.Value)}
}

// Plugin is a capability-typed collaborator in the provider pipeline.
//
// GenerateSection runs before the LLM call and may contribute a prompt
// section (nil means no contribution). ProcessResponse runs after the call
// and may update the plugin's own stateful caches; it must not rewrite the
// response.
type Plugin interface {
	// Name identifies the plugin in logs and errors.
	Name() string

	// Priority orders plugin execution, ascending.
	Priority() int

	// Capability returns the capability the plugin provides.
	Capability() Capability

	GenerateSection(ctx context.Context, pctx *PluginContext) (*Section, error)

	ProcessResponse(ctx context.Context, pctx *PluginContext, resp *LLMResponse) error
}

// LLMBackend sends an assembled prompt to a concrete model and returns its
// response.
type LLMBackend interface {
	// Name identifies the backend.
	Name() string

	// Capabilities returns the backend's own capability set.
	Capabilities() Capabilities

	// Generate sends the prompt with the request's config.
	Generate(ctx context.Context, prompt string, cfg *Config) (*LLMResponse, error)
}

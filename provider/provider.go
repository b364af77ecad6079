// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

// Provider executes requests through a plugin pipeline and an LLM backend.
type Provider interface {
	// Name identifies the provider.
	Name() string

	// Capabilities returns the union of the backend's and the plugins'
	// capabilities.
	Capabilities() Capabilities

	// Initialize verifies the provider's capability requirements.
	Initialize(ctx context.Context) error

	// Execute runs one request through the pipeline.
	Execute(ctx context.Context, req *ProviderRequest) (*ProviderResponse, error)

	// Shutdown releases backend resources.
	Shutdown(ctx context.Context) error
}

// DefaultSectionDelimiter separates assembled prompt sections.
const DefaultSectionDelimiter = "\n\n"

// Standard is the standard provider: plugin section generation, prompt
// assembly, LLM invocation, and response post-processing, in that fixed
// order.
type Standard struct {
	name      string
	llm       LLMBackend
	plugins   []Plugin
	required  []Capability
	delimiter string
	logger    *slog.Logger
}

var _ Provider = (*Standard)(nil)

// StandardOption configures a [Standard] provider.
type StandardOption func(*Standard)

// WithPlugins appends plugins to the pipeline.
func WithPlugins(plugins ...Plugin) StandardOption {
	return func(p *Standard) { p.plugins = append(p.plugins, plugins...) }
}

// WithRequiredCapabilities declares the capabilities Initialize must find
// satisfied.
func WithRequiredCapabilities(caps ...Capability) StandardOption {
	return func(p *Standard) { p.required = append(p.required, caps...) }
}

// WithSectionDelimiter overrides the prompt section delimiter.
func WithSectionDelimiter(d string) StandardOption {
	return func(p *Standard) { p.delimiter = d }
}

// WithProviderLogger sets the provider logger.
func WithProviderLogger(logger *slog.Logger) StandardOption {
	return func(p *Standard) { p.logger = logger }
}

// NewStandard returns a standard provider over the given backend.
func NewStandard(name string, llm LLMBackend, opts ...StandardOption) *Standard {
	p := &Standard{
		name:      name,
		llm:       llm,
		delimiter: DefaultSectionDelimiter,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	// Plugins run in ascending priority; ties break on name for
	// determinism.
	sort.SliceStable(p.plugins, func(i, j int) bool {
		if p.plugins[i].Priority() != p.plugins[j].Priority() {
			return p.plugins[i].Priority() < p.plugins[j].Priority()
		}
		return p.plugins[i].Name() < p.plugins[j].Name()
	})
	return p
}

// Name implements [Provider].
func (p *Standard) Name() string { return p.name }

// Capabilities implements [Provider]: the backend's capabilities unioned
// with every plugin's.
func (p *Standard) Capabilities() Capabilities {
	caps := NewCapabilities().Union(p.llm.Capabilities())
	for _, plugin := range p.plugins {
		caps.Add(plugin.Capability())
	}
	return caps
}

// Initialize implements [Provider]. It fails with a missing-capabilities
// error when the required set is not satisfied by the current one.
func (p *Standard) Initialize(ctx context.Context) error {
	missing := p.Capabilities().Missing(p.required...)
	if len(missing) > 0 {
		return &Error{
			Kind:     KindMissingCapabilities,
			Provider: p.name,
			Message:  "initialization failed",
			Missing:  missing,
		}
	}
	return nil
}

// Execute implements [Provider].
func (p *Standard) Execute(ctx context.Context, req *ProviderRequest) (*ProviderResponse, error) {
	if req == nil || req.Input.Query == "" {
		return nil, &Error{
			Kind:     KindInvalidRequest,
			Provider: p.name,
			Message:  "request query is empty",
		}
	}
	pctx := NewPluginContext(req)
	llmCaps := p.llm.Capabilities()

	// 1. Section generation: plugins whose capability the backend does not
	// already provide, in ascending priority.
	var sections []*Section
	for _, plugin := range p.plugins {
		if llmCaps.Supports(plugin.Capability()) {
			continue
		}
		section, err := plugin.GenerateSection(ctx, pctx)
		if err != nil {
			return nil, &Error{
				Kind:     KindInternal,
				Provider: p.name,
				Message:  "plugin " + plugin.Name() + " failed to generate its section",
				Err:      err,
			}
		}
		if section != nil && section.Content != "" {
			sections = append(sections, section)
		}
	}

	// 2. Prompt assembly, ordered by section priority.
	prompt := p.assemblePrompt(sections, req.Input.Query)

	// 3. LLM invocation.
	resp, err := p.llm.Generate(ctx, prompt, req.Config)
	if err != nil {
		if perr, ok := err.(*Error); ok {
			return nil, perr
		}
		return nil, &Error{
			Kind:     KindAPI,
			Provider: p.name,
			Message:  "backend " + p.llm.Name() + " failed",
			Err:      err,
		}
	}

	// 4. Post-processing hooks in the same plugin order.
	for _, plugin := range p.plugins {
		if err := plugin.ProcessResponse(ctx, pctx, resp); err != nil {
			p.logger.Warn("plugin failed to process response",
				slog.String("provider", p.name),
				slog.String("plugin", plugin.Name()),
				slog.Any("error", err),
			)
		}
	}

	return &ProviderResponse{Output: resp.Content, Metadata: resp.Metadata}, nil
}

func (p *Standard) assemblePrompt(sections []*Section, query string) string {
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].Priority < sections[j].Priority
	})
	var b strings.Builder
	for _, s := range sections {
		b.WriteString(s.Content)
		b.WriteString(p.delimiter)
	}
	b.WriteString(query)
	return b.String()
}

// Shutdown implements [Provider].
func (p *Standard) Shutdown(ctx context.Context) error { return nil }

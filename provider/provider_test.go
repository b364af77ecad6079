// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeBackend records the prompts it receives and returns canned content.
type fakeBackend struct {
	content  string
	caps     Capabilities
	prompts  []string
	metadata ResponseMetadata
}

var _ LLMBackend = (*fakeBackend)(nil)

func newFakeBackend(content string) *fakeBackend {
	return &fakeBackend{
		content:  content,
		caps:     NewCapabilities(CapabilityGenerate),
		metadata: ResponseMetadata{Model: "fake-1", FinishReason: "stop"},
	}
}

func (b *fakeBackend) Name() string               { return "fake" }
func (b *fakeBackend) Capabilities() Capabilities { return b.caps }

func (b *fakeBackend) Generate(ctx context.Context, prompt string, cfg *Config) (*LLMResponse, error) {
	b.prompts = append(b.prompts, prompt)
	return &LLMResponse{Content: b.content, Metadata: b.metadata}, nil
}

// orderPlugin records pipeline phase ordering.
type orderPlugin struct {
	name     string
	priority int
	log      *[]string
}

var _ Plugin = (*orderPlugin)(nil)

func (p *orderPlugin) Name() string           { return p.name }
func (p *orderPlugin) Priority() int          { return p.priority }
func (p *orderPlugin) Capability() Capability { return CustomCapability(p.name) }

func (p *orderPlugin) GenerateSection(ctx context.Context, pctx *PluginContext) (*Section, error) {
	*p.log = append(*p.log, "section:"+p.name)
	return &Section{Content: "[" + p.name + "]", Priority: p.priority}, nil
}

func (p *orderPlugin) ProcessResponse(ctx context.Context, pctx *PluginContext, resp *LLMResponse) error {
	*p.log = append(*p.log, "response:"+p.name)
	return nil
}

func TestCapabilitiesSetOperations(t *testing.T) {
	caps := NewCapabilities(CapabilityGenerate, CapabilityMemory)
	if !caps.Supports(CapabilityMemory) {
		t.Error("expected memory support")
	}
	if caps.Supports(CapabilityRag) {
		t.Error("unexpected rag support")
	}
	if !caps.SupportsAll(CapabilityGenerate, CapabilityMemory) {
		t.Error("expected SupportsAll to hold")
	}
	if !caps.SupportsAny(CapabilityRag, CapabilityMemory) {
		t.Error("expected SupportsAny to hold")
	}

	// Union is the monoid operation.
	union := caps.Union(NewCapabilities(CapabilityRag))
	if !union.SupportsAll(CapabilityGenerate, CapabilityMemory, CapabilityRag) {
		t.Error("union missing capabilities")
	}
	if caps.Supports(CapabilityRag) {
		t.Error("union must not mutate its operands")
	}

	missing := caps.Missing(CapabilityGenerate, CapabilityRag, CapabilitySearch)
	if diff := cmp.Diff([]Capability{CapabilityRag, CapabilitySearch}, missing); diff != "" {
		t.Errorf("missing mismatch (-want +got):\n%s", diff)
	}
}

func TestStandardProviderCapabilitiesAreUnion(t *testing.T) {
	backend := newFakeBackend("out")
	log := []string{}
	p := NewStandard("test", backend,
		WithPlugins(
			&orderPlugin{name: "alpha", priority: 1, log: &log},
			NewMemoryPlugin(DefaultMemoryConfig()),
		),
	)
	caps := p.Capabilities()
	if !caps.SupportsAll(CapabilityGenerate, CapabilityMemory, CustomCapability("alpha")) {
		t.Errorf("capabilities = %s, want backend plus plugins", caps)
	}
}

func TestStandardProviderInitializeMissingCapabilities(t *testing.T) {
	p := NewStandard("test", newFakeBackend("out"),
		WithRequiredCapabilities(CapabilityRag),
	)
	err := p.Initialize(t.Context())
	perr, ok := err.(*Error)
	if !ok || perr.Kind != KindMissingCapabilities {
		t.Fatalf("error = %v, want missing capabilities", err)
	}
	if diff := cmp.Diff([]Capability{CapabilityRag}, perr.Missing); diff != "" {
		t.Errorf("missing list mismatch (-want +got):\n%s", diff)
	}

	ok2 := NewStandard("test2", newFakeBackend("out"),
		WithRequiredCapabilities(CapabilityGenerate),
	)
	if err := ok2.Initialize(t.Context()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
}

// TestStandardProviderPipelineOrder verifies the fixed execution order:
// sections ascending by priority, prompt assembly, LLM call, then response
// hooks in the same order.
func TestStandardProviderPipelineOrder(t *testing.T) {
	backend := newFakeBackend("answer")
	log := []string{}
	p := NewStandard("test", backend,
		WithPlugins(
			&orderPlugin{name: "late", priority: 90, log: &log},
			&orderPlugin{name: "early", priority: 10, log: &log},
		),
	)
	resp, err := p.Execute(t.Context(), &ProviderRequest{
		Input: RequestInput{Query: "the question"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Output != "answer" {
		t.Errorf("output = %q", resp.Output)
	}
	wantLog := []string{"section:early", "section:late", "response:early", "response:late"}
	if diff := cmp.Diff(wantLog, log); diff != "" {
		t.Fatalf("phase order mismatch (-want +got):\n%s", diff)
	}
	prompt := backend.prompts[0]
	if !strings.HasPrefix(prompt, "[early]") {
		t.Errorf("prompt should lead with the early section: %q", prompt)
	}
	if !strings.HasSuffix(prompt, "the question") {
		t.Errorf("prompt should end with the query: %q", prompt)
	}
	if strings.Index(prompt, "[early]") > strings.Index(prompt, "[late]") {
		t.Errorf("sections out of priority order: %q", prompt)
	}
}

// TestStandardProviderSkipsBackendCapabilities verifies plugins whose
// capability the backend already provides do not generate sections.
func TestStandardProviderSkipsBackendCapabilities(t *testing.T) {
	backend := newFakeBackend("out")
	backend.caps = NewCapabilities(CapabilityGenerate, CustomCapability("alpha"))
	log := []string{}
	p := NewStandard("test", backend,
		WithPlugins(&orderPlugin{name: "alpha", priority: 1, log: &log}),
	)
	if _, err := p.Execute(t.Context(), &ProviderRequest{Input: RequestInput{Query: "q"}}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, entry := range log {
		if entry == "section:alpha" {
			t.Error("backend-covered plugin still generated a section")
		}
	}
	// The response hook still runs.
	if diff := cmp.Diff([]string{"response:alpha"}, log); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestStandardProviderEmptyQuery(t *testing.T) {
	p := NewStandard("test", newFakeBackend("out"))
	_, err := p.Execute(t.Context(), &ProviderRequest{})
	perr, ok := err.(*Error)
	if !ok || perr.Kind != KindInvalidRequest {
		t.Fatalf("error = %v, want invalid request", err)
	}
}

func TestRegistryPrimaryAndShutdown(t *testing.T) {
	reg := NewRegistry()
	first := NewStandard("first", newFakeBackend("a"))
	second := NewStandard("second", newFakeBackend("b"))
	if err := reg.Register(t.Context(), first); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(t.Context(), second); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(t.Context(), NewStandard("first", newFakeBackend("c"))); err == nil {
		t.Fatal("duplicate registration should fail")
	}

	p, err := reg.Primary()
	if err != nil || p.Name() != "first" {
		t.Fatalf("Primary() = %v, %v; want first", p, err)
	}
	if err := reg.SetPrimary("second"); err != nil {
		t.Fatalf("SetPrimary: %v", err)
	}
	p, _ = reg.Primary()
	if p.Name() != "second" {
		t.Errorf("Primary() = %q, want second", p.Name())
	}

	if err := reg.Shutdown(t.Context()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := reg.Get("first"); err == nil {
		t.Error("providers should be gone after shutdown")
	}
}

func TestSystemPromptPlugin(t *testing.T) {
	p := NewSystemPromptPlugin("be kind", "be brief")
	section, err := p.GenerateSection(t.Context(), NewPluginContext(&ProviderRequest{}))
	if err != nil {
		t.Fatalf("GenerateSection: %v", err)
	}
	if !strings.Contains(section.Content, "- be kind") || !strings.Contains(section.Content, "- be brief") {
		t.Errorf("section = %q", section.Content)
	}

	empty := NewSystemPromptPlugin()
	section, err = empty.GenerateSection(t.Context(), NewPluginContext(&ProviderRequest{}))
	if err != nil || section != nil {
		t.Errorf("empty policies should contribute no section, got %v, %v", section, err)
	}
}

// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"strings"
)

// SystemPromptPlugin contributes the agent's policies as the leading system
// instruction section.
type SystemPromptPlugin struct {
	policies []string
}

var _ Plugin = (*SystemPromptPlugin)(nil)

// NewSystemPromptPlugin returns a plugin rendering the given policies.
func NewSystemPromptPlugin(policies ...string) *SystemPromptPlugin {
	return &SystemPromptPlugin{policies: policies}
}

// Name implements [Plugin].
func (p *SystemPromptPlugin) Name() string { return "system_prompt" }

// Priority implements [Plugin]. System instructions lead the prompt.
func (p *SystemPromptPlugin) Priority() int { return 10 }

// Capability implements [Plugin].
func (p *SystemPromptPlugin) Capability() Capability { return CapabilitySystemPrompt }

// GenerateSection implements [Plugin].
func (p *SystemPromptPlugin) GenerateSection(ctx context.Context, pctx *PluginContext) (*Section, error) {
	if len(p.policies) == 0 {
		return nil, nil
	}
	var b strings.Builder
	b.WriteString("System Instructions:\n")
	for _, policy := range p.policies {
		b.WriteString("- ")
		b.WriteString(policy)
		b.WriteString("\n")
	}
	return &Section{Content: b.String(), Priority: p.Priority()}, nil
}

// ProcessResponse implements [Plugin].
func (p *SystemPromptPlugin) ProcessResponse(ctx context.Context, pctx *PluginContext, resp *LLMResponse) error {
	return nil
}

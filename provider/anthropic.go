// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"fmt"
	"os"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropic_option "github.com/anthropics/anthropic-sdk-go/option"
)

// EnvAnthropicAPIKey is the environment variable the Anthropic backend
// falls back to when no key is configured.
const EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"

// anthropicDefaultModel is used when the request config names no model.
var anthropicDefaultModel = string(anthropic.ModelClaude3_5Sonnet20241022)

// anthropicDefaultMaxTokens bounds responses when the config sets no limit.
const anthropicDefaultMaxTokens = 4096

// AnthropicBackend is the [LLMBackend] over Anthropic's Claude models.
type AnthropicBackend struct {
	client anthropic.Client
	model  string
}

var _ LLMBackend = (*AnthropicBackend)(nil)

// NewAnthropicBackend returns a backend authenticated with apiKey, falling
// back to the ANTHROPIC_API_KEY environment variable.
func NewAnthropicBackend(apiKey, model string) (*AnthropicBackend, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvAnthropicAPIKey)
	}
	if apiKey == "" {
		return nil, &Error{
			Kind:     KindAuthentication,
			Provider: "anthropic",
			Message:  fmt.Sprintf("an API key or the %q environment variable is required", EnvAnthropicAPIKey),
		}
	}
	if model == "" {
		model = anthropicDefaultModel
	}
	return &AnthropicBackend{
		client: anthropic.NewClient(anthropic_option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// Name implements [LLMBackend].
func (b *AnthropicBackend) Name() string { return "anthropic" }

// Capabilities implements [LLMBackend]. Only text generation is declared:
// Generate sends the assembled prompt as one user message, so system
// instructions reach the model as a section from the system-prompt plugin.
func (b *AnthropicBackend) Capabilities() Capabilities {
	return NewCapabilities(CapabilityGenerate)
}

// Generate implements [LLMBackend].
func (b *AnthropicBackend) Generate(ctx context.Context, prompt string, cfg *Config) (*LLMResponse, error) {
	model := b.model
	maxTokens := int64(anthropicDefaultMaxTokens)
	params := anthropic.MessageNewParams{
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if cfg != nil {
		if cfg.Model != "" {
			model = cfg.Model
		}
		if cfg.MaxTokens > 0 {
			maxTokens = int64(cfg.MaxTokens)
		}
		if cfg.Temperature > 0 {
			params.Temperature = anthropic.Float(cfg.Temperature)
		}
	}
	params.Model = anthropic.Model(model)
	params.MaxTokens = maxTokens

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, &Error{
			Kind:     KindAPI,
			Provider: "anthropic",
			Message:  "message creation failed",
			Err:      err,
		}
	}

	content := ""
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += text.Text
		}
	}
	return &LLMResponse{
		Content: content,
		Metadata: ResponseMetadata{
			Model:        string(resp.Model),
			FinishReason: string(resp.StopReason),
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			CreatedAt:    time.Now(),
		},
	}, nil
}

// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"fmt"
	"os"
	"time"

	"google.golang.org/genai"
)

// EnvGoogleAPIKey is the environment variable the Gemini backend falls back
// to when no key is configured.
const EnvGoogleAPIKey = "GOOGLE_API_KEY"

// geminiDefaultModel is used when the request config names no model.
const geminiDefaultModel = "gemini-2.0-flash"

// GeminiBackend is the [LLMBackend] over Google's Gemini models.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

var _ LLMBackend = (*GeminiBackend)(nil)

// NewGeminiBackend returns a backend authenticated with apiKey, falling
// back to the GOOGLE_API_KEY environment variable.
func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvGoogleAPIKey)
	}
	if apiKey == "" {
		return nil, &Error{
			Kind:     KindAuthentication,
			Provider: "gemini",
			Message:  fmt.Sprintf("an API key or the %q environment variable is required", EnvGoogleAPIKey),
		}
	}
	if model == "" {
		model = geminiDefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, &Error{
			Kind:     KindConfiguration,
			Provider: "gemini",
			Message:  "create genai client",
			Err:      err,
		}
	}
	return &GeminiBackend{client: client, model: model}, nil
}

// Name implements [LLMBackend].
func (b *GeminiBackend) Name() string { return "gemini" }

// Capabilities implements [LLMBackend].
func (b *GeminiBackend) Capabilities() Capabilities {
	return NewCapabilities(CapabilityGenerate)
}

// Generate implements [LLMBackend].
func (b *GeminiBackend) Generate(ctx context.Context, prompt string, cfg *Config) (*LLMResponse, error) {
	model := b.model
	genCfg := &genai.GenerateContentConfig{}
	if cfg != nil {
		if cfg.Model != "" {
			model = cfg.Model
		}
		if cfg.MaxTokens > 0 {
			genCfg.MaxOutputTokens = int32(cfg.MaxTokens)
		}
		if cfg.Temperature > 0 {
			genCfg.Temperature = genai.Ptr(float32(cfg.Temperature))
		}
	}

	resp, err := b.client.Models.GenerateContent(ctx, model, genai.Text(prompt), genCfg)
	if err != nil {
		return nil, &Error{
			Kind:     KindAPI,
			Provider: "gemini",
			Message:  "content generation failed",
			Err:      err,
		}
	}

	finishReason := ""
	if len(resp.Candidates) > 0 {
		finishReason = string(resp.Candidates[0].FinishReason)
	}
	meta := ResponseMetadata{
		Model:        model,
		FinishReason: finishReason,
		CreatedAt:    time.Now(),
	}
	if resp.UsageMetadata != nil {
		meta.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		meta.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return &LLMResponse{Content: resp.Text(), Metadata: meta}, nil
}

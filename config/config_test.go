// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"gopkg.in/yaml.v3"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.EventBufferSize != 256 {
		t.Errorf("EventBufferSize = %d, want 256", cfg.EventBufferSize)
	}
	if cfg.RequestTimeout.Std() != 30*time.Second {
		t.Errorf("RequestTimeout = %s, want 30s", cfg.RequestTimeout)
	}
	if collector := cfg.Validate(); collector.HasErrors() {
		t.Errorf("default config should validate, got %v", collector.Errors())
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(heredoc.Doc(`
		event_buffer_size: 64
		request_timeout: 5s
		features:
		  ticker_enabled: true
		  ticker_interval: 250ms
		providers:
		  - name: main
		    backend: anthropic
		    model: claude-3-5-sonnet-latest
		    temperature: 0.7
		    max_tokens: 1024
		    plugins:
		      memory:
		        max_short_term: 5
		        max_long_term: 50
		        importance_threshold: 0.6
		      shared_memory:
		        namespace: trips
		        max_keys: 100
		        default_ttl: 1h
	`)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.EventBufferSize != 64 {
		t.Errorf("EventBufferSize = %d, want 64", cfg.EventBufferSize)
	}
	if !cfg.Features.TickerEnabled || cfg.Features.TickerInterval.Std() != 250*time.Millisecond {
		t.Errorf("features = %+v", cfg.Features)
	}
	if len(cfg.Providers) != 1 {
		t.Fatalf("providers = %d, want 1", len(cfg.Providers))
	}
	p := cfg.Providers[0]
	if p.Backend != "anthropic" || p.Temperature != 0.7 {
		t.Errorf("provider = %+v", p)
	}
	if p.Plugins.SharedMemory == nil || p.Plugins.SharedMemory.Namespace != "trips" {
		t.Errorf("shared memory plugin = %+v", p.Plugins.SharedMemory)
	}
	if p.Plugins.SharedMemory.DefaultTTL.Std() != time.Hour {
		t.Errorf("default ttl = %s, want 1h", p.Plugins.SharedMemory.DefaultTTL)
	}
	// Untouched fields keep their defaults.
	if cfg.ShutdownTimeout.Std() != 30*time.Second {
		t.Errorf("ShutdownTimeout = %s, want default", cfg.ShutdownTimeout)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	if _, err := Parse([]byte("event_buffer_size: -1")); err == nil {
		t.Error("negative buffer size should fail validation")
	}
	if _, err := Parse([]byte("request_timeout: [")); err == nil {
		t.Error("malformed yaml should fail")
	}
}

func TestValidateCollectsBatch(t *testing.T) {
	cfg := Default()
	cfg.EventBufferSize = 0
	cfg.RequestTimeout = 0
	cfg.Providers = []ProviderConfig{
		{Name: "dup", Backend: "anthropic"},
		{Name: "dup", Backend: "mystery"},
	}
	collector := cfg.Validate()
	if got := len(collector.Errors()); got != 3 {
		t.Errorf("errors = %d, want 3 (buffer, timeout, duplicate)", got)
	}
	if got := len(collector.Warnings()); got != 1 {
		t.Errorf("warnings = %d, want 1 (unknown backend)", got)
	}
	for _, d := range collector.All() {
		if d.Code == "" || d.Suggestion == "" {
			t.Errorf("diagnostic lacks code or suggestion: %+v", d)
		}
	}
}

func TestSecretsNeverSerializeInPlainText(t *testing.T) {
	secret := ProviderSecret{
		APIKey:         "sk-very-secret",
		AdditionalAuth: map[string]string{"org": "also-secret"},
	}
	out, err := yaml.Marshal(secret)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	text := string(out)
	if strings.Contains(text, "sk-very-secret") || strings.Contains(text, "also-secret") {
		t.Errorf("secret leaked into yaml: %s", text)
	}
	if !strings.Contains(text, "[REDACTED]") {
		t.Errorf("expected redaction markers, got %s", text)
	}
	if s := secret.String(); strings.Contains(s, "sk-very-secret") {
		t.Errorf("String() leaked the key: %s", s)
	}
	if v := secret.LogValue(); strings.Contains(v.String(), "sk-very-secret") {
		t.Errorf("LogValue() leaked the key: %s", v)
	}
	var _ slog.LogValuer = secret
}

func TestSecretLookup(t *testing.T) {
	cfg := &SecretConfig{Providers: map[string]ProviderSecret{
		"main": {APIKey: "k"},
	}}
	if _, ok := cfg.Secret("main"); !ok {
		t.Error("expected the main secret")
	}
	if _, ok := cfg.Secret("other"); ok {
		t.Error("unexpected secret")
	}
	var nilCfg *SecretConfig
	if _, ok := nilCfg.Secret("main"); ok {
		t.Error("nil config should report absence")
	}
}

// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// redacted replaces secret values in logs and serialized output.
const redacted = "[REDACTED]"

// ProviderSecret holds one provider's credentials. The values are never
// logged or serialized in plain text.
type ProviderSecret struct {
	APIKey         string            `yaml:"api_key"`
	AdditionalAuth map[string]string `yaml:"additional_auth"`
}

var (
	_ slog.LogValuer = ProviderSecret{}
	_ yaml.Marshaler = ProviderSecret{}
	_ fmt.Stringer   = ProviderSecret{}
)

// LogValue implements [slog.LogValuer]: secrets log as redacted markers.
func (s ProviderSecret) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("api_key", redacted),
		slog.Int("additional_auth", len(s.AdditionalAuth)),
	)
}

// MarshalYAML implements [yaml.Marshaler]: secrets serialize redacted.
func (s ProviderSecret) MarshalYAML() (any, error) {
	out := map[string]any{"api_key": redacted}
	if len(s.AdditionalAuth) > 0 {
		auth := make(map[string]string, len(s.AdditionalAuth))
		for k := range s.AdditionalAuth {
			auth[k] = redacted
		}
		out["additional_auth"] = auth
	}
	return out, nil
}

// String implements [fmt.Stringer].
func (s ProviderSecret) String() string {
	return fmt.Sprintf("ProviderSecret{api_key: %s, additional_auth: %d entries}", redacted, len(s.AdditionalAuth))
}

// SecretConfig maps provider names to their credentials.
type SecretConfig struct {
	Providers map[string]ProviderSecret `yaml:"providers"`
}

// LoadSecrets reads a YAML secret file.
func LoadSecrets(path string) (*SecretConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read secrets: %w", err)
	}
	var cfg SecretConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse secrets: %w", err)
	}
	return &cfg, nil
}

// Secret returns the credentials for a named provider.
func (c *SecretConfig) Secret(provider string) (ProviderSecret, bool) {
	if c == nil {
		return ProviderSecret{}, false
	}
	s, ok := c.Providers[provider]
	return s, ok
}

// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates the externally-provided system
// configuration: event bus sizing, timeouts, scaling and monitoring options,
// native feature toggles, and provider configurations.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/go-kairei/kairei/types"
)

// Duration is a [time.Duration] that reads and writes YAML in the familiar
// "30s" / "250ms" form.
type Duration time.Duration

var (
	_ yaml.Unmarshaler = (*Duration)(nil)
	_ yaml.Marshaler   = Duration(0)
)

// UnmarshalYAML implements [yaml.Unmarshaler].
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value %q", node.Value)
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

// MarshalYAML implements [yaml.Marshaler].
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a [time.Duration].
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String implements [fmt.Stringer].
func (d Duration) String() string { return time.Duration(d).String() }

// SystemConfig is the root configuration.
type SystemConfig struct {
	// EventBufferSize bounds each event-bus subscriber's backlog.
	EventBufferSize int `yaml:"event_buffer_size"`

	// MaxAgents caps the number of registered agents; zero means no cap.
	MaxAgents int `yaml:"max_agents"`

	InitTimeout     Duration `yaml:"init_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	RequestTimeout  Duration `yaml:"request_timeout"`

	Agents   AgentConfig         `yaml:"agents"`
	Features NativeFeatureConfig `yaml:"features"`

	Providers []ProviderConfig `yaml:"providers"`
}

// AgentConfig holds per-agent scaling and monitoring options.
type AgentConfig struct {
	// MaxScaleInstances caps scale-up clones per base agent; zero means no
	// cap.
	MaxScaleInstances int `yaml:"max_scale_instances"`

	// MonitorInterval is loaded from configuration; no runtime component
	// reads it, and no periodic agent health reporting takes place.
	MonitorInterval Duration `yaml:"monitor_interval"`
}

// NativeFeatureConfig toggles the built-in background features.
type NativeFeatureConfig struct {
	TickerEnabled  bool     `yaml:"ticker_enabled"`
	TickerInterval Duration `yaml:"ticker_interval"`

	MetricsEnabled  bool     `yaml:"metrics_enabled"`
	MetricsInterval Duration `yaml:"metrics_interval"`
}

// ProviderConfig configures one provider: the LLM backend type, the common
// generation knobs, and plugin configurations.
type ProviderConfig struct {
	Name    string `yaml:"name"`
	Backend string `yaml:"backend"`

	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Endpoint    string  `yaml:"endpoint"`

	// Options holds provider-specific knobs.
	Options map[string]string `yaml:"options"`

	Plugins PluginConfigs `yaml:"plugins"`
}

// PluginConfigs configures the provider's plugins; nil sections disable the
// plugin.
type PluginConfigs struct {
	Memory       *MemoryConfig       `yaml:"memory"`
	SharedMemory *SharedMemoryConfig `yaml:"shared_memory"`
}

// MemoryConfig configures the memory plugin.
type MemoryConfig struct {
	MaxShortTerm        int     `yaml:"max_short_term"`
	MaxLongTerm         int     `yaml:"max_long_term"`
	ImportanceThreshold float64 `yaml:"importance_threshold"`
	RetrieveTopN        int     `yaml:"retrieve_top_n"`
}

// SharedMemoryConfig configures one shared-memory namespace.
type SharedMemoryConfig struct {
	Namespace  string   `yaml:"namespace"`
	MaxKeys    int      `yaml:"max_keys"`
	DefaultTTL Duration `yaml:"default_ttl"`
}

// Default returns the default system configuration.
func Default() *SystemConfig {
	return &SystemConfig{
		EventBufferSize: 256,
		InitTimeout:     Duration(30 * time.Second),
		ShutdownTimeout: Duration(30 * time.Second),
		RequestTimeout:  Duration(30 * time.Second),
		Features: NativeFeatureConfig{
			TickerEnabled:   false,
			TickerInterval:  Duration(time.Second),
			MetricsEnabled:  false,
			MetricsInterval: Duration(10 * time.Second),
		},
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*SystemConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes over the defaults.
func Parse(data []byte) (*SystemConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if collector := cfg.Validate(); collector.HasErrors() {
		errs := collector.Errors()
		return nil, fmt.Errorf("invalid config: %s", errs[0].Message)
	}
	return cfg, nil
}

// Validate checks the configuration, accumulating errors and warnings for
// batch presentation.
func (c *SystemConfig) Validate() *types.Collector {
	collector := &types.Collector{}
	if c.EventBufferSize <= 0 {
		collector.Add(&types.Diagnostic{
			Severity:   types.SeverityError,
			Code:       "SCHEMA_0001",
			Message:    "event_buffer_size must be positive",
			Suggestion: "set event_buffer_size to a positive integer such as 256",
		})
	}
	if c.RequestTimeout <= 0 {
		collector.Add(&types.Diagnostic{
			Severity:   types.SeverityError,
			Code:       "SCHEMA_0002",
			Message:    "request_timeout must be positive",
			Suggestion: "set request_timeout to a duration such as 30s",
		})
	}
	if c.Features.TickerEnabled && c.Features.TickerInterval <= 0 {
		collector.Add(&types.Diagnostic{
			Severity:   types.SeverityError,
			Code:       "SCHEMA_0003",
			Message:    "ticker_interval must be positive when the ticker is enabled",
			Suggestion: "set ticker_interval to a duration such as 1s",
		})
	}
	seen := make(map[string]bool)
	for _, p := range c.Providers {
		if p.Name == "" {
			collector.Add(&types.Diagnostic{
				Severity:   types.SeverityError,
				Code:       "SCHEMA_0004",
				Message:    "provider name must not be empty",
				Suggestion: "name every provider entry",
			})
			continue
		}
		if seen[p.Name] {
			collector.Add(&types.Diagnostic{
				Severity:   types.SeverityError,
				Code:       "SCHEMA_0005",
				Message:    fmt.Sprintf("duplicate provider %q", p.Name),
				Suggestion: "provider names must be unique",
			})
		}
		seen[p.Name] = true
		switch p.Backend {
		case "anthropic", "gemini", "":
		default:
			collector.Add(&types.Diagnostic{
				Severity:   types.SeverityWarning,
				Code:       "SCHEMA_0006",
				Message:    fmt.Sprintf("provider %q names unknown backend %q", p.Name, p.Backend),
				Suggestion: "known backends are anthropic and gemini",
			})
		}
		if p.Temperature < 0 || p.Temperature > 2 {
			collector.Add(&types.Diagnostic{
				Severity:   types.SeverityError,
				Code:       "SCHEMA_0007",
				Message:    fmt.Sprintf("provider %q temperature %v is out of range", p.Name, p.Temperature),
				Suggestion: "temperature must be between 0 and 2",
			})
		}
	}
	return collector
}

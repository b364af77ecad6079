// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

// Package system is the facade orchestrating the pipeline: compile DSL
// source, register agents, start the runtime, and serve events and typed
// requests.
package system

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-kairei/kairei/agent"
	"github.com/go-kairei/kairei/ast"
	"github.com/go-kairei/kairei/config"
	"github.com/go-kairei/kairei/event"
	"github.com/go-kairei/kairei/feature"
	"github.com/go-kairei/kairei/parser"
	"github.com/go-kairei/kairei/provider"
	"github.com/go-kairei/kairei/tokenizer"
	"github.com/go-kairei/kairei/typechecker"
	"github.com/go-kairei/kairei/types"
)

// Status is a snapshot of the running system.
type Status struct {
	Running         bool
	Agents          int
	RunningAgents   int
	Subscribers     int
	PendingRequests int
	Features        []string
}

// System wires the core subsystems together: event registry and bus, agent
// registry, provider registry, native features, and shared memory.
type System struct {
	config *config.SystemConfig

	events       *event.Registry
	bus          *event.Bus
	agents       *agent.Registry
	providers    *provider.Registry
	features     *feature.Registry
	sharedMemory *provider.SharedMemoryRegistry

	logger *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

// Option configures a [System].
type Option func(*System)

// WithLogger sets the system logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *System) { s.logger = logger }
}

// New assembles a system from its configuration.
func New(cfg *config.SystemConfig, opts ...Option) *System {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &System{
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.events = event.NewRegistry()
	s.bus = event.NewBus(
		event.WithBufferSize(cfg.EventBufferSize),
		event.WithRegistry(s.events),
		event.WithLogger(s.logger),
	)
	s.providers = provider.NewRegistry()
	s.sharedMemory = provider.NewSharedMemoryRegistry()
	s.agents = agent.NewRegistry(s.bus,
		agent.WithRegistryProviders(s.providers),
		agent.WithRegistryRequestTimeout(cfg.RequestTimeout.Std()),
		agent.WithRegistryLogger(s.logger),
	)
	s.features = feature.NewRegistry(s.bus, s.logger)

	if cfg.Features.TickerEnabled {
		if err := s.features.Register(feature.NewTicker(s.bus, cfg.Features.TickerInterval.Std())); err != nil {
			s.logger.Warn("ticker registration failed", slog.Any("error", err))
		}
	}
	if cfg.Features.MetricsEnabled {
		if err := s.features.Register(feature.NewMetrics(s.bus, cfg.Features.MetricsInterval.Std())); err != nil {
			s.logger.Warn("metrics registration failed", slog.Any("error", err))
		}
	}
	return s
}

// Bus returns the event bus.
func (s *System) Bus() *event.Bus { return s.bus }

// Events returns the event registry.
func (s *System) Events() *event.Registry { return s.events }

// Providers returns the provider registry.
func (s *System) Providers() *provider.Registry { return s.providers }

// SharedMemory returns the shared-memory namespace registry.
func (s *System) SharedMemory() *provider.SharedMemoryRegistry { return s.sharedMemory }

// Compile runs the DSL front-end: tokenize, preprocess, parse, type-check.
// Errors carry span information; no partial AST is emitted.
func Compile(source string) (*ast.Root, error) {
	tokens, err := tokenizer.Tokenize(source)
	if err != nil {
		return nil, err
	}
	root, err := parser.Parse(tokenizer.Preprocess(tokens))
	if err != nil {
		return nil, err
	}
	if err := typechecker.Check(root); err != nil {
		return nil, err
	}
	return root, nil
}

// RegisterProvider registers a provider with the system.
func (s *System) RegisterProvider(ctx context.Context, p provider.Provider) error {
	return s.providers.Register(ctx, p)
}

// RegisterAgents compiles nothing: it takes a checked AST, registers the
// custom events its handlers observe, and registers every agent definition.
func (s *System) RegisterAgents(root *ast.Root) error {
	if s.config.MaxAgents > 0 && len(s.agents.List())+len(root.Agents) > s.config.MaxAgents {
		return fmt.Errorf("registering %d agents exceeds max_agents %d", len(root.Agents), s.config.MaxAgents)
	}
	for _, def := range root.Agents {
		s.registerCustomEvents(def)
	}
	for _, def := range root.Agents {
		if _, err := s.agents.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// LoadDSL compiles source and registers its agents.
func (s *System) LoadDSL(source string) (*ast.Root, error) {
	root, err := Compile(source)
	if err != nil {
		return nil, err
	}
	if err := s.RegisterAgents(root); err != nil {
		return nil, err
	}
	return root, nil
}

// registerCustomEvents derives schemas for the custom events an agent's
// observe and react handlers listen on.
func (s *System) registerCustomEvents(def *ast.MicroAgentDef) {
	for _, block := range []*ast.HandlerBlock{def.Observe, def.React} {
		if block == nil {
			continue
		}
		for _, h := range block.Handlers {
			t := types.CustomEvent(h.EventName)
			if s.events.Contains(t) {
				continue
			}
			params := make(map[string]*event.ParameterType, len(h.Parameters))
			for _, p := range h.Parameters {
				params[p.Name] = event.ParameterTypeFor(p.Type)
			}
			if err := s.events.RegisterCustomEvent(h.EventName, params); err != nil {
				s.logger.Warn("custom event registration failed",
					slog.String("event", h.EventName),
					slog.Any("error", err),
				)
			}
		}
	}
}

// Start brings the system online: agents run, native features start, and
// SystemStarted is published.
func (s *System) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("system is already started")
	}
	s.started = true
	s.mu.Unlock()

	if err := s.bus.SyncPublish(types.NewEvent(types.EventType{Kind: types.EventSystemStarting})); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	initCtx, initCancel := context.WithTimeout(ctx, s.config.InitTimeout.Std())
	defer initCancel()
	if err := s.agents.RunAll(runCtx); err != nil {
		cancel()
		return err
	}
	select {
	case <-initCtx.Done():
		cancel()
		return fmt.Errorf("system start: %w", initCtx.Err())
	default:
	}

	s.features.StartAll(runCtx)

	return s.bus.SyncPublish(types.NewEvent(types.EventType{Kind: types.EventSystemStarted}))
}

// SendEvent validates and publishes an event.
func (s *System) SendEvent(ctx context.Context, ev *types.Event) error {
	return s.bus.Publish(ctx, ev)
}

// SendRequest sends a typed request to a responder agent and returns the
// response value.
func (s *System) SendRequest(ctx context.Context, responder, requestType string, params map[string]types.Value) (types.Value, error) {
	ev := types.NewEvent(types.Request(requestType, "system", responder, event.NewRequestID()))
	for name, v := range params {
		ev.WithParameter(name, v)
	}
	resp, err := s.bus.Request(ctx, ev, s.config.RequestTimeout.Std())
	if err != nil {
		return nil, err
	}
	if errParam := resp.Parameter("error"); errParam != nil {
		return nil, fmt.Errorf("request %s.%s failed: %s", responder, requestType, errParam)
	}
	result := resp.Parameter("result")
	if result == nil {
		result = types.Null
	}
	return result, nil
}

// SubscribeEvents returns a new bus subscription.
func (s *System) SubscribeEvents() *event.Subscription {
	return s.bus.Subscribe()
}

// ScaleUp clones a registered agent definition n times.
func (s *System) ScaleUp(ctx context.Context, base string, n int) ([]string, error) {
	if max := s.config.Agents.MaxScaleInstances; max > 0 {
		status := s.agents.ScaleStatus(base)
		if status.Total-1+n > max {
			return nil, fmt.Errorf("scaling %q by %d exceeds max_scale_instances %d", base, n, max)
		}
	}
	return s.agents.ScaleUp(ctx, base, n)
}

// ScaleDown shuts down n scaled instances of a base agent.
func (s *System) ScaleDown(ctx context.Context, base string, n int) error {
	return s.agents.ScaleDown(ctx, base, n)
}

// ScaleStatus reports scaling state for a base agent.
func (s *System) ScaleStatus(base string) agent.ScaleStatus {
	return s.agents.ScaleStatus(base)
}

// AgentState returns a snapshot of the named agent's state.
func (s *System) AgentState(name string) (map[string]types.Value, error) {
	a, err := s.agents.Get(name)
	if err != nil {
		return nil, err
	}
	return a.State(), nil
}

// Agents returns the agent registry.
func (s *System) Agents() *agent.Registry { return s.agents }

// Status reports a snapshot of the system.
func (s *System) Status() Status {
	s.mu.Lock()
	running := s.started
	s.mu.Unlock()
	names := s.agents.List()
	st := Status{
		Running:         running,
		Agents:          len(names),
		Subscribers:     s.bus.SubscriberCount(),
		PendingRequests: s.bus.PendingRequests(),
		Features:        s.features.List(),
	}
	for _, name := range names {
		if s.agents.IsRunning(name) {
			st.RunningAgents++
		}
	}
	return st
}

// Shutdown stops the system gracefully: features stop, agents shut down
// under the configured deadline, providers release, and SystemStopped is
// published.
func (s *System) Shutdown(ctx context.Context) error {
	return s.shutdown(ctx, s.config.ShutdownTimeout.Std())
}

// EmergencyShutdown races shutdown against a short hard deadline; agents
// that do not stop in time are terminated and marked failed.
func (s *System) EmergencyShutdown(ctx context.Context, deadline time.Duration) error {
	return s.shutdown(ctx, deadline)
}

func (s *System) shutdown(ctx context.Context, deadline time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	if err := s.bus.SyncPublish(types.NewEvent(types.EventType{Kind: types.EventSystemStopping})); err != nil {
		s.logger.Warn("stopping event rejected", slog.Any("error", err))
	}

	s.features.StopAll(ctx)
	err := s.agents.ShutdownAll(ctx, deadline)
	if perr := s.providers.Shutdown(ctx); err == nil {
		err = perr
	}
	if s.cancel != nil {
		s.cancel()
	}

	if perr := s.bus.SyncPublish(types.NewEvent(types.EventType{Kind: types.EventSystemStopped})); perr != nil {
		s.logger.Warn("stopped event rejected", slog.Any("error", perr))
	}
	return err
}

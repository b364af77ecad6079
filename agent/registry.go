// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/go-kairei/kairei/ast"
	"github.com/go-kairei/kairei/event"
	"github.com/go-kairei/kairei/internal/xmaps"
	"github.com/go-kairei/kairei/provider"
	"github.com/go-kairei/kairei/types"
)

// ScaleStatus reports the instances scaled up from one base agent.
type ScaleStatus struct {
	Base      string
	Total     int
	Running   int
	Instances []string
}

// Registry maintains the name-to-agent map under write-lock protection and
// implements spawn, shutdown, restart, and scaling.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
	defs   map[string]*ast.MicroAgentDef

	bus       *event.Bus
	providers *provider.Registry

	requestTimeout time.Duration
	logger         *slog.Logger
}

// RegistryOption configures a [Registry].
type RegistryOption func(*Registry)

// WithRegistryProviders attaches the provider registry agents run think
// expressions against.
func WithRegistryProviders(p *provider.Registry) RegistryOption {
	return func(r *Registry) { r.providers = p }
}

// WithRegistryRequestTimeout sets the default outbound request timeout for
// registered agents.
func WithRegistryRequestTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.requestTimeout = d
		}
	}
}

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry returns an empty agent registry on the given bus.
func NewRegistry(bus *event.Bus, opts ...RegistryOption) *Registry {
	r := &Registry{
		agents:         make(map[string]*Agent),
		defs:           make(map[string]*ast.MicroAgentDef),
		bus:            bus,
		requestTimeout: DefaultRequestTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register instantiates an agent from its definition and stores it. The
// definition is kept so scale-up can clone it later.
func (r *Registry) Register(def *ast.MicroAgentDef) (*Agent, error) {
	opts := []Option{
		WithRequestTimeout(r.requestTimeout),
		WithLogger(r.logger),
	}
	if r.providers != nil {
		opts = append(opts, WithProviders(r.providers))
	}
	a, err := New(def, r.bus, opts...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, exists := r.agents[def.Name]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("agent %q is already registered", def.Name)
	}
	r.agents[def.Name] = a
	r.defs[def.Name] = def
	r.mu.Unlock()

	for _, kind := range []types.EventKind{types.EventAgentCreated, types.EventAgentAdded} {
		ev := types.NewEvent(types.EventType{Kind: kind}).
			WithParameter("agent_name", types.StringValue(def.Name))
		if err := r.bus.SyncPublish(ev); err != nil {
			r.logger.Warn("registration event rejected", slog.Any("error", err))
		}
	}
	return a, nil
}

// Get returns the named agent.
func (r *Registry) Get(name string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	if !ok {
		return nil, &Error{Kind: KindAgentNotFound, Agent: name, Message: "not registered"}
	}
	return a, nil
}

// Run spawns the named agent's task.
func (r *Registry) Run(ctx context.Context, name string) error {
	a, err := r.Get(name)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

// RunAll spawns every registered agent.
func (r *Registry) RunAll(ctx context.Context) error {
	for _, name := range r.List() {
		if err := r.Run(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown gracefully stops the named agent and removes it from the
// registry.
func (r *Registry) Shutdown(ctx context.Context, name string) error {
	a, err := r.Get(name)
	if err != nil {
		return err
	}
	stopErr := a.Stop(ctx)

	r.mu.Lock()
	delete(r.agents, name)
	delete(r.defs, name)
	r.mu.Unlock()

	ev := types.NewEvent(types.EventType{Kind: types.EventAgentRemoved}).
		WithParameter("agent_name", types.StringValue(name))
	if err := r.bus.SyncPublish(ev); err != nil {
		r.logger.Warn("removal event rejected", slog.Any("error", err))
	}
	return stopErr
}

// Restart stops the named agent and starts a fresh instance from its
// definition.
func (r *Registry) Restart(ctx context.Context, name string) error {
	r.mu.RLock()
	def, ok := r.defs[name]
	r.mu.RUnlock()
	if !ok {
		return &Error{Kind: KindAgentNotFound, Agent: name, Message: "not registered"}
	}
	if err := r.Shutdown(ctx, name); err != nil {
		return err
	}
	if _, err := r.Register(def); err != nil {
		return err
	}
	return r.Run(ctx, name)
}

// List returns the registered agent names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return xmaps.SortedKeys(r.agents)
}

// IsRunning reports whether the named agent is in the Active state.
func (r *Registry) IsRunning(name string) bool {
	a, err := r.Get(name)
	if err != nil {
		return false
	}
	return a.Status() == types.LifecycleActive
}

// ScaleUp instantiates n clones of the base agent's definition under names
// base-{requestID}-{i} and starts them. It returns the instance names.
func (r *Registry) ScaleUp(ctx context.Context, base string, n int) ([]string, error) {
	r.mu.RLock()
	def, ok := r.defs[base]
	r.mu.RUnlock()
	if !ok {
		return nil, &Error{Kind: KindAgentNotFound, Agent: base, Message: "not registered"}
	}
	requestID := uuid.NewString()
	names := make([]string, 0, n)
	for i := range n {
		clone, err := def.Clone()
		if err != nil {
			return names, &Error{Kind: KindExecution, Agent: base, Message: "clone definition", Err: err}
		}
		clone.Name = fmt.Sprintf("%s-%s-%d", base, requestID, i)
		if _, err := r.Register(clone); err != nil {
			return names, err
		}
		if err := r.Run(ctx, clone.Name); err != nil {
			return names, err
		}
		names = append(names, clone.Name)
	}
	return names, nil
}

// ScaleDown shuts down n agents whose names begin with base. Finding fewer
// than n is a scaling shortfall: the found instances are still stopped and
// the shortfall reported.
func (r *Registry) ScaleDown(ctx context.Context, base string, n int) error {
	var victims []string
	for _, name := range r.List() {
		if name != base && strings.HasPrefix(name, base+"-") {
			victims = append(victims, name)
		}
	}
	short := len(victims) < n
	if short {
		n = len(victims)
	}
	for _, name := range victims[:n] {
		if err := r.Shutdown(ctx, name); err != nil {
			return err
		}
	}
	if short {
		return &Error{
			Kind:    KindScalingShortfall,
			Agent:   base,
			Message: fmt.Sprintf("only %d scaled instances available", n),
		}
	}
	return nil
}

// ScaleStatus reports total, running, and per-instance names for a base
// agent.
func (r *Registry) ScaleStatus(base string) ScaleStatus {
	status := ScaleStatus{Base: base}
	for _, name := range r.List() {
		if name != base && !strings.HasPrefix(name, base+"-") {
			continue
		}
		status.Total++
		status.Instances = append(status.Instances, name)
		if r.IsRunning(name) {
			status.Running++
		}
	}
	return status
}

// ShutdownAll stops every agent concurrently under the given deadline and
// forces termination on elapse.
func (r *Registry) ShutdownAll(ctx context.Context, deadline time.Duration) error {
	stopCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	names := r.List()
	g := new(errgroup.Group)
	for _, name := range names {
		g.Go(func() error {
			return r.Shutdown(stopCtx, name)
		})
	}
	return g.Wait()
}

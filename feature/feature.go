// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

// Package feature hosts the runtime's native features: background tasks such
// as the ticker and the metrics collector that run alongside agents and
// publish onto the event bus.
package feature

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-kairei/kairei/event"
	"github.com/go-kairei/kairei/internal/xmaps"
	"github.com/go-kairei/kairei/types"
)

// Status is the run state of a native feature.
type Status int

const (
	// StatusStopped means the feature is not running.
	StatusStopped Status = iota
	// StatusRunning means the feature task is live.
	StatusRunning
	// StatusFailed means the feature stopped on an error.
	StatusFailed
)

// String implements [fmt.Stringer].
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusRunning:
		return "running"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Feature is one native background task.
type Feature interface {
	// ID uniquely identifies the feature instance.
	ID() string

	// Name is the feature's human-readable name.
	Name() string

	// Start launches the feature task.
	Start(ctx context.Context) error

	// Stop terminates the feature task.
	Stop(ctx context.Context) error

	// Status returns the feature's run state.
	Status() Status
}

// Registry owns the native features and publishes their status transitions.
type Registry struct {
	mu       sync.RWMutex
	features map[string]Feature

	bus    *event.Bus
	logger *slog.Logger
}

// NewRegistry returns an empty feature registry on the given bus.
func NewRegistry(bus *event.Bus, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		features: make(map[string]Feature),
		bus:      bus,
		logger:   logger,
	}
}

// Register stores a feature. Registering the same id twice fails.
func (r *Registry) Register(f Feature) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.features[f.ID()]; exists {
		return fmt.Errorf("feature %q is already registered", f.ID())
	}
	r.features[f.ID()] = f
	return nil
}

// List returns the registered feature ids, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return xmaps.SortedKeys(r.features)
}

// Get returns the feature registered under id.
func (r *Registry) Get(id string) (Feature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.features[id]
	return f, ok
}

// StartAll starts every feature, publishing status events. A feature that
// fails to start is reported as a feature failure and does not stop the
// others.
func (r *Registry) StartAll(ctx context.Context) {
	r.mu.RLock()
	features := make([]Feature, 0, len(r.features))
	for _, f := range r.features {
		features = append(features, f)
	}
	r.mu.RUnlock()

	for _, f := range features {
		if err := f.Start(ctx); err != nil {
			r.reportFailure(f, err)
			continue
		}
		r.publishStatus(f)
	}
}

// StopAll stops every feature.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.RLock()
	features := make([]Feature, 0, len(r.features))
	for _, f := range r.features {
		features = append(features, f)
	}
	r.mu.RUnlock()

	for _, f := range features {
		if err := f.Stop(ctx); err != nil {
			r.reportFailure(f, err)
			continue
		}
		r.publishStatus(f)
	}
}

func (r *Registry) publishStatus(f Feature) {
	ev := types.NewEvent(types.EventType{Kind: types.EventFeatureStatusUpdated}).
		WithParameter("feature_id", types.StringValue(f.ID())).
		WithParameter("status", types.StringValue(f.Status().String()))
	if err := r.bus.SyncPublish(ev); err != nil {
		r.logger.Warn("feature status event rejected", slog.Any("error", err))
	}
}

func (r *Registry) reportFailure(f Feature, err error) {
	r.logger.Error("feature failed",
		slog.String("feature", f.ID()),
		slog.Any("error", err),
	)
	ev := types.NewEvent(types.EventType{Kind: types.EventFeatureFailure}).
		WithParameter("feature_id", types.StringValue(f.ID())).
		WithParameter("error", types.StringValue(err.Error()))
	if perr := r.bus.SyncPublish(ev); perr != nil {
		r.logger.Warn("feature failure event rejected", slog.Any("error", perr))
	}
}

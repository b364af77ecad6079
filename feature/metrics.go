// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package feature

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/go-kairei/kairei/event"
	"github.com/go-kairei/kairei/pkg/logging"
	"github.com/go-kairei/kairei/types"
)

// DefaultMetricsInterval is the summary period when none is configured.
const DefaultMetricsInterval = 10 * time.Second

// Metrics subscribes to the bus, counts observed events by kind, and
// publishes a periodic MetricsSummary event.
type Metrics struct {
	id       string
	interval time.Duration
	bus      *event.Bus

	mu     sync.Mutex
	status Status
	counts map[string]int64
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Feature = (*Metrics)(nil)

// NewMetrics returns a metrics collector with the given summary interval.
func NewMetrics(bus *event.Bus, interval time.Duration) *Metrics {
	if interval <= 0 {
		interval = DefaultMetricsInterval
	}
	return &Metrics{
		id:       "metrics-" + uuid.NewString(),
		interval: interval,
		bus:      bus,
		counts:   make(map[string]int64),
	}
}

// ID implements [Feature].
func (m *Metrics) ID() string { return m.id }

// Name implements [Feature].
func (m *Metrics) Name() string { return "metrics" }

// Status implements [Feature].
func (m *Metrics) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Counts returns a snapshot of the per-kind event counts.
func (m *Metrics) Counts() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out
}

// Start implements [Feature].
func (m *Metrics) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusRunning {
		return fmt.Errorf("metrics %s is already running", m.id)
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.status = StatusRunning
	sub := m.bus.Subscribe()
	go m.run(runCtx, sub)
	return nil
}

func (m *Metrics) run(ctx context.Context, sub *event.Subscription) {
	defer close(m.done)
	defer sub.Close()
	logger := logging.FromContext(ctx).With(slog.String("feature", m.id))
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if ev.Type.Kind == types.EventMetricsSummary {
				continue
			}
			m.mu.Lock()
			m.counts[ev.Type.Kind.String()]++
			m.mu.Unlock()
		case <-ticker.C:
			if err := m.publishSummary(); err != nil {
				logger.Warn("metrics summary rejected", slog.Any("error", err))
			}
		}
	}
}

func (m *Metrics) publishSummary() error {
	counts := m.Counts()
	summary := make(types.MapValue, len(counts))
	for kind, n := range counts {
		summary[kind] = types.IntValue(n)
	}
	ev := types.NewEvent(types.EventType{Kind: types.EventMetricsSummary}).
		WithParameter("event_counts", summary).
		WithParameter("subscribers", types.IntValue(int64(m.bus.SubscriberCount())))
	return m.bus.SyncPublish(ev)
}

// Stop implements [Feature].
func (m *Metrics) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.status != StatusRunning {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	done := m.done
	m.status = StatusStopped
	m.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

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

// DefaultTickInterval is the tick period when none is configured.
const DefaultTickInterval = time.Second

// Ticker publishes Tick events on a fixed interval. Each tick carries the
// elapsed seconds since the previous one as delta_time.
type Ticker struct {
	id       string
	interval time.Duration
	bus      *event.Bus

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Feature = (*Ticker)(nil)

// NewTicker returns a ticker with the given interval.
func NewTicker(bus *event.Bus, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Ticker{
		id:       "ticker-" + uuid.NewString(),
		interval: interval,
		bus:      bus,
	}
}

// ID implements [Feature].
func (t *Ticker) ID() string { return t.id }

// Name implements [Feature].
func (t *Ticker) Name() string { return "ticker" }

// Status implements [Feature].
func (t *Ticker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Start implements [Feature].
func (t *Ticker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusRunning {
		return fmt.Errorf("ticker %s is already running", t.id)
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.status = StatusRunning
	go t.run(runCtx)
	return nil
}

func (t *Ticker) run(ctx context.Context) {
	defer close(t.done)
	logger := logging.FromContext(ctx).With(slog.String("feature", t.id))
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			delta := now.Sub(last).Seconds()
			last = now
			ev := types.NewEvent(types.Tick()).
				WithParameter("delta_time", types.FloatValue(delta))
			// Feature tasks cannot await; publish without suspending.
			if err := t.bus.SyncPublish(ev); err != nil {
				logger.Warn("tick rejected", slog.Any("error", err))
			}
		}
	}
}

// Stop implements [Feature].
func (t *Ticker) Stop(ctx context.Context) error {
	t.mu.Lock()
	if t.status != StatusRunning {
		t.mu.Unlock()
		return nil
	}
	t.cancel()
	done := t.done
	t.status = StatusStopped
	t.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

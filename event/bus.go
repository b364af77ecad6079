// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

// Package event provides the typed pub/sub fabric connecting agents: a
// bounded broadcast channel for events plus a correlation layer for
// request/response with timeouts, and the registry of known event schemas.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/go-kairei/kairei/types"
)

// DefaultBufferSize bounds each subscriber's backlog when no size is
// configured.
const DefaultBufferSize = 256

// Subscription is one subscriber's handle on the bus. Slow subscribers do
// not block publishers: when the bounded backlog overflows, events are
// dropped and the drop count is reported through [Subscription.Receive] as a
// [*Lagged] condition; the subscription remains valid.
type Subscription struct {
	events chan *types.Event
	errors chan *types.ErrorEvent
	lagged atomic.Uint64

	bus  *Bus
	once sync.Once
}

// Events returns the subscriber's event channel for use in select loops.
// Callers consuming the raw channel observe drops only via [Subscription.LagCount].
func (s *Subscription) Events() <-chan *types.Event { return s.events }

// Errors returns the subscriber's error-event channel.
func (s *Subscription) Errors() <-chan *types.ErrorEvent { return s.errors }

// Receive returns the next event. When events were dropped since the last
// call it returns a [*Lagged] error first; the subscription stays usable.
func (s *Subscription) Receive(ctx context.Context) (*types.Event, error) {
	if n := s.lagged.Swap(0); n > 0 {
		return nil, &Lagged{Count: n}
	}
	select {
	case ev, ok := <-s.events:
		if !ok {
			return nil, &Error{Kind: KindCancelled, Message: "subscription closed"}
		}
		return ev, nil
	case <-ctx.Done():
		return nil, &Error{Kind: KindCancelled, Message: ctx.Err().Error()}
	}
}

// LagCount returns the number of events dropped since the last
// [Subscription.Receive] that reported them.
func (s *Subscription) LagCount() uint64 { return s.lagged.Load() }

// Backlog returns the number of events waiting in the subscription buffer.
func (s *Subscription) Backlog() int { return len(s.events) }

// Close removes the subscription from the bus.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s)
	})
}

// Bus is a bounded multi-producer/multi-subscriber broadcast channel for
// events with a parallel topic for error events. Delivery is best-effort
// within the bounded buffer; there is no durable queue.
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}

	pmu     sync.Mutex
	pending map[string]chan *types.Event

	registry *Registry
	bufSize  int
	logger   *slog.Logger
}

// BusOption configures a [Bus].
type BusOption func(*Bus)

// WithBufferSize bounds each subscriber's backlog.
func WithBufferSize(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.bufSize = n
		}
	}
}

// WithRegistry enables schema validation of published events.
func WithRegistry(r *Registry) BusOption {
	return func(b *Bus) { b.registry = r }
}

// WithLogger sets the bus logger.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) { b.logger = logger }
}

// NewBus returns an event bus ready for use.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subs:    make(map[*Subscription]struct{}),
		pending: make(map[string]chan *types.Event),
		bufSize: DefaultBufferSize,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe returns a new subscription tied to the bus's lifetime.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{
		events: make(chan *types.Event, b.bufSize),
		errors: make(chan *types.ErrorEvent, b.bufSize),
		bus:    b,
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish validates ev against the registry and broadcasts it. Failure to
// deliver to any subscriber is logged but never fails the publisher.
func (b *Bus) Publish(ctx context.Context, ev *types.Event) error {
	select {
	case <-ctx.Done():
		return &Error{Kind: KindCancelled, Message: ctx.Err().Error(), Event: ev.Type}
	default:
	}
	return b.SyncPublish(ev)
}

// SyncPublish is the non-suspending publish variant for callers that cannot
// await, such as native-feature tasks.
func (b *Bus) SyncPublish(ev *types.Event) error {
	if b.registry != nil {
		if err := b.registry.ValidateParameters(ev); err != nil {
			return err
		}
	}
	if ev.Type.Kind == types.EventResponse {
		b.resolvePending(ev)
	}
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub.events <- ev:
		default:
			sub.lagged.Add(1)
			b.logger.Warn("event dropped for lagging subscriber",
				slog.String("event", ev.Type.String()),
				slog.Uint64("lag", sub.lagged.Load()),
			)
		}
	}
	return nil
}

// PublishError broadcasts an error event on the parallel error topic.
// Critical errors are promoted to a system-level failure event on the main
// topic and logged at error level.
func (b *Bus) PublishError(ev *types.ErrorEvent) {
	if ev.Severity >= types.SeverityCritical {
		b.logger.Error("critical error event",
			slog.String("code", ev.Code),
			slog.String("component", ev.Component),
			slog.String("message", ev.Message),
		)
		promoted := types.NewEvent(types.EventType{Kind: types.EventFeatureFailure}).
			WithParameter("feature_id", types.StringValue(ev.Component)).
			WithParameter("error", types.StringValue(ev.Message))
		if err := b.SyncPublish(promoted); err != nil {
			b.logger.Warn("promotion of critical error rejected", slog.Any("error", err))
		}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		select {
		case sub.errors <- ev:
		default:
		}
	}
}

// resolvePending routes a response to the waiter registered under its
// correlation id. A response with no pending entry is a late arrival and is
// silently discarded by the correlation layer.
func (b *Bus) resolvePending(ev *types.Event) {
	b.pmu.Lock()
	ch, ok := b.pending[ev.Type.RequestID]
	if ok {
		delete(b.pending, ev.Type.RequestID)
	}
	b.pmu.Unlock()
	if ok {
		ch <- ev
	}
}

// NewRequestID returns a globally-unique request correlation id.
func NewRequestID() string {
	return uuid.NewString()
}

// Request publishes a Request event and awaits the matching Response by
// correlation id. When ev carries no request id one is generated. On timeout
// the pending correlation entry is dropped and a timed-out error returned; a
// response arriving later is discarded silently.
func (b *Bus) Request(ctx context.Context, ev *types.Event, timeout time.Duration) (*types.Event, error) {
	if ev.Type.Kind != types.EventRequest {
		return nil, &Error{
			Kind:    KindSendFailed,
			Message: fmt.Sprintf("Request requires a Request event, got %s", ev.Type.Kind),
			Event:   ev.Type,
		}
	}
	if ev.Type.RequestID == "" {
		ev.Type.RequestID = NewRequestID()
	}
	ch := make(chan *types.Event, 1)
	b.pmu.Lock()
	b.pending[ev.Type.RequestID] = ch
	b.pmu.Unlock()

	drop := func() {
		b.pmu.Lock()
		delete(b.pending, ev.Type.RequestID)
		b.pmu.Unlock()
	}

	if err := b.Publish(ctx, ev); err != nil {
		drop()
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		drop()
		return nil, &Error{
			Kind:    KindTimedOut,
			Message: fmt.Sprintf("no response within %s", timeout),
			Event:   ev.Type,
		}
	case <-ctx.Done():
		drop()
		return nil, &Error{Kind: KindCancelled, Message: ctx.Err().Error(), Event: ev.Type}
	}
}

// PendingRequests returns the number of in-flight correlation entries.
func (b *Bus) PendingRequests() int {
	b.pmu.Lock()
	defer b.pmu.Unlock()
	return len(b.pending)
}

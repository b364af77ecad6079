// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent hosts runtime agents: each agent is a single cooperative
// task that owns its state, subscribes to the event bus, and dispatches
// observe, answer, react, and lifecycle handlers.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-kairei/kairei/ast"
	"github.com/go-kairei/kairei/event"
	"github.com/go-kairei/kairei/provider"
	"github.com/go-kairei/kairei/types"
)

// DefaultRequestTimeout bounds outbound requests when no timeout is
// configured.
const DefaultRequestTimeout = 30 * time.Second

// Agent is the runtime representation of one micro-agent. Its state is
// exclusively owned by its dispatch task; external observers read snapshots
// via [Agent.State] or state-updated events.
type Agent struct {
	name string
	def  *ast.MicroAgentDef

	mu      sync.RWMutex
	state   map[string]types.Value
	status  types.LifecycleState
	lastErr string

	bus       *event.Bus
	providers *provider.Registry

	sub      *event.Subscription
	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	cancel   context.CancelFunc

	requestTimeout time.Duration
	logger         *slog.Logger
}

// Option configures an [Agent].
type Option func(*Agent)

// WithProviders attaches the provider registry think expressions run
// against.
func WithProviders(r *provider.Registry) Option {
	return func(a *Agent) { a.providers = r }
}

// WithRequestTimeout sets the default timeout for outbound requests.
func WithRequestTimeout(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.requestTimeout = d
		}
	}
}

// WithLogger sets the agent logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// New builds an agent from its definition, evaluating declared initial
// state.
func New(def *ast.MicroAgentDef, bus *event.Bus, opts ...Option) (*Agent, error) {
	a := &Agent{
		name:           def.Name,
		def:            def,
		state:          make(map[string]types.Value),
		status:         types.LifecycleInactive,
		bus:            bus,
		shutdown:       make(chan struct{}),
		done:           make(chan struct{}),
		requestTimeout: DefaultRequestTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(slog.String("agent", a.name))
	if def.State != nil {
		ec := newExecContext(context.Background(), a, nil)
		for _, name := range def.State.Order {
			v := def.State.Variables[name]
			if v.Initial == nil {
				a.state[name] = types.Null
				continue
			}
			value, err := ec.eval(v.Initial)
			if err != nil {
				return nil, fmt.Errorf("initialize state %s.%s: %w", def.Name, name, err)
			}
			a.state[name] = value
		}
	}
	return a, nil
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// Definition returns the AST definition the agent was built from.
func (a *Agent) Definition() *ast.MicroAgentDef { return a.def }

// Status returns the current lifecycle state.
func (a *Agent) Status() types.LifecycleState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// LastError returns the message recorded when the agent entered the Error
// state.
func (a *Agent) LastError() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastErr
}

// State returns a snapshot of the agent's state.
func (a *Agent) State() map[string]types.Value {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]types.Value, len(a.state))
	for k, v := range a.state {
		out[k] = v
	}
	return out
}

// stateValue resolves a state access path.
func (a *Agent) stateValue(path []string) (types.Value, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.state[path[0]]
	if !ok {
		return nil, &Error{
			Kind:    KindExecution,
			Agent:   a.name,
			Message: fmt.Sprintf("undeclared state variable %q", path[0]),
		}
	}
	for _, seg := range path[1:] {
		m, ok := v.(types.MapValue)
		if !ok {
			return nil, &Error{
				Kind:    KindExecution,
				Agent:   a.name,
				Message: fmt.Sprintf("state %q is not a map", path[0]),
			}
		}
		v, ok = m[seg]
		if !ok {
			return nil, &Error{
				Kind:    KindExecution,
				Agent:   a.name,
				Message: fmt.Sprintf("state %s has no key %q", path[0], seg),
			}
		}
	}
	return v, nil
}

// setState writes a state access path. Only the agent's own task calls this.
func (a *Agent) setState(path []string, value types.Value) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(path) == 1 {
		a.state[path[0]] = value
		return nil
	}
	root, ok := a.state[path[0]].(types.MapValue)
	if !ok {
		return &Error{
			Kind:    KindExecution,
			Agent:   a.name,
			Message: fmt.Sprintf("state %q is not a map", path[0]),
		}
	}
	m := root
	for _, seg := range path[1 : len(path)-1] {
		next, ok := m[seg].(types.MapValue)
		if !ok {
			return &Error{
				Kind:    KindExecution,
				Agent:   a.name,
				Message: fmt.Sprintf("state %s has no nested map %q", path[0], seg),
			}
		}
		m = next
	}
	m[path[len(path)-1]] = value
	return nil
}

// transition moves the lifecycle state machine and publishes the
// corresponding lifecycle event. Illegal transitions fail.
func (a *Agent) transition(next types.LifecycleState) error {
	a.mu.Lock()
	current := a.status
	if !current.CanTransition(next) {
		a.mu.Unlock()
		return &Error{
			Kind:    KindInvalidState,
			Agent:   a.name,
			Message: fmt.Sprintf("illegal lifecycle transition %s -> %s", current, next),
		}
	}
	a.status = next
	a.mu.Unlock()

	if kind, ok := next.LifecycleEventKind(); ok {
		ev := types.NewEvent(types.EventType{Kind: kind}).
			WithParameter("agent_name", types.StringValue(a.name))
		if err := a.bus.SyncPublish(ev); err != nil {
			a.logger.Warn("lifecycle event rejected", slog.Any("error", err))
		}
	}
	return nil
}

// markError records a terminal error state.
func (a *Agent) markError(msg string) {
	a.mu.Lock()
	if a.status.CanTransition(types.LifecycleError) {
		a.status = types.LifecycleError
		a.lastErr = msg
	}
	a.mu.Unlock()
}

// Run starts the agent task: Inactive -> Starting, on_init, -> Active, then
// the dispatch loop until shutdown.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.transition(types.LifecycleStarting); err != nil {
		return err
	}
	a.sub = a.bus.Subscribe()

	if a.def.Lifecycle != nil && len(a.def.Lifecycle.OnInit) > 0 {
		if err := a.runLifecycleBlock(ctx, a.def.Lifecycle.OnInit); err != nil {
			a.markError(err.Error())
			a.sub.Close()
			return err
		}
	}
	if err := a.transition(types.LifecycleActive); err != nil {
		a.sub.Close()
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()
	go a.loop(loopCtx)
	return nil
}

// loop is the dispatch loop: one event or shutdown signal per iteration.
// A graceful shutdown lets the in-flight handler finish; cancelling the
// context stops immediately.
func (a *Agent) loop(ctx context.Context) {
	defer close(a.done)
	defer a.sub.Close()
	for {
		select {
		case <-a.shutdown:
			a.finish(ctx)
			return
		case <-ctx.Done():
			a.markError("emergency shutdown")
			return
		case ev, ok := <-a.sub.Events():
			if !ok {
				return
			}
			a.dispatch(ctx, ev)
		}
	}
}

// finish runs the graceful half of shutdown: on_destroy, then Stopping ->
// Inactive.
func (a *Agent) finish(ctx context.Context) {
	if err := a.transition(types.LifecycleStopping); err != nil {
		a.logger.Warn("shutdown from unexpected state", slog.Any("error", err))
		return
	}
	if a.def.Lifecycle != nil && len(a.def.Lifecycle.OnDestroy) > 0 {
		if err := a.runLifecycleBlock(ctx, a.def.Lifecycle.OnDestroy); err != nil {
			a.logger.Warn("on_destroy failed", slog.Any("error", err))
		}
	}
	if err := a.transition(types.LifecycleInactive); err != nil {
		a.logger.Warn("shutdown transition failed", slog.Any("error", err))
	}
}

// Stop requests a graceful shutdown and waits for the task to exit or the
// context to expire. On expiry the task is cancelled and the agent marked
// failed.
func (a *Agent) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() { close(a.shutdown) })
	a.mu.RLock()
	cancel := a.cancel
	a.mu.RUnlock()
	if cancel == nil {
		// The task never started; there is nothing to wait for.
		return nil
	}
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		cancel()
		a.markError("shutdown deadline exceeded")
		return &Error{
			Kind:    KindInvalidState,
			Agent:   a.name,
			Message: "forced termination after shutdown deadline",
		}
	}
}

// Done returns a channel closed when the agent task has exited.
func (a *Agent) Done() <-chan struct{} { return a.done }

// sendRequest publishes a correlated request on the bus.
func (a *Agent) sendRequest(ctx context.Context, ev *types.Event, timeout time.Duration) (types.Value, error) {
	resp, err := a.bus.Request(ctx, ev, timeout)
	if err != nil {
		return nil, err
	}
	if errParam := resp.Parameter("error"); errParam != nil {
		return nil, &Error{
			Kind:    KindExecution,
			Agent:   a.name,
			Message: errParam.String(),
		}
	}
	result := resp.Parameter("result")
	if result == nil {
		result = types.Null
	}
	return result, nil
}

// dispatch routes one event to the agent's handlers. Handler failures never
// crash the agent: they become Err responses or feature-failure events.
func (a *Agent) dispatch(ctx context.Context, ev *types.Event) {
	switch ev.Type.Kind {
	case types.EventRequest:
		if ev.Type.Responder != a.name {
			return
		}
		a.dispatchRequest(ctx, ev)
	case types.EventResponse:
		// Correlation is resolved by the bus.
	default:
		key := ev.Type.DispatchKey()
		if a.def.Observe != nil {
			for _, h := range a.def.Observe.Handlers {
				if h.EventName == key {
					a.runObserve(ctx, h, ev)
				}
			}
		}
		if a.def.React != nil {
			for _, h := range a.def.React.Handlers {
				if h.EventName == key {
					a.runReact(ctx, h, ev)
				}
			}
		}
	}
}

// dispatchRequest runs the matching answer handler and publishes the
// correlated response.
func (a *Agent) dispatchRequest(ctx context.Context, ev *types.Event) {
	var handler *ast.HandlerDef
	if a.def.Answer != nil {
		for _, h := range a.def.Answer.Handlers {
			if h.EventName == ev.Type.RequestType {
				handler = h
				break
			}
		}
	}
	resp := types.NewEvent(types.Response(ev.Type))
	if handler == nil {
		resp.WithParameter("error", types.StringValue(
			(&Error{Kind: KindHandlerNotFound, Agent: a.name, Message: "no answer handler for " + ev.Type.RequestType}).Error(),
		))
		a.publish(resp)
		return
	}
	result := a.runHandler(ctx, handler, a.bindParameters(handler, ev))
	if result.Ok {
		resp.WithParameter("result", result.Value)
	} else {
		resp.WithParameter("error", types.StringValue(result.ErrText))
	}
	a.publish(resp)
}

// runObserve merges a successful handler's map payload into state and
// publishes state-updated events.
func (a *Agent) runObserve(ctx context.Context, h *ast.HandlerDef, ev *types.Event) {
	result := a.runHandler(ctx, h, a.bindParameters(h, ev))
	if !result.Ok {
		a.reportFailure(h, result.ErrText)
		return
	}
	updates, ok := result.Value.(types.MapValue)
	if !ok {
		return
	}
	for name, value := range updates {
		if err := a.setState([]string{name}, value); err != nil {
			a.reportFailure(h, err.Error())
			continue
		}
		a.publishStateUpdated(name, value)
	}
}

// runReact publishes the events the handler emitted.
func (a *Agent) runReact(ctx context.Context, h *ast.HandlerDef, ev *types.Event) {
	result := a.runHandler(ctx, h, a.bindParameters(h, ev))
	if !result.Ok {
		a.reportFailure(h, result.ErrText)
	}
}

// runHandler executes one handler block, converting panics and execution
// errors into Err results, and publishes emitted events and state-updated
// notifications afterwards.
func (a *Agent) runHandler(ctx context.Context, h *ast.HandlerDef, params map[string]types.Value) (result *HandlerResult) {
	defer func() {
		if r := recover(); r != nil {
			result = errResult(fmt.Sprintf("handler panicked: %v", r))
		}
	}()
	ec := newExecContext(ctx, a, params)
	res, err := ec.runBlock(h.Block)
	a.flush(ec)
	switch {
	case err != nil:
		return errResult(err.Error())
	case res == nil:
		return okResult(types.Null)
	default:
		return res
	}
}

// flush publishes the side effects a handler accumulated: emitted events
// and state-updated notifications for assigned variables.
func (a *Agent) flush(ec *execContext) {
	for _, name := range ec.updatedState {
		if v, err := a.stateValue([]string{name}); err == nil {
			a.publishStateUpdated(name, v)
		}
	}
	for _, ev := range ec.emitted {
		a.publish(ev)
	}
}

func (a *Agent) runLifecycleBlock(ctx context.Context, block []ast.Statement) error {
	ec := newExecContext(ctx, a, nil)
	res, err := ec.runBlock(block)
	a.flush(ec)
	if err != nil {
		return err
	}
	if res != nil && !res.Ok {
		return &Error{Kind: KindExecution, Agent: a.name, Message: res.ErrText}
	}
	return nil
}

// bindParameters maps event parameters onto the handler's declared
// parameter names, accepting positional argN fallbacks.
func (a *Agent) bindParameters(h *ast.HandlerDef, ev *types.Event) map[string]types.Value {
	params := make(map[string]types.Value, len(h.Parameters))
	for i, p := range h.Parameters {
		if v, ok := ev.Parameters[p.Name]; ok {
			params[p.Name] = v
			continue
		}
		if v, ok := ev.Parameters[fmt.Sprintf("arg%d", i)]; ok {
			params[p.Name] = v
			continue
		}
		params[p.Name] = types.Null
	}
	return params
}

func (a *Agent) publish(ev *types.Event) {
	if err := a.bus.SyncPublish(ev); err != nil {
		a.logger.Warn("event rejected", slog.String("event", ev.Type.String()), slog.Any("error", err))
	}
}

func (a *Agent) publishStateUpdated(name string, value types.Value) {
	ev := types.NewEvent(types.StateUpdated(a.name, name)).
		WithParameter("value", value)
	a.publish(ev)
}

// reportFailure publishes a feature-failure event and a diagnostic error
// event for a failed observe or react handler.
func (a *Agent) reportFailure(h *ast.HandlerDef, msg string) {
	a.logger.Warn("handler failed",
		slog.String("handler", h.EventName),
		slog.String("error", msg),
	)
	ev := types.NewEvent(types.EventType{Kind: types.EventFeatureFailure}).
		WithParameter("feature_id", types.StringValue(a.name+"/"+h.EventName)).
		WithParameter("error", types.StringValue(msg))
	a.publish(ev)
	a.bus.PublishError(&types.ErrorEvent{
		Severity:  types.SeverityError,
		Code:      runtimeErrorCodes[KindExecution],
		Message:   msg,
		Component: a.name,
	})
}

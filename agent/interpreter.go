// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-kairei/kairei/ast"
	"github.com/go-kairei/kairei/event"
	"github.com/go-kairei/kairei/provider"
	"github.com/go-kairei/kairei/types"
)

// HandlerResult is the outcome of one handler execution: the Ok payload or
// the Err message of the handler's Result contract.
type HandlerResult struct {
	Ok      bool
	Value   types.Value
	ErrText string
}

// okResult wraps a payload in a successful result.
func okResult(v types.Value) *HandlerResult {
	return &HandlerResult{Ok: true, Value: v}
}

// errResult wraps an error message in a failed result.
func errResult(msg string) *HandlerResult {
	return &HandlerResult{ErrText: msg}
}

// execContext drives one handler execution against the owning agent. It
// tracks local bindings, the state variables mutated so far, and the events
// queued by emit statements.
type execContext struct {
	agent  *Agent
	ctx    context.Context
	scopes []map[string]types.Value

	// updatedState records the names assigned during the handler so the
	// agent can publish state-updated events afterwards.
	updatedState []string

	// emitted holds events queued by emit statements, published after the
	// handler completes.
	emitted []*types.Event
}

func newExecContext(ctx context.Context, a *Agent, params map[string]types.Value) *execContext {
	locals := make(map[string]types.Value, len(params))
	for k, v := range params {
		locals[k] = v
	}
	return &execContext{
		agent:  a,
		ctx:    ctx,
		scopes: []map[string]types.Value{locals},
	}
}

func (ec *execContext) pushScope() {
	ec.scopes = append(ec.scopes, make(map[string]types.Value))
}

func (ec *execContext) popScope() {
	ec.scopes = ec.scopes[:len(ec.scopes)-1]
}

func (ec *execContext) lookup(name string) (types.Value, bool) {
	for i := len(ec.scopes) - 1; i >= 0; i-- {
		if v, ok := ec.scopes[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (ec *execContext) bind(name string, v types.Value) {
	for i := len(ec.scopes) - 1; i >= 0; i-- {
		if _, ok := ec.scopes[i][name]; ok {
			ec.scopes[i][name] = v
			return
		}
	}
	ec.scopes[len(ec.scopes)-1][name] = v
}

// runBlock executes statements until a return. A nil result means the block
// fell through without returning.
func (ec *execContext) runBlock(stmts []ast.Statement) (*HandlerResult, error) {
	for _, s := range stmts {
		res, err := ec.runStatement(s)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}
	return nil, nil
}

func (ec *execContext) runStatement(s ast.Statement) (*HandlerResult, error) {
	switch s := s.(type) {
	case *ast.ReturnStatement:
		switch v := s.Value.(type) {
		case *ast.OkExpr:
			value, err := ec.eval(v.Value)
			if err != nil {
				return nil, err
			}
			return okResult(value), nil
		case *ast.ErrExpr:
			value, err := ec.eval(v.Value)
			if err != nil {
				return nil, err
			}
			return errResult(value.String()), nil
		default:
			value, err := ec.eval(s.Value)
			if err != nil {
				return nil, err
			}
			return okResult(value), nil
		}
	case *ast.AssignStatement:
		return nil, ec.runAssign(s)
	case *ast.ExpressionStatement:
		_, err := ec.eval(s.Expr)
		return nil, err
	case *ast.IfStatement:
		cond, err := ec.eval(s.Cond)
		if err != nil {
			return nil, err
		}
		ec.pushScope()
		defer ec.popScope()
		if truthy(cond) {
			return ec.runBlock(s.Then)
		}
		return ec.runBlock(s.Else)
	case *ast.WithErrorStatement:
		res, err := ec.runStatement(s.Statement)
		if err == nil {
			return res, nil
		}
		ec.pushScope()
		defer ec.popScope()
		if s.ErrorBinding != "" {
			ec.bind(s.ErrorBinding, types.StringValue(err.Error()))
		}
		return ec.runBlock(s.Handler)
	case *ast.EmitStatement:
		ev := types.NewEvent(types.CustomEvent(s.EventName))
		for i, arg := range s.Args {
			v, err := ec.eval(arg.Value)
			if err != nil {
				return nil, err
			}
			name := arg.Name
			if name == "" {
				name = fmt.Sprintf("arg%d", i)
			}
			ev.WithParameter(name, v)
		}
		ec.emitted = append(ec.emitted, ev)
		return nil, nil
	default:
		return nil, &Error{
			Kind:    KindExecution,
			Agent:   ec.agent.name,
			Message: fmt.Sprintf("unsupported statement %T", s),
		}
	}
}

func (ec *execContext) runAssign(s *ast.AssignStatement) error {
	if len(s.Targets) > 1 {
		value, err := ec.eval(s.Value)
		if err != nil {
			return err
		}
		list, ok := value.(types.ListValue)
		if !ok || len(list) != len(s.Targets) {
			return &Error{
				Kind:    KindExecution,
				Agent:   ec.agent.name,
				Message: fmt.Sprintf("cannot destructure %s into %d targets", value.TypeInfo(), len(s.Targets)),
			}
		}
		for i, target := range s.Targets {
			if err := ec.assignTo(target, list[i]); err != nil {
				return err
			}
		}
		return nil
	}
	value, err := ec.eval(s.Value)
	if err != nil {
		return err
	}
	return ec.assignTo(s.Targets[0], value)
}

func (ec *execContext) assignTo(target ast.Expression, value types.Value) error {
	switch target := target.(type) {
	case *ast.StateAccessExpr:
		if err := ec.agent.setState(target.Path, value); err != nil {
			return err
		}
		ec.updatedState = append(ec.updatedState, target.Path[0])
		return nil
	case *ast.VariableExpr:
		ec.bind(target.Name, value)
		return nil
	default:
		return &Error{
			Kind:    KindExecution,
			Agent:   ec.agent.name,
			Message: "assignment target must be a variable or a state access",
		}
	}
}

func (ec *execContext) eval(e ast.Expression) (types.Value, error) {
	select {
	case <-ec.ctx.Done():
		return nil, &event.Error{Kind: event.KindCancelled, Message: ec.ctx.Err().Error()}
	default:
	}
	switch e := e.(type) {
	case *ast.LiteralExpr:
		return ec.evalLiteral(e)
	case *ast.StringExpr:
		return ec.evalString(e)
	case *ast.VariableExpr:
		if v, ok := ec.lookup(e.Name); ok {
			return v, nil
		}
		return nil, &Error{
			Kind:    KindExecution,
			Agent:   ec.agent.name,
			Message: fmt.Sprintf("undefined variable %q", e.Name),
		}
	case *ast.StateAccessExpr:
		return ec.agent.stateValue(e.Path)
	case *ast.BinaryExpr:
		return ec.evalBinary(e)
	case *ast.CallExpr:
		return ec.evalCall(e)
	case *ast.RequestExpr:
		return ec.evalRequest(e)
	case *ast.AwaitExpr:
		return ec.evalAwait(e)
	case *ast.OkExpr:
		return ec.eval(e.Value)
	case *ast.ErrExpr:
		return ec.eval(e.Value)
	case *ast.IfExpr:
		cond, err := ec.eval(e.Cond)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return ec.eval(e.Then)
		}
		return ec.eval(e.Else)
	case *ast.MatchExpr:
		return ec.evalMatch(e)
	case *ast.ThinkExpr:
		return ec.evalThink(e)
	default:
		return nil, &Error{
			Kind:    KindExecution,
			Agent:   ec.agent.name,
			Message: fmt.Sprintf("unsupported expression %T", e),
		}
	}
}

func (ec *execContext) evalLiteral(e *ast.LiteralExpr) (types.Value, error) {
	switch {
	case e.IsList:
		out := make(types.ListValue, len(e.Elements))
		for i, elem := range e.Elements {
			v, err := ec.eval(elem)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case e.IsMap:
		out := make(types.MapValue, len(e.Order))
		for _, key := range e.Order {
			v, err := ec.eval(e.Entries[key])
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		return out, nil
	default:
		return e.Value, nil
	}
}

func (ec *execContext) evalString(e *ast.StringExpr) (types.Value, error) {
	var b strings.Builder
	for _, part := range e.Parts {
		switch part.Kind {
		case ast.PartText:
			b.WriteString(part.Text)
		case ast.PartNewline:
			b.WriteString("\n")
		case ast.PartInterpolation:
			if v, ok := ec.lookup(part.Text); ok {
				b.WriteString(v.String())
				continue
			}
			if v, err := ec.agent.stateValue([]string{part.Text}); err == nil {
				b.WriteString(v.String())
				continue
			}
			return nil, &Error{
				Kind:    KindExecution,
				Agent:   ec.agent.name,
				Message: fmt.Sprintf("undefined variable %q in string interpolation", part.Text),
			}
		}
	}
	return types.StringValue(b.String()), nil
}

func (ec *execContext) evalBinary(e *ast.BinaryExpr) (types.Value, error) {
	left, err := ec.eval(e.Left)
	if err != nil {
		return nil, err
	}
	// Short-circuit logical operators before evaluating the right side.
	if e.Op.IsLogical() {
		lb, ok := left.(types.BoolValue)
		if !ok {
			return nil, ec.operandError(e, left)
		}
		if e.Op == ast.OpAnd && !bool(lb) {
			return types.BoolValue(false), nil
		}
		if e.Op == ast.OpOr && bool(lb) {
			return types.BoolValue(true), nil
		}
		right, err := ec.eval(e.Right)
		if err != nil {
			return nil, err
		}
		rb, ok := right.(types.BoolValue)
		if !ok {
			return nil, ec.operandError(e, right)
		}
		return rb, nil
	}
	right, err := ec.eval(e.Right)
	if err != nil {
		return nil, err
	}
	switch {
	case e.Op.IsArithmetic():
		return ec.evalArithmetic(e, left, right)
	case e.Op.IsComparison():
		return ec.evalComparison(e, left, right)
	default:
		return nil, ec.operandError(e, left)
	}
}

func (ec *execContext) evalArithmetic(e *ast.BinaryExpr, left, right types.Value) (types.Value, error) {
	li, lok := left.(types.IntValue)
	ri, rok := right.(types.IntValue)
	if lok && rok {
		switch e.Op {
		case ast.OpAdd:
			return li + ri, nil
		case ast.OpSub:
			return li - ri, nil
		case ast.OpMul:
			return li * ri, nil
		case ast.OpDiv:
			if ri == 0 {
				return nil, &Error{Kind: KindExecution, Agent: ec.agent.name, Message: "division by zero"}
			}
			return li / ri, nil
		case ast.OpMod:
			if ri == 0 {
				return nil, &Error{Kind: KindExecution, Agent: ec.agent.name, Message: "division by zero"}
			}
			return li % ri, nil
		}
	}
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if !lok || !rok {
		return nil, ec.operandError(e, left)
	}
	switch e.Op {
	case ast.OpAdd:
		return types.FloatValue(lf + rf), nil
	case ast.OpSub:
		return types.FloatValue(lf - rf), nil
	case ast.OpMul:
		return types.FloatValue(lf * rf), nil
	case ast.OpDiv:
		if rf == 0 {
			return nil, &Error{Kind: KindExecution, Agent: ec.agent.name, Message: "division by zero"}
		}
		return types.FloatValue(lf / rf), nil
	default:
		return nil, ec.operandError(e, left)
	}
}

func (ec *execContext) evalComparison(e *ast.BinaryExpr, left, right types.Value) (types.Value, error) {
	if e.Op == ast.OpEq || e.Op == ast.OpNotEq {
		eq := valuesEqual(left, right)
		if e.Op == ast.OpNotEq {
			eq = !eq
		}
		return types.BoolValue(eq), nil
	}
	cmp, ok := compareOrdered(left, right)
	if !ok {
		return nil, ec.operandError(e, left)
	}
	switch e.Op {
	case ast.OpLess:
		return types.BoolValue(cmp < 0), nil
	case ast.OpLessEq:
		return types.BoolValue(cmp <= 0), nil
	case ast.OpGreater:
		return types.BoolValue(cmp > 0), nil
	case ast.OpGreaterEq:
		return types.BoolValue(cmp >= 0), nil
	default:
		return nil, ec.operandError(e, left)
	}
}

func (ec *execContext) operandError(e *ast.BinaryExpr, operand types.Value) error {
	return &Error{
		Kind:    KindExecution,
		Agent:   ec.agent.name,
		Message: fmt.Sprintf("operator %s cannot take %s", e.Op, operand.TypeInfo()),
	}
}

func (ec *execContext) evalCall(e *ast.CallExpr) (types.Value, error) {
	args := make([]types.Value, len(e.Args))
	for i, arg := range e.Args {
		v, err := ec.eval(arg)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return callBuiltin(ec.agent.name, e.Name, args)
}

// evalRequest sends one correlated request and returns the response value.
func (ec *execContext) evalRequest(e *ast.RequestExpr) (types.Value, error) {
	ev, timeout, err := ec.buildRequest(e)
	if err != nil {
		return nil, err
	}
	return ec.agent.sendRequest(ec.ctx, ev, timeout)
}

// buildRequest evaluates the request's arguments and timeout into a Request
// event.
func (ec *execContext) buildRequest(e *ast.RequestExpr) (*types.Event, time.Duration, error) {
	ev := types.NewEvent(types.Request(e.RequestType, ec.agent.name, e.Target, event.NewRequestID()))
	for i, arg := range e.Args {
		v, err := ec.eval(arg.Value)
		if err != nil {
			return nil, 0, err
		}
		name := arg.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		ev.WithParameter(name, v)
	}
	timeout := ec.agent.requestTimeout
	if e.Timeout != nil {
		v, err := ec.eval(e.Timeout)
		if err != nil {
			return nil, 0, err
		}
		if d, ok := v.(types.DurationValue); ok {
			timeout = time.Duration(d)
		}
	}
	return ev, timeout, nil
}

// evalAwait issues all requests concurrently and returns their results in
// input order.
func (ec *execContext) evalAwait(e *ast.AwaitExpr) (types.Value, error) {
	type prepared struct {
		ev      *types.Event
		timeout time.Duration
	}
	reqs := make([]prepared, len(e.Requests))
	for i, expr := range e.Requests {
		req, ok := expr.(*ast.RequestExpr)
		if !ok {
			return nil, &Error{
				Kind:    KindExecution,
				Agent:   ec.agent.name,
				Message: "await accepts request expressions only",
			}
		}
		ev, timeout, err := ec.buildRequest(req)
		if err != nil {
			return nil, err
		}
		reqs[i] = prepared{ev: ev, timeout: timeout}
	}
	results := make([]types.Value, len(reqs))
	g, gctx := errgroup.WithContext(ec.ctx)
	for i, req := range reqs {
		g.Go(func() error {
			v, err := ec.agent.sendRequest(gctx, req.ev, req.timeout)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return types.ListValue(results), nil
}

func (ec *execContext) evalMatch(e *ast.MatchExpr) (types.Value, error) {
	subject, err := ec.eval(e.Subject)
	if err != nil {
		return nil, err
	}
	var defaultArm *ast.MatchArm
	for _, arm := range e.Arms {
		if arm.Pattern == nil {
			if defaultArm == nil {
				defaultArm = arm
			}
			continue
		}
		pattern, err := ec.eval(arm.Pattern)
		if err != nil {
			return nil, err
		}
		if valuesEqual(subject, pattern) {
			return ec.eval(arm.Body)
		}
	}
	if defaultArm != nil {
		return ec.eval(defaultArm.Body)
	}
	return nil, &Error{
		Kind:    KindExecution,
		Agent:   ec.agent.name,
		Message: fmt.Sprintf("no match arm for %s", subject),
	}
}

// evalThink assembles a provider request from the think arguments and runs
// it through the primary provider pipeline.
func (ec *execContext) evalThink(e *ast.ThinkExpr) (types.Value, error) {
	if ec.agent.providers == nil {
		return nil, &Error{
			Kind:    KindExecution,
			Agent:   ec.agent.name,
			Message: "think requires a provider registry",
		}
	}
	prov, err := ec.agent.providers.Primary()
	if err != nil {
		return nil, err
	}
	var queryParts []string
	params := make(map[string]types.Value)
	for _, arg := range e.Args {
		v, err := ec.eval(arg.Value)
		if err != nil {
			return nil, err
		}
		if arg.Name == "" {
			queryParts = append(queryParts, v.String())
		} else {
			params[arg.Name] = v
		}
	}
	cfg := &provider.Config{}
	for key, expr := range e.With {
		v, err := ec.eval(expr)
		if err != nil {
			return nil, err
		}
		switch key {
		case "model":
			cfg.Model = v.String()
		case "temperature":
			if f, ok := asFloat(v); ok {
				cfg.Temperature = f
			}
		case "max_tokens":
			if n, ok := v.(types.IntValue); ok {
				cfg.MaxTokens = int(n)
			}
		default:
			if cfg.Options == nil {
				cfg.Options = make(map[string]types.Value)
			}
			cfg.Options[key] = v
		}
	}
	resp, err := prov.Execute(ec.ctx, &provider.ProviderRequest{
		Input:  provider.RequestInput{Query: strings.Join(queryParts, "\n"), Parameters: params},
		Config: cfg,
	})
	if err != nil {
		return nil, err
	}
	return types.StringValue(resp.Output), nil
}

// callBuiltin dispatches the built-in function table.
func callBuiltin(agentName, name string, args []types.Value) (types.Value, error) {
	fail := func(msg string) error {
		return &Error{Kind: KindExecution, Agent: agentName, Message: msg}
	}
	switch name {
	case "len":
		if len(args) != 1 {
			return nil, fail("len expects 1 argument")
		}
		switch v := args[0].(type) {
		case types.StringValue:
			return types.IntValue(len(v)), nil
		case types.ListValue:
			return types.IntValue(len(v)), nil
		case types.MapValue:
			return types.IntValue(len(v)), nil
		default:
			return nil, fail(fmt.Sprintf("len cannot take %s", args[0].TypeInfo()))
		}
	case "to_string":
		if len(args) != 1 {
			return nil, fail("to_string expects 1 argument")
		}
		return types.StringValue(args[0].String()), nil
	case "contains":
		if len(args) != 2 {
			return nil, fail("contains expects 2 arguments")
		}
		return types.BoolValue(strings.Contains(args[0].String(), args[1].String())), nil
	case "concat":
		if len(args) != 2 {
			return nil, fail("concat expects 2 arguments")
		}
		return types.StringValue(args[0].String() + args[1].String()), nil
	case "min", "max":
		if len(args) != 2 {
			return nil, fail(name + " expects 2 arguments")
		}
		a, aok := args[0].(types.IntValue)
		b, bok := args[1].(types.IntValue)
		if !aok || !bok {
			return nil, fail(name + " expects Int arguments")
		}
		if (name == "min") == (a < b) {
			return a, nil
		}
		return b, nil
	case "abs":
		if len(args) != 1 {
			return nil, fail("abs expects 1 argument")
		}
		n, ok := args[0].(types.IntValue)
		if !ok {
			return nil, fail("abs expects an Int argument")
		}
		if n < 0 {
			return -n, nil
		}
		return n, nil
	default:
		return nil, fail(fmt.Sprintf("undefined function %q", name))
	}
}

func truthy(v types.Value) bool {
	b, ok := v.(types.BoolValue)
	return ok && bool(b)
}

func asFloat(v types.Value) (float64, bool) {
	switch v := v.(type) {
	case types.IntValue:
		return float64(v), true
	case types.FloatValue:
		return float64(v), true
	default:
		return 0, false
	}
}

// valuesEqual compares with numeric widening so 1 == 1.0 holds at runtime.
func valuesEqual(a, b types.Value) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	return types.Equal(a, b)
}

// compareOrdered returns -1, 0, or 1 for numeric, String, and Duration
// operands.
func compareOrdered(a, b types.Value) (int, bool) {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if as, ok := a.(types.StringValue); ok {
		if bs, ok := b.(types.StringValue); ok {
			return strings.Compare(string(as), string(bs)), true
		}
		return 0, false
	}
	if ad, ok := a.(types.DurationValue); ok {
		if bd, ok := b.(types.DurationValue); ok {
			switch {
			case ad < bd:
				return -1, true
			case ad > bd:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	return 0, false
}

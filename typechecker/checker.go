// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

// Package typechecker annotates a parsed AST in place and enforces handler
// contracts and expression typing.
//
// The checker is total on the enumerated literal and expression forms. It
// fails fast on the first contradictory construct within a handler but
// continues to the next handler, so one pass reports multiple independent
// errors.
package typechecker

import (
	"fmt"

	"github.com/go-kairei/kairei/ast"
	"github.com/go-kairei/kairei/types"
)

// builtinFunctions are the function signatures available to every handler.
var builtinFunctions = map[string]*types.TypeInfo{
	"len":       types.Function([]*types.TypeInfo{types.TypeAny}, types.TypeInt),
	"to_string": types.Function([]*types.TypeInfo{types.TypeAny}, types.TypeString),
	"contains":  types.Function([]*types.TypeInfo{types.TypeString, types.TypeString}, types.TypeBoolean),
	"concat":    types.Function([]*types.TypeInfo{types.TypeString, types.TypeString}, types.TypeString),
	"min":       types.Function([]*types.TypeInfo{types.TypeInt, types.TypeInt}, types.TypeInt),
	"max":       types.Function([]*types.TypeInfo{types.TypeInt, types.TypeInt}, types.TypeInt),
	"abs":       types.Function([]*types.TypeInfo{types.TypeInt}, types.TypeInt),
}

// Checker walks an AST with an ambient [Context] and an optional plugin
// chain.
type Checker struct {
	plugins   []Plugin
	functions map[string]*types.TypeInfo

	root *ast.Root
	errs []*Error
}

// Option configures a [Checker].
type Option func(*Checker)

// WithPlugin appends a plugin to the visitor chain.
func WithPlugin(p Plugin) Option {
	return func(c *Checker) { c.plugins = append(c.plugins, p) }
}

// WithFunction declares an additional callable function signature. The type
// must be a Function [types.TypeInfo].
func WithFunction(name string, sig *types.TypeInfo) Option {
	return func(c *Checker) { c.functions[name] = sig }
}

// New returns a checker with the built-in function table.
func New(opts ...Option) *Checker {
	c := &Checker{functions: make(map[string]*types.TypeInfo)}
	for name, sig := range builtinFunctions {
		c.functions[name] = sig
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check validates root, annotating expression types in place. It returns a
// [*CheckErrors] when any handler fails.
func Check(root *ast.Root) error {
	return New().Check(root)
}

// Check validates root, annotating expression types in place.
func (c *Checker) Check(root *ast.Root) error {
	c.root = root
	c.errs = nil
	for _, agent := range root.Agents {
		c.checkAgent(agent)
	}
	if len(c.errs) > 0 {
		return &CheckErrors{Errors: c.errs}
	}
	return nil
}

func (c *Checker) checkAgent(agent *ast.MicroAgentDef) {
	ctx := newContext(agent)

	if agent.State != nil {
		c.checkStateInitializers(ctx, agent)
	}
	if agent.Lifecycle != nil {
		if len(agent.Lifecycle.OnInit) > 0 {
			h := ast.NewHandlerDef(agent.Lifecycle.Span(), ast.HandlerLifecycle, "on_init")
			h.Block = agent.Lifecycle.OnInit
			c.checkHandler(ctx, h)
		}
		if len(agent.Lifecycle.OnDestroy) > 0 {
			h := ast.NewHandlerDef(agent.Lifecycle.Span(), ast.HandlerLifecycle, "on_destroy")
			h.Block = agent.Lifecycle.OnDestroy
			c.checkHandler(ctx, h)
		}
	}
	for _, block := range []*ast.HandlerBlock{agent.Observe, agent.Answer, agent.React} {
		if block == nil {
			continue
		}
		for _, h := range block.Handlers {
			c.checkHandler(ctx, h)
		}
	}
}

// checkStateInitializers verifies each declared initial expression against
// the declared variable type.
func (c *Checker) checkStateInitializers(ctx *Context, agent *ast.MicroAgentDef) {
	ctx.scopes = []map[string]*types.TypeInfo{make(map[string]*types.TypeInfo)}
	for _, name := range agent.State.Order {
		v := agent.State.Variables[name]
		if v.Initial == nil {
			continue
		}
		got, err := c.inferExpression(ctx, v.Initial)
		if err != nil {
			c.record(ctx, err)
			continue
		}
		if !got.AssignableTo(v.Type) {
			c.record(ctx, &Error{
				Kind:       KindTypeMismatch,
				Message:    fmt.Sprintf("state variable %q declared as %s but initialized with %s", name, v.Type, got),
				Suggestion: fmt.Sprintf("change the initial value to a %s", v.Type),
				Span:       v.Span(),
			})
		}
	}
}

// checkHandler checks one handler, failing fast on its first error.
func (c *Checker) checkHandler(ctx *Context, h *ast.HandlerDef) {
	ctx.enterHandler(h)
	for _, p := range c.plugins {
		if err := p.BeforeVisitHandler(ctx, h); err != nil {
			c.record(ctx, err)
			return
		}
	}
	for _, s := range h.Block {
		if err := c.checkStatement(ctx, s); err != nil {
			c.record(ctx, err)
			return
		}
	}
	for _, p := range c.plugins {
		if err := p.AfterVisitHandler(ctx, h); err != nil {
			c.record(ctx, err)
			return
		}
	}
}

func (c *Checker) record(ctx *Context, err error) {
	te, ok := err.(*Error)
	if !ok {
		te = &Error{Kind: KindTypeMismatch, Message: err.Error()}
	}
	if te.Agent == "" {
		te.Agent = ctx.agent.Name
	}
	if te.Handler == "" {
		te.Handler = ctx.handlerName()
	}
	c.errs = append(c.errs, te)
}

func (c *Checker) checkStatement(ctx *Context, s ast.Statement) error {
	for _, p := range c.plugins {
		if err := p.BeforeVisitStatement(ctx, s); err != nil {
			return err
		}
	}
	if err := c.checkStatementInner(ctx, s); err != nil {
		return err
	}
	for _, p := range c.plugins {
		if err := p.AfterVisitStatement(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) checkStatementInner(ctx *Context, s ast.Statement) error {
	switch s := s.(type) {
	case *ast.ReturnStatement:
		return c.checkReturn(ctx, s)
	case *ast.AssignStatement:
		return c.checkAssign(ctx, s)
	case *ast.ExpressionStatement:
		_, err := c.inferExpression(ctx, s.Expr)
		return err
	case *ast.IfStatement:
		return c.checkIf(ctx, s)
	case *ast.WithErrorStatement:
		if err := c.checkStatement(ctx, s.Statement); err != nil {
			return err
		}
		ctx.pushScope()
		defer ctx.popScope()
		if s.ErrorBinding != "" {
			ctx.declare(s.ErrorBinding, types.TypeError)
		}
		for _, inner := range s.Handler {
			if err := c.checkStatement(ctx, inner); err != nil {
				return err
			}
		}
		return nil
	case *ast.EmitStatement:
		for _, arg := range s.Args {
			if _, err := c.inferExpression(ctx, arg.Value); err != nil {
				return err
			}
		}
		return nil
	default:
		return &Error{
			Kind:    KindInferenceFailure,
			Message: fmt.Sprintf("unsupported statement %T", s),
			Span:    s.Span(),
		}
	}
}

// checkReturn enforces the handler return contract: the returned value is an
// Ok or Err wrapper whose payload matches the declared Result shape.
func (c *Checker) checkReturn(ctx *Context, s *ast.ReturnStatement) error {
	expected := ctx.expectedReturn
	if expected == nil || expected.Kind != types.KindResult {
		return &Error{
			Kind:    KindInvalidReturn,
			Message: "handler has no Result return contract",
			Span:    s.Span(),
		}
	}
	switch v := s.Value.(type) {
	case *ast.OkExpr:
		got, err := c.inferExpression(ctx, v.Value)
		if err != nil {
			return err
		}
		if !returnAssignable(got, expected.Ok) {
			return &Error{
				Kind:       KindInvalidReturn,
				Message:    fmt.Sprintf("Ok payload is %s but the handler declares Result<%s, %s>", got, expected.Ok, expected.Err),
				Suggestion: fmt.Sprintf("return an Ok(...) carrying a %s", expected.Ok),
				Span:       s.Span(),
			}
		}
		v.SetType(expected)
		return nil
	case *ast.ErrExpr:
		got, err := c.inferExpression(ctx, v.Value)
		if err != nil {
			return err
		}
		if !returnAssignable(got, expected.Err) {
			return &Error{
				Kind:       KindInvalidReturn,
				Message:    fmt.Sprintf("Err payload is %s but the handler declares Result<%s, %s>", got, expected.Ok, expected.Err),
				Suggestion: fmt.Sprintf("return an Err(...) carrying a %s", expected.Err),
				Span:       s.Span(),
			}
		}
		v.SetType(expected)
		return nil
	default:
		return &Error{
			Kind:       KindInvalidReturn,
			Message:    "return value must be wrapped in Ok(...) or Err(...)",
			Suggestion: "wrap the value to match the handler's Result contract",
			Span:       s.Span(),
		}
	}
}

// returnAssignable is [types.TypeInfo.AssignableTo] extended with the return
// conventions: Unit accepts Null, and Error accepts String messages.
func returnAssignable(got, want *types.TypeInfo) bool {
	if want.Kind == types.KindSimple && want.Name == types.NameUnit &&
		got.Kind == types.KindSimple && got.Name == types.NameNull {
		return true
	}
	if want.Kind == types.KindSimple && want.Name == types.NameError &&
		got.Kind == types.KindSimple && (got.Name == types.NameString || got.Name == types.NameError) {
		return true
	}
	return got.AssignableTo(want)
}

func (c *Checker) checkAssign(ctx *Context, s *ast.AssignStatement) error {
	if len(s.Targets) > 1 {
		await, ok := s.Value.(*ast.AwaitExpr)
		if !ok {
			return &Error{
				Kind:       KindTypeMismatch,
				Message:    "multiple assignment targets require an await expression",
				Suggestion: "destructure only the results of await [ ... ]",
				Span:       s.Span(),
			}
		}
		if len(await.Requests) != len(s.Targets) {
			return &Error{
				Kind:    KindArityMismatch,
				Message: fmt.Sprintf("%d targets but await has %d requests", len(s.Targets), len(await.Requests)),
				Span:    s.Span(),
			}
		}
		if _, err := c.inferExpression(ctx, await); err != nil {
			return err
		}
		for i, target := range s.Targets {
			if err := c.assignTo(ctx, target, await.Requests[i].Type(), s.Span()); err != nil {
				return err
			}
		}
		return nil
	}
	got, err := c.inferExpression(ctx, s.Value)
	if err != nil {
		return err
	}
	return c.assignTo(ctx, s.Targets[0], got, s.Span())
}

func (c *Checker) assignTo(ctx *Context, target ast.Expression, got *types.TypeInfo, span types.Span) error {
	switch target := target.(type) {
	case *ast.StateAccessExpr:
		want, err := c.inferExpression(ctx, target)
		if err != nil {
			return err
		}
		if !got.AssignableTo(want) {
			return &Error{
				Kind:       KindTypeMismatch,
				Message:    fmt.Sprintf("cannot assign %s to state %q of type %s", got, target.Path[0], want),
				Suggestion: "match the declared state variable type",
				Span:       span,
			}
		}
		return nil
	case *ast.VariableExpr:
		if existing, ok := ctx.lookup(target.Name); ok {
			if !got.AssignableTo(existing) {
				return &Error{
					Kind:       KindTypeMismatch,
					Message:    fmt.Sprintf("cannot assign %s to %q of type %s", got, target.Name, existing),
					Suggestion: "introduce a new variable instead of rebinding with a different type",
					Span:       span,
				}
			}
			target.SetType(existing)
			return nil
		}
		ctx.declare(target.Name, got)
		target.SetType(got)
		return nil
	default:
		return &Error{
			Kind:    KindTypeMismatch,
			Message: "assignment target must be a variable or a state access",
			Span:    span,
		}
	}
}

func (c *Checker) checkIf(ctx *Context, s *ast.IfStatement) error {
	cond, err := c.inferExpression(ctx, s.Cond)
	if err != nil {
		return err
	}
	if !isBooleanish(cond) {
		return &Error{
			Kind:       KindTypeMismatch,
			Message:    fmt.Sprintf("if condition is %s, expected Boolean", cond),
			Suggestion: "use a comparison or logical expression",
			Span:       s.Cond.Span(),
		}
	}
	ctx.pushScope()
	for _, inner := range s.Then {
		if err := c.checkStatement(ctx, inner); err != nil {
			ctx.popScope()
			return err
		}
	}
	ctx.popScope()
	ctx.pushScope()
	defer ctx.popScope()
	for _, inner := range s.Else {
		if err := c.checkStatement(ctx, inner); err != nil {
			return err
		}
	}
	return nil
}

func isBooleanish(t *types.TypeInfo) bool {
	return t.IsAny() || (t.Kind == types.KindSimple && t.Name == types.NameBoolean)
}

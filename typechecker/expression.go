// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package typechecker

import (
	"fmt"

	"github.com/go-kairei/kairei/ast"
	"github.com/go-kairei/kairei/types"
)

// inferExpression resolves the type of e, annotates it in place, and runs
// the plugin hooks around the visit.
func (c *Checker) inferExpression(ctx *Context, e ast.Expression) (*types.TypeInfo, error) {
	for _, p := range c.plugins {
		if err := p.BeforeVisitExpression(ctx, e); err != nil {
			return nil, err
		}
	}
	t, err := c.inferExpressionInner(ctx, e)
	if err != nil {
		return nil, err
	}
	e.SetType(t)
	for _, p := range c.plugins {
		if err := p.AfterVisitExpression(ctx, e); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (c *Checker) inferExpressionInner(ctx *Context, e ast.Expression) (*types.TypeInfo, error) {
	switch e := e.(type) {
	case *ast.LiteralExpr:
		return c.inferLiteral(ctx, e)
	case *ast.StringExpr:
		return c.inferString(ctx, e)
	case *ast.VariableExpr:
		if t, ok := ctx.lookup(e.Name); ok {
			return t, nil
		}
		return nil, &Error{
			Kind:       KindUndefinedVariable,
			Message:    fmt.Sprintf("undefined variable %q", e.Name),
			Suggestion: "declare the variable or check for a typo",
			Span:       e.Span(),
		}
	case *ast.StateAccessExpr:
		return c.inferStateAccess(ctx, e)
	case *ast.BinaryExpr:
		return c.inferBinary(ctx, e)
	case *ast.CallExpr:
		return c.inferCall(ctx, e)
	case *ast.RequestExpr:
		return c.inferRequest(ctx, e)
	case *ast.AwaitExpr:
		return c.inferAwait(ctx, e)
	case *ast.OkExpr:
		inner, err := c.inferExpression(ctx, e.Value)
		if err != nil {
			return nil, err
		}
		return types.Result(inner, types.TypeError), nil
	case *ast.ErrExpr:
		inner, err := c.inferExpression(ctx, e.Value)
		if err != nil {
			return nil, err
		}
		return types.Result(types.TypeAny, inner), nil
	case *ast.IfExpr:
		return c.inferIfExpr(ctx, e)
	case *ast.MatchExpr:
		return c.inferMatch(ctx, e)
	case *ast.ThinkExpr:
		return c.inferThink(ctx, e)
	default:
		return nil, &Error{
			Kind:    KindInferenceFailure,
			Message: fmt.Sprintf("unsupported expression %T", e),
			Span:    e.Span(),
		}
	}
}

func (c *Checker) inferLiteral(ctx *Context, e *ast.LiteralExpr) (*types.TypeInfo, error) {
	switch {
	case e.IsList:
		if len(e.Elements) == 0 {
			return nil, &Error{
				Kind:       KindInferenceFailure,
				Message:    "cannot infer the element type of an empty list literal",
				Suggestion: "add at least one element or assign a declared typed variable",
				Span:       e.Span(),
			}
		}
		first, err := c.inferExpression(ctx, e.Elements[0])
		if err != nil {
			return nil, err
		}
		for _, elem := range e.Elements[1:] {
			t, err := c.inferExpression(ctx, elem)
			if err != nil {
				return nil, err
			}
			if !t.Equal(first) {
				return nil, &Error{
					Kind:       KindTypeMismatch,
					Message:    fmt.Sprintf("list elements must share one type, found %s and %s", first, t),
					Suggestion: "make every element the same type",
					Span:       elem.Span(),
				}
			}
		}
		return types.Array(first), nil
	case e.IsMap:
		if len(e.Order) == 0 {
			return nil, &Error{
				Kind:       KindInferenceFailure,
				Message:    "cannot infer the value type of an empty map literal",
				Suggestion: "add at least one entry or assign a declared typed variable",
				Span:       e.Span(),
			}
		}
		var valueType *types.TypeInfo
		uniform := true
		for _, key := range e.Order {
			t, err := c.inferExpression(ctx, e.Entries[key])
			if err != nil {
				return nil, err
			}
			if valueType == nil {
				valueType = t
			} else if !t.Equal(valueType) {
				uniform = false
			}
		}
		if !uniform {
			valueType = types.TypeAny
		}
		return types.MapOf(types.TypeString, valueType), nil
	default:
		return e.Value.TypeInfo(), nil
	}
}

func (c *Checker) inferString(ctx *Context, e *ast.StringExpr) (*types.TypeInfo, error) {
	for _, part := range e.Parts {
		if part.Kind != ast.PartInterpolation {
			continue
		}
		if _, ok := ctx.lookup(part.Text); ok {
			continue
		}
		if _, ok := ctx.stateType(part.Text); ok {
			continue
		}
		return nil, &Error{
			Kind:       KindUndefinedVariable,
			Message:    fmt.Sprintf("undefined variable %q in string interpolation", part.Text),
			Suggestion: "interpolations may reference handler parameters, locals, or state variables",
			Span:       e.Span(),
		}
	}
	return types.TypeString, nil
}

func (c *Checker) inferStateAccess(ctx *Context, e *ast.StateAccessExpr) (*types.TypeInfo, error) {
	t, ok := ctx.stateType(e.Path[0])
	if !ok {
		return nil, &Error{
			Kind:       KindUndefinedVariable,
			Message:    fmt.Sprintf("undeclared state variable %q", e.Path[0]),
			Suggestion: "declare the variable in the agent's state block",
			Span:       e.Span(),
		}
	}
	for _, seg := range e.Path[1:] {
		switch {
		case t.Kind == types.KindMap:
			t = t.Value
		case t.IsAny():
			t = types.TypeAny
		default:
			return nil, &Error{
				Kind:       KindTypeMismatch,
				Message:    fmt.Sprintf("cannot access member %q of %s", seg, t),
				Suggestion: "only Map-typed state supports nested access",
				Span:       e.Span(),
			}
		}
	}
	return t, nil
}

func (c *Checker) inferBinary(ctx *Context, e *ast.BinaryExpr) (*types.TypeInfo, error) {
	left, err := c.inferExpression(ctx, e.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.inferExpression(ctx, e.Right)
	if err != nil {
		return nil, err
	}
	switch {
	case e.Op.IsArithmetic():
		if left.IsAny() || right.IsAny() {
			return types.TypeAny, nil
		}
		if !left.IsNumeric() || !right.IsNumeric() {
			return nil, invalidOperand(e, left, right, "arithmetic requires numeric operands")
		}
		if left.Equal(types.TypeFloat) || right.Equal(types.TypeFloat) {
			return types.TypeFloat, nil
		}
		return types.TypeInt, nil
	case e.Op.IsLogical():
		if !isBooleanish(left) || !isBooleanish(right) {
			return nil, invalidOperand(e, left, right, "logical operators require Boolean operands")
		}
		return types.TypeBoolean, nil
	case e.Op.IsComparison():
		if !comparableTypes(left, right) {
			return nil, invalidOperand(e, left, right, "comparison requires operands of one comparable type")
		}
		if e.Op != ast.OpEq && e.Op != ast.OpNotEq && !ordered(left) && !left.IsAny() {
			return nil, invalidOperand(e, left, right, "ordering requires numeric, String, or Duration operands")
		}
		return types.TypeBoolean, nil
	default:
		return nil, invalidOperand(e, left, right, "unsupported operator")
	}
}

func invalidOperand(e *ast.BinaryExpr, left, right *types.TypeInfo, msg string) error {
	return &Error{
		Kind:       KindInvalidOperand,
		Message:    fmt.Sprintf("%s: %s %s %s", msg, left, e.Op, right),
		Suggestion: "adjust the operand types to fit the operator",
		Span:       e.Span(),
	}
}

func comparableTypes(a, b *types.TypeInfo) bool {
	if a.IsAny() || b.IsAny() {
		return true
	}
	if a.IsNumeric() && b.IsNumeric() {
		return true
	}
	return a.Equal(b)
}

func ordered(t *types.TypeInfo) bool {
	if t.IsNumeric() {
		return true
	}
	return t.Kind == types.KindSimple && (t.Name == types.NameString || t.Name == types.NameDuration)
}

func (c *Checker) inferCall(ctx *Context, e *ast.CallExpr) (*types.TypeInfo, error) {
	sig, ok := c.functions[e.Name]
	if !ok {
		return nil, &Error{
			Kind:       KindUndefinedFunction,
			Message:    fmt.Sprintf("undefined function %q", e.Name),
			Suggestion: "check the name against the declared function signatures",
			Span:       e.Span(),
		}
	}
	if len(e.Args) != len(sig.Params) {
		return nil, &Error{
			Kind:       KindArityMismatch,
			Message:    fmt.Sprintf("%s expects %d arguments, got %d", e.Name, len(sig.Params), len(e.Args)),
			Suggestion: "match the declared signature",
			Span:       e.Span(),
		}
	}
	for i, arg := range e.Args {
		got, err := c.inferExpression(ctx, arg)
		if err != nil {
			return nil, err
		}
		if !got.AssignableTo(sig.Params[i]) {
			return nil, &Error{
				Kind:       KindTypeMismatch,
				Message:    fmt.Sprintf("argument %d of %s is %s, expected %s", i+1, e.Name, got, sig.Params[i]),
				Suggestion: "match the declared signature",
				Span:       arg.Span(),
			}
		}
	}
	return sig.Return, nil
}

// inferRequest resolves the request's result type from the target agent's
// declared answer handler when the target is defined in the same source;
// requests to agents registered elsewhere type as Any.
func (c *Checker) inferRequest(ctx *Context, e *ast.RequestExpr) (*types.TypeInfo, error) {
	for _, arg := range e.Args {
		if _, err := c.inferExpression(ctx, arg.Value); err != nil {
			return nil, err
		}
	}
	if e.Timeout != nil {
		t, err := c.inferExpression(ctx, e.Timeout)
		if err != nil {
			return nil, err
		}
		if !t.Equal(types.TypeDuration) && !t.IsAny() {
			return nil, &Error{
				Kind:       KindTypeMismatch,
				Message:    fmt.Sprintf("request timeout is %s, expected Duration", t),
				Suggestion: "use a duration literal such as 5s",
				Span:       e.Timeout.Span(),
			}
		}
	}
	handler := c.resolveAnswerHandler(e.Target, e.RequestType)
	if handler == nil {
		return types.TypeAny, nil
	}
	if len(handler.Parameters) != len(e.Args) {
		return nil, &Error{
			Kind:    KindArityMismatch,
			Message: fmt.Sprintf("request %s.%s expects %d arguments, got %d", e.Target, e.RequestType, len(handler.Parameters), len(e.Args)),
			Span:    e.Span(),
		}
	}
	for i, arg := range e.Args {
		param := handler.Parameters[i]
		if arg.Name != "" {
			param = nil
			for _, p := range handler.Parameters {
				if p.Name == arg.Name {
					param = p
					break
				}
			}
			if param == nil {
				return nil, &Error{
					Kind:    KindTypeMismatch,
					Message: fmt.Sprintf("request %s.%s has no parameter %q", e.Target, e.RequestType, arg.Name),
					Span:    arg.Span(),
				}
			}
		}
		if got := arg.Value.Type(); got != nil && !got.AssignableTo(param.Type) {
			return nil, &Error{
				Kind:       KindTypeMismatch,
				Message:    fmt.Sprintf("argument %q of %s.%s is %s, expected %s", param.Name, e.Target, e.RequestType, got, param.Type),
				Suggestion: "match the responder's declared parameter types",
				Span:       arg.Span(),
			}
		}
	}
	if handler.ReturnType != nil && handler.ReturnType.Kind == types.KindResult {
		return handler.ReturnType.Ok, nil
	}
	return types.TypeAny, nil
}

func (c *Checker) resolveAnswerHandler(target, requestType string) *ast.HandlerDef {
	if c.root == nil {
		return nil
	}
	for _, agent := range c.root.Agents {
		if agent.Name != target || agent.Answer == nil {
			continue
		}
		for _, h := range agent.Answer.Handlers {
			if h.EventName == requestType {
				return h
			}
		}
	}
	return nil
}

// inferAwait types await [reqs] as a list of the requests' result types.
func (c *Checker) inferAwait(ctx *Context, e *ast.AwaitExpr) (*types.TypeInfo, error) {
	if len(e.Requests) == 0 {
		return nil, &Error{
			Kind:       KindInferenceFailure,
			Message:    "await requires at least one request",
			Suggestion: "list the requests to await",
			Span:       e.Span(),
		}
	}
	var elem *types.TypeInfo
	uniform := true
	for _, req := range e.Requests {
		if _, ok := req.(*ast.RequestExpr); !ok {
			return nil, &Error{
				Kind:       KindTypeMismatch,
				Message:    "await accepts request expressions only",
				Suggestion: "use request Target.Type(...) inside await [...]",
				Span:       req.Span(),
			}
		}
		t, err := c.inferExpression(ctx, req)
		if err != nil {
			return nil, err
		}
		if elem == nil {
			elem = t
		} else if !t.Equal(elem) {
			uniform = false
		}
	}
	if !uniform {
		elem = types.TypeAny
	}
	return types.Array(elem), nil
}

func (c *Checker) inferIfExpr(ctx *Context, e *ast.IfExpr) (*types.TypeInfo, error) {
	cond, err := c.inferExpression(ctx, e.Cond)
	if err != nil {
		return nil, err
	}
	if !isBooleanish(cond) {
		return nil, &Error{
			Kind:       KindTypeMismatch,
			Message:    fmt.Sprintf("if condition is %s, expected Boolean", cond),
			Suggestion: "use a comparison or logical expression",
			Span:       e.Cond.Span(),
		}
	}
	then, err := c.inferExpression(ctx, e.Then)
	if err != nil {
		return nil, err
	}
	els, err := c.inferExpression(ctx, e.Else)
	if err != nil {
		return nil, err
	}
	if t, ok := commonType(then, els); ok {
		return t, nil
	}
	return nil, &Error{
		Kind:       KindTypeMismatch,
		Message:    fmt.Sprintf("if branches have incompatible types %s and %s", then, els),
		Suggestion: "make both branches produce one type",
		Span:       e.Span(),
	}
}

func (c *Checker) inferMatch(ctx *Context, e *ast.MatchExpr) (*types.TypeInfo, error) {
	subject, err := c.inferExpression(ctx, e.Subject)
	if err != nil {
		return nil, err
	}
	var result *types.TypeInfo
	for _, arm := range e.Arms {
		if arm.Pattern != nil {
			pt, err := c.inferExpression(ctx, arm.Pattern)
			if err != nil {
				return nil, err
			}
			if !comparableTypes(pt, subject) {
				return nil, &Error{
					Kind:       KindTypeMismatch,
					Message:    fmt.Sprintf("match pattern is %s but the subject is %s", pt, subject),
					Suggestion: "use patterns of the subject's type",
					Span:       arm.Pattern.Span(),
				}
			}
		}
		bt, err := c.inferExpression(ctx, arm.Body)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = bt
			continue
		}
		if t, ok := commonType(result, bt); ok {
			result = t
		} else {
			return nil, &Error{
				Kind:       KindTypeMismatch,
				Message:    fmt.Sprintf("match arms have incompatible types %s and %s", result, bt),
				Suggestion: "make every arm produce one type",
				Span:       arm.Span(),
			}
		}
	}
	return result, nil
}

func (c *Checker) inferThink(ctx *Context, e *ast.ThinkExpr) (*types.TypeInfo, error) {
	for _, arg := range e.Args {
		if _, err := c.inferExpression(ctx, arg.Value); err != nil {
			return nil, err
		}
	}
	for _, opt := range e.With {
		if _, err := c.inferExpression(ctx, opt); err != nil {
			return nil, err
		}
	}
	return types.TypeString, nil
}

// commonType returns the type both branches of a conditional can produce:
// identical types, numeric widening to Float, or Any as a last resort when
// one side already is Any.
func commonType(a, b *types.TypeInfo) (*types.TypeInfo, bool) {
	if a.Equal(b) {
		return a, true
	}
	if a.IsNumeric() && b.IsNumeric() {
		return types.TypeFloat, true
	}
	if a.IsAny() || b.IsAny() {
		return types.TypeAny, true
	}
	if a.AssignableTo(b) {
		return b, true
	}
	if b.AssignableTo(a) {
		return a, true
	}
	return nil, false
}

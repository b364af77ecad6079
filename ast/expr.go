// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package ast

import (
	"github.com/go-kairei/kairei/types"
)

// Expression is implemented by every expression node. The type checker fills
// in the resolved type in place via SetType.
type Expression interface {
	Node

	// Type returns the resolved type, or nil before type checking.
	Type() *types.TypeInfo
	// SetType records the resolved type.
	SetType(*types.TypeInfo)

	exprNode()
}

// expr is embedded by every concrete expression.
type expr struct {
	node
	typ *types.TypeInfo
}

func (e *expr) exprNode() {}

// Type implements [Expression].
func (e *expr) Type() *types.TypeInfo { return e.typ }

// SetType implements [Expression].
func (e *expr) SetType(t *types.TypeInfo) { e.typ = t }

// LiteralExpr is a non-string literal: Int, Float, Boolean, Duration, Null,
// and list or map literals built from expressions.
type LiteralExpr struct {
	expr

	// Value is set for scalar literals.
	Value types.Value

	// Elements is set for list literals.
	Elements []Expression

	// Entries is set for map literals; Order preserves source order.
	Entries map[string]Expression
	Order   []string

	// IsList and IsMap discriminate collection literals with no elements
	// from scalar literals.
	IsList bool
	IsMap  bool
}

// NewLiteralExpr returns a scalar literal covering span.
func NewLiteralExpr(span types.Span, v types.Value) *LiteralExpr {
	return &LiteralExpr{expr: expr{node: node{span}}, Value: v}
}

// NewListExpr returns a list literal covering span.
func NewListExpr(span types.Span, elements []Expression) *LiteralExpr {
	return &LiteralExpr{expr: expr{node: node{span}}, Elements: elements, IsList: true}
}

// NewMapExpr returns a map literal covering span.
func NewMapExpr(span types.Span, order []string, entries map[string]Expression) *LiteralExpr {
	return &LiteralExpr{expr: expr{node: node{span}}, Entries: entries, Order: order, IsMap: true}
}

// StringPartKind discriminates string template parts.
type StringPartKind int

const (
	// PartText is literal text.
	PartText StringPartKind = iota
	// PartInterpolation is a ${name} reference.
	PartInterpolation
	// PartNewline is a preserved line break.
	PartNewline
)

// StringPart is one segment of a string expression.
type StringPart struct {
	Kind StringPartKind
	Text string
}

// StringExpr is a single- or triple-quoted string literal, possibly holding
// ${name} interpolation parts.
type StringExpr struct {
	expr

	Triple bool
	Parts  []StringPart
}

// NewStringExpr returns a string expression covering span.
func NewStringExpr(span types.Span, triple bool, parts []StringPart) *StringExpr {
	return &StringExpr{expr: expr{node: node{span}}, Triple: triple, Parts: parts}
}

// Static returns the string content and true when the expression has no
// interpolation parts.
func (e *StringExpr) Static() (string, bool) {
	out := ""
	for _, p := range e.Parts {
		switch p.Kind {
		case PartText:
			out += p.Text
		case PartNewline:
			out += "\n"
		default:
			return "", false
		}
	}
	return out, true
}

// VariableExpr references a handler parameter or local binding.
type VariableExpr struct {
	expr

	Name string
}

// NewVariableExpr returns a variable reference covering span.
func NewVariableExpr(span types.Span, name string) *VariableExpr {
	return &VariableExpr{expr: expr{node: node{span}}, Name: name}
}

// StateAccessExpr references the agent's own state: self.a or self.a.b.
type StateAccessExpr struct {
	expr

	Path []string
}

// NewStateAccessExpr returns a state access covering span.
func NewStateAccessExpr(span types.Span, path []string) *StateAccessExpr {
	return &StateAccessExpr{expr: expr{node: node{span}}, Path: path}
}

// BinaryOp is a binary operator.
type BinaryOp int

const (
	// OpAdd is +.
	OpAdd BinaryOp = iota
	// OpSub is -.
	OpSub
	// OpMul is *.
	OpMul
	// OpDiv is /.
	OpDiv
	// OpMod is %.
	OpMod
	// OpEq is ==.
	OpEq
	// OpNotEq is !=.
	OpNotEq
	// OpLess is <.
	OpLess
	// OpLessEq is <=.
	OpLessEq
	// OpGreater is >.
	OpGreater
	// OpGreaterEq is >=.
	OpGreaterEq
	// OpAnd is &&.
	OpAnd
	// OpOr is ||.
	OpOr
)

// String implements [fmt.Stringer].
func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpEq:
		return "=="
	case OpNotEq:
		return "!="
	case OpLess:
		return "<"
	case OpLessEq:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterEq:
		return ">="
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	default:
		return "?"
	}
}

// IsComparison reports whether op produces a Boolean from two comparable
// operands.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEq, OpNotEq, OpLess, OpLessEq, OpGreater, OpGreaterEq:
		return true
	}
	return false
}

// IsLogical reports whether op requires Boolean operands.
func (op BinaryOp) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// IsArithmetic reports whether op requires numeric operands.
func (op BinaryOp) IsArithmetic() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return true
	}
	return false
}

// BinaryExpr applies a binary operator.
type BinaryExpr struct {
	expr

	Op    BinaryOp
	Left  Expression
	Right Expression
}

// NewBinaryExpr returns a binary expression covering span.
func NewBinaryExpr(span types.Span, op BinaryOp, left, right Expression) *BinaryExpr {
	return &BinaryExpr{expr: expr{node: node{span}}, Op: op, Left: left, Right: right}
}

// CallExpr calls a declared function.
type CallExpr struct {
	expr

	Name string
	Args []Expression
}

// NewCallExpr returns a function call covering span.
func NewCallExpr(span types.Span, name string, args []Expression) *CallExpr {
	return &CallExpr{expr: expr{node: node{span}}, Name: name, Args: args}
}

// RequestExpr sends a correlated request to a peer agent and evaluates to the
// response value.
type RequestExpr struct {
	expr

	Target      string
	RequestType string
	Args        []*Argument

	// Timeout overrides the configured request timeout when set.
	Timeout Expression
}

// NewRequestExpr returns a request expression covering span.
func NewRequestExpr(span types.Span, target, requestType string, args []*Argument) *RequestExpr {
	return &RequestExpr{expr: expr{node: node{span}}, Target: target, RequestType: requestType, Args: args}
}

// AwaitExpr issues the listed requests concurrently and evaluates to the
// list of their results in input order.
type AwaitExpr struct {
	expr

	Requests []Expression
}

// NewAwaitExpr returns an await expression covering span.
func NewAwaitExpr(span types.Span, requests []Expression) *AwaitExpr {
	return &AwaitExpr{expr: expr{node: node{span}}, Requests: requests}
}

// OkExpr wraps a value in the Ok branch of the handler's Result type.
type OkExpr struct {
	expr

	Value Expression
}

// NewOkExpr returns an Ok wrapper covering span.
func NewOkExpr(span types.Span, value Expression) *OkExpr {
	return &OkExpr{expr: expr{node: node{span}}, Value: value}
}

// ErrExpr wraps a value in the Err branch of the handler's Result type.
type ErrExpr struct {
	expr

	Value Expression
}

// NewErrExpr returns an Err wrapper covering span.
func NewErrExpr(span types.Span, value Expression) *ErrExpr {
	return &ErrExpr{expr: expr{node: node{span}}, Value: value}
}

// IfExpr chooses between two expressions.
type IfExpr struct {
	expr

	Cond Expression
	Then Expression
	Else Expression
}

// NewIfExpr returns an if expression covering span.
func NewIfExpr(span types.Span, cond, then, els Expression) *IfExpr {
	return &IfExpr{expr: expr{node: node{span}}, Cond: cond, Then: then, Else: els}
}

// MatchArm is one arm of a match expression. A nil Pattern is the default
// arm.
type MatchArm struct {
	node

	Pattern Expression
	Body    Expression
}

// NewMatchArm returns a match arm covering span.
func NewMatchArm(span types.Span, pattern, body Expression) *MatchArm {
	return &MatchArm{node: node{span}, Pattern: pattern, Body: body}
}

// MatchExpr matches a subject against literal patterns with an optional
// default arm.
type MatchExpr struct {
	expr

	Subject Expression
	Arms    []*MatchArm
}

// NewMatchExpr returns a match expression covering span.
func NewMatchExpr(span types.Span, subject Expression, arms []*MatchArm) *MatchExpr {
	return &MatchExpr{expr: expr{node: node{span}}, Subject: subject, Arms: arms}
}

// ThinkExpr invokes the provider pipeline with a prompt assembled from its
// arguments. The optional With entries tune provider options per call.
type ThinkExpr struct {
	expr

	Args []*Argument
	With map[string]Expression
}

// NewThinkExpr returns a think expression covering span.
func NewThinkExpr(span types.Span, args []*Argument, with map[string]Expression) *ThinkExpr {
	return &ThinkExpr{expr: expr{node: node{span}}, Args: args, With: with}
}

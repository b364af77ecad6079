// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package ast

import "github.com/go-kairei/kairei/types"

// Statement is implemented by every statement node.
type Statement interface {
	Node

	stmtNode()
}

// stmt is embedded by every concrete statement.
type stmt struct {
	node
}

func (s *stmt) stmtNode() {}

// ReturnStatement returns a value from a handler. The value must be an Ok or
// Err wrapper matching the handler's declared Result shape.
type ReturnStatement struct {
	stmt

	Value Expression
}

// NewReturnStatement returns a return statement covering span.
func NewReturnStatement(span types.Span, value Expression) *ReturnStatement {
	return &ReturnStatement{stmt: stmt{node{span}}, Value: value}
}

// AssignStatement assigns a value to one or more targets. Multiple targets
// destructure the elements of an awaited request list.
type AssignStatement struct {
	stmt

	Targets []Expression
	Value   Expression
}

// NewAssignStatement returns an assignment covering span.
func NewAssignStatement(span types.Span, targets []Expression, value Expression) *AssignStatement {
	return &AssignStatement{stmt: stmt{node{span}}, Targets: targets, Value: value}
}

// ExpressionStatement evaluates an expression for its effects.
type ExpressionStatement struct {
	stmt

	Expr Expression
}

// NewExpressionStatement returns an expression statement covering span.
func NewExpressionStatement(span types.Span, e Expression) *ExpressionStatement {
	return &ExpressionStatement{stmt: stmt{node{span}}, Expr: e}
}

// IfStatement branches on a Boolean condition.
type IfStatement struct {
	stmt

	Cond Expression
	Then []Statement
	Else []Statement
}

// NewIfStatement returns an if statement covering span.
func NewIfStatement(span types.Span, cond Expression, then, els []Statement) *IfStatement {
	return &IfStatement{stmt: stmt{node{span}}, Cond: cond, Then: then, Else: els}
}

// WithErrorStatement runs a statement and, when it fails, binds the error
// and runs the handler block instead of propagating.
type WithErrorStatement struct {
	stmt

	Statement Statement

	// ErrorBinding names the variable the error is bound to inside Handler;
	// empty when the handler does not bind it.
	ErrorBinding string
	Handler      []Statement
}

// NewWithErrorStatement returns an error-handling statement covering span.
func NewWithErrorStatement(span types.Span, inner Statement, binding string, handler []Statement) *WithErrorStatement {
	return &WithErrorStatement{stmt: stmt{node{span}}, Statement: inner, ErrorBinding: binding, Handler: handler}
}

// EmitStatement publishes an event from a react or lifecycle handler.
type EmitStatement struct {
	stmt

	EventName string
	Args      []*Argument
}

// NewEmitStatement returns an emit statement covering span.
func NewEmitStatement(span types.Span, eventName string, args []*Argument) *EmitStatement {
	return &EmitStatement{stmt: stmt{node{span}}, EventName: eventName, Args: args}
}

// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package typechecker

import "github.com/go-kairei/kairei/ast"

// Plugin observes the visitor as it walks the AST. Hooks run before and
// after each construct; a non-nil error aborts the current handler the same
// way a type error does. Plugins extend the checker without modifying it.
type Plugin interface {
	BeforeVisitHandler(ctx *Context, h *ast.HandlerDef) error
	AfterVisitHandler(ctx *Context, h *ast.HandlerDef) error
	BeforeVisitStatement(ctx *Context, s ast.Statement) error
	AfterVisitStatement(ctx *Context, s ast.Statement) error
	BeforeVisitExpression(ctx *Context, e ast.Expression) error
	AfterVisitExpression(ctx *Context, e ast.Expression) error
}

// BasePlugin is a no-op [Plugin] for embedding.
type BasePlugin struct{}

var _ Plugin = (*BasePlugin)(nil)

// BeforeVisitHandler implements [Plugin].
func (BasePlugin) BeforeVisitHandler(*Context, *ast.HandlerDef) error { return nil }

// AfterVisitHandler implements [Plugin].
func (BasePlugin) AfterVisitHandler(*Context, *ast.HandlerDef) error { return nil }

// BeforeVisitStatement implements [Plugin].
func (BasePlugin) BeforeVisitStatement(*Context, ast.Statement) error { return nil }

// AfterVisitStatement implements [Plugin].
func (BasePlugin) AfterVisitStatement(*Context, ast.Statement) error { return nil }

// BeforeVisitExpression implements [Plugin].
func (BasePlugin) BeforeVisitExpression(*Context, ast.Expression) error { return nil }

// AfterVisitExpression implements [Plugin].
func (BasePlugin) AfterVisitExpression(*Context, ast.Expression) error { return nil }

// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package typechecker

import (
	"github.com/go-kairei/kairei/ast"
	"github.com/go-kairei/kairei/types"
)

// Context is the ambient state the visitor threads through a check: the
// lexical scope stack, the handler being checked, and its expected return
// type.
type Context struct {
	agent   *ast.MicroAgentDef
	handler *ast.HandlerDef

	// expectedReturn is the handler's declared Result type.
	expectedReturn *types.TypeInfo

	// state maps declared state variable names to their types.
	state map[string]*types.TypeInfo

	// scopes is the lexical scope stack, innermost last.
	scopes []map[string]*types.TypeInfo
}

func newContext(agent *ast.MicroAgentDef) *Context {
	ctx := &Context{
		agent: agent,
		state: make(map[string]*types.TypeInfo),
	}
	if agent.State != nil {
		for name, v := range agent.State.Variables {
			ctx.state[name] = v.Type
		}
	}
	return ctx
}

// enterHandler resets the scope stack for a handler and declares its
// parameters.
func (c *Context) enterHandler(h *ast.HandlerDef) {
	c.handler = h
	c.expectedReturn = h.ReturnType
	c.scopes = []map[string]*types.TypeInfo{make(map[string]*types.TypeInfo)}
	for _, p := range h.Parameters {
		c.declare(p.Name, p.Type)
	}
}

func (c *Context) pushScope() {
	c.scopes = append(c.scopes, make(map[string]*types.TypeInfo))
}

func (c *Context) popScope() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

// declare binds a name in the innermost scope.
func (c *Context) declare(name string, t *types.TypeInfo) {
	c.scopes[len(c.scopes)-1][name] = t
}

// lookup resolves a name through the scope stack, innermost first.
func (c *Context) lookup(name string) (*types.TypeInfo, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if t, ok := c.scopes[i][name]; ok {
			return t, true
		}
	}
	return nil, false
}

// stateType resolves a declared state variable's type.
func (c *Context) stateType(name string) (*types.TypeInfo, bool) {
	t, ok := c.state[name]
	return t, ok
}

func (c *Context) handlerName() string {
	if c.handler == nil {
		return ""
	}
	return c.handler.EventName
}

// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

// Package ast defines the typed abstract syntax tree produced by the parser
// and annotated by the type checker. Every node carries a source span.
package ast

import (
	"github.com/tiendc/go-deepcopy"

	"github.com/go-kairei/kairei/types"
)

// Node is implemented by every AST node.
type Node interface {
	// Span returns the source region the node was parsed from.
	Span() types.Span
}

// node is the common span holder embedded by concrete nodes.
type node struct {
	span types.Span
}

// Span implements [Node].
func (n node) Span() types.Span { return n.span }

// Root is the root of a parsed DSL compilation unit.
type Root struct {
	node

	World  *WorldDef
	Agents []*MicroAgentDef
}

// NewRoot returns a root node covering span.
func NewRoot(span types.Span, world *WorldDef, agents []*MicroAgentDef) *Root {
	return &Root{node: node{span}, World: world, Agents: agents}
}

// WorldDef declares the world block: global policies shared by all agents.
type WorldDef struct {
	node

	Name     string
	Policies []string
	Doc      string
}

// NewWorldDef returns a world definition covering span.
func NewWorldDef(span types.Span, name string, policies []string) *WorldDef {
	return &WorldDef{node: node{span}, Name: name, Policies: policies}
}

// MicroAgentDef declares one micro-agent.
type MicroAgentDef struct {
	node

	Name      string
	Policies  []string
	State     *StateDef
	Lifecycle *LifecycleDef
	Observe   *HandlerBlock
	Answer    *HandlerBlock
	React     *HandlerBlock
	Doc       string
}

// NewMicroAgentDef returns an empty agent definition covering span.
func NewMicroAgentDef(span types.Span, name string) *MicroAgentDef {
	return &MicroAgentDef{node: node{span}, Name: name}
}

// Clone returns a deep copy of the definition. Scale-up instantiates clones
// under derived names.
func (d *MicroAgentDef) Clone() (*MicroAgentDef, error) {
	var out *MicroAgentDef
	if err := deepcopy.Copy(&out, d); err != nil {
		return nil, err
	}
	return out, nil
}

// StateDef declares the agent's mutable state variables.
type StateDef struct {
	node

	// Variables maps variable name to its declaration. Order holds the
	// declaration order for deterministic initialization.
	Variables map[string]*VariableDef
	Order     []string
}

// NewStateDef returns an empty state block covering span.
func NewStateDef(span types.Span) *StateDef {
	return &StateDef{node: node{span}, Variables: make(map[string]*VariableDef)}
}

// Declare adds a variable declaration, preserving order.
func (s *StateDef) Declare(v *VariableDef) {
	if _, ok := s.Variables[v.Name]; !ok {
		s.Order = append(s.Order, v.Name)
	}
	s.Variables[v.Name] = v
}

// VariableDef declares one state variable with its type and optional initial
// expression.
type VariableDef struct {
	node

	Name    string
	Type    *types.TypeInfo
	Initial Expression
}

// NewVariableDef returns a variable declaration covering span.
func NewVariableDef(span types.Span, name string, typ *types.TypeInfo, initial Expression) *VariableDef {
	return &VariableDef{node: node{span}, Name: name, Type: typ, Initial: initial}
}

// LifecycleDef declares the on_init and on_destroy blocks.
type LifecycleDef struct {
	node

	OnInit    []Statement
	OnDestroy []Statement
}

// NewLifecycleDef returns a lifecycle block covering span.
func NewLifecycleDef(span types.Span, onInit, onDestroy []Statement) *LifecycleDef {
	return &LifecycleDef{node: node{span}, OnInit: onInit, OnDestroy: onDestroy}
}

// HandlerKind discriminates the handler blocks of an agent.
type HandlerKind int

const (
	// HandlerObserve reacts to events by returning state updates.
	HandlerObserve HandlerKind = iota
	// HandlerAnswer answers typed requests.
	HandlerAnswer
	// HandlerReact reacts to events by emitting further events.
	HandlerReact
	// HandlerLifecycle runs on_init and on_destroy.
	HandlerLifecycle
)

// String implements [fmt.Stringer].
func (k HandlerKind) String() string {
	switch k {
	case HandlerObserve:
		return "observe"
	case HandlerAnswer:
		return "answer"
	case HandlerReact:
		return "react"
	case HandlerLifecycle:
		return "lifecycle"
	default:
		return "unknown"
	}
}

// ResultType returns the handler return contract for the kind: answer
// handlers return Result<String, Error> unless declared otherwise, observe
// handlers Result<Any, Error>, and react and lifecycle handlers
// Result<Unit, Error>.
func (k HandlerKind) ResultType() *types.TypeInfo {
	switch k {
	case HandlerAnswer:
		return types.Result(types.TypeString, types.TypeError)
	case HandlerObserve:
		return types.Result(types.TypeAny, types.TypeError)
	default:
		return types.Result(types.TypeUnit, types.TypeError)
	}
}

// HandlerBlock groups the handlers of one kind.
type HandlerBlock struct {
	node

	Kind     HandlerKind
	Handlers []*HandlerDef
}

// NewHandlerBlock returns a handler block covering span.
func NewHandlerBlock(span types.Span, kind HandlerKind, handlers []*HandlerDef) *HandlerBlock {
	return &HandlerBlock{node: node{span}, Kind: kind, Handlers: handlers}
}

// HandlerDef is one handler: an event or request type, parameters, a declared
// return type, and a statement block.
type HandlerDef struct {
	node

	Kind HandlerKind

	// EventName is the dispatch key: the observed event type for observe and
	// react handlers, or the request type for answer handlers.
	EventName string

	Parameters []*Parameter

	// ReturnType is the declared return type. When the DSL omits it, the
	// parser fills in the handler kind's contract type.
	ReturnType *types.TypeInfo

	Block []Statement

	Doc string
}

// NewHandlerDef returns a handler definition covering span.
func NewHandlerDef(span types.Span, kind HandlerKind, eventName string) *HandlerDef {
	return &HandlerDef{node: node{span}, Kind: kind, EventName: eventName, ReturnType: kind.ResultType()}
}

// Parameter is one declared handler parameter.
type Parameter struct {
	node

	Name string
	Type *types.TypeInfo
}

// NewParameter returns a parameter covering span.
func NewParameter(span types.Span, name string, typ *types.TypeInfo) *Parameter {
	return &Parameter{node: node{span}, Name: name, Type: typ}
}

// Argument is one argument at a call, request, or emit site. Name is empty
// for positional arguments.
type Argument struct {
	node

	Name  string
	Value Expression
}

// NewArgument returns an argument covering span.
func NewArgument(span types.Span, name string, value Expression) *Argument {
	return &Argument{node: node{span}, Name: name, Value: value}
}

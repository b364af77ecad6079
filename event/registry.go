// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"fmt"
	"sync"

	"github.com/go-kairei/kairei/internal/xmaps"
	"github.com/go-kairei/kairei/types"
)

// ParameterKind discriminates event parameter types.
type ParameterKind int

const (
	// ParamString is a String parameter.
	ParamString ParameterKind = iota
	// ParamInt is an Int parameter.
	ParamInt
	// ParamFloat is a Float parameter.
	ParamFloat
	// ParamBoolean is a Boolean parameter.
	ParamBoolean
	// ParamDuration is a Duration parameter.
	ParamDuration
	// ParamJSON is an opaque JSON parameter.
	ParamJSON
	// ParamAny accepts every value.
	ParamAny
	// ParamCustom is a named custom parameter type.
	ParamCustom
	// ParamList is a homogeneous list parameter.
	ParamList
	// ParamMap is a string-keyed map parameter.
	ParamMap
)

// ParameterType is the schema type of one event parameter.
type ParameterType struct {
	Kind ParameterKind

	// Name is set for ParamCustom.
	Name string

	// Elem is set for ParamList.
	Elem *ParameterType

	// Value is set for ParamMap.
	Value *ParameterType
}

// String implements [fmt.Stringer].
func (p *ParameterType) String() string {
	switch p.Kind {
	case ParamString:
		return "String"
	case ParamInt:
		return "Int"
	case ParamFloat:
		return "Float"
	case ParamBoolean:
		return "Boolean"
	case ParamDuration:
		return "Duration"
	case ParamJSON:
		return "Json"
	case ParamAny:
		return "Any"
	case ParamCustom:
		return p.Name
	case ParamList:
		return fmt.Sprintf("List<%s>", p.Elem)
	case ParamMap:
		return fmt.Sprintf("Map<String, %s>", p.Value)
	default:
		return "unknown"
	}
}

// Matches reports whether v conforms to the parameter type.
func (p *ParameterType) Matches(v types.Value) bool {
	switch p.Kind {
	case ParamAny, ParamCustom:
		return true
	case ParamString:
		_, ok := v.(types.StringValue)
		return ok
	case ParamInt:
		_, ok := v.(types.IntValue)
		return ok
	case ParamFloat:
		switch v.(type) {
		case types.FloatValue, types.IntValue:
			return true
		}
		return false
	case ParamBoolean:
		_, ok := v.(types.BoolValue)
		return ok
	case ParamDuration:
		_, ok := v.(types.DurationValue)
		return ok
	case ParamJSON:
		_, ok := v.(types.JSONValue)
		return ok
	case ParamList:
		list, ok := v.(types.ListValue)
		if !ok {
			return false
		}
		for _, e := range list {
			if !p.Elem.Matches(e) {
				return false
			}
		}
		return true
	case ParamMap:
		m, ok := v.(types.MapValue)
		if !ok {
			return false
		}
		for _, e := range m {
			if !p.Value.Matches(e) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ParameterTypeFor maps a DSL type to an event parameter type.
func ParameterTypeFor(t *types.TypeInfo) *ParameterType {
	if t == nil {
		return &ParameterType{Kind: ParamAny}
	}
	switch t.Kind {
	case types.KindSimple:
		switch t.Name {
		case types.NameString:
			return &ParameterType{Kind: ParamString}
		case types.NameInt:
			return &ParameterType{Kind: ParamInt}
		case types.NameFloat:
			return &ParameterType{Kind: ParamFloat}
		case types.NameBoolean:
			return &ParameterType{Kind: ParamBoolean}
		case types.NameDuration:
			return &ParameterType{Kind: ParamDuration}
		default:
			return &ParameterType{Kind: ParamAny}
		}
	case types.KindArray:
		return &ParameterType{Kind: ParamList, Elem: ParameterTypeFor(t.Elem)}
	case types.KindMap:
		return &ParameterType{Kind: ParamMap, Value: ParameterTypeFor(t.Value)}
	case types.KindCustom:
		return &ParameterType{Kind: ParamCustom, Name: t.Name}
	default:
		return &ParameterType{Kind: ParamAny}
	}
}

// EventInfo is the registered schema of one event type.
type EventInfo struct {
	Type       types.EventType
	Parameters map[string]*ParameterType

	// Strict enables arity and per-parameter validation. Request and
	// Response events carry free-form payloads and are registered
	// non-strict.
	Strict bool
}

// Registry catalogs the known event types with their parameter schemas.
// Built-in events are pre-registered; custom events are registered once.
type Registry struct {
	mu     sync.RWMutex
	events map[string]*EventInfo
}

// NewRegistry returns a registry with every built-in event pre-registered.
func NewRegistry() *Registry {
	r := &Registry{events: make(map[string]*EventInfo)}
	r.registerBuiltins()
	return r
}

func (r *Registry) registerBuiltins() {
	strictAgent := map[string]*ParameterType{"agent_name": {Kind: ParamString}}
	builtins := []*EventInfo{
		{Type: types.Tick(), Parameters: map[string]*ParameterType{"delta_time": {Kind: ParamFloat}}, Strict: true},
		{Type: types.EventType{Kind: types.EventStateUpdated}},
		{Type: types.EventType{Kind: types.EventMessage}},
		{Type: types.EventType{Kind: types.EventRequest}},
		{Type: types.EventType{Kind: types.EventResponse}},
		{Type: types.EventType{Kind: types.EventAgentCreated}, Parameters: strictAgent, Strict: true},
		{Type: types.EventType{Kind: types.EventAgentAdded}, Parameters: strictAgent, Strict: true},
		{Type: types.EventType{Kind: types.EventAgentRemoved}, Parameters: strictAgent, Strict: true},
		{Type: types.EventType{Kind: types.EventAgentStarting}, Parameters: strictAgent, Strict: true},
		{Type: types.EventType{Kind: types.EventAgentStarted}, Parameters: strictAgent, Strict: true},
		{Type: types.EventType{Kind: types.EventAgentStopping}, Parameters: strictAgent, Strict: true},
		{Type: types.EventType{Kind: types.EventAgentStopped}, Parameters: strictAgent, Strict: true},
		{Type: types.EventType{Kind: types.EventSystemStarting}, Parameters: map[string]*ParameterType{}, Strict: true},
		{Type: types.EventType{Kind: types.EventSystemStarted}, Parameters: map[string]*ParameterType{}, Strict: true},
		{Type: types.EventType{Kind: types.EventSystemStopping}, Parameters: map[string]*ParameterType{}, Strict: true},
		{Type: types.EventType{Kind: types.EventSystemStopped}, Parameters: map[string]*ParameterType{}, Strict: true},
		{Type: types.EventType{Kind: types.EventFeatureStatusUpdated}},
		{Type: types.EventType{Kind: types.EventFeatureFailure}},
		{Type: types.EventType{Kind: types.EventMetricsSummary}},
	}
	for _, info := range builtins {
		r.events[info.Type.SchemaKey()] = info
	}
}

// RegisterCustomEvent registers a custom event schema. Registering the same
// name twice fails with a duplicate-registration error.
func (r *Registry) RegisterCustomEvent(name string, parameters map[string]*ParameterType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := types.CustomEvent(name)
	key := t.SchemaKey()
	if xmaps.Contains(r.events, key) {
		return &Error{
			Kind:    KindDuplicateRegistration,
			Message: fmt.Sprintf("event %q is already registered", name),
			Event:   t,
		}
	}
	if parameters == nil {
		parameters = make(map[string]*ParameterType)
	}
	r.events[key] = &EventInfo{Type: t, Parameters: parameters, Strict: true}
	return nil
}

// Lookup returns the schema of an event type.
func (r *Registry) Lookup(t types.EventType) (*EventInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.events[t.SchemaKey()]
	return info, ok
}

// Contains reports whether t is registered.
func (r *Registry) Contains(t types.EventType) bool {
	_, ok := r.Lookup(t)
	return ok
}

// ValidateParameters checks an event against its registered schema: the
// event type must be registered, and for strict schemas the parameter count
// and each parameter's type must agree.
func (r *Registry) ValidateParameters(ev *types.Event) error {
	info, ok := r.Lookup(ev.Type)
	if !ok {
		return &Error{
			Kind:    KindNotRegistered,
			Message: "event type is not registered",
			Event:   ev.Type,
		}
	}
	if !info.Strict {
		return nil
	}
	if len(ev.Parameters) != len(info.Parameters) {
		return &Error{
			Kind:    KindParametersLengthNotMatched,
			Message: fmt.Sprintf("expected %d parameters, got %d", len(info.Parameters), len(ev.Parameters)),
			Event:   ev.Type,
		}
	}
	for name, pt := range info.Parameters {
		v, ok := ev.Parameters[name]
		if !ok {
			return &Error{
				Kind:    KindParametersLengthNotMatched,
				Message: fmt.Sprintf("missing parameter %q", name),
				Event:   ev.Type,
			}
		}
		if !pt.Matches(v) {
			return &Error{
				Kind:    KindTypeMismatch,
				Message: fmt.Sprintf("parameter %q is %s, expected %s", name, v.TypeInfo(), pt),
				Event:   ev.Type,
			}
		}
	}
	return nil
}

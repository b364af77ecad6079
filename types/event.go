// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"fmt"

	"github.com/go-json-experiment/json"
)

// EventKind discriminates the structured variants of [EventType].
type EventKind int

const (
	// EventTick is the periodic tick published by the ticker feature.
	EventTick EventKind = iota
	// EventStateUpdated signals an agent state variable changed.
	EventStateUpdated
	// EventMessage is a free-form message event.
	EventMessage
	// EventRequest is a correlated request to a responder agent.
	EventRequest
	// EventResponse is the correlated response to a request.
	EventResponse
	// EventAgentCreated signals an agent definition was instantiated.
	EventAgentCreated
	// EventAgentAdded signals an agent was registered.
	EventAgentAdded
	// EventAgentRemoved signals an agent was removed from the registry.
	EventAgentRemoved
	// EventAgentStarting signals an agent entered the Starting state.
	EventAgentStarting
	// EventAgentStarted signals an agent entered the Active state.
	EventAgentStarted
	// EventAgentStopping signals an agent entered the Stopping state.
	EventAgentStopping
	// EventAgentStopped signals an agent returned to the Inactive state.
	EventAgentStopped
	// EventSystemStarting signals the system began starting.
	EventSystemStarting
	// EventSystemStarted signals the system finished starting.
	EventSystemStarted
	// EventSystemStopping signals the system began shutting down.
	EventSystemStopping
	// EventSystemStopped signals the system finished shutting down.
	EventSystemStopped
	// EventFeatureStatusUpdated signals a native feature status change.
	EventFeatureStatusUpdated
	// EventFeatureFailure signals a native feature or handler failure.
	EventFeatureFailure
	// EventMetricsSummary carries a periodic metrics snapshot.
	EventMetricsSummary
	// EventCustom is a user-declared event.
	EventCustom
)

var eventKindNames = map[EventKind]string{
	EventTick:                 "Tick",
	EventStateUpdated:         "StateUpdated",
	EventMessage:              "Message",
	EventRequest:              "Request",
	EventResponse:             "Response",
	EventAgentCreated:         "AgentCreated",
	EventAgentAdded:           "AgentAdded",
	EventAgentRemoved:         "AgentRemoved",
	EventAgentStarting:        "AgentStarting",
	EventAgentStarted:         "AgentStarted",
	EventAgentStopping:        "AgentStopping",
	EventAgentStopped:         "AgentStopped",
	EventSystemStarting:       "SystemStarting",
	EventSystemStarted:        "SystemStarted",
	EventSystemStopping:       "SystemStopping",
	EventSystemStopped:        "SystemStopped",
	EventFeatureStatusUpdated: "FeatureStatusUpdated",
	EventFeatureFailure:       "FeatureFailure",
	EventMetricsSummary:       "MetricsSummary",
	EventCustom:               "Custom",
}

// String implements [fmt.Stringer].
func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// EventType identifies an event, including the structured fields some
// variants carry. The zero value is Tick.
type EventType struct {
	Kind EventKind

	// AgentName and StateName are set for StateUpdated.
	AgentName string
	StateName string

	// ContentType is set for Message.
	ContentType string

	// RequestType, Requester, Responder, and RequestID are set for Request
	// and Response.
	RequestType string
	Requester   string
	Responder   string
	RequestID   string

	// Name is set for Custom.
	Name string
}

// Tick returns the Tick event type.
func Tick() EventType { return EventType{Kind: EventTick} }

// StateUpdated returns a StateUpdated event type for the given agent state.
func StateUpdated(agentName, stateName string) EventType {
	return EventType{Kind: EventStateUpdated, AgentName: agentName, StateName: stateName}
}

// Message returns a Message event type with the given content type.
func Message(contentType string) EventType {
	return EventType{Kind: EventMessage, ContentType: contentType}
}

// Request returns a Request event type.
func Request(requestType, requester, responder, requestID string) EventType {
	return EventType{
		Kind:        EventRequest,
		RequestType: requestType,
		Requester:   requester,
		Responder:   responder,
		RequestID:   requestID,
	}
}

// Response returns a Response event type correlated with req.
func Response(req EventType) EventType {
	return EventType{
		Kind:        EventResponse,
		RequestType: req.RequestType,
		Requester:   req.Requester,
		Responder:   req.Responder,
		RequestID:   req.RequestID,
	}
}

// CustomEvent returns a Custom event type with the given name.
func CustomEvent(name string) EventType {
	return EventType{Kind: EventCustom, Name: name}
}

// SchemaKey returns the key the event registry catalogs this event type
// under. Structured fields that vary per emission (agent names, correlation
// ids) do not participate.
func (t EventType) SchemaKey() string {
	switch t.Kind {
	case EventCustom:
		return "Custom:" + t.Name
	default:
		return t.Kind.String()
	}
}

// DispatchKey returns the key runtime agents match handlers against: the
// custom event name for Custom events, the request type for requests and
// responses, and the kind name otherwise.
func (t EventType) DispatchKey() string {
	switch t.Kind {
	case EventCustom:
		return t.Name
	case EventRequest, EventResponse:
		return t.RequestType
	default:
		return t.Kind.String()
	}
}

// String implements [fmt.Stringer].
func (t EventType) String() string {
	switch t.Kind {
	case EventStateUpdated:
		return fmt.Sprintf("StateUpdated{%s.%s}", t.AgentName, t.StateName)
	case EventMessage:
		return fmt.Sprintf("Message{%s}", t.ContentType)
	case EventRequest:
		return fmt.Sprintf("Request{%s %s->%s #%s}", t.RequestType, t.Requester, t.Responder, t.RequestID)
	case EventResponse:
		return fmt.Sprintf("Response{%s %s->%s #%s}", t.RequestType, t.Responder, t.Requester, t.RequestID)
	case EventCustom:
		return t.Name
	default:
		return t.Kind.String()
	}
}

// Event is a single message on the event bus.
type Event struct {
	Type       EventType
	Parameters map[string]Value
}

// NewEvent returns an event of the given type with no parameters.
func NewEvent(t EventType) *Event {
	return &Event{Type: t, Parameters: make(map[string]Value)}
}

// WithParameter sets a parameter and returns the event.
func (e *Event) WithParameter(name string, v Value) *Event {
	if e.Parameters == nil {
		e.Parameters = make(map[string]Value)
	}
	e.Parameters[name] = v
	return e
}

// Parameter returns the named parameter, or nil when absent.
func (e *Event) Parameter(name string) Value {
	if e.Parameters == nil {
		return nil
	}
	return e.Parameters[name]
}

// MarshalJSON implements [json.Marshaler] with the external wire shape:
// {event_type, parameters}, plus the correlation fields for Request and
// Response events.
func (e *Event) MarshalJSON() ([]byte, error) {
	params := make(map[string]any, len(e.Parameters))
	for name, v := range e.Parameters {
		params[name] = ToAny(v)
	}
	out := map[string]any{
		"event_type": e.Type.DispatchKey(),
		"parameters": params,
	}
	switch e.Type.Kind {
	case EventRequest, EventResponse:
		out["kind"] = e.Type.Kind.String()
		out["request_type"] = e.Type.RequestType
		out["requester"] = e.Type.Requester
		out["responder"] = e.Type.Responder
		out["request_id"] = e.Type.RequestID
	case EventStateUpdated:
		out["agent_name"] = e.Type.AgentName
		out["state_name"] = e.Type.StateName
	}
	return json.Marshal(out)
}

// ErrorEvent is published on the bus error topic when a component fails in a
// way observers should see.
type ErrorEvent struct {
	Severity   Severity
	Code       string
	Message    string
	Component  string
	Parameters map[string]Value
}

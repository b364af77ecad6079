// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestSpanText(t *testing.T) {
	source := "micro Greeter {}"
	span := NewSpan(6, 13, 1, 7)
	if got, want := span.Text(source), "Greeter"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
	if span.IsMultiLine() {
		t.Error("single-line span reported multi-line")
	}
}

func TestSpanMerge(t *testing.T) {
	a := NewSpan(0, 5, 1, 1)
	b := Span{Start: 10, End: 20, Line: 2, Column: 3, EndLine: 3, EndColumn: 4}
	merged := a.Merge(b)
	if merged.Start != 0 || merged.End != 20 {
		t.Errorf("Merge() = %+v, want start 0 end 20", merged)
	}
	if !merged.IsMultiLine() {
		t.Error("merged span should be multi-line")
	}
}

func TestTypeInfoEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b *TypeInfo
		want bool
	}{
		{"same simple", TypeInt, Simple("Int"), true},
		{"different simple", TypeInt, TypeFloat, false},
		{"array of same", Array(TypeString), Array(TypeString), true},
		{"array of different", Array(TypeString), Array(TypeInt), false},
		{"result", Result(TypeString, TypeError), Result(TypeString, TypeError), true},
		{"map", MapOf(TypeString, TypeInt), MapOf(TypeString, TypeInt), true},
		{"option", Option(TypeInt), Option(TypeInt), true},
		{"custom", Custom("Trip"), Custom("Trip"), true},
		{"custom vs simple", Custom("Int"), TypeInt, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal(%s, %s) = %t, want %t", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTypeInfoAssignableTo(t *testing.T) {
	tests := []struct {
		name   string
		got    *TypeInfo
		target *TypeInfo
		want   bool
	}{
		{"int to float widening", TypeInt, TypeFloat, true},
		{"float to int", TypeFloat, TypeInt, false},
		{"any accepts all", TypeDuration, TypeAny, true},
		{"null to option", TypeNull, Option(TypeString), true},
		{"elem to option", TypeString, Option(TypeString), true},
		{"array covariance", Array(TypeInt), Array(TypeFloat), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.got.AssignableTo(tt.target); got != tt.want {
				t.Errorf("AssignableTo(%s, %s) = %t, want %t", tt.got, tt.target, got, tt.want)
			}
		})
	}
}

func TestTypeInfoString(t *testing.T) {
	got := Result(Array(TypeString), TypeError).String()
	if want := "Result<[String], Error>"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestValueRoundTrip(t *testing.T) {
	original := MapValue{
		"name":    StringValue("kairei"),
		"count":   IntValue(3),
		"ratio":   FloatValue(0.5),
		"enabled": BoolValue(true),
		"tags":    ListValue{StringValue("a"), StringValue("b")},
		"none":    Null,
	}
	data, err := MarshalValue(original)
	if err != nil {
		t.Fatalf("MarshalValue: %v", err)
	}
	decoded, err := UnmarshalValue(data)
	if err != nil {
		t.Fatalf("UnmarshalValue: %v", err)
	}
	if !Equal(original, decoded) {
		t.Errorf("round trip mismatch:\n original %s\n decoded  %s", original, decoded)
	}
}

func TestValueOf(t *testing.T) {
	tests := []struct {
		in   any
		want Value
	}{
		{"hi", StringValue("hi")},
		{42, IntValue(42)},
		{1.5, FloatValue(1.5)},
		{true, BoolValue(true)},
		{nil, Null},
		{5 * time.Second, DurationValue(5 * time.Second)},
	}
	for _, tt := range tests {
		if got := ValueOf(tt.in); !Equal(got, tt.want) {
			t.Errorf("ValueOf(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestLifecycleTransitions(t *testing.T) {
	legal := []struct{ from, to LifecycleState }{
		{LifecycleInactive, LifecycleStarting},
		{LifecycleStarting, LifecycleActive},
		{LifecycleActive, LifecycleStopping},
		{LifecycleStopping, LifecycleInactive},
		{LifecycleStarting, LifecycleError},
		{LifecycleActive, LifecycleError},
		{LifecycleStopping, LifecycleError},
	}
	for _, tr := range legal {
		if !tr.from.CanTransition(tr.to) {
			t.Errorf("%s -> %s should be legal", tr.from, tr.to)
		}
	}
	illegal := []struct{ from, to LifecycleState }{
		{LifecycleInactive, LifecycleActive},
		{LifecycleInactive, LifecycleError},
		{LifecycleActive, LifecycleInactive},
		{LifecycleError, LifecycleStarting},
		{LifecycleStarting, LifecycleStopping},
	}
	for _, tr := range illegal {
		if tr.from.CanTransition(tr.to) {
			t.Errorf("%s -> %s should be illegal", tr.from, tr.to)
		}
	}
}

func TestEventTypeKeys(t *testing.T) {
	bump := CustomEvent("Bump")
	if got, want := bump.SchemaKey(), "Custom:Bump"; got != want {
		t.Errorf("SchemaKey() = %q, want %q", got, want)
	}
	if got, want := bump.DispatchKey(), "Bump"; got != want {
		t.Errorf("DispatchKey() = %q, want %q", got, want)
	}
	req := Request("Ping", "caller", "E", "id-1")
	if got, want := req.DispatchKey(), "Ping"; got != want {
		t.Errorf("DispatchKey() = %q, want %q", got, want)
	}
	resp := Response(req)
	if resp.RequestID != req.RequestID {
		t.Error("Response must preserve the correlation id")
	}
	if diff := cmp.Diff(req.RequestType, resp.RequestType); diff != "" {
		t.Errorf("request type mismatch (-want +got):\n%s", diff)
	}
}

func TestCollector(t *testing.T) {
	c := &Collector{}
	c.Add(&Diagnostic{Severity: SeverityWarning, Code: "SCHEMA_0001", Message: "w"})
	c.Add(&Diagnostic{Severity: SeverityError, Code: "SCHEMA_0002", Message: "e"})
	c.Add(&Diagnostic{Severity: SeverityCritical, Code: "SCHEMA_0003", Message: "c"})
	if !c.HasErrors() {
		t.Fatal("expected errors")
	}
	if got := len(c.Errors()); got != 2 {
		t.Errorf("Errors() = %d, want 2", got)
	}
	if got := len(c.Warnings()); got != 1 {
		t.Errorf("Warnings() = %d, want 1", got)
	}
	c.Reset()
	if c.HasErrors() || len(c.All()) != 0 {
		t.Error("Reset did not clear the collector")
	}
}

func TestEventWireShape(t *testing.T) {
	ev := NewEvent(Request("Ping", "caller", "E", "id-42")).
		WithParameter("city", StringValue("Kyoto"))
	data, err := ev.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	decoded, err := UnmarshalValue(data)
	if err != nil {
		t.Fatalf("wire shape is not valid JSON: %v", err)
	}
	m, ok := decoded.(MapValue)
	if !ok {
		t.Fatalf("wire shape = %T, want an object", decoded)
	}
	if got := m["event_type"]; !Equal(got, StringValue("Ping")) {
		t.Errorf("event_type = %s", got)
	}
	if got := m["request_id"]; !Equal(got, StringValue("id-42")) {
		t.Errorf("request_id = %s", got)
	}
	params, ok := m["parameters"].(MapValue)
	if !ok || !Equal(params["city"], StringValue("Kyoto")) {
		t.Errorf("parameters = %s", m["parameters"])
	}
}


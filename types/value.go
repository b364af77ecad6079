// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Value is a runtime value flowing through agent state, event parameters, and
// provider requests.
//
// The concrete types are [StringValue], [IntValue], [FloatValue],
// [BoolValue], [DurationValue], [NullValue], [ListValue], [MapValue],
// [DeltaValue], and [JSONValue].
type Value interface {
	fmt.Stringer

	// TypeInfo returns the DSL type of the value.
	TypeInfo() *TypeInfo

	value()
}

// StringValue is a string value.
type StringValue string

// IntValue is a 64-bit integer value.
type IntValue int64

// FloatValue is a 64-bit floating point value.
type FloatValue float64

// BoolValue is a boolean value.
type BoolValue bool

// DurationValue is a duration value.
type DurationValue time.Duration

// NullValue is the null value. It also stands in for Unit results.
type NullValue struct{}

// ListValue is an ordered list of values.
type ListValue []Value

// MapValue is a string-keyed map of values.
type MapValue map[string]Value

// DeltaValue describes a single state change on an agent.
type DeltaValue struct {
	AgentName string
	StateName string
	Old       Value
	New       Value
}

// JSONValue is an opaque, already-encoded JSON payload.
type JSONValue jsontext.Value

func (StringValue) value()   {}
func (IntValue) value()      {}
func (FloatValue) value()    {}
func (BoolValue) value()     {}
func (DurationValue) value() {}
func (NullValue) value()     {}
func (ListValue) value()     {}
func (MapValue) value()      {}
func (DeltaValue) value()    {}
func (JSONValue) value()     {}

// Null is the canonical null value.
var Null = NullValue{}

// TypeInfo implements [Value].
func (StringValue) TypeInfo() *TypeInfo { return TypeString }

// TypeInfo implements [Value].
func (IntValue) TypeInfo() *TypeInfo { return TypeInt }

// TypeInfo implements [Value].
func (FloatValue) TypeInfo() *TypeInfo { return TypeFloat }

// TypeInfo implements [Value].
func (BoolValue) TypeInfo() *TypeInfo { return TypeBoolean }

// TypeInfo implements [Value].
func (DurationValue) TypeInfo() *TypeInfo { return TypeDuration }

// TypeInfo implements [Value].
func (NullValue) TypeInfo() *TypeInfo { return TypeNull }

// TypeInfo implements [Value].
func (v ListValue) TypeInfo() *TypeInfo {
	if len(v) == 0 {
		return Array(TypeAny)
	}
	return Array(v[0].TypeInfo())
}

// TypeInfo implements [Value].
func (v MapValue) TypeInfo() *TypeInfo {
	if len(v) == 0 {
		return MapOf(TypeString, TypeAny)
	}
	for _, e := range v {
		return MapOf(TypeString, e.TypeInfo())
	}
	return MapOf(TypeString, TypeAny)
}

// TypeInfo implements [Value].
func (DeltaValue) TypeInfo() *TypeInfo { return Custom("Delta") }

// TypeInfo implements [Value].
func (JSONValue) TypeInfo() *TypeInfo { return Custom("Json") }

// String implements [fmt.Stringer].
func (v StringValue) String() string { return string(v) }

// String implements [fmt.Stringer].
func (v IntValue) String() string { return fmt.Sprintf("%d", int64(v)) }

// String implements [fmt.Stringer].
func (v FloatValue) String() string { return fmt.Sprintf("%g", float64(v)) }

// String implements [fmt.Stringer].
func (v BoolValue) String() string { return fmt.Sprintf("%t", bool(v)) }

// String implements [fmt.Stringer].
func (v DurationValue) String() string { return time.Duration(v).String() }

// String implements [fmt.Stringer].
func (NullValue) String() string { return "null" }

// String implements [fmt.Stringer].
func (v ListValue) String() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// String implements [fmt.Stringer].
func (v MapValue) String() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, v[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// String implements [fmt.Stringer].
func (v DeltaValue) String() string {
	return fmt.Sprintf("delta(%s.%s: %s -> %s)", v.AgentName, v.StateName, v.Old, v.New)
}

// String implements [fmt.Stringer].
func (v JSONValue) String() string { return string(v) }

// Equal reports deep equality of two values. Int and Float compare unequal
// even when numerically identical; callers wanting widening semantics should
// normalize first.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case ListValue:
		bv, ok := b.(ListValue)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case MapValue:
		bv, ok := b.(MapValue)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, e := range av {
			other, ok := bv[k]
			if !ok || !Equal(e, other) {
				return false
			}
		}
		return true
	case DeltaValue:
		bv, ok := b.(DeltaValue)
		if !ok {
			return false
		}
		return av.AgentName == bv.AgentName && av.StateName == bv.StateName &&
			Equal(av.Old, bv.Old) && Equal(av.New, bv.New)
	case JSONValue:
		bv, ok := b.(JSONValue)
		return ok && string(av) == string(bv)
	default:
		return a == b
	}
}

// ValueOf converts a plain Go value into a [Value]. Unsupported dynamic types
// are encoded through JSON.
func ValueOf(v any) Value {
	switch v := v.(type) {
	case nil:
		return Null
	case Value:
		return v
	case string:
		return StringValue(v)
	case int:
		return IntValue(v)
	case int32:
		return IntValue(v)
	case int64:
		return IntValue(v)
	case float32:
		return FloatValue(v)
	case float64:
		return FloatValue(v)
	case bool:
		return BoolValue(v)
	case time.Duration:
		return DurationValue(v)
	case []any:
		out := make(ListValue, len(v))
		for i, e := range v {
			out[i] = ValueOf(e)
		}
		return out
	case map[string]any:
		out := make(MapValue, len(v))
		for k, e := range v {
			out[k] = ValueOf(e)
		}
		return out
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return StringValue(fmt.Sprintf("%v", v))
		}
		return JSONValue(data)
	}
}

// ToAny converts a [Value] back into a plain Go value suitable for JSON
// encoding.
func ToAny(v Value) any {
	switch v := v.(type) {
	case StringValue:
		return string(v)
	case IntValue:
		return int64(v)
	case FloatValue:
		return float64(v)
	case BoolValue:
		return bool(v)
	case DurationValue:
		return time.Duration(v).String()
	case NullValue:
		return nil
	case ListValue:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = ToAny(e)
		}
		return out
	case MapValue:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = ToAny(e)
		}
		return out
	case DeltaValue:
		return map[string]any{
			"agent": v.AgentName,
			"state": v.StateName,
			"old":   ToAny(v.Old),
			"new":   ToAny(v.New),
		}
	case JSONValue:
		return jsontext.Value(v)
	default:
		return nil
	}
}

// MarshalValue encodes v as JSON wire bytes.
func MarshalValue(v Value) ([]byte, error) {
	return json.Marshal(ToAny(v))
}

// UnmarshalValue decodes JSON wire bytes into a [Value]. Numbers without a
// fraction or exponent decode as Int, so integer parameters survive a round
// trip through the wire shape.
func UnmarshalValue(data []byte) (Value, error) {
	dec := jsontext.NewDecoder(bytes.NewReader(data))
	return decodeValue(dec)
}

func decodeValue(dec *jsontext.Decoder) (Value, error) {
	switch dec.PeekKind() {
	case '{':
		if _, err := dec.ReadToken(); err != nil {
			return nil, err
		}
		out := make(MapValue)
		for dec.PeekKind() != '}' {
			key, err := dec.ReadToken()
			if err != nil {
				return nil, err
			}
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			out[key.String()] = v
		}
		if _, err := dec.ReadToken(); err != nil {
			return nil, err
		}
		return out, nil
	case '[':
		if _, err := dec.ReadToken(); err != nil {
			return nil, err
		}
		out := ListValue{}
		for dec.PeekKind() != ']' {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		if _, err := dec.ReadToken(); err != nil {
			return nil, err
		}
		return out, nil
	default:
		tok, err := dec.ReadToken()
		if err != nil {
			return nil, err
		}
		switch tok.Kind() {
		case 'n':
			return Null, nil
		case 't', 'f':
			return BoolValue(tok.Bool()), nil
		case '"':
			return StringValue(tok.String()), nil
		case '0':
			if raw := tok.String(); strings.ContainsAny(raw, ".eE") {
				return FloatValue(tok.Float()), nil
			}
			return IntValue(tok.Int()), nil
		default:
			return nil, fmt.Errorf("unexpected JSON token kind %q", tok.Kind())
		}
	}
}

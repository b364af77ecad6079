// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"fmt"
	"strings"
)

// TypeKind discriminates the recursive forms of [TypeInfo].
type TypeKind int

const (
	// KindSimple is a named primitive type such as Int or String.
	KindSimple TypeKind = iota
	// KindArray is a homogeneous list type.
	KindArray
	// KindMap is a homogeneous key/value map type.
	KindMap
	// KindResult is a Result type with Ok and Err branches.
	KindResult
	// KindOption is an optional type.
	KindOption
	// KindFunction is a function signature.
	KindFunction
	// KindCustom is a user-declared named type.
	KindCustom
)

// Primitive type names recognized by the type system.
const (
	NameInt      = "Int"
	NameFloat    = "Float"
	NameBoolean  = "Boolean"
	NameString   = "String"
	NameDuration = "Duration"
	NameNull     = "Null"
	NameAny      = "Any"
	NameUnit     = "Unit"
	NameError    = "Error"
)

// TypeInfo is the recursive representation of a DSL type.
type TypeInfo struct {
	Kind TypeKind

	// Name is set for Simple and Custom types.
	Name string

	// Elem is the element type of an Array or Option.
	Elem *TypeInfo

	// Key and Value are set for Map types.
	Key   *TypeInfo
	Value *TypeInfo

	// Ok and Err are set for Result types.
	Ok  *TypeInfo
	Err *TypeInfo

	// Params and Return are set for Function types.
	Params []*TypeInfo
	Return *TypeInfo
}

// Singleton primitives. Callers must treat these as immutable.
var (
	TypeInt      = Simple(NameInt)
	TypeFloat    = Simple(NameFloat)
	TypeBoolean  = Simple(NameBoolean)
	TypeString   = Simple(NameString)
	TypeDuration = Simple(NameDuration)
	TypeNull     = Simple(NameNull)
	TypeAny      = Simple(NameAny)
	TypeUnit     = Simple(NameUnit)
	TypeError    = Simple(NameError)
)

// Simple returns a primitive type with the given name.
func Simple(name string) *TypeInfo {
	return &TypeInfo{Kind: KindSimple, Name: name}
}

// Array returns a list type of elem.
func Array(elem *TypeInfo) *TypeInfo {
	return &TypeInfo{Kind: KindArray, Elem: elem}
}

// MapOf returns a map type from key to value.
func MapOf(key, value *TypeInfo) *TypeInfo {
	return &TypeInfo{Kind: KindMap, Key: key, Value: value}
}

// Result returns a Result type with the given branches.
func Result(ok, err *TypeInfo) *TypeInfo {
	return &TypeInfo{Kind: KindResult, Ok: ok, Err: err}
}

// Option returns an optional type of elem.
func Option(elem *TypeInfo) *TypeInfo {
	return &TypeInfo{Kind: KindOption, Elem: elem}
}

// Function returns a function type.
func Function(params []*TypeInfo, ret *TypeInfo) *TypeInfo {
	return &TypeInfo{Kind: KindFunction, Params: params, Return: ret}
}

// Custom returns a user-declared named type.
func Custom(name string) *TypeInfo {
	return &TypeInfo{Kind: KindCustom, Name: name}
}

// IsNumeric reports whether t is Int or Float.
func (t *TypeInfo) IsNumeric() bool {
	return t != nil && t.Kind == KindSimple && (t.Name == NameInt || t.Name == NameFloat)
}

// IsAny reports whether t is the Any type.
func (t *TypeInfo) IsAny() bool {
	return t != nil && t.Kind == KindSimple && t.Name == NameAny
}

// Equal reports structural equality of two types. Any is equal only to Any;
// use [AssignableTo] for the widening relation the checker applies.
func (t *TypeInfo) Equal(other *TypeInfo) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case KindSimple, KindCustom:
		return t.Name == other.Name
	case KindArray, KindOption:
		return t.Elem.Equal(other.Elem)
	case KindMap:
		return t.Key.Equal(other.Key) && t.Value.Equal(other.Value)
	case KindResult:
		return t.Ok.Equal(other.Ok) && t.Err.Equal(other.Err)
	case KindFunction:
		if len(t.Params) != len(other.Params) {
			return false
		}
		for i := range t.Params {
			if !t.Params[i].Equal(other.Params[i]) {
				return false
			}
		}
		return t.Return.Equal(other.Return)
	}
	return false
}

// AssignableTo reports whether a value of type t may appear where target is
// expected. Any accepts every type, Float accepts Int (numeric widening),
// and Option(T) accepts both T and Null.
func (t *TypeInfo) AssignableTo(target *TypeInfo) bool {
	if t == nil || target == nil {
		return false
	}
	if target.IsAny() {
		return true
	}
	if target.Kind == KindSimple && target.Name == NameFloat && t.Kind == KindSimple && t.Name == NameInt {
		return true
	}
	if target.Kind == KindOption {
		if t.Kind == KindSimple && t.Name == NameNull {
			return true
		}
		if t.AssignableTo(target.Elem) {
			return true
		}
	}
	if target.Kind == KindArray && t.Kind == KindArray {
		return t.Elem.AssignableTo(target.Elem)
	}
	if target.Kind == KindMap && t.Kind == KindMap {
		return t.Key.AssignableTo(target.Key) && t.Value.AssignableTo(target.Value)
	}
	if target.Kind == KindResult && t.Kind == KindResult {
		return t.Ok.AssignableTo(target.Ok) && t.Err.AssignableTo(target.Err)
	}
	return t.Equal(target)
}

// String implements [fmt.Stringer].
func (t *TypeInfo) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindSimple, KindCustom:
		return t.Name
	case KindArray:
		return fmt.Sprintf("[%s]", t.Elem)
	case KindMap:
		return fmt.Sprintf("Map<%s, %s>", t.Key, t.Value)
	case KindResult:
		return fmt.Sprintf("Result<%s, %s>", t.Ok, t.Err)
	case KindOption:
		return fmt.Sprintf("Option<%s>", t.Elem)
	case KindFunction:
		params := make([]string, len(t.Params))
		for i, p := range t.Params {
			params[i] = p.String()
		}
		return fmt.Sprintf("(%s) -> %s", strings.Join(params, ", "), t.Return)
	}
	return "<unknown>"
}

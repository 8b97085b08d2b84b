// Package llsd implements the Linden Lab Structured Data value model: a
// small tagged-union type (undef, bool, int, real, uuid, string, binary,
// uri, array, map) used over the capability HTTP surface and for
// persisted script/session blobs. Grounded on AIStore's own tagged-kind
// dispatch style (the `Msg.Action`-keyed switch in `ais/`), generalized
// from a string-tagged action to a typed value kind.
/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package llsd

import (
	"github.com/google/uuid"
)

// Kind tags the dynamic type carried by a Value.
type Kind int

const (
	KindUndef Kind = iota
	KindBool
	KindInt
	KindReal
	KindUUID
	KindString
	KindBinary
	KindURI
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindUndef:
		return "undef"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindReal:
		return "real"
	case KindUUID:
		return "uuid"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindURI:
		return "uri"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is one LLSD node. Exactly one of the typed fields is meaningful,
// selected by Kind; Array/Map hold nested Values.
type Value struct {
	Kind Kind

	Bool   bool
	Int    int32
	Real   float64
	UUID   uuid.UUID
	Str    string // also backs String, URI
	Binary []byte
	Arr    []Value
	Map    map[string]Value
}

func Undef() Value                  { return Value{Kind: KindUndef} }
func Bool(v bool) Value             { return Value{Kind: KindBool, Bool: v} }
func Int(v int32) Value             { return Value{Kind: KindInt, Int: v} }
func Real(v float64) Value          { return Value{Kind: KindReal, Real: v} }
func UUID(v uuid.UUID) Value        { return Value{Kind: KindUUID, UUID: v} }
func String(v string) Value         { return Value{Kind: KindString, Str: v} }
func Binary(v []byte) Value         { return Value{Kind: KindBinary, Binary: v} }
func URI(v string) Value            { return Value{Kind: KindURI, Str: v} }
func Array(vs ...Value) Value       { return Value{Kind: KindArray, Arr: vs} }
func Map(m map[string]Value) Value  { return Value{Kind: KindMap, Map: m} }

// Equal reports deep structural equality, used by the codec round-trip
// tests. NaN reals are never equal to themselves, matching IEEE 754
// rather than papering over it.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindUndef:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindReal:
		return v.Real == o.Real
	case KindUUID:
		return v.UUID == o.UUID
	case KindString, KindURI:
		return v.Str == o.Str
	case KindBinary:
		return bytesEqual(v.Binary, o.Binary)
	case KindArray:
		if len(v.Arr) != len(o.Arr) {
			return false
		}
		for i := range v.Arr {
			if !v.Arr[i].Equal(o.Arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, a := range v.Map {
			b, ok := o.Map[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Package types defines the core types shared by the Amoskeag binding.
//
// This package contains:
//   - Value: the neutral in-memory representation of data crossing the
//     host/engine boundary
//   - Symbol: the host-side interned-name scalar
//   - Error types: structured errors with codes
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Symbol is the host representation of an interned name. It is a distinct
// scalar kind: JSON has no native equivalent, so the codec round-trips it
// through a reserved single-key object.
type Symbol string

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindSymbol
	KindArray
	KindMap
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	}
	return "invalid"
}

// Entry is a single key/value pair of a map Value. Keys are restricted to
// string or symbol kind; the codec rejects anything else at the boundary.
type Entry struct {
	Key Value
	Val Value
}

// Value is a tagged variant over the data kinds exchanged with the engine:
// null, bool, int, float, string, symbol, array and map. A Value is
// immutable once built.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string // string content or symbol name
	arr  []Value
	obj  []Entry
}

// Null returns the null Value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Int returns an integer Value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float returns a floating-point Value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// String returns a string Value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Sym returns a symbol Value with the given name.
func Sym(name string) Value { return Value{kind: KindSymbol, s: name} }

// Array returns an array Value over the given items.
func Array(items ...Value) Value { return Value{kind: KindArray, arr: items} }

// Map returns a map Value over the given entries, preserving their order.
func Map(entries ...Entry) Value { return Value{kind: KindMap, obj: entries} }

// StringKey builds a map entry with a string key.
func StringKey(key string, val Value) Entry { return Entry{Key: String(key), Val: val} }

// SymbolKey builds a map entry with a symbol key.
func SymbolKey(name string, val Value) Entry { return Entry{Key: Sym(name), Val: val} }

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null Value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean content; false for any other kind.
func (v Value) Bool() bool { return v.b }

// Int returns the integer content; zero for any other kind.
func (v Value) Int() int64 { return v.i }

// Float returns the floating-point content; zero for any other kind.
func (v Value) Float() float64 { return v.f }

// Str returns the string content of a string Value or the name of a symbol
// Value; empty for any other kind.
func (v Value) Str() string { return v.s }

// Items returns the elements of an array Value. The returned slice must not
// be mutated.
func (v Value) Items() []Value { return v.arr }

// Entries returns the entries of a map Value. The returned slice must not
// be mutated.
func (v Value) Entries() []Entry { return v.obj }

// Len returns the number of elements of an array or entries of a map, and
// zero for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindMap:
		return len(v.obj)
	}
	return 0
}

// Equal reports deep equality. Arrays compare elementwise; maps compare as
// ordered sequences of entries. Int and float never compare equal even when
// numerically identical.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString, KindSymbol:
		return v.s == o.s
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for i := range v.obj {
			if !v.obj[i].Key.Equal(o.obj[i].Key) || !v.obj[i].Val.Equal(o.obj[i].Val) {
				return false
			}
		}
		return true
	}
	return false
}

// Interface converts v to its host representation: nil, bool, int64,
// float64, string, Symbol, []any or map[string]any. Symbol map keys are
// flattened to their name, matching the wire format.
func (v Value) Interface() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindSymbol:
		return Symbol(v.s)
	case KindArray:
		out := make([]any, len(v.arr))
		for i, it := range v.arr {
			out[i] = it.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.obj))
		for _, e := range v.obj {
			out[e.Key.Str()] = e.Val.Interface()
		}
		return out
	}
	return nil
}

// String returns a compact debug representation of v.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindSymbol:
		return ":" + v.s
	case KindArray:
		var b strings.Builder
		b.WriteByte('[')
		for i, it := range v.arr {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(it.String())
		}
		b.WriteByte(']')
		return b.String()
	case KindMap:
		var b strings.Builder
		b.WriteByte('{')
		for i, e := range v.obj {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "%s:%s", e.Key.String(), e.Val.String())
		}
		b.WriteByte('}')
		return b.String()
	}
	return "invalid"
}

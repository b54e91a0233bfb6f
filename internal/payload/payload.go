// Package payload models the loosely-structured JSON payloads embedded in
// Arena log frames as a tagged-variant tree.
//
// The upstream format is undocumented and shifts between client versions, so
// every accessor is total: a missing field, wrong shape, or absent payload
// yields a zero Value rather than an error. Classifier handlers are written
// against these accessors and degrade to no-op annotations on any mismatch.
package payload

import (
	"encoding/json"
	"math"
)

// Kind identifies the shape of a Value.
type Kind int

const (
	// Invalid is the zero Kind: absent or unusable data.
	Invalid Kind = iota
	Null
	Bool
	Number
	String
	Array
	Object
)

// Value is one node of a decoded payload tree.
// The zero Value is Invalid and safe to navigate: every accessor on it
// returns another zero Value or a (zero, false) pair.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  map[string]Value
}

// Parse decodes raw JSON into a Value tree.
// An error is returned only for undecodable input; the caller typically tags
// the frame unparsed and moves on.
func Parse(data []byte) (Value, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Value{}, err
	}
	return fromAny(raw), nil
}

func fromAny(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Value{kind: Null}
	case bool:
		return Value{kind: Bool, b: v}
	case float64:
		return Value{kind: Number, n: v}
	case string:
		return Value{kind: String, s: v}
	case []any:
		arr := make([]Value, len(v))
		for i, e := range v {
			arr[i] = fromAny(e)
		}
		return Value{kind: Array, arr: arr}
	case map[string]any:
		obj := make(map[string]Value, len(v))
		for k, e := range v {
			obj[k] = fromAny(e)
		}
		return Value{kind: Object, obj: obj}
	default:
		return Value{}
	}
}

// Kind returns the shape of v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v carries any decoded data.
func (v Value) IsValid() bool { return v.kind != Invalid }

// Get returns the named field of an object Value.
// Returns the zero Value if v is not an object or the field is absent.
func (v Value) Get(key string) Value {
	if v.kind != Object {
		return Value{}
	}
	return v.obj[key]
}

// Path follows a chain of object fields.
func (v Value) Path(keys ...string) Value {
	cur := v
	for _, k := range keys {
		cur = cur.Get(k)
	}
	return cur
}

// At returns the i-th element of an array Value.
func (v Value) At(i int) Value {
	if v.kind != Array || i < 0 || i >= len(v.arr) {
		return Value{}
	}
	return v.arr[i]
}

// Len returns the element count of an array Value, 0 otherwise.
func (v Value) Len() int {
	if v.kind != Array {
		return 0
	}
	return len(v.arr)
}

// Arr returns the elements of an array Value.
// Returns nil for any other kind, so range loops are safe unconditionally.
func (v Value) Arr() []Value {
	if v.kind != Array {
		return nil
	}
	return v.arr
}

// Keys returns the field names of an object Value, nil otherwise.
// Order is unspecified.
func (v Value) Keys() []string {
	if v.kind != Object {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	return keys
}

// Str returns the string form of v.
// Only String values report ok; anything else returns ("", false).
func (v Value) Str() (string, bool) {
	if v.kind != String {
		return "", false
	}
	return v.s, true
}

// StrOr returns the string value or def.
func (v Value) StrOr(def string) string {
	if s, ok := v.Str(); ok {
		return s
	}
	return def
}

// Int returns v as an int.
// Number values are truncated; non-integral or out-of-range floats still
// report ok because upstream encodes all numerics as JSON numbers.
func (v Value) Int() (int, bool) {
	if v.kind != Number {
		return 0, false
	}
	if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
		return 0, false
	}
	return int(v.n), true
}

// IntOr returns the int value or def.
func (v Value) IntOr(def int) int {
	if n, ok := v.Int(); ok {
		return n
	}
	return def
}

// Float returns v as a float64.
func (v Value) Float() (float64, bool) {
	if v.kind != Number {
		return 0, false
	}
	return v.n, true
}

// BoolVal returns v as a bool.
func (v Value) BoolVal() (bool, bool) {
	if v.kind != Bool {
		return false, false
	}
	return v.b, true
}

// IntsOf collects the integer elements of an array Value, skipping any
// element that is not a number.
func (v Value) IntsOf() []int {
	if v.kind != Array {
		return nil
	}
	out := make([]int, 0, len(v.arr))
	for _, e := range v.arr {
		if n, ok := e.Int(); ok {
			out = append(out, n)
		}
	}
	return out
}

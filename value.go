package livetree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// Value is anything that can be stored at a path: one of Null, String,
// Number, Bool or Node.
type Value interface {
	isValue()
}

// Null is the value of an absent path, and a storable value in its own right.
type Null struct{}

// String is a scalar string value.
type String string

// Number is a scalar numeric value. Like JSON, there is one number type,
// so integers are exact only up to MaxSafeInteger; FromGo rejects larger
// ones. NaN and infinities cannot be stored.
type Number float64

// MaxSafeInteger is the largest integer every Number can hold exactly.
const MaxSafeInteger = 1<<53 - 1

// Bool is a scalar boolean value.
type Bool bool

// Node maps keys to child values. Nodes returned by a Store are shared
// between readers and must not be modified; build a new Node instead.
type Node map[string]Value

func (Null) isValue()   {}
func (String) isValue() {}
func (Number) isValue() {}
func (Bool) isValue()   {}
func (Node) isValue()   {}

func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

func (n Node) MarshalJSON() ([]byte, error) {
	if n == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]Value(n))
}

func (n *Node) UnmarshalJSON(b []byte) error {
	v, err := DecodeJSON(b)
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case Node:
		*n = v
	case Null:
		*n = nil
	default:
		return fmt.Errorf("cannot unmarshal %s into Node", kindOf(v))
	}
	return nil
}

// IsNull reports whether v is absent or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

func kindOf(v Value) string {
	switch v.(type) {
	case nil, Null:
		return "null"
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "bool"
	case Node:
		return "node"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Equal reports whether a and b hold the same data. Absent and Null are equal.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	switch a := a.(type) {
	case String:
		b, ok := b.(String)
		return ok && a == b
	case Number:
		b, ok := b.(Number)
		return ok && a == b
	case Bool:
		b, ok := b.(Bool)
		return ok && a == b
	case Node:
		b, ok := b.(Node)
		if !ok || len(a) != len(b) {
			return false
		}
		if sameNode(a, b) {
			return true
		}
		for k, av := range a {
			bv, ok := b[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// sameNode reports whether a and b are the same map, which copy-on-write
// updates leave in place for every untouched subtree.
func sameNode(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

// FromGo converts a Go value, as produced by encoding/json or written
// by hand, into a Value. Slices become Nodes keyed by index, the same
// way realtime databases store arrays.
func FromGo(i interface{}) (Value, error) {
	switch v := i.(type) {
	case nil:
		return Null{}, nil
	case Value:
		if err := Validate(v); err != nil {
			return nil, err
		}
		return v, nil
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		if int64(v) > MaxSafeInteger || int64(v) < -MaxSafeInteger {
			return nil, fmt.Errorf("%d: %w", v, ErrInvalidValue)
		}
		return Number(v), nil
	case int8:
		return Number(v), nil
	case int16:
		return Number(v), nil
	case int32:
		return Number(v), nil
	case int64:
		if v > MaxSafeInteger || v < -MaxSafeInteger {
			return nil, fmt.Errorf("%d: %w", v, ErrInvalidValue)
		}
		return Number(v), nil
	case uint:
		if uint64(v) > MaxSafeInteger {
			return nil, fmt.Errorf("%d: %w", v, ErrInvalidValue)
		}
		return Number(v), nil
	case uint8:
		return Number(v), nil
	case uint16:
		return Number(v), nil
	case uint32:
		return Number(v), nil
	case uint64:
		if v > MaxSafeInteger {
			return nil, fmt.Errorf("%d: %w", v, ErrInvalidValue)
		}
		return Number(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q: %w", v, err)
		}
		return finite(f)
	case map[string]interface{}:
		node := make(Node, len(v))
		for k, child := range v {
			cv, err := FromGo(child)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			node[k] = cv
		}
		return node, nil
	case []interface{}:
		node := make(Node, len(v))
		for idx, child := range v {
			cv, err := FromGo(child)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", idx, err)
			}
			node[strconv.Itoa(idx)] = cv
		}
		return node, nil
	default:
		return nil, fmt.Errorf("don't know how to store %T", i)
	}
}

func finite(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%v: %w", f, ErrInvalidValue)
	}
	return Number(f), nil
}

// Validate reports an error wrapping ErrInvalidValue if v holds a
// number that cannot be stored.
func Validate(v Value) error {
	switch v := v.(type) {
	case Number:
		_, err := finite(float64(v))
		return err
	case Node:
		for k, child := range v {
			if err := Validate(child); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
	}
	return nil
}

// MustFromGo is like FromGo but panics on unsupported types.
func MustFromGo(i interface{}) Value {
	v, err := FromGo(i)
	if err != nil {
		panic(err)
	}
	return v
}

// ToGo converts v into plain Go values: nil, string, float64, bool and
// map[string]interface{}.
func ToGo(v Value) interface{} {
	switch v := v.(type) {
	case String:
		return string(v)
	case Number:
		return float64(v)
	case Bool:
		return bool(v)
	case Node:
		m := make(map[string]interface{}, len(v))
		for k, child := range v {
			m[k] = ToGo(child)
		}
		return m
	default:
		return nil
	}
}

// DecodeJSON parses a JSON document into a Value.
func DecodeJSON(b []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var i interface{}
	if err := dec.Decode(&i); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return FromGo(i)
}

// Keys returns the keys of n in sorted order. Entry IDs generated by Push
// sort in creation order.
func (n Node) Keys() []string {
	keys := make([]string, 0, len(n))
	for k := range n {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

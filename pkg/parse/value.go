package parse

import (
	"encoding/json"
	"fmt"
	"math"
)

// Value is a single JSON-like field value: string, number (integer or
// float), boolean, null, array, or object. Values never carry YAML tag
// information; custom tags are stripped during extraction.
type Value struct {
	v any
}

// Null is the YAML/JSON null value.
var Null = Value{}

// String wraps s as a string value.
func String(s string) Value { return Value{v: s} }

// Int wraps n as an integer value.
func Int(n int64) Value { return Value{v: n} }

// Float wraps f as a floating-point value.
func Float(f float64) Value { return Value{v: f} }

// Bool wraps b as a boolean value.
func Bool(b bool) Value { return Value{v: b} }

// Seq wraps vs as an array value. The slice is used directly, not copied.
func Seq(vs []Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{v: vs}
}

// Map wraps m as an object value. The map is used directly, not copied.
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{v: m}
}

// FromAny converts a plain Go value (as produced by encoding/json, yaml, or
// toml decoding into any) into a Value. Unsupported types are rendered with
// their fmt representation as strings.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null
	case Value:
		return t
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint:
		return fromUint(uint64(t))
	case uint32:
		return Int(int64(t))
	case uint64:
		return fromUint(t)
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case []any:
		out := make([]Value, 0, len(t))
		for _, item := range t {
			out = append(out, FromAny(item))
		}
		return Seq(out)
	case []Value:
		return Seq(t)
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, item := range t {
			out[k] = FromAny(item)
		}
		return Map(out)
	case map[string]Value:
		return Map(t)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

func fromUint(u uint64) Value {
	if u > math.MaxInt64 {
		return Float(float64(u))
	}
	return Int(int64(u))
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.v == nil }

// Str returns the string content and true when the value is a string.
func (v Value) Str() (string, bool) {
	s, ok := v.v.(string)
	return s, ok
}

// Int returns the integer content and true when the value is an integer.
func (v Value) Int() (int64, bool) {
	n, ok := v.v.(int64)
	return n, ok
}

// Float returns the numeric content as a float and true when the value is
// any number.
func (v Value) Float() (float64, bool) {
	switch t := v.v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	}
	return 0, false
}

// Bool returns the boolean content and true when the value is a boolean.
func (v Value) Bool() (bool, bool) {
	b, ok := v.v.(bool)
	return b, ok
}

// Seq returns the elements and true when the value is an array.
func (v Value) Seq() ([]Value, bool) {
	s, ok := v.v.([]Value)
	return s, ok
}

// Map returns the members and true when the value is an object.
func (v Value) Map() (map[string]Value, bool) {
	m, ok := v.v.(map[string]Value)
	return m, ok
}

// Interface returns the value as plain Go data: nil, string, int64, float64,
// bool, []any, or map[string]any, converted recursively. The result shares
// nothing with the Value and is safe to mutate.
func (v Value) Interface() any {
	switch t := v.v.(type) {
	case []Value:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item.Interface()
		}
		return out
	case map[string]Value:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = item.Interface()
		}
		return out
	default:
		return t
	}
}

// MarshalJSON encodes the value as its JSON equivalent.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.v)
}

// String renders scalars as their text and collections as compact JSON.
// It is meant for logs and diagnostics, not serialization.
func (v Value) String() string {
	switch t := v.v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case []Value, map[string]Value:
		b, err := json.Marshal(v.v)
		if err != nil {
			return fmt.Sprintf("%v", v.v)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", t)
	}
}

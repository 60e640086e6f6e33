package value

import (
	"fmt"
	"math"
	"strconv"
)

// Kind is the type tag of a scalar field value.
type Kind string

// Supported value kinds.
const (
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindBool   Kind = "bool"
)

// IsValid checks if the kind is supported.
func (k Kind) IsValid() bool {
	return k == KindString || k == KindNumber || k == KindBool
}

// rank orders kinds when a single field holds values of different kinds.
func (k Kind) rank() int {
	switch k {
	case KindNumber:
		return 0
	case KindString:
		return 1
	case KindBool:
		return 2
	default:
		return 3
	}
}

// Value is a tagged scalar: string, number or bool.
type Value struct {
	kind Kind
	s    string
	n    float64
	b    bool
}

// String creates a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Number creates a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Bool creates a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind returns the value's type tag.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether the value was never set.
func (v Value) IsZero() bool { return v.kind == "" }

// Str returns the string payload.
func (v Value) Str() string { return v.s }

// Num returns the numeric payload.
func (v Value) Num() float64 { return v.n }

// Boolean returns the boolean payload.
func (v Value) Boolean() bool { return v.b }

// Text renders the value as it is stored in a hash field.
func (v Value) Text() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// Interface returns the payload as a plain Go value for JSON encoding.
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.n
	case KindBool:
		return v.b
	case KindString:
		return v.s
	default:
		return nil
	}
}

// Parse decodes the stored text representation of a value of the given kind.
func Parse(kind Kind, raw string) (Value, error) {
	switch kind {
	case KindString:
		return String(raw), nil
	case KindNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse number %q: %w", raw, err)
		}
		return Number(n), nil
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Value{}, fmt.Errorf("parse bool %q: %w", raw, err)
		}
		return Bool(b), nil
	default:
		return Value{}, fmt.Errorf("unknown value kind %q", kind)
	}
}

// FromAny converts a decoded JSON scalar into a Value.
// Objects, arrays and null are rejected.
func FromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Value{}, fmt.Errorf("number must be finite")
		}
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case nil:
		return Value{}, fmt.Errorf("null values are not supported")
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}

// Compare orders two values: numbers numerically, strings lexicographically,
// false before true. Values of different kinds are ordered by kind.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		return cmpInt(a.kind.rank(), b.kind.rank())
	}
	switch a.kind {
	case KindNumber:
		switch {
		case a.n < b.n:
			return -1
		case a.n > b.n:
			return 1
		}
		return 0
	case KindBool:
		if a.b == b.b {
			return 0
		}
		if !a.b {
			return -1
		}
		return 1
	default:
		switch {
		case a.s < b.s:
			return -1
		case a.s > b.s:
			return 1
		}
		return 0
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

package bom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
)

// Kind identifies which variant a [Value] holds.
type Kind uint8

const (
	// KindNumber is a finite float64.
	KindNumber Kind = iota + 1
	// KindBool is a boolean flag.
	KindBool
	// KindText is free-form text.
	KindText
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindText:
		return "text"
	default:
		return "invalid"
	}
}

// Value is a typed attribute scalar: a number, a boolean or a text string.
// The zero Value is invalid; build values with [Number], [Bool] or [Text].
//
// Rollups only ever read the number variant through [Value.Number].
type Value struct {
	kind Kind
	num  float64
	flag bool
	text string
}

// Number returns a numeric Value. Negative zero is normalized to zero.
func Number(f float64) Value {
	if f == 0 {
		f = 0
	}
	return Value{kind: KindNumber, num: f}
}

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Text returns a text Value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds one of the three variants.
func (v Value) IsValid() bool { return v.kind != 0 }

// Number returns the numeric payload and true if v is a number.
func (v Value) Number() (float64, bool) { return v.num, v.kind == KindNumber }

// Bool returns the boolean payload and true if v is a boolean.
func (v Value) Bool() (bool, bool) { return v.flag, v.kind == KindBool }

// Text returns the text payload and true if v is text.
func (v Value) Text() (string, bool) { return v.text, v.kind == KindText }

// Interface returns the payload as float64, bool or string (nil if invalid).
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindBool:
		return v.flag
	case KindText:
		return v.text
	default:
		return nil
	}
}

// Equal reports whether two values hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.flag == o.flag
	case KindText:
		return v.text == o.text
	}
	return true
}

// String formats the payload for display.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindText:
		return v.text
	default:
		return "<invalid>"
	}
}

// MarshalJSON encodes the payload as a native JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.flag)
	case KindText:
		return json.Marshal(v.text)
	default:
		return nil, fmt.Errorf("bom: cannot marshal invalid attribute value")
	}
}

// UnmarshalJSON decodes a JSON number, boolean or string.
// Null, objects and arrays are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("bom: empty attribute value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case 'n':
		return fmt.Errorf("bom: attribute value cannot be null")
	case '{', '[':
		return fmt.Errorf("bom: attribute value must be a number, boolean or string")
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*v = Number(f)
	}
	return nil
}

// ValueOf converts a Go scalar into a Value. Integer and float types become
// numbers; NaN and infinities are rejected.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		if !t.IsValid() {
			return Value{}, fmt.Errorf("bom: invalid attribute value")
		}
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return Text(t), nil
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return finite(f)
	default:
		return Value{}, fmt.Errorf("bom: unsupported attribute type %T", x)
	}
}

func finite(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("bom: attribute number must be finite")
	}
	return Number(f), nil
}

// Attributes maps attribute keys to typed values. A nil map is valid and empty.
type Attributes map[string]Value

// Keys returns the attribute keys in lexicographic order.
func (a Attributes) Keys() []string {
	return slices.Sorted(maps.Keys(a))
}

// Clone returns an independent copy. The clone of nil is an empty map.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	maps.Copy(out, a)
	return out
}

// Merge returns a copy of a overlaid with b.
func (a Attributes) Merge(b Attributes) Attributes {
	out := a.Clone()
	maps.Copy(out, b)
	return out
}

// Equal reports whether a and b hold the same keys and values.
func (a Attributes) Equal(b Attributes) bool {
	return maps.EqualFunc(a, b, Value.Equal)
}

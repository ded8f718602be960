package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Value is a property value. The set of implementations is closed.
type Value interface {
	Kind() ValueKind
	isValue()
}

// ValueKind tags a Value variant.
type ValueKind string

const (
	ValueString ValueKind = "string"
	ValueBool   ValueKind = "bool"
	ValueInt    ValueKind = "int"
	ValueRef    ValueKind = "ref"
	ValueList   ValueKind = "list"
)

// String is a textual property value.
type String string

// Bool is a boolean property value.
type Bool bool

// Int is an integer property value.
type Int int64

// Ref points at another element of the same document.
type Ref struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// List is an ordered collection of values.
type List []Value

func (String) Kind() ValueKind { return ValueString }
func (Bool) Kind() ValueKind   { return ValueBool }
func (Int) Kind() ValueKind    { return ValueInt }
func (Ref) Kind() ValueKind    { return ValueRef }
func (List) Kind() ValueKind   { return ValueList }

func (String) isValue() {}
func (Bool) isValue()   {}
func (Int) isValue()    {}
func (Ref) isValue()    {}
func (List) isValue()   {}

func (r Ref) String() string { return r.Type + ":" + r.ID }

func (l List) String() string {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = FormatValue(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// FormatValue renders v for logs and CLI output.
func FormatValue(v Value) string {
	switch t := v.(type) {
	case nil:
		return "<nil>"
	case String:
		return strconv.Quote(string(t))
	case Bool:
		return strconv.FormatBool(bool(t))
	case Int:
		return strconv.FormatInt(int64(t), 10)
	case Ref:
		return t.String()
	case List:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// CloneValue returns a deep copy of v. Only List values share memory.
func CloneValue(v Value) Value {
	l, ok := v.(List)
	if !ok {
		return v
	}
	out := make(List, len(l))
	for i, item := range l {
		out[i] = CloneValue(item)
	}
	return out
}

// EqualValues reports whether a and b hold the same value.
func EqualValues(a, b Value) bool {
	la, okA := a.(List)
	lb, okB := b.(List)
	if okA || okB {
		if !okA || !okB || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !EqualValues(la[i], lb[i]) {
				return false
			}
		}
		return true
	}
	return a == b
}

type encodedValue struct {
	Kind  ValueKind       `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalValue encodes v with an explicit kind tag.
func MarshalValue(v Value) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("marshal value: nil")
	}
	var (
		raw []byte
		err error
	)
	switch t := v.(type) {
	case List:
		items := make([]json.RawMessage, len(t))
		for i, item := range t {
			if items[i], err = MarshalValue(item); err != nil {
				return nil, err
			}
		}
		raw, err = json.Marshal(items)
	default:
		raw, err = json.Marshal(t)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(encodedValue{Kind: v.Kind(), Value: raw})
}

// UnmarshalValue decodes data produced by MarshalValue.
func UnmarshalValue(data []byte) (Value, error) {
	var enc encodedValue
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	switch enc.Kind {
	case ValueString:
		var s string
		err := json.Unmarshal(enc.Value, &s)
		return String(s), err
	case ValueBool:
		var b bool
		err := json.Unmarshal(enc.Value, &b)
		return Bool(b), err
	case ValueInt:
		var n int64
		err := json.Unmarshal(enc.Value, &n)
		return Int(n), err
	case ValueRef:
		var r Ref
		err := json.Unmarshal(enc.Value, &r)
		return r, err
	case ValueList:
		var items []json.RawMessage
		if err := json.Unmarshal(enc.Value, &items); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		out := make(List, 0, len(items))
		for _, item := range items {
			v, err := UnmarshalValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("decode value: unknown kind %q", enc.Kind)
	}
}

// PropertyMap is a JSON-friendly property set used by snapshots.
type PropertyMap map[string]Value

// MarshalJSON encodes every value with its kind tag.
func (m PropertyMap) MarshalJSON() ([]byte, error) {
	raw := make(map[string]json.RawMessage, len(m))
	for name, v := range m {
		data, err := MarshalValue(v)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", name, err)
		}
		raw[name] = data
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes values written by MarshalJSON.
func (m *PropertyMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(PropertyMap, len(raw))
	for name, item := range raw {
		v, err := UnmarshalValue(item)
		if err != nil {
			return fmt.Errorf("property %s: %w", name, err)
		}
		out[name] = v
	}
	*m = out
	return nil
}

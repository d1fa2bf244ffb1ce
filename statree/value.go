// Package statree is the generic value tree that every telemetry snapshot is
// converted into before being queried. The tree is schema-free: the resolver
// walks it by string comparison only and never learns concrete field names.
//
// Objects are ordered — fields marshal in the order they were appended, and
// that order is what callers see when they retrieve a whole object without an
// explicit field selection.
package statree

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Kind discriminates the Value union.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindText
	KindObject
	KindArray
)

// IdentKey is the designated identifier field inside array-element objects.
// Array descent by name matches this field against the path segment.
const IdentKey = "name"

// Field is a single entry of an ordered object.
type Field struct {
	Key   string
	Value Value
}

// F is shorthand for building a Field.
func F(key string, v Value) Field { return Field{Key: key, Value: v} }

// Value is one node of the tree: a scalar, an ordered object, or an array.
// Values are immutable by convention — constructors build them and nothing
// mutates them after a snapshot is published.
type Value struct {
	kind   Kind
	b      bool
	i      int64
	f      float64
	s      string
	fields []Field
	elems  []Value
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Int wraps an integer. Integers render without a decimal point.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float wraps a float. Floats marshal at 32-bit precision so that probe
// values like 556.8 do not grow float64 artifacts on the wire.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Text wraps a string.
func Text(v string) Value { return Value{kind: KindText, s: v} }

// Object builds an ordered object from fields, preserving their order.
func Object(fields ...Field) Value {
	return Value{kind: KindObject, fields: fields}
}

// Array builds an array from elems, preserving their order.
func Array(elems ...Value) Value {
	return Value{kind: KindArray, elems: elems}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// Get looks up a key in an object. Returns false for missing keys and for
// non-object values.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Fields returns the ordered fields of an object, nil otherwise.
func (v Value) Fields() []Field {
	if v.kind != KindObject {
		return nil
	}
	return v.fields
}

// Elems returns the elements of an array, nil otherwise.
func (v Value) Elems() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.elems
}

// Equal reports structural equality, including field order.
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
	case KindText:
		return v.s == o.s
	case KindObject:
		if len(v.fields) != len(o.fields) {
			return false
		}
		for i := range v.fields {
			if v.fields[i].Key != o.fields[i].Key {
				return false
			}
			if !v.fields[i].Value.Equal(o.fields[i].Value) {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.elems) != len(o.elems) {
			return false
		}
		for i := range v.elems {
			if !v.elems[i].Equal(o.elems[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON renders the value with object fields in insertion order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.appendJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// String returns the JSON rendering, for logs and test failure messages.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return "<invalid>"
	}
	return string(b)
}

func (v Value) appendJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		f := v.f
		if math.IsNaN(f) || math.IsInf(f, 0) {
			f = 0
		}
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 32))
	case KindText:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindObject:
		buf.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := f.Value.appendJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case KindArray:
		buf.WriteByte('[')
		for i, el := range v.elems {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := el.appendJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	}
	return nil
}

// ident returns the element's identifier field as text, if present.
func (v Value) ident() (string, bool) {
	id, ok := v.Get(IdentKey)
	if !ok || id.kind != KindText {
		return "", false
	}
	return id.s, true
}

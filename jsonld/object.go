package jsonld

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Object is an insertion-ordered string-keyed JSON object. Documents and
// sub-shape objects are Objects so that output key order follows the
// mapping config's declaration order exactly, independent of Go map
// iteration order.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{values: map[string]any{}}
}

// Set stores value under key, appending the key to the order on first set.
func (o *Object) Set(key string, value any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}

	o.values[key] = value
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]

	return v, ok
}

// Keys returns the keys in insertion order. Callers must not modify the
// returned slice.
func (o *Object) Keys() []string { return o.keys }

// Len returns the number of keys.
func (o *Object) Len() int { return len(o.keys) }

// Clone returns a deep copy of o. Nested Objects, slices, and maps are
// copied recursively; scalars are shared.
func (o *Object) Clone() *Object {
	out := NewObject()
	for _, k := range o.keys {
		out.Set(k, cloneValue(o.values[k]))
	}

	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case *Object:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}

		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}

		return out
	default:
		return v
	}
}

// MarshalJSON renders the object with keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}

		buf.Write(kb)
		buf.WriteByte(':')

		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}

		buf.Write(vb)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// TypedLiteral is a JSON-LD typed literal, rendered as the two-key object
// {"@value": ..., "@type": ...}.
type TypedLiteral struct {
	Value string
	Type  string
}

// MarshalJSON renders the literal with @value before @type.
func (t TypedLiteral) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(`{"@value":`)

	vb, err := json.Marshal(t.Value)
	if err != nil {
		return nil, err
	}

	buf.Write(vb)
	buf.WriteString(`,"@type":`)

	tb, err := json.Marshal(t.Type)
	if err != nil {
		return nil, err
	}

	buf.Write(tb)
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// Ref is a JSON-LD node reference, rendered as {"@id": ...}.
type Ref struct {
	ID string
}

// MarshalJSON renders the reference.
func (r Ref) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(`{"@id":`)

	vb, err := json.Marshal(r.ID)
	if err != nil {
		return nil, err
	}

	buf.Write(vb)
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// Package fields parses "key: value" lines out of extracted document text
// and guarantees the canonical invoice fields are present.
package fields

import (
	"bytes"
	"encoding/json"
	"iter"
)

// Field is a single extracted key/value pair.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Fields is an insertion-ordered mapping of field name to value.
// Setting an existing key overwrites its value and keeps its original position.
// The zero value is ready to use.
type Fields struct {
	keys   []string
	values map[string]string
}

// New returns an empty Fields.
func New() *Fields {
	return &Fields{values: make(map[string]string)}
}

// Set stores value under key.
func (f *Fields) Set(key, value string) {
	if f.values == nil {
		f.values = make(map[string]string)
	}
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

// Get returns the value stored under key.
func (f *Fields) Get(key string) (string, bool) {
	if f == nil {
		return "", false
	}
	v, ok := f.values[key]
	return v, ok
}

func (f *Fields) Has(key string) bool {
	_, ok := f.Get(key)
	return ok
}

// Len returns the number of keys.
func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

// Keys returns the keys in insertion order.
func (f *Fields) Keys() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// All iterates key/value pairs in insertion order.
func (f *Fields) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if f == nil {
			return
		}
		for _, k := range f.keys {
			if !yield(k, f.values[k]) {
				return
			}
		}
	}
}

// Pairs returns the fields as an ordered slice.
func (f *Fields) Pairs() []Field {
	out := make([]Field, 0, f.Len())
	for k, v := range f.All() {
		out = append(out, Field{Key: k, Value: v})
	}
	return out
}

// Clone returns an independent copy.
func (f *Fields) Clone() *Fields {
	c := New()
	for k, v := range f.All() {
		c.Set(k, v)
	}
	return c
}

// MarshalJSON encodes the fields as a JSON object, preserving key order.
func (f *Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	i := 0
	for k, v := range f.All() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		i++
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Package record models a single dataset row as an ordered list of typed
// fields and implements the rule that picks one text value out of it.
//
// Field order is significant: the fallback rule looks for the first
// string-valued field, so a Record keeps fields in the order the provider
// delivered them instead of using a Go map.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindNested
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindNested:
		return "nested"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a tagged union over the JSON value shapes a row cell can take.
//
// Numbers are kept as their literal text (json.Number) so nothing is lost to
// float64 conversion. Objects and arrays are kept as raw JSON.
type Value struct {
	kind Kind
	str  string
	b    bool
	raw  json.RawMessage
}

func String(s string) Value      { return Value{kind: KindString, str: s} }
func Number(n json.Number) Value { return Value{kind: KindNumber, str: string(n)} }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Null() Value                { return Value{kind: KindNull} }

// Nested wraps an object or array. raw is copied.
func Nested(raw json.RawMessage) Value {
	return Value{kind: KindNested, raw: append(json.RawMessage(nil), raw...)}
}

func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload and true only for KindString.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// String renders the value for diagnostics (probe output, logs).
// Strings are returned unquoted; everything else uses its JSON text.
func (v Value) String() string {
	switch v.kind {
	case KindString, KindNumber:
		return v.str
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNested:
		return string(v.raw)
	default:
		return "null"
	}
}

// Field is one named cell of a Record.
type Field struct {
	Name  string
	Value Value
}

// Record is an ordered set of uniquely named fields.
type Record struct {
	fields []Field
}

// New builds a Record from fields in the given order. A repeated name
// overwrites the earlier value but keeps the earlier position.
func New(fields ...Field) Record {
	var r Record
	for _, f := range fields {
		r.set(f.Name, f.Value)
	}
	return r
}

func (r *Record) set(name string, v Value) {
	for i := range r.fields {
		if r.fields[i].Name == name {
			r.fields[i].Value = v
			return
		}
	}
	r.fields = append(r.fields, Field{Name: name, Value: v})
}

// Get returns the value of the named field.
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Fields returns the fields in record order. The slice must not be modified.
func (r Record) Fields() []Field { return r.fields }

func (r Record) Len() int { return len(r.fields) }

// Decode parses a JSON object into a Record, keeping key order.
func Decode(data []byte) (Record, error) {
	var r Record
	if err := r.UnmarshalJSON(data); err != nil {
		return Record{}, err
	}
	return r, nil
}

// UnmarshalJSON implements json.Unmarshaler so a Record can sit directly in
// API response structs.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("record: read start: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record: expected object, got %v", tok)
	}

	out := Record{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("record: read key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("record: unexpected key token %T", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("record: decode field %q: %w", key, err)
		}
		v, err := valueFromRaw(raw)
		if err != nil {
			return fmt.Errorf("record: field %q: %w", key, err)
		}
		out.set(key, v)
	}

	if end, err := dec.Token(); err != nil {
		return fmt.Errorf("record: read end: %w", err)
	} else if end != json.Delim('}') {
		return fmt.Errorf("record: expected object end '}', got %v", end)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("record: trailing data after object")
	}

	*r = out
	return nil
}

func valueFromRaw(raw json.RawMessage) (Value, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Value{}, fmt.Errorf("empty value")
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Value{}, err
		}
		return String(s), nil
	case '{', '[':
		return Nested(trimmed), nil
	case 't':
		return Bool(true), nil
	case 'f':
		return Bool(false), nil
	case 'n':
		return Null(), nil
	default:
		return Number(json.Number(trimmed)), nil
	}
}

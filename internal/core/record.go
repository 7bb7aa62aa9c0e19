package core

import (
	"bytes"
	"encoding/json"
)

// Record is one parameter set derived from a tabular data row.
//
// Field order follows the header of the source it was read from. Every header
// field is present; missing cells are stored as "". A Record is immutable, so
// it can be shared by concurrently running invocations.
type Record struct {
	index  int
	fields []string
	values map[string]string
}

// NewRecord builds a record for data row index (1-based, header excluded).
// values is aligned with fields; short value slices are padded with "".
func NewRecord(index int, fields []string, values []string) Record {
	m := make(map[string]string, len(fields))
	for i, f := range fields {
		if i < len(values) {
			m[f] = values[i]
		} else {
			m[f] = ""
		}
	}
	return Record{index: index, fields: fields, values: m}
}

// Index returns the 1-based data row number this record was built from.
func (r Record) Index() int { return r.index }

// Len returns the number of fields.
func (r Record) Len() int { return len(r.fields) }

// Fields returns the field names in header order.
func (r Record) Fields() []string {
	out := make([]string, len(r.fields))
	copy(out, r.fields)
	return out
}

// Get returns the value of a field and whether the field exists.
func (r Record) Get(name string) (string, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Value returns the value of a field, or "" when the field does not exist.
func (r Record) Value(name string) string {
	return r.values[name]
}

// Map returns a copy of the record as a plain map.
func (r Record) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// With returns a copy of the record with field name set to value. A field
// that is not part of the record is appended after the existing ones.
func (r Record) With(name, value string) Record {
	fields := r.fields
	if _, exists := r.values[name]; !exists {
		fields = append(r.Fields(), name)
	}
	values := r.Map()
	values[name] = value
	return Record{index: r.index, fields: fields, values: values}
}

// MarshalJSON encodes the record as a JSON object that keeps header order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.values[f])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

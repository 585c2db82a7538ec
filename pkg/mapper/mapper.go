// Package mapper renders committed rows as JSON request bodies, the output
// direction of a REST connector. Each entry of a RequestMapper names an
// output key and the Scope that computes its value from a row; keys keep
// their declaration order.
package mapper

import (
	"bytes"
	"time"

	"github.com/ajitpratap0/nebula-restclient/pkg/columnar"
	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
	"github.com/ajitpratap0/nebula-restclient/pkg/json"
	"github.com/ajitpratap0/nebula-restclient/pkg/schema"
	"github.com/ajitpratap0/nebula-restclient/pkg/timestamp"
)

// Scope computes one output value from a row. A nil value renders as null.
type Scope interface {
	Value(row columnar.Row) (interface{}, error)
}

// ScopeFunc adapts a function to Scope
type ScopeFunc func(row columnar.Row) (interface{}, error)

// Value calls f(row)
func (f ScopeFunc) Value(row columnar.Row) (interface{}, error) {
	return f(row)
}

// Column copies the named column. JSON columns are embedded as JSON.
func Column(name string) Scope {
	return ScopeFunc(func(row columnar.Row) (interface{}, error) {
		c, ok := row.Schema().Lookup(name)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig, "row has no column %q", name)
		}
		v := row.Value(c.Index)
		if s, isString := v.(string); isString && c.Type == schema.TypeJSON {
			return json.RawMessage(s), nil
		}
		return v, nil
	})
}

// Integer computes an integer from the row
func Integer(fn func(row columnar.Row) int64) Scope {
	return ScopeFunc(func(row columnar.Row) (interface{}, error) {
		return fn(row), nil
	})
}

// Constant always yields v
func Constant(v interface{}) Scope {
	return ScopeFunc(func(columnar.Row) (interface{}, error) {
		return v, nil
	})
}

// Entry is one key of the output object
type Entry struct {
	Key   string
	Scope Scope
}

// Object nests entries under a key
func Object(entries ...Entry) Scope {
	return &objectScope{entries: entries}
}

type objectScope struct {
	entries []Entry
}

func (o *objectScope) Value(row columnar.Row) (interface{}, error) {
	obj := make(object, 0, len(o.entries))
	for _, e := range o.entries {
		v, err := e.Scope.Value(row)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeData, "cannot compute %q", e.Key)
		}
		obj = append(obj, field{key: e.Key, value: v})
	}
	return obj, nil
}

type field struct {
	key   string
	value interface{}
}

// object is an ordered JSON object
type object []field

// RequestMapper renders rows as JSON objects
type RequestMapper struct {
	root      objectScope
	formatter *timestamp.Formatter
	omitNulls bool
}

// Option configures a RequestMapper
type Option func(*RequestMapper)

// WithFormatter sets how timestamps render; the default is
// %Y-%m-%dT%H:%M:%S.%L%z in UTC
func WithFormatter(f *timestamp.Formatter) Option {
	return func(m *RequestMapper) { m.formatter = f }
}

// OmitNulls drops keys whose value is null instead of rendering null
func OmitNulls(omit bool) Option {
	return func(m *RequestMapper) { m.omitNulls = omit }
}

// New builds a mapper from entries
func New(entries []Entry, opts ...Option) *RequestMapper {
	m := &RequestMapper{
		root:      objectScope{entries: entries},
		formatter: timestamp.MustNew(timestamp.DefaultOutputPattern, ""),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ForSchema maps every column of s under its own name
func ForSchema(s *schema.Schema, opts ...Option) *RequestMapper {
	entries := make([]Entry, 0, s.Len())
	for _, c := range s.Columns() {
		entries = append(entries, Entry{Key: c.Name, Scope: Column(c.Name)})
	}
	return New(entries, opts...)
}

// Map renders one row
func (m *RequestMapper) Map(row columnar.Row) ([]byte, error) {
	buf := json.GetBuffer()
	defer json.PutBuffer(buf)

	if err := m.writeRow(buf, row); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.Bytes()...), nil
}

// MapRows renders rows as a JSON array
func (m *RequestMapper) MapRows(rows []columnar.Row) ([]byte, error) {
	buf := json.GetBuffer()
	defer json.PutBuffer(buf)

	buf.WriteByte('[')
	for i, row := range rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := m.writeRow(buf, row); err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeData, "row %d", i)
		}
	}
	buf.WriteByte(']')
	return append([]byte(nil), buf.Bytes()...), nil
}

// MapStore renders every committed row of store as a JSON array
func (m *RequestMapper) MapStore(store *columnar.Store) ([]byte, error) {
	return m.MapRows(store.Rows())
}

func (m *RequestMapper) writeRow(buf *bytes.Buffer, row columnar.Row) error {
	v, err := m.root.Value(row)
	if err != nil {
		return err
	}
	return m.write(buf, v)
}

func (m *RequestMapper) write(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case object:
		buf.WriteByte('{')
		first := true
		for _, f := range t {
			if f.value == nil && m.omitNulls {
				continue
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			key, err := json.Marshal(f.key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := m.write(buf, f.value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case time.Time:
		v = m.formatter.Format(t)
	}

	out, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "cannot encode value")
	}
	buf.Write(out)
	return nil
}

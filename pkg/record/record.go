// Package record holds the read-only view of one unit of remote data and the
// means to find and coerce values inside it.
//
// A Record is a tree of map[string]interface{}, []interface{}, json.Number,
// string, bool and nil nodes. Paths locate nodes; Values coerce them.
package record

import (
	"fmt"

	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
	"github.com/ajitpratap0/nebula-restclient/pkg/json"
)

// Record is an immutable service record. Importers only read it.
type Record struct {
	root interface{}
}

// Parse decodes one JSON document into a record.
func Parse(data []byte) (*Record, error) {
	v, err := json.Decode(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "malformed record")
	}
	return &Record{root: v}, nil
}

// FromValue builds a record from an already decoded tree. Go numeric types
// are normalised to json.Number so every record behaves like a parsed one.
func FromValue(v interface{}) *Record {
	return &Record{root: normalize(v)}
}

// Root returns the root node
func (r *Record) Root() interface{} {
	return r.root
}

// Get locates expr, a path in ParsePath syntax. Convenience for callers that
// do not keep a compiled Path around.
func (r *Record) Get(expr string) (Value, error) {
	p, err := ParsePath(expr)
	if err != nil {
		return Value{}, err
	}
	return p.Locate(r)
}

// MarshalJSON renders the record as compact JSON
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.root)
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case int:
		return json.Number(fmt.Sprint(t))
	case int32:
		return json.Number(fmt.Sprint(t))
	case int64:
		return json.Number(fmt.Sprint(t))
	case uint64:
		return json.Number(fmt.Sprint(t))
	case float32:
		return json.Number(fmt.Sprint(t))
	case float64:
		return json.Number(fmt.Sprint(t))
	default:
		return v
	}
}

// kindOf names the shape of a node for error messages
func kindOf(node interface{}) string {
	switch node.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", node)
	}
}

// Package schema describes the destination columns a service record is
// imported into.
package schema

import (
	"fmt"
	"strings"
)

// Type is the target type of a column
type Type string

const (
	TypeBoolean   Type = "boolean"
	TypeLong      Type = "long"
	TypeDouble    Type = "double"
	TypeString    Type = "string"
	TypeTimestamp Type = "timestamp"
	// TypeJSON holds any structured value as its compact JSON text
	TypeJSON Type = "json"
)

// ParseType resolves a type name. A few common aliases are accepted.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "boolean", "bool":
		return TypeBoolean, nil
	case "long", "int", "integer", "int64":
		return TypeLong, nil
	case "double", "float", "float64":
		return TypeDouble, nil
	case "string", "text":
		return TypeString, nil
	case "timestamp", "time":
		return TypeTimestamp, nil
	case "json":
		return TypeJSON, nil
	default:
		return "", fmt.Errorf("unknown column type %q", name)
	}
}

// Column is one destination slot of a row
type Column struct {
	Index int
	Name  string
	Type  Type
}

func (c Column) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.Type)
}

// Schema is an ordered, immutable list of columns
type Schema struct {
	columns []Column
	byName  map[string]int
}

// New builds a schema from columns in order, assigning indices.
func New(columns ...Column) (*Schema, error) {
	s := &Schema{
		columns: make([]Column, len(columns)),
		byName:  make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if c.Name == "" {
			return nil, fmt.Errorf("column %d has no name", i)
		}
		if _, dup := s.byName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if _, err := ParseType(string(c.Type)); err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		c.Index = i
		s.columns[i] = c
		s.byName[c.Name] = i
	}
	return s, nil
}

// Builder appends columns fluently
type Builder struct {
	columns []Column
}

// NewBuilder returns an empty schema builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends a column
func (b *Builder) Add(name string, t Type) *Builder {
	b.columns = append(b.columns, Column{Name: name, Type: t})
	return b
}

// Build validates and returns the schema
func (b *Builder) Build() (*Schema, error) {
	return New(b.columns...)
}

// Columns returns a copy of the columns in order
func (s *Schema) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// Len returns the number of columns
func (s *Schema) Len() int {
	return len(s.columns)
}

// Column returns the column at index i
func (s *Schema) Column(i int) Column {
	return s.columns[i]
}

// Lookup finds a column by name
func (s *Schema) Lookup(name string) (Column, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Column{}, false
	}
	return s.columns[i], true
}

package columnar

import (
	"fmt"
	"sync"

	"github.com/ajitpratap0/nebula-restclient/pkg/schema"
)

// Store holds committed rows column by column, in commit order
type Store struct {
	mu       sync.RWMutex
	schema   *schema.Schema
	columns  []Column
	rowCount int
}

// NewStore creates an empty store with one column per schema column
func NewStore(s *schema.Schema) *Store {
	store := &Store{
		schema:  s,
		columns: make([]Column, s.Len()),
	}
	for i, col := range s.Columns() {
		store.columns[i] = newColumn(col.Type)
	}
	return store
}

// Schema returns the schema the store was built for
func (s *Store) Schema() *schema.Schema {
	return s.schema
}

// commit appends one staged row. values[i] nil means null.
func (s *Store) commit(values []interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, col := range s.columns {
		if values[i] == nil {
			col.appendNull()
		} else {
			col.appendValue(values[i])
		}
	}
	s.rowCount++
}

// RowCount returns the number of committed rows
func (s *Store) RowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rowCount
}

// Column returns the column at schema index i
func (s *Store) Column(i int) Column {
	return s.columns[i]
}

// ColumnByName returns the column with the given name
func (s *Store) ColumnByName(name string) (Column, bool) {
	c, ok := s.schema.Lookup(name)
	if !ok {
		return nil, false
	}
	return s.columns[c.Index], true
}

// Row returns a read-only view of committed row i
func (s *Store) Row(i int) (Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < 0 || i >= s.rowCount {
		return Row{}, fmt.Errorf("row %d out of range [0, %d)", i, s.rowCount)
	}
	values := make([]interface{}, len(s.columns))
	for c, col := range s.columns {
		values[c] = col.Get(i)
	}
	return Row{schema: s.schema, values: values}, nil
}

// Rows returns every committed row in commit order
func (s *Store) Rows() []Row {
	n := s.RowCount()
	rows := make([]Row, 0, n)
	for i := 0; i < n; i++ {
		row, _ := s.Row(i)
		rows = append(rows, row)
	}
	return rows
}

// MemoryUsage returns an estimate of the bytes held by the columns
func (s *Store) MemoryUsage() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, col := range s.columns {
		total += col.MemoryUsage()
	}
	return total
}

// Reset drops every committed row, keeping the schema
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, col := range s.columns {
		col.Clear()
	}
	s.rowCount = 0
}

// Row is one committed row. Values are int64, float64, bool, string or
// time.Time, and nil for nulls.
type Row struct {
	schema *schema.Schema
	values []interface{}
}

// Schema returns the row's schema
func (r Row) Schema() *schema.Schema { return r.schema }

// Len returns the number of columns
func (r Row) Len() int { return len(r.values) }

// Value returns the value of column i
func (r Row) Value(i int) interface{} { return r.values[i] }

// IsNull reports whether column i is null
func (r Row) IsNull(i int) bool { return r.values[i] == nil }

// Get returns the value of the named column
func (r Row) Get(name string) (interface{}, bool) {
	c, ok := r.schema.Lookup(name)
	if !ok {
		return nil, false
	}
	return r.values[c.Index], true
}

// Map returns the row keyed by column name
func (r Row) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.values))
	for i, col := range r.schema.Columns() {
		m[col.Name] = r.values[i]
	}
	return m
}

package columnar

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/nebula-restclient/pkg/schema"
)

// PageBuilder is the row-writing surface importers see. Set methods stage a
// value for one column of the current row; AddRecord is the only operation
// that makes a row visible.
type PageBuilder interface {
	SetNull(col schema.Column)
	SetLong(col schema.Column, v int64)
	SetDouble(col schema.Column, v float64)
	SetBoolean(col schema.Column, v bool)
	SetString(col schema.Column, v string)
	SetTimestamp(col schema.Column, v time.Time)
	SetJSON(col schema.Column, v string)
	// AddRecord commits the staged row; unset columns are committed as null.
	AddRecord() error
	// Discard drops the staged row.
	Discard()
}

// Builder stages one row at a time on top of a Store. A Builder is owned by
// a single goroutine.
type Builder struct {
	store  *Store
	staged []interface{}
	err    error
}

// NewBuilder returns a builder committing into store
func NewBuilder(store *Store) *Builder {
	return &Builder{
		store:  store,
		staged: make([]interface{}, store.schema.Len()),
	}
}

// Store returns the store rows are committed to
func (b *Builder) Store() *Store {
	return b.store
}

func (b *Builder) set(col schema.Column, want schema.Type, v interface{}) {
	if col.Index < 0 || col.Index >= len(b.staged) {
		b.fail(fmt.Errorf("column %s is not part of the page schema", col))
		return
	}
	if actual := b.store.schema.Column(col.Index).Type; actual != want {
		b.fail(fmt.Errorf("cannot stage a %s value into column %s of type %s", want, col, actual))
		return
	}
	b.staged[col.Index] = v
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Builder) SetNull(col schema.Column) {
	if col.Index < 0 || col.Index >= len(b.staged) {
		b.fail(fmt.Errorf("column %s is not part of the page schema", col))
		return
	}
	b.staged[col.Index] = nil
}

func (b *Builder) SetLong(col schema.Column, v int64) { b.set(col, schema.TypeLong, v) }

func (b *Builder) SetDouble(col schema.Column, v float64) { b.set(col, schema.TypeDouble, v) }

func (b *Builder) SetBoolean(col schema.Column, v bool) { b.set(col, schema.TypeBoolean, v) }

func (b *Builder) SetString(col schema.Column, v string) { b.set(col, schema.TypeString, v) }

func (b *Builder) SetTimestamp(col schema.Column, v time.Time) {
	b.set(col, schema.TypeTimestamp, v)
}

func (b *Builder) SetJSON(col schema.Column, v string) { b.set(col, schema.TypeJSON, v) }

// AddRecord commits the staged row. A row with a staging error is discarded
// and the error returned.
func (b *Builder) AddRecord() error {
	if err := b.err; err != nil {
		b.Discard()
		return err
	}
	b.store.commit(b.staged)
	b.reset()
	return nil
}

// Discard drops the staged row and any staging error
func (b *Builder) Discard() {
	b.reset()
	b.err = nil
}

func (b *Builder) reset() {
	for i := range b.staged {
		b.staged[i] = nil
	}
}

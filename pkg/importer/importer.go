// Package importer turns service records into rows. Each ValueImporter binds
// one column to one locator and one coercion; a SchemaWriter applies all of
// them to a record and commits the row only when every column succeeded.
package importer

import (
	"fmt"

	"github.com/ajitpratap0/nebula-restclient/pkg/columnar"
	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
	"github.com/ajitpratap0/nebula-restclient/pkg/record"
	"github.com/ajitpratap0/nebula-restclient/pkg/schema"
	"github.com/ajitpratap0/nebula-restclient/pkg/timestamp"
)

// ValueImporter writes one column of the current row
type ValueImporter interface {
	Column() schema.Column
	// ImportInto locates the column's value in rec and stages it into pb.
	// Absent and null values stage a null. Failures come back as *ImportError.
	ImportInto(rec *record.Record, pb columnar.PageBuilder) error
}

// coercion converts a present value and stages it
type coercion func(v record.Value, col schema.Column, pb columnar.PageBuilder) error

type valueImporter struct {
	column  schema.Column
	locator record.Locator
	coerce  coercion
}

func (i *valueImporter) Column() schema.Column {
	return i.column
}

func (i *valueImporter) ImportInto(rec *record.Record, pb columnar.PageBuilder) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newImportError(i.column, errors.Newf(errors.ErrorTypeInternal, "panic: %v", r))
		}
	}()

	v, err := i.locator.Locate(rec)
	if err != nil {
		return newImportError(i.column, err)
	}
	if v.IsMissing() {
		pb.SetNull(i.column)
		return nil
	}
	if err := i.coerce(v, i.column, pb); err != nil {
		return newImportError(i.column, err)
	}
	return nil
}

// Long imports integral numbers
func Long(col schema.Column, loc record.Locator) ValueImporter {
	return &valueImporter{column: col, locator: loc, coerce: func(v record.Value, col schema.Column, pb columnar.PageBuilder) error {
		n, err := v.Long()
		if err != nil {
			return err
		}
		pb.SetLong(col, n)
		return nil
	}}
}

// Double imports numbers as float64
func Double(col schema.Column, loc record.Locator) ValueImporter {
	return &valueImporter{column: col, locator: loc, coerce: func(v record.Value, col schema.Column, pb columnar.PageBuilder) error {
		f, err := v.Double()
		if err != nil {
			return err
		}
		pb.SetDouble(col, f)
		return nil
	}}
}

// Boolean imports JSON true and false
func Boolean(col schema.Column, loc record.Locator) ValueImporter {
	return &valueImporter{column: col, locator: loc, coerce: func(v record.Value, col schema.Column, pb columnar.PageBuilder) error {
		b, err := v.Boolean()
		if err != nil {
			return err
		}
		pb.SetBoolean(col, b)
		return nil
	}}
}

// String imports the textual form of any value
func String(col schema.Column, loc record.Locator) ValueImporter {
	return &valueImporter{column: col, locator: loc, coerce: func(v record.Value, col schema.Column, pb columnar.PageBuilder) error {
		s, err := v.Text()
		if err != nil {
			return err
		}
		pb.SetString(col, s)
		return nil
	}}
}

// JSON imports any value as compact JSON text
func JSON(col schema.Column, loc record.Locator) ValueImporter {
	return &valueImporter{column: col, locator: loc, coerce: func(v record.Value, col schema.Column, pb columnar.PageBuilder) error {
		s, err := v.JSON()
		if err != nil {
			return err
		}
		pb.SetJSON(col, s)
		return nil
	}}
}

// Timestamp imports instants parsed by f
func Timestamp(col schema.Column, loc record.Locator, f *timestamp.Formatter) ValueImporter {
	return &valueImporter{column: col, locator: loc, coerce: func(v record.Value, col schema.Column, pb columnar.PageBuilder) error {
		t, err := v.Timestamp(f)
		if err != nil {
			return err
		}
		pb.SetTimestamp(col, t)
		return nil
	}}
}

// New picks the importer for the column's type. f is only used by
// timestamp columns and defaults to RFC 3339 in UTC.
func New(col schema.Column, loc record.Locator, f *timestamp.Formatter) (ValueImporter, error) {
	if loc == nil {
		return nil, errors.Newf(errors.ErrorTypeConfig, "column %s has no locator", col)
	}
	switch col.Type {
	case schema.TypeLong:
		return Long(col, loc), nil
	case schema.TypeDouble:
		return Double(col, loc), nil
	case schema.TypeBoolean:
		return Boolean(col, loc), nil
	case schema.TypeString:
		return String(col, loc), nil
	case schema.TypeJSON:
		return JSON(col, loc), nil
	case schema.TypeTimestamp:
		if f == nil {
			f = timestamp.MustNew("", "")
		}
		return Timestamp(col, loc, f), nil
	default:
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("no importer for column %s", col))
	}
}

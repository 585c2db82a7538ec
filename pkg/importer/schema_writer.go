package importer

import (
	"sort"

	"github.com/ajitpratap0/nebula-restclient/pkg/columnar"
	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
	"github.com/ajitpratap0/nebula-restclient/pkg/record"
	"github.com/ajitpratap0/nebula-restclient/pkg/schema"
	"github.com/ajitpratap0/nebula-restclient/pkg/timestamp"
)

// SchemaWriter applies a fixed, ordered set of importers to each record
type SchemaWriter struct {
	importers []ValueImporter
}

// NewSchemaWriter orders importers by column index. Two importers for the
// same column are rejected.
func NewSchemaWriter(importers ...ValueImporter) (*SchemaWriter, error) {
	ordered := append([]ValueImporter(nil), importers...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Column().Index < ordered[j].Column().Index
	})
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Column().Index == ordered[i-1].Column().Index {
			return nil, errors.Newf(errors.ErrorTypeConfig, "column %s has more than one importer", ordered[i].Column())
		}
	}
	return &SchemaWriter{importers: ordered}, nil
}

// Binding describes how one column is filled
type Binding struct {
	Column    schema.Column
	Locator   record.Locator
	Formatter *timestamp.Formatter
}

// FromBindings builds an importer per binding and a writer over them
func FromBindings(bindings []Binding) (*SchemaWriter, error) {
	importers := make([]ValueImporter, 0, len(bindings))
	for _, b := range bindings {
		imp, err := New(b.Column, b.Locator, b.Formatter)
		if err != nil {
			return nil, err
		}
		importers = append(importers, imp)
	}
	return NewSchemaWriter(importers...)
}

// Importers returns the importers in column order
func (w *SchemaWriter) Importers() []ValueImporter {
	return append([]ValueImporter(nil), w.importers...)
}

// WriteRecord imports every column of rec, then commits the row. When any
// column fails, the staged row is discarded and a *RowError naming every
// failed column is returned.
func (w *SchemaWriter) WriteRecord(rec *record.Record, pb columnar.PageBuilder) error {
	var failed []*ImportError
	for _, imp := range w.importers {
		if err := imp.ImportInto(rec, pb); err != nil {
			var ie *ImportError
			if !errors.As(err, &ie) {
				ie = newImportError(imp.Column(), err)
			}
			failed = append(failed, ie)
		}
	}

	if len(failed) > 0 {
		pb.Discard()
		return &RowError{Errors: failed}
	}
	if err := pb.AddRecord(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to commit row")
	}
	return nil
}

package importer

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/nebula-restclient/pkg/schema"
)

// ImportError attributes a locator or coercion failure to one column
type ImportError struct {
	Column string
	Type   schema.Type
	Cause  error
}

func newImportError(col schema.Column, cause error) *ImportError {
	return &ImportError{Column: col.Name, Type: col.Type, Cause: cause}
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("failed to import a value for column: %s (%s): %v", e.Column, e.Type, e.Cause)
}

func (e *ImportError) Unwrap() error {
	return e.Cause
}

// RowError reports every column of one record that failed to import. The
// record's row was discarded.
type RowError struct {
	Errors []*ImportError
}

func (e *RowError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d columns failed to import: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the column errors to errors.Is and errors.As
func (e *RowError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		errs[i] = err
	}
	return errs
}

// Columns returns the names of the failed columns in schema order
func (e *RowError) Columns() []string {
	names := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		names[i] = err.Column
	}
	return names
}

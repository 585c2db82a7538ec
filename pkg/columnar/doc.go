// Package columnar is the output buffer rows are imported into.
//
// A Store keeps one typed column per schema column, each with a validity
// bitmap for nulls. Rows enter a Store only through a Builder: importers
// stage values with the Set methods and AddRecord commits the whole row.
// A row that is discarded, or that fails to commit, leaves no trace in the
// columns, so readers never observe a partially written row.
//
// Sealed stores can be read back row by row or exported as an Arrow record.
package columnar

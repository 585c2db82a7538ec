// Package source produces the service records a sub-task imports.
//
// Every source yields records one at a time from Next and returns io.EOF
// once it is drained. Sources are scoped to one sub-task window and are not
// safe for concurrent use.
package source

import (
	"context"
	"io"

	"github.com/ajitpratap0/nebula-restclient/pkg/record"
)

// Source yields service records
type Source interface {
	// Next returns the next record, or io.EOF when there are no more
	Next(ctx context.Context) (*record.Record, error)
	Close() error
}

// SliceSource replays a fixed list of records
type SliceSource struct {
	records []*record.Record
	pos     int
}

// NewSliceSource returns a source over records
func NewSliceSource(records ...*record.Record) *SliceSource {
	return &SliceSource{records: records}
}

func (s *SliceSource) Next(ctx context.Context) (*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

func (s *SliceSource) Close() error { return nil }

// Drain reads src until io.EOF
func Drain(ctx context.Context, src Source) ([]*record.Record, error) {
	var out []*record.Record
	for {
		r, err := src.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
}

// elements splits a located value into records. A missing value is an empty
// page; a non-array value is a single record.
func elements(v record.Value) []*record.Record {
	if v.IsMissing() {
		return nil
	}
	arr, ok := v.Raw().([]interface{})
	if !ok {
		return []*record.Record{record.FromValue(v.Raw())}
	}
	out := make([]*record.Record, len(arr))
	for i, e := range arr {
		out[i] = record.FromValue(e)
	}
	return out
}

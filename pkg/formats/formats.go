// Package formats writes sealed column stores to files as JSON lines, Arrow
// IPC or Avro object containers.
package formats

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ajitpratap0/nebula-restclient/pkg/columnar"
	"github.com/ajitpratap0/nebula-restclient/pkg/compression"
	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
	"github.com/ajitpratap0/nebula-restclient/pkg/schema"
	"github.com/ajitpratap0/nebula-restclient/pkg/timestamp"
)

// Format represents an output file format
type Format string

const (
	JSONL Format = "jsonl"
	Arrow Format = "arrow"
	Avro  Format = "avro"
	// None counts rows and writes nothing
	None Format = "none"
)

// Extension returns the file suffix for f
func (f Format) Extension() string {
	switch f {
	case JSONL:
		return ".jsonl"
	case Arrow:
		return ".arrow"
	case Avro:
		return ".avro"
	default:
		return ""
	}
}

// Writer appends stores to an output
type Writer interface {
	// Write appends every committed row of store
	Write(store *columnar.Store) error
	// Close flushes buffered data. It does not close the underlying writer.
	Close() error
	Format() Format
	RecordsWritten() int64
	BytesWritten() int64
}

// WriterConfig configures writers
type WriterConfig struct {
	Format      Format
	Schema      *schema.Schema
	Compression compression.Algorithm
	// OmitNulls drops null keys from JSON lines
	OmitNulls bool
	// Formatter renders JSON lines timestamps
	Formatter *timestamp.Formatter
	// Name is the Avro record name
	Name string
}

// NewWriter returns the writer for cfg.Format
func NewWriter(w io.Writer, cfg WriterConfig) (Writer, error) {
	if cfg.Schema == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "schema is required for an output writer")
	}
	counter := &countingWriter{w: w}
	switch cfg.Format {
	case JSONL, "":
		cfg.Format = JSONL
		return newJSONLWriter(counter, cfg)
	case Arrow:
		return newArrowWriter(counter, cfg)
	case Avro:
		return newAvroWriter(counter, cfg)
	case None:
		return &discardWriter{}, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported output format: %s", cfg.Format)
	}
}

// streamCompress wraps w with the stream codec for alg
func streamCompress(w io.Writer, alg compression.Algorithm) (io.WriteCloser, error) {
	c, err := compression.NewCompressor(alg, compression.Default)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "output compression")
	}
	return c.NewWriter(w)
}

type countingWriter struct {
	w io.Writer
	n atomic.Int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(int64(n))
	return n, err
}

type discardWriter struct {
	records atomic.Int64
}

func (d *discardWriter) Write(store *columnar.Store) error {
	d.records.Add(int64(store.RowCount()))
	return nil
}

func (d *discardWriter) Close() error          { return nil }
func (d *discardWriter) Format() Format        { return None }
func (d *discardWriter) RecordsWritten() int64 { return d.records.Load() }
func (d *discardWriter) BytesWritten() int64   { return 0 }

func writeError(f Format, err error) error {
	return errors.Wrap(err, errors.ErrorTypeFile, fmt.Sprintf("failed to write %s output", f))
}

// nativeCodec reports whether alg is applied inside the container format
func nativeCodec(f Format, alg compression.Algorithm) bool {
	switch f {
	case Arrow:
		return alg == compression.Zstd || alg == compression.LZ4
	case Avro:
		return alg == compression.Snappy
	default:
		return false
	}
}

// FileExtension is the suffix of a file written as f with alg. Codecs applied
// inside the container add nothing.
func FileExtension(f Format, alg compression.Algorithm) string {
	ext := f.Extension()
	if alg == "" || alg == compression.None || nativeCodec(f, alg) {
		return ext
	}
	c, err := compression.NewCompressor(alg, compression.Default)
	if err != nil {
		return ext
	}
	return ext + c.Extension()
}

package source

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-restclient/pkg/compression"
	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
	"github.com/ajitpratap0/nebula-restclient/pkg/json"
	"github.com/ajitpratap0/nebula-restclient/pkg/record"
	"github.com/ajitpratap0/nebula-restclient/pkg/splitter"
	"github.com/ajitpratap0/nebula-restclient/pkg/timestamp"
)

// FileOptions configures a FileSource
type FileOptions struct {
	// RecordsPath locates the records inside each top-level object. An
	// object that lacks the path is itself a record.
	RecordsPath record.Path
	// TimestampPath, when set, keeps only records whose timestamp falls in
	// Window. Records without a readable timestamp are dropped.
	TimestampPath *record.Path
	Formatter     *timestamp.Formatter
	Window        splitter.Window
	Logger        *zap.Logger
}

// FileSource reads a JSON array, a JSON document or JSON lines from a file.
// Files ending in .gz, .zst, .lz4, .s2 or .snappy are decompressed.
type FileSource struct {
	path    string
	file    *os.File
	decoder interface{ Decode(v interface{}) error }
	pending []*record.Record
	opts    FileOptions
	dropped int
}

var extensions = map[string]compression.Algorithm{
	".gz":     compression.Gzip,
	".zst":    compression.Zstd,
	".lz4":    compression.LZ4,
	".s2":     compression.S2,
	".snappy": compression.Snappy,
}

// OpenFile opens path for reading
func OpenFile(path string, opts FileOptions) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot open source file").WithDetail("path", path)
	}

	var r io.Reader = f
	if alg, ok := extensions[filepath.Ext(path)]; ok {
		c, err := compression.NewCompressor(alg, compression.Default)
		if err == nil {
			r, err = c.NewReader(f)
		}
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot decompress source file").WithDetail("path", path)
		}
	}
	if opts.Formatter == nil {
		opts.Formatter = timestamp.MustNew("rfc3339", "")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &FileSource{
		path:    path,
		file:    f,
		decoder: json.NewDecoder(bufio.NewReader(r)),
		opts:    opts,
	}, nil
}

func (s *FileSource) Next(ctx context.Context) (*record.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(s.pending) == 0 {
			if err := s.fill(); err != nil {
				return nil, err
			}
			continue
		}
		r := s.pending[0]
		s.pending = s.pending[1:]
		if s.inWindow(r) {
			return r, nil
		}
		s.dropped++
	}
}

// fill decodes the next top-level value. A top-level array or a document
// matched by RecordsPath expands into many records.
func (s *FileSource) fill() error {
	var v interface{}
	if err := s.decoder.Decode(&v); err != nil {
		if err == io.EOF {
			if s.dropped > 0 {
				s.opts.Logger.Debug("records outside the task window",
					zap.String("path", s.path),
					zap.Int("dropped", s.dropped))
			}
			return io.EOF
		}
		return errors.Wrap(err, errors.ErrorTypeData, "malformed JSON in source file").WithDetail("path", s.path)
	}

	doc := record.FromValue(v)
	if _, isArray := v.([]interface{}); isArray || s.opts.RecordsPath.Len() == 0 {
		s.pending = elements(record.Of(doc.Root()))
		return nil
	}
	located, err := s.opts.RecordsPath.Locate(doc)
	if err != nil {
		return err
	}
	if located.IsAbsent() {
		s.pending = []*record.Record{doc}
		return nil
	}
	s.pending = elements(located)
	return nil
}

func (s *FileSource) inWindow(r *record.Record) bool {
	if s.opts.TimestampPath == nil {
		return true
	}
	v, err := s.opts.TimestampPath.Locate(r)
	if err != nil || v.IsMissing() {
		return false
	}
	t, err := v.Timestamp(s.opts.Formatter)
	if err != nil {
		return false
	}
	return s.opts.Window.Contains(t)
}

func (s *FileSource) Close() error {
	return s.file.Close()
}

package formats

import (
	"io"
	"sync"

	"github.com/ajitpratap0/nebula-restclient/pkg/columnar"
	"github.com/ajitpratap0/nebula-restclient/pkg/mapper"
)

type jsonlWriter struct {
	counter *countingWriter
	out     io.WriteCloser
	mapper  *mapper.RequestMapper
	records int64
	mu      sync.Mutex
}

func newJSONLWriter(counter *countingWriter, cfg WriterConfig) (*jsonlWriter, error) {
	out, err := streamCompress(counter, cfg.Compression)
	if err != nil {
		return nil, err
	}
	opts := []mapper.Option{mapper.OmitNulls(cfg.OmitNulls)}
	if cfg.Formatter != nil {
		opts = append(opts, mapper.WithFormatter(cfg.Formatter))
	}
	return &jsonlWriter{
		counter: counter,
		out:     out,
		mapper:  mapper.ForSchema(cfg.Schema, opts...),
	}, nil
}

func (jw *jsonlWriter) Write(store *columnar.Store) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, row := range store.Rows() {
		line, err := jw.mapper.Map(row)
		if err != nil {
			return writeError(JSONL, err)
		}
		line = append(line, '\n')
		if _, err := jw.out.Write(line); err != nil {
			return writeError(JSONL, err)
		}
		jw.records++
	}
	return nil
}

func (jw *jsonlWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.out.Close()
}

func (jw *jsonlWriter) Format() Format { return JSONL }

func (jw *jsonlWriter) RecordsWritten() int64 {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.records
}

func (jw *jsonlWriter) BytesWritten() int64 { return jw.counter.n.Load() }

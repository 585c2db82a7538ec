package formats

import (
	"io"
	"sync"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/nebula-restclient/pkg/columnar"
	"github.com/ajitpratap0/nebula-restclient/pkg/compression"
)

// arrowWriter writes one record batch per store into an IPC file. Zstd and
// LZ4 use the IPC body codecs; other algorithms compress the whole stream.
type arrowWriter struct {
	counter    *countingWriter
	stream     io.WriteCloser
	fileWriter *ipc.FileWriter
	pool       memory.Allocator
	records    int64
	mu         sync.Mutex
}

func newArrowWriter(counter *countingWriter, cfg WriterConfig) (*arrowWriter, error) {
	pool := memory.NewGoAllocator()
	opts := []ipc.Option{ipc.WithSchema(columnar.ArrowSchema(cfg.Schema)), ipc.WithAllocator(pool)}

	var (
		stream io.WriteCloser
		err    error
	)
	switch cfg.Compression {
	case compression.Zstd:
		opts = append(opts, ipc.WithZstd())
		stream = &nopWriteCloser{counter}
	case compression.LZ4:
		opts = append(opts, ipc.WithLZ4())
		stream = &nopWriteCloser{counter}
	default:
		if stream, err = streamCompress(counter, cfg.Compression); err != nil {
			return nil, err
		}
	}

	fw, err := ipc.NewFileWriter(stream, opts...)
	if err != nil {
		return nil, writeError(Arrow, err)
	}
	return &arrowWriter{counter: counter, stream: stream, fileWriter: fw, pool: pool}, nil
}

func (aw *arrowWriter) Write(store *columnar.Store) error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	if store.RowCount() == 0 {
		return nil
	}
	rec, err := store.ToArrow(aw.pool)
	if err != nil {
		return writeError(Arrow, err)
	}
	defer rec.Release()

	if err := aw.fileWriter.Write(rec); err != nil {
		return writeError(Arrow, err)
	}
	aw.records += rec.NumRows()
	return nil
}

func (aw *arrowWriter) Close() error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	if err := aw.fileWriter.Close(); err != nil {
		return writeError(Arrow, err)
	}
	return aw.stream.Close()
}

func (aw *arrowWriter) Format() Format { return Arrow }

func (aw *arrowWriter) RecordsWritten() int64 {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.records
}

func (aw *arrowWriter) BytesWritten() int64 { return aw.counter.n.Load() }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

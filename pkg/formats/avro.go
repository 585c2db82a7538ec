package formats

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/nebula-restclient/pkg/columnar"
	"github.com/ajitpratap0/nebula-restclient/pkg/compression"
	"github.com/ajitpratap0/nebula-restclient/pkg/json"
	"github.com/ajitpratap0/nebula-restclient/pkg/schema"
)

// avroWriter appends rows to an object container file. Every field is a
// union with null; timestamps use the timestamp-micros logical type.
type avroWriter struct {
	counter   *countingWriter
	stream    io.WriteCloser
	ocfWriter *goavro.OCFWriter
	fields    []avroField
	records   int64
	mu        sync.Mutex
}

type avroField struct {
	name   string
	branch string
}

func newAvroWriter(counter *countingWriter, cfg WriterConfig) (*avroWriter, error) {
	avroSchema, fields, err := buildAvroSchema(cfg.Name, cfg.Schema)
	if err != nil {
		return nil, err
	}
	codec, err := goavro.NewCodec(avroSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to create Avro codec: %w", err)
	}

	// Snappy is an OCF block codec; the rest wrap the file.
	var (
		stream   io.WriteCloser
		codecFor = goavro.CompressionNullLabel
	)
	switch cfg.Compression {
	case compression.Snappy:
		codecFor = goavro.CompressionSnappyLabel
		stream = &nopWriteCloser{counter}
	default:
		if stream, err = streamCompress(counter, cfg.Compression); err != nil {
			return nil, err
		}
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               stream,
		Codec:           codec,
		CompressionName: codecFor,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Avro writer: %w", err)
	}
	return &avroWriter{counter: counter, stream: stream, ocfWriter: ocfWriter, fields: fields}, nil
}

func (aw *avroWriter) Write(store *columnar.Store) error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	rows := store.Rows()
	if len(rows) == 0 {
		return nil
	}
	batch := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		native := make(map[string]interface{}, len(aw.fields))
		for i, f := range aw.fields {
			v := row.Value(i)
			if v == nil {
				native[f.name] = nil
				continue
			}
			native[f.name] = goavro.Union(f.branch, v)
		}
		batch = append(batch, native)
	}
	if err := aw.ocfWriter.Append(batch); err != nil {
		return writeError(Avro, err)
	}
	aw.records += int64(len(batch))
	return nil
}

func (aw *avroWriter) Close() error {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.stream.Close()
}

func (aw *avroWriter) Format() Format { return Avro }

func (aw *avroWriter) RecordsWritten() int64 {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.records
}

func (aw *avroWriter) BytesWritten() int64 { return aw.counter.n.Load() }

// AvroSchema renders s as an Avro record schema. Column names that are not
// valid Avro names are rewritten and keep their original name as the field doc.
func AvroSchema(name string, s *schema.Schema) (string, error) {
	out, _, err := buildAvroSchema(name, s)
	return out, err
}

func buildAvroSchema(name string, s *schema.Schema) (string, []avroField, error) {
	if name == "" {
		name = "Record"
	}
	fields := make([]avroField, s.Len())
	descs := make([]map[string]interface{}, s.Len())
	for i, col := range s.Columns() {
		typ, branch := avroType(col.Type)
		fname := avroName(col.Name)
		fields[i] = avroField{name: fname, branch: branch}
		desc := map[string]interface{}{
			"name":    fname,
			"type":    []interface{}{"null", typ},
			"default": nil,
		}
		if fname != col.Name {
			desc["doc"] = col.Name
		}
		descs[i] = desc
	}
	out, err := json.Marshal(map[string]interface{}{
		"type":   "record",
		"name":   avroName(name),
		"fields": descs,
	})
	if err != nil {
		return "", nil, err
	}
	return string(out), fields, nil
}

func avroType(t schema.Type) (interface{}, string) {
	switch t {
	case schema.TypeLong:
		return "long", "long"
	case schema.TypeDouble:
		return "double", "double"
	case schema.TypeBoolean:
		return "boolean", "boolean"
	case schema.TypeTimestamp:
		return map[string]interface{}{"type": "long", "logicalType": "timestamp-micros"}, "long.timestamp-micros"
	default:
		return "string", "string"
	}
}

// avroName maps s onto [A-Za-z_][A-Za-z0-9_]*
func avroName(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

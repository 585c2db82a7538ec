// Package compression wraps the block and stream codecs output sinks can
// apply to the files they write.
package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm represents a compression algorithm
type Algorithm string

const (
	None   Algorithm = "none"
	Gzip   Algorithm = "gzip"
	Snappy Algorithm = "snappy"
	LZ4    Algorithm = "lz4"
	Zstd   Algorithm = "zstd"
	S2     Algorithm = "s2"
)

// Level represents compression level
type Level int

const (
	Fastest Level = 1
	Default Level = 5
	Better  Level = 7
	Best    Level = 9
)

// Compressor compresses whole buffers and streams
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	// NewWriter returns a writer compressing into w. Close flushes the
	// stream but does not close w.
	NewWriter(w io.Writer) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.Reader, error)
	Algorithm() Algorithm
	// Extension is the file suffix for the algorithm, empty for None
	Extension() string
}

// NewCompressor returns the compressor for alg at level
func NewCompressor(alg Algorithm, level Level) (Compressor, error) {
	base := baseCompressor{algorithm: alg, level: level}
	switch alg {
	case None, "":
		base.algorithm = None
		return &noneCompressor{base}, nil
	case Gzip:
		return &gzipCompressor{base}, nil
	case Snappy:
		return &snappyCompressor{base}, nil
	case LZ4:
		return &lz4Compressor{base}, nil
	case Zstd:
		return &zstdCompressor{base}, nil
	case S2:
		return &s2Compressor{base}, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", alg)
	}
}

type baseCompressor struct {
	algorithm Algorithm
	level     Level
}

func (b baseCompressor) Algorithm() Algorithm { return b.algorithm }

func (b baseCompressor) Extension() string {
	switch b.algorithm {
	case None:
		return ""
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	default:
		return "." + string(b.algorithm)
	}
}

// compressWith runs data through a stream writer
func compressWith(c Compressor, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := c.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressWith(c Compressor, data []byte) ([]byte, error) {
	r, err := c.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

type noneCompressor struct{ baseCompressor }

func (noneCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (noneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
func (noneCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return nopCloser{w}, nil
}
func (noneCompressor) NewReader(r io.Reader) (io.Reader, error) { return r, nil }

type gzipCompressor struct{ baseCompressor }

func (c *gzipCompressor) Compress(data []byte) ([]byte, error)   { return compressWith(c, data) }
func (c *gzipCompressor) Decompress(data []byte) ([]byte, error) { return decompressWith(c, data) }

func (c *gzipCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	level := gzip.DefaultCompression
	switch c.level {
	case Fastest:
		level = gzip.BestSpeed
	case Best:
		level = gzip.BestCompression
	}
	return gzip.NewWriterLevel(w, level)
}

func (c *gzipCompressor) NewReader(r io.Reader) (io.Reader, error) {
	return gzip.NewReader(r)
}

type snappyCompressor struct{ baseCompressor }

func (c *snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (c *snappyCompressor) Decompress(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}

func (c *snappyCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(w), nil
}

func (c *snappyCompressor) NewReader(r io.Reader) (io.Reader, error) {
	return snappy.NewReader(r), nil
}

type s2Compressor struct{ baseCompressor }

func (c *s2Compressor) Compress(data []byte) ([]byte, error) {
	if c.level >= Better {
		return s2.EncodeBetter(nil, data), nil
	}
	return s2.Encode(nil, data), nil
}

func (c *s2Compressor) Decompress(data []byte) ([]byte, error) {
	return s2.Decode(nil, data)
}

func (c *s2Compressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	if c.level >= Better {
		return s2.NewWriter(w, s2.WriterBetterCompression()), nil
	}
	return s2.NewWriter(w), nil
}

func (c *s2Compressor) NewReader(r io.Reader) (io.Reader, error) {
	return s2.NewReader(r), nil
}

type lz4Compressor struct{ baseCompressor }

func (c *lz4Compressor) Compress(data []byte) ([]byte, error)   { return compressWith(c, data) }
func (c *lz4Compressor) Decompress(data []byte) ([]byte, error) { return decompressWith(c, data) }

func (c *lz4Compressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	zw := lz4.NewWriter(w)
	level := lz4.Fast
	switch c.level {
	case Better:
		level = lz4.Level5
	case Best:
		level = lz4.Level9
	}
	if err := zw.Apply(lz4.CompressionLevelOption(level)); err != nil {
		return nil, err
	}
	return zw, nil
}

func (c *lz4Compressor) NewReader(r io.Reader) (io.Reader, error) {
	return lz4.NewReader(r), nil
}

type zstdCompressor struct{ baseCompressor }

func (c *zstdCompressor) encoderLevel() zstd.EncoderLevel {
	switch c.level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func (c *zstdCompressor) Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(c.encoderLevel()))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func (c *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

func (c *zstdCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(c.encoderLevel()))
}

func (c *zstdCompressor) NewReader(r io.Reader) (io.Reader, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

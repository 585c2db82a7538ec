// Package json wraps goccy/go-json with the settings the record pipeline
// relies on: numbers decode as json.Number so integers never pass through
// float64, and encoders do not escape HTML.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// Number is a decoded JSON number kept in its textual form
type Number = gojson.Number

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 {
		return
	}
	bufferPool.Put(buf)
}

// NewDecoder returns a decoder that keeps numbers as Number
func NewDecoder(r io.Reader) *gojson.Decoder {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()
	return dec
}

// NewEncoder returns an encoder that leaves <, > and & unescaped
func NewEncoder(w io.Writer) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// Decode reads one JSON document into an untyped tree
func Decode(data []byte) (interface{}, error) {
	var v interface{}
	dec := NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Marshal renders v without HTML escaping and without a trailing newline
func Marshal(v interface{}) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if err := NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	out := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
	result := make([]byte, len(out))
	copy(result, out)
	return result, nil
}

// Unmarshal is a drop-in replacement for encoding/json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// RawMessage is an already encoded JSON value
type RawMessage = gojson.RawMessage

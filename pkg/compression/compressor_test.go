package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var payload = []byte(strings.Repeat(`{"id":1,"label":"embulk","amount":123.45}`+"\n", 200))

func TestRoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2} {
		for _, level := range []Level{Fastest, Default, Best} {
			t.Run(string(alg), func(t *testing.T) {
				c, err := NewCompressor(alg, level)
				require.NoError(t, err)
				assert.Equal(t, alg, c.Algorithm())

				compressed, err := c.Compress(payload)
				require.NoError(t, err)
				if alg != None {
					assert.Less(t, len(compressed), len(payload))
				}
				out, err := c.Decompress(compressed)
				require.NoError(t, err)
				assert.Equal(t, payload, out)

				var buf bytes.Buffer
				w, err := c.NewWriter(&buf)
				require.NoError(t, err)
				_, err = w.Write(payload)
				require.NoError(t, err)
				require.NoError(t, w.Close())

				r, err := c.NewReader(&buf)
				require.NoError(t, err)
				streamed, err := io.ReadAll(r)
				require.NoError(t, err)
				assert.Equal(t, payload, streamed)
			})
		}
	}
}

func TestExtension(t *testing.T) {
	tests := map[Algorithm]string{None: "", Gzip: ".gz", Zstd: ".zst", LZ4: ".lz4", S2: ".s2", Snappy: ".snappy"}
	for alg, want := range tests {
		c, err := NewCompressor(alg, Default)
		require.NoError(t, err)
		assert.Equal(t, want, c.Extension(), alg)
	}
}

func TestUnsupported(t *testing.T) {
	_, err := NewCompressor("brotli", Default)
	assert.ErrorContains(t, err, "unsupported compression algorithm")

	c, err := NewCompressor("", Default)
	require.NoError(t, err)
	assert.Equal(t, None, c.Algorithm())
}

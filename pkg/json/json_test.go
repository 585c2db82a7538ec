package json

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKeepsNumbers(t *testing.T) {
	v, err := Decode([]byte(`{"big": 9007199254740993, "ratio": 123.45}`))
	require.NoError(t, err)

	obj := v.(map[string]interface{})
	assert.Equal(t, Number("9007199254740993"), obj["big"])
	assert.Equal(t, Number("123.45"), obj["ratio"])
}

func TestMarshalDoesNotEscapeHTML(t *testing.T) {
	out, err := Marshal(map[string]string{"q": "a<b&c"})
	require.NoError(t, err)
	assert.Equal(t, `{"q":"a<b&c"}`, string(out))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte(`{"a":`))
	assert.Error(t, err)
}

package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/nebula-restclient/pkg/json"
)

func samples(t *testing.T, docs ...string) []map[string]interface{} {
	t.Helper()
	out := make([]map[string]interface{}, len(docs))
	for i, doc := range docs {
		v, err := json.Decode([]byte(doc))
		require.NoError(t, err)
		out[i] = v.(map[string]interface{})
	}
	return out
}

func TestInferColumns(t *testing.T) {
	e := NewTypeInferenceEngine(zaptest.NewLogger(t), 0)
	cols, err := e.InferColumns(samples(t,
		`{"id":1,"created_at":"2017-11-03T19:42:41.000+0000","amount":10,"paid":true,"tags":["a"],"note":"x"}`,
		`{"id":2,"created_at":"2017-11-04T01:00:00.000+0000","amount":10.5,"paid":false,"tags":[],"note":null}`,
		`{"id":3,"created_at":"2017-11-05T02:30:00.000+0000","amount":null,"paid":true,"tags":null}`,
	))
	require.NoError(t, err)

	byName := make(map[string]InferredColumn, len(cols))
	names := make([]string, len(cols))
	for i, c := range cols {
		byName[c.Name] = c
		names[i] = c.Name
	}
	assert.Equal(t, []string{"amount", "created_at", "id", "note", "paid", "tags"}, names)

	tests := []struct {
		name     string
		typ      Type
		format   string
		nullable bool
	}{
		{"id", TypeLong, "", false},
		{"created_at", TypeTimestamp, "%Y-%m-%dT%H:%M:%S.%L%z", false},
		{"amount", TypeDouble, "", true},
		{"paid", TypeBoolean, "", false},
		{"tags", TypeJSON, "", true},
		{"note", TypeString, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := byName[tt.name]
			assert.Equal(t, tt.typ, c.Type)
			assert.Equal(t, tt.format, c.Format)
			assert.Equal(t, tt.nullable, c.Nullable)
		})
	}
}

func TestInferTypeFallsBackToString(t *testing.T) {
	e := NewTypeInferenceEngine(nil, 0)

	mixed := e.InferType("v", []interface{}{json.Number("1"), "one", true})
	assert.Equal(t, TypeString, mixed.Type)

	allNull := e.InferType("v", []interface{}{nil, nil})
	assert.Equal(t, TypeString, allNull.Type)
	assert.True(t, allNull.Nullable)

	dates := e.InferType("day", []interface{}{"2017-11-01", "2017-11-02"})
	assert.Equal(t, TypeTimestamp, dates.Type)
	assert.Equal(t, "%Y-%m-%d", dates.Format)

	notDates := e.InferType("code", []interface{}{"2017-11-01", "N/A"})
	assert.Equal(t, TypeString, notDates.Type)
}

func TestInferColumnsSampleSize(t *testing.T) {
	e := NewTypeInferenceEngine(nil, 1)
	cols, err := e.InferColumns(samples(t, `{"v":1}`, `{"v":"x"}`))
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, TypeLong, cols[0].Type)

	_, err = e.InferColumns(nil)
	assert.Error(t, err)
}

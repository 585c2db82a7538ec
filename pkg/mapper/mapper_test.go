package mapper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-restclient/pkg/columnar"
	"github.com/ajitpratap0/nebula-restclient/pkg/schema"
	"github.com/ajitpratap0/nebula-restclient/pkg/timestamp"
)

func outputSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.NewBuilder().
		Add("id", schema.TypeLong).
		Add("long", schema.TypeLong).
		Add("timestamp", schema.TypeTimestamp).
		Add("boolean", schema.TypeBoolean).
		Add("double", schema.TypeDouble).
		Add("string", schema.TypeString).
		Build()
	require.NoError(t, err)
	return s
}

func nullRow(t *testing.T, s *schema.Schema) *columnar.Store {
	store := columnar.NewStore(s)
	b := columnar.NewBuilder(store)
	b.SetLong(s.Column(0), 1)
	require.NoError(t, b.AddRecord())
	return store
}

func regularRow(t *testing.T, s *schema.Schema) *columnar.Store {
	store := columnar.NewStore(s)
	b := columnar.NewBuilder(store)
	b.SetLong(s.Column(0), 2)
	b.SetLong(s.Column(1), 42)
	b.SetTimestamp(s.Column(2), time.Unix(1509738161, 0))
	b.SetBoolean(s.Column(3), true)
	b.SetDouble(s.Column(4), 123.45)
	b.SetString(s.Column(5), "embulk")
	require.NoError(t, b.AddRecord())
	return store
}

func TestMapStore(t *testing.T) {
	s := outputSchema(t)

	tests := []struct {
		name      string
		store     *columnar.Store
		omitNulls bool
		want      string
	}{
		{
			name:  "null values",
			store: nullRow(t, s),
			want:  `[{"id":1,"long":null,"timestamp":null,"boolean":null,"double":null,"string":null}]`,
		},
		{
			name:      "null values omitted",
			store:     nullRow(t, s),
			omitNulls: true,
			want:      `[{"id":1}]`,
		},
		{
			name:  "regular values",
			store: regularRow(t, s),
			want:  `[{"id":2,"long":42,"timestamp":"2017-11-03T19:42:41.000+0000","boolean":true,"double":123.45,"string":"embulk"}]`,
		},
		{
			name:      "regular values without nulls are unchanged",
			store:     regularRow(t, s),
			omitNulls: true,
			want:      `[{"id":2,"long":42,"timestamp":"2017-11-03T19:42:41.000+0000","boolean":true,"double":123.45,"string":"embulk"}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ForSchema(s, OmitNulls(tt.omitNulls)).MapStore(tt.store)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestCustomEntries(t *testing.T) {
	s := outputSchema(t)
	store := regularRow(t, s)
	row, err := store.Row(0)
	require.NoError(t, err)

	m := New([]Entry{
		{Key: "record_id", Scope: Column("id")},
		{Key: "doubled", Scope: Integer(func(r columnar.Row) int64 {
			v, _ := r.Get("long")
			return v.(int64) * 2
		})},
		{Key: "meta", Scope: Object(
			Entry{Key: "source", Scope: Constant("embulk")},
			Entry{Key: "at", Scope: Column("timestamp")},
		)},
	}, WithFormatter(timestamp.MustNew("epoch", "")))

	out, err := m.Map(row)
	require.NoError(t, err)
	assert.Equal(t, `{"record_id":2,"doubled":84,"meta":{"source":"embulk","at":"1509738161"}}`, string(out))
}

func TestJSONColumnIsEmbedded(t *testing.T) {
	s, err := schema.New(schema.Column{Name: "payload", Type: schema.TypeJSON})
	require.NoError(t, err)
	store := columnar.NewStore(s)
	b := columnar.NewBuilder(store)
	b.SetJSON(s.Column(0), `{"a":[1,2]}`)
	require.NoError(t, b.AddRecord())

	out, err := ForSchema(s).MapStore(store)
	require.NoError(t, err)
	assert.Equal(t, `[{"payload":{"a":[1,2]}}]`, string(out))
}

func TestUnknownColumn(t *testing.T) {
	s := outputSchema(t)
	row, err := nullRow(t, s).Row(0)
	require.NoError(t, err)

	_, err = New([]Entry{{Key: "x", Scope: Column("missing")}}).Map(row)
	assert.ErrorContains(t, err, `row has no column "missing"`)
}

func TestEmptyStore(t *testing.T) {
	out, err := ForSchema(outputSchema(t)).MapStore(columnar.NewStore(outputSchema(t)))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))
}

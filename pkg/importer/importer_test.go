package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-restclient/pkg/columnar"
	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
	"github.com/ajitpratap0/nebula-restclient/pkg/record"
	"github.com/ajitpratap0/nebula-restclient/pkg/schema"
	"github.com/ajitpratap0/nebula-restclient/pkg/timestamp"
)

func scenarioSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.NewBuilder().
		Add("id", schema.TypeLong).
		Add("ts", schema.TypeTimestamp).
		Add("flag", schema.TypeBoolean).
		Add("amount", schema.TypeDouble).
		Add("label", schema.TypeString).
		Build()
	require.NoError(t, err)
	return s
}

func scenarioWriter(t *testing.T, s *schema.Schema) *SchemaWriter {
	t.Helper()
	bindings := make([]Binding, 0, s.Len())
	for _, col := range s.Columns() {
		bindings = append(bindings, Binding{
			Column:    col,
			Locator:   record.NewPath(record.Key(col.Name)),
			Formatter: timestamp.MustNew("", ""),
		})
	}
	w, err := FromBindings(bindings)
	require.NoError(t, err)
	return w
}

func parse(t *testing.T, doc string) *record.Record {
	t.Helper()
	rec, err := record.Parse([]byte(doc))
	require.NoError(t, err)
	return rec
}

func TestScenarioNullRow(t *testing.T) {
	s := scenarioSchema(t)
	store := columnar.NewStore(s)
	pb := columnar.NewBuilder(store)

	rec := parse(t, `{"id": 1, "ts": null, "flag": null, "amount": null, "label": null}`)
	require.NoError(t, scenarioWriter(t, s).WriteRecord(rec, pb))

	row, err := store.Row(0)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"id": int64(1), "ts": nil, "flag": nil, "amount": nil, "label": nil,
	}, row.Map())
}

func TestScenarioTypedRow(t *testing.T) {
	s := scenarioSchema(t)
	store := columnar.NewStore(s)
	pb := columnar.NewBuilder(store)

	rec := parse(t, `{"id": 2, "ts": "2017-11-03T19:42:41Z", "flag": true, "amount": 123.45, "label": "embulk"}`)
	require.NoError(t, scenarioWriter(t, s).WriteRecord(rec, pb))

	row, err := store.Row(0)
	require.NoError(t, err)

	ts, _ := row.Get("ts")
	assert.Equal(t, "2017-11-03T19:42:41.000+0000", timestamp.MustNew(timestamp.DefaultOutputPattern, "").Format(ts.(time.Time)))
	assert.Equal(t, int64(2), row.Value(0))
	assert.Equal(t, true, row.Value(2))
	assert.Equal(t, 123.45, row.Value(3))
	assert.Equal(t, "embulk", row.Value(4))
}

func TestScenarioCoercionIsolation(t *testing.T) {
	s := scenarioSchema(t)
	store := columnar.NewStore(s)
	pb := columnar.NewBuilder(store)
	w := scenarioWriter(t, s)

	rec := parse(t, `{"id": 3, "ts": "2017-11-03T19:42:41Z", "flag": false, "amount": "N/A", "label": "x"}`)

	// each importer on its own: only amount fails
	for _, imp := range w.Importers() {
		err := imp.ImportInto(rec, pb)
		if imp.Column().Name != "amount" {
			assert.NoError(t, err, imp.Column().Name)
			continue
		}
		require.Error(t, err)
		var ie *ImportError
		require.True(t, errors.As(err, &ie))
		assert.Equal(t, "amount", ie.Column)
		assert.Equal(t, schema.TypeDouble, ie.Type)
		assert.True(t, errors.IsType(err, errors.ErrorTypeCoercion))
		assert.Contains(t, err.Error(), "failed to import a value for column: amount (double)")
	}
	pb.Discard()

	// through the writer: the row is discarded as a whole
	err := w.WriteRecord(rec, pb)
	require.Error(t, err)
	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, []string{"amount"}, rowErr.Columns())
	assert.Equal(t, 0, store.RowCount())

	// and the next record is unaffected
	require.NoError(t, w.WriteRecord(parse(t, `{"id": 4}`), pb))
	require.Equal(t, 1, store.RowCount())
	row, _ := store.Row(0)
	assert.Equal(t, int64(4), row.Value(0))
	assert.True(t, row.IsNull(3))
}

func TestRowErrorListsEveryFailedColumn(t *testing.T) {
	s := scenarioSchema(t)
	store := columnar.NewStore(s)
	pb := columnar.NewBuilder(store)

	rec := parse(t, `{"id": "one", "ts": "later", "flag": "yes", "amount": 1, "label": "ok"}`)
	err := scenarioWriter(t, s).WriteRecord(rec, pb)
	require.Error(t, err)

	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, []string{"id", "ts", "flag"}, rowErr.Columns())
	assert.Contains(t, err.Error(), "3 columns failed to import")
	assert.Equal(t, 0, store.RowCount())
}

func TestMissingValuesNeverCoerce(t *testing.T) {
	col := schema.Column{Index: 0, Name: "n", Type: schema.TypeLong}
	s, err := schema.New(col)
	require.NoError(t, err)

	tests := []struct {
		name  string
		value record.Value
	}{
		{"absent", record.Absent()},
		{"null", record.Of(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := columnar.NewStore(s)
			pb := columnar.NewBuilder(store)
			loc := record.LocatorFunc(func(*record.Record) (record.Value, error) { return tt.value, nil })

			require.NoError(t, Long(col, loc).ImportInto(record.FromValue(nil), pb))
			require.NoError(t, pb.AddRecord())
			row, _ := store.Row(0)
			assert.True(t, row.IsNull(0))
		})
	}
}

func TestLocatorErrorIsAttributed(t *testing.T) {
	col := schema.Column{Index: 0, Name: "label", Type: schema.TypeString}
	s, err := schema.New(col)
	require.NoError(t, err)
	pb := columnar.NewBuilder(columnar.NewStore(s))

	imp := String(col, record.MustParsePath("label[0]"))
	err = imp.ImportInto(parse(t, `{"label": "scalar"}`), pb)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeLocator))
	assert.Contains(t, err.Error(), "column: label (string)")
}

func TestPanickingLocatorIsContained(t *testing.T) {
	col := schema.Column{Index: 0, Name: "boom", Type: schema.TypeString}
	s, err := schema.New(col)
	require.NoError(t, err)
	pb := columnar.NewBuilder(columnar.NewStore(s))

	imp := String(col, record.LocatorFunc(func(*record.Record) (record.Value, error) { panic("bad locator") }))
	err = imp.ImportInto(record.FromValue(nil), pb)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: bad locator")
}

func TestNewPicksImporterByType(t *testing.T) {
	loc := record.MustParsePath("v")
	tests := []struct {
		typ  schema.Type
		doc  string
		want interface{}
	}{
		{schema.TypeLong, `{"v": "17"}`, int64(17)},
		{schema.TypeDouble, `{"v": 2}`, float64(2)},
		{schema.TypeBoolean, `{"v": false}`, false},
		{schema.TypeString, `{"v": 1.50}`, "1.50"},
		{schema.TypeJSON, `{"v": {"a": [1, 2]}}`, `{"a":[1,2]}`},
		{schema.TypeTimestamp, `{"v": "2017-11-03T19:42:41Z"}`, time.Date(2017, 11, 3, 19, 42, 41, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			col := schema.Column{Name: "v", Type: tt.typ}
			s, err := schema.New(col)
			require.NoError(t, err)
			store := columnar.NewStore(s)
			pb := columnar.NewBuilder(store)

			imp, err := New(s.Column(0), loc, nil)
			require.NoError(t, err)
			require.NoError(t, imp.ImportInto(parse(t, tt.doc), pb))
			require.NoError(t, pb.AddRecord())

			row, _ := store.Row(0)
			assert.Equal(t, tt.want, row.Value(0))
		})
	}
}

func TestNewSchemaWriterRejectsDuplicates(t *testing.T) {
	col := schema.Column{Index: 0, Name: "a", Type: schema.TypeString}
	loc := record.MustParsePath("a")

	_, err := NewSchemaWriter(String(col, loc), String(col, loc))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = New(col, nil, nil)
	assert.Error(t, err)
}

func TestSchemaWriterOrdersByColumn(t *testing.T) {
	a := schema.Column{Index: 0, Name: "a", Type: schema.TypeString}
	b := schema.Column{Index: 1, Name: "b", Type: schema.TypeString}
	loc := record.MustParsePath("x")

	w, err := NewSchemaWriter(String(b, loc), String(a, loc))
	require.NoError(t, err)
	imps := w.Importers()
	assert.Equal(t, "a", imps[0].Column().Name)
	assert.Equal(t, "b", imps[1].Column().Name)
}

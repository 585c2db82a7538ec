package rest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/nebula-restclient/pkg/columnar"
	"github.com/ajitpratap0/nebula-restclient/pkg/config"
	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
	"github.com/ajitpratap0/nebula-restclient/pkg/metrics"
	"github.com/ajitpratap0/nebula-restclient/pkg/record"
	"github.com/ajitpratap0/nebula-restclient/pkg/schema"
	"github.com/ajitpratap0/nebula-restclient/pkg/source"
	"github.com/ajitpratap0/nebula-restclient/pkg/splitter"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Name = "orders"
	cfg.Window.Begin = "2017-11-01"
	cfg.Window.End = "2017-11-04"
	cfg.Source.Kind = "file"
	cfg.Source.Path = filepath.Join(t.TempDir(), "orders.jsonl")
	cfg.Source.TimestampPath = "created_at"
	cfg.Timestamp.Format = "%Y-%m-%dT%H:%M:%S.%L%z"
	cfg.Output.Path = t.TempDir()
	cfg.Columns = []config.ColumnConfig{
		{Name: "id", Type: "long"},
		{Name: "created_at", Type: "timestamp", Zone: "UTC"},
		{Name: "amount", Type: "double", Path: "payment.amount"},
		{Name: "paid", Type: "boolean"},
		{Name: "note", Type: "string"},
	}
	return cfg
}

func TestNewBuildsSchemaAndBindings(t *testing.T) {
	c, err := New(testConfig(t), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer c.Close()

	s := c.Schema()
	require.Equal(t, 5, s.Len())
	assert.Equal(t, schema.Column{Index: 2, Name: "amount", Type: schema.TypeDouble}, s.Column(2))

	importers := c.SchemaWriter().Importers()
	require.Len(t, importers, 5)
	assert.Equal(t, "created_at", importers[1].Column().Name)
}

func TestNewRejectsBadColumns(t *testing.T) {
	cfg := testConfig(t)
	cfg.Columns[2].Path = "payment[x"
	_, err := New(cfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	cfg = testConfig(t)
	cfg.Columns[1].Zone = "Mars/Olympus"
	_, err = New(cfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestPlanDaily(t *testing.T) {
	m := metrics.New()
	c, err := New(testConfig(t), WithMetrics(m), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	tasks, err := c.Plan()
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	for i, task := range tasks {
		assert.Equal(t, i, task.Index)
		assert.Equal(t, 24*time.Hour, task.Window.Duration())
	}
	assert.Equal(t, time.Date(2017, 11, 3, 0, 0, 0, 0, time.UTC), tasks[2].Window.Begin)

	overall, err := c.Task()
	require.NoError(t, err)
	assert.Equal(t, -1, overall.Index)

	n, err := c.NumberOfSplits(overall)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	sub, err := c.HintSplit(overall, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sub.Index)
	assert.Equal(t, tasks[1].Window, sub.Window)
	assert.Equal(t, -1, overall.Index, "hinting leaves the overall task alone")

	_, err = c.HintSplit(overall, 3)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSplit))
}

func TestCalculatorByCadence(t *testing.T) {
	begin := time.Date(2017, 11, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2017, 11, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   int
	}{
		{"daily", func(c *config.Config) {}, 3},
		{"count", func(c *config.Config) { c.Window.Cadence, c.Window.Count = config.CadenceCount, 7 }, 7},
		{"duration", func(c *config.Config) { c.Window.Cadence, c.Window.Step = config.CadenceDuration, 36*time.Hour }, 2},
		{"weekly", func(c *config.Config) { c.Window.Cadence = config.CadenceWeekly }, 1},
		{"bounded", func(c *config.Config) { c.Window.MaxSplits = 2 }, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			calc, err := Calculator(cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, calc.NumberOfSplits(begin, end))

			windows := splitter.Windows(calc, splitter.Window{Begin: begin, End: end})
			assert.NoError(t, splitter.VerifyPartition(splitter.Window{Begin: begin, End: end}, windows))
		})
	}

	cfg := testConfig(t)
	cfg.Window.Location = "Nowhere/City"
	_, err := Calculator(cfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestFileSourceAndSink(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Source.Path, []byte(`
{"id":1,"created_at":"2017-11-01T10:00:00.000+0000","payment":{"amount":10.5},"paid":true,"note":"a"}
{"id":2,"created_at":"2017-11-02T19:42:41.000+0000","payment":{"amount":"N/A"},"paid":false}
{"id":3,"created_at":"2017-11-02T23:00:00.000+0000","payment":null,"paid":null,"note":null}
`), 0o644))

	c, err := New(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	tasks, err := c.Plan()
	require.NoError(t, err)

	src, err := c.OpenSource(context.Background(), tasks[1])
	require.NoError(t, err)
	defer src.Close()
	records, err := source.Drain(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, records, 2)

	store := columnar.NewStore(c.Schema())
	pb := columnar.NewBuilder(store)
	var rowErr error
	for _, r := range records {
		if err := c.SchemaWriter().WriteRecord(r, pb); err != nil {
			rowErr = err
		}
	}
	require.Error(t, rowErr)
	assert.Contains(t, rowErr.Error(), "failed to import a value for column: amount (double)")
	require.Equal(t, 1, store.RowCount())

	sink, err := c.OpenSink(tasks[1])
	require.NoError(t, err)
	require.NoError(t, sink.Write(store))
	require.NoError(t, sink.Close())

	assert.Equal(t, filepath.Join(cfg.Output.Path, "orders-001.jsonl"), sink.Path)
	data, err := os.ReadFile(sink.Path)
	require.NoError(t, err)
	assert.Equal(t,
		`{"id":3,"created_at":"2017-11-02T23:00:00.000+0000","amount":null,"paid":null,"note":null}`+"\n",
		string(data))
}

func TestHTTPSourceUsesFetcher(t *testing.T) {
	cfg := testConfig(t)
	cfg.Source.Kind = "http"
	cfg.Source.URL = "https://api.example.com/orders"
	cfg.Source.NextPath = "next"

	fetcher := &stubFetcher{pages: map[string]string{
		"https://api.example.com/orders?since=2017-11-01T00%3A00%3A00Z&until=2017-11-02T00%3A00%3A00Z": `{"data":[{"id":1}],"next":"/orders?page=2"}`,
		"https://api.example.com/orders?page=2":                                                        `{"data":[{"id":2}]}`,
	}}
	c, err := New(cfg, WithFetcher(fetcher), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	tasks, err := c.Plan()
	require.NoError(t, err)

	src, err := c.OpenSource(context.Background(), tasks[0])
	require.NoError(t, err)
	records, err := source.Drain(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, fetcher.calls)
}

func TestHTTPSourceHonorsMaxPages(t *testing.T) {
	cfg := testConfig(t)
	cfg.Source.Kind = "http"
	cfg.Source.URL = "https://api.example.com/orders"
	cfg.Source.NextPath = "next"
	cfg.Source.MaxPages = 1

	fetcher := &stubFetcher{pages: map[string]string{
		"https://api.example.com/orders?since=2017-11-01T00%3A00%3A00Z&until=2017-11-02T00%3A00%3A00Z": `{"data":[{"id":1}],"next":"/orders?page=2"}`,
	}}
	c, err := New(cfg, WithFetcher(fetcher), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	tasks, err := c.Plan()
	require.NoError(t, err)

	src, err := c.OpenSource(context.Background(), tasks[0])
	require.NoError(t, err)
	records, err := source.Drain(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, fetcher.calls)
}

func TestNoneSinkWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Format = "none"
	c, err := New(cfg)
	require.NoError(t, err)

	sink, err := c.OpenSink(&Task{Config: cfg, Index: 0})
	require.NoError(t, err)
	assert.Empty(t, sink.Path)
	require.NoError(t, sink.Close())

	entries, err := os.ReadDir(cfg.Output.Path)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"file", "http"}, r.ListSources())

	called := false
	require.NoError(t, r.RegisterSource("inline", func(context.Context, *Connector, *Task) (source.Source, error) {
		called = true
		return source.NewSliceSource(record.FromValue(map[string]interface{}{"id": 1})), nil
	}))
	assert.Error(t, r.RegisterSource("inline", nil))

	_, err := r.CreateSource(context.Background(), "inline", nil, nil)
	require.NoError(t, err)
	assert.True(t, called)

	_, err = r.CreateSource(context.Background(), "ftp", nil, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

type stubFetcher struct {
	pages map[string]string
	calls int
}

func (f *stubFetcher) Get(_ context.Context, url string) ([]byte, error) {
	f.calls++
	body, ok := f.pages[url]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeData, "unexpected status 404 for %s", url)
	}
	return []byte(body), nil
}

type recordingUploader struct {
	names  []string
	meta   []map[string]string
	closed bool
}

func (u *recordingUploader) Upload(_ context.Context, localPath, name string, meta map[string]string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	u.names = append(u.names, name)
	u.meta = append(u.meta, meta)
	return "s3://exports/" + name, nil
}

func (u *recordingUploader) Close() error {
	u.closed = true
	return nil
}

func TestPublishUploadsAndRemovesLocal(t *testing.T) {
	cfg := testConfig(t)
	up := &recordingUploader{}
	c, err := New(cfg, WithUploader(up), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	tasks, err := c.Plan()
	require.NoError(t, err)

	sink, err := c.OpenSink(tasks[0])
	require.NoError(t, err)
	require.NoError(t, sink.Write(columnar.NewStore(c.Schema())))
	require.NoError(t, sink.Close())

	location, err := c.Publish(context.Background(), tasks[0], sink)
	require.NoError(t, err)
	assert.Equal(t, "s3://exports/orders-000.jsonl", location)
	require.Len(t, up.meta, 1)
	assert.Equal(t, "0", up.meta[0]["records"])
	assert.Equal(t, "2017-11-01T00:00:00Z", up.meta[0]["window_begin"])
	assert.Equal(t, "jsonl", up.meta[0]["format"])

	_, err = os.Stat(sink.Path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, c.Close())
	assert.True(t, up.closed)
}

func TestPublishWithoutUploaderKeepsPath(t *testing.T) {
	cfg := testConfig(t)
	c, err := New(cfg)
	require.NoError(t, err)
	sink := &Sink{Path: "out/orders-000.jsonl"}
	location, err := c.Publish(context.Background(), &Task{Config: cfg}, sink)
	require.NoError(t, err)
	assert.Equal(t, "out/orders-000.jsonl", location)
}

func TestNewRejectsBadUploadURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Upload = "ftp://exports"
	_, err := New(cfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

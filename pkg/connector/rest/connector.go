package rest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-restclient/pkg/clients"
	"github.com/ajitpratap0/nebula-restclient/pkg/compression"
	"github.com/ajitpratap0/nebula-restclient/pkg/config"
	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
	"github.com/ajitpratap0/nebula-restclient/pkg/formats"
	"github.com/ajitpratap0/nebula-restclient/pkg/importer"
	"github.com/ajitpratap0/nebula-restclient/pkg/logger"
	"github.com/ajitpratap0/nebula-restclient/pkg/metrics"
	"github.com/ajitpratap0/nebula-restclient/pkg/objectstore"
	"github.com/ajitpratap0/nebula-restclient/pkg/record"
	"github.com/ajitpratap0/nebula-restclient/pkg/schema"
	"github.com/ajitpratap0/nebula-restclient/pkg/source"
	"github.com/ajitpratap0/nebula-restclient/pkg/splitter"
	"github.com/ajitpratap0/nebula-restclient/pkg/timestamp"
)

// Connector is everything a run needs that is derived once from the
// configuration. It is safe for concurrent use by sub-tasks.
type Connector struct {
	cfg             *config.Config
	schema          *schema.Schema
	writer          *importer.SchemaWriter
	splitter        *splitter.TimestampSplitter[*Task]
	outputFormatter *timestamp.Formatter

	fetcher  source.Fetcher
	client   *clients.HTTPClient
	registry *Registry
	uploader objectstore.Uploader
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// Option configures a Connector
type Option func(*Connector)

// WithMetrics records into m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Connector) { c.metrics = m }
}

// WithLogger replaces the global logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Connector) { c.logger = l }
}

// WithFetcher replaces the HTTP client of the http source
func WithFetcher(f source.Fetcher) Option {
	return func(c *Connector) { c.fetcher = f }
}

// WithUploader replaces the uploader built from output.upload
func WithUploader(u objectstore.Uploader) Option {
	return func(c *Connector) { c.uploader = u }
}

// WithRegistry replaces the source registry
func WithRegistry(r *Registry) Option {
	return func(c *Connector) { c.registry = r }
}

// New validates cfg and builds the schema, the schema writer and the
// splitter
func New(cfg *config.Config, opts ...Option) (*Connector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Connector{
		cfg:      cfg,
		splitter: NewSplitter(),
		registry: NewRegistry(),
		logger:   logger.Get(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "rest_connector"), zap.String("connector", cfg.Name))

	s, err := Schema(cfg)
	if err != nil {
		return nil, err
	}
	bindings, err := Bindings(cfg, s)
	if err != nil {
		return nil, err
	}
	writer, err := importer.FromBindings(bindings)
	if err != nil {
		return nil, err
	}
	out, err := timestamp.New(cfg.Timestamp.OutputFormat, cfg.Timestamp.Zone)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "timestamp.output_format")
	}
	c.schema, c.writer, c.outputFormatter = s, writer, out

	if c.fetcher == nil && cfg.Source.Kind == "http" {
		c.client = clients.NewHTTPClient(httpConfig(cfg.Source), c.logger, c.metrics)
		c.fetcher = c.client
	}
	if c.uploader == nil && cfg.Output.Upload != "" {
		u, err := objectstore.Open(context.Background(), cfg.Output.Upload, objectstore.Options{
			Region:          cfg.Output.Region,
			Endpoint:        cfg.Output.Endpoint,
			CredentialsFile: cfg.Output.CredentialsFile,
			Logger:          c.logger,
		})
		if err != nil {
			return nil, err
		}
		c.uploader = u
	}
	return c, nil
}

func httpConfig(src config.SourceConfig) *clients.HTTPConfig {
	hc := clients.DefaultHTTPConfig()
	if src.Timeout > 0 {
		hc.RequestTimeout = src.Timeout
	}
	hc.Headers = src.Headers
	hc.RateLimit = src.RateLimit
	hc.RateBurst = src.Burst
	return hc
}

// Schema builds the output schema from the column list
func Schema(cfg *config.Config) (*schema.Schema, error) {
	b := schema.NewBuilder()
	for i, col := range cfg.Columns {
		t, err := schema.ParseType(col.Type)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "columns[%d]", i)
		}
		b.Add(col.Name, t)
	}
	return b.Build()
}

// Bindings pairs every column of s with its locator and, for timestamps,
// its formatter. A column without a path reads the top-level key of the
// same name.
func Bindings(cfg *config.Config, s *schema.Schema) ([]importer.Binding, error) {
	bindings := make([]importer.Binding, 0, s.Len())
	for i, col := range s.Columns() {
		cc := cfg.Columns[i]

		loc := record.NewPath(record.Key(cc.Name))
		if cc.Path != "" {
			p, err := record.ParsePath(cc.Path)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "columns[%d].path", i)
			}
			loc = p
		}

		b := importer.Binding{Column: col, Locator: loc}
		if col.Type == schema.TypeTimestamp {
			f, err := columnFormatter(cfg.Timestamp, cc)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "columns[%d]", i)
			}
			b.Formatter = f
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}

func columnFormatter(defaults config.TimestampConfig, cc config.ColumnConfig) (*timestamp.Formatter, error) {
	pattern, zone := defaults.Format, defaults.Zone
	if cc.Format != "" {
		pattern = cc.Format
	}
	if cc.Zone != "" {
		zone = cc.Zone
	}
	return timestamp.New(pattern, zone)
}

func (c *Connector) Config() *config.Config                { return c.cfg }
func (c *Connector) Schema() *schema.Schema                { return c.schema }
func (c *Connector) SchemaWriter() *importer.SchemaWriter  { return c.writer }
func (c *Connector) Logger() *zap.Logger                   { return c.logger }
func (c *Connector) Metrics() *metrics.Metrics             { return c.metrics }
func (c *Connector) OutputFormatter() *timestamp.Formatter { return c.outputFormatter }

// Task returns the overall task
func (c *Connector) Task() (*Task, error) {
	return NewTask(c.cfg)
}

// NumberOfSplits reports how many sub-tasks t runs as
func (c *Connector) NumberOfSplits(t *Task) (int, error) {
	return c.splitter.NumberOfSplits(t)
}

// HintSplit returns sub-task index of t
func (c *Connector) HintSplit(t *Task, index int) (*Task, error) {
	sub, err := c.splitter.HintSplit(t, c.schema, index)
	if err != nil {
		return nil, err
	}
	sub.Index = index
	return sub, nil
}

// Plan splits the overall task into verified sub-tasks
func (c *Connector) Plan() ([]*Task, error) {
	t, err := c.Task()
	if err != nil {
		return nil, err
	}
	tasks, err := c.splitter.Plan(t)
	if err != nil {
		return nil, err
	}
	for i, sub := range tasks {
		sub.Index = i
	}
	c.metrics.SplitsPlanned(len(tasks))
	c.logger.Info("planned sub-tasks",
		zap.Stringer("window", t.Window),
		zap.String("cadence", c.cfg.Window.Cadence),
		zap.Int("splits", len(tasks)))
	return tasks, nil
}

// OpenSource opens the record source of t
func (c *Connector) OpenSource(ctx context.Context, t *Task) (source.Source, error) {
	return c.registry.CreateSource(ctx, c.cfg.Source.Kind, c, t)
}

func openHTTPSource(_ context.Context, c *Connector, t *Task) (source.Source, error) {
	src := c.cfg.Source
	if c.fetcher == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "the http source has no client")
	}
	windowFormat, err := timestamp.New(src.WindowFormat, c.cfg.Timestamp.Zone)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "source.window_format")
	}
	recordsPath, err := record.ParsePath(src.RecordsPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "source.records_path")
	}
	opts := source.HTTPOptions{
		URL:             src.URL,
		Window:          t.Window,
		WindowFormatter: windowFormat,
		BeginParam:      src.BeginParam,
		EndParam:        src.EndParam,
		RecordsPath:     recordsPath,
		CursorParam:     src.CursorParam,
		PageSize:        src.PageSize,
		PageSizeParam:   src.PageSizeParam,
		MaxPages:        src.MaxPages,
		Logger:          c.logger,
	}
	if src.NextPath != "" {
		next, err := record.ParsePath(src.NextPath)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "source.next_path")
		}
		opts.NextPath = &next
	}
	return source.NewHTTPSource(c.fetcher, opts)
}

func openFileSource(_ context.Context, c *Connector, t *Task) (source.Source, error) {
	src := c.cfg.Source
	recordsPath, err := record.ParsePath(src.RecordsPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "source.records_path")
	}
	f, err := timestamp.New(c.cfg.Timestamp.Format, c.cfg.Timestamp.Zone)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "timestamp.format")
	}
	opts := source.FileOptions{
		RecordsPath: recordsPath,
		Formatter:   f,
		Window:      t.Window,
		Logger:      c.logger,
	}
	if src.TimestampPath != "" {
		p, err := record.ParsePath(src.TimestampPath)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "source.timestamp_path")
		}
		opts.TimestampPath = &p
	}
	return source.OpenFile(src.Path, opts)
}

// Sink is the output of one sub-task
type Sink struct {
	formats.Writer
	// Path is empty for the none format
	Path    string
	file    *os.File
	metrics *metrics.Metrics
}

// Close flushes the writer and closes the file
func (s *Sink) Close() error {
	err := s.Writer.Close()
	if s.file != nil {
		if cerr := s.file.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close output").WithDetail("path", s.Path)
		}
	}
	s.metrics.BytesWritten(string(s.Format()), s.BytesWritten())
	return err
}

// OutputPath returns the file sub-task t writes to
func (c *Connector) OutputPath(t *Task) string {
	out := c.cfg.Output
	ext := formats.FileExtension(formats.Format(out.Format), compression.Algorithm(out.Compression))
	return filepath.Join(out.Path, fmt.Sprintf("%s-%03d%s", c.cfg.Name, t.Index, ext))
}

// OpenSink creates the output writer of t
func (c *Connector) OpenSink(t *Task) (*Sink, error) {
	out := c.cfg.Output
	wc := formats.WriterConfig{
		Format:      formats.Format(out.Format),
		Schema:      c.schema,
		Compression: compression.Algorithm(out.Compression),
		OmitNulls:   out.OmitNulls,
		Formatter:   c.outputFormatter,
		Name:        c.cfg.Name,
	}
	if wc.Format == formats.None {
		w, err := formats.NewWriter(nil, wc)
		if err != nil {
			return nil, err
		}
		return &Sink{Writer: w, metrics: c.metrics}, nil
	}

	path := c.OutputPath(t)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot create output directory").WithDetail("path", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot create output file").WithDetail("path", path)
	}
	w, err := formats.NewWriter(f, wc)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return &Sink{Writer: w, Path: path, file: f, metrics: c.metrics}, nil
}

// Publish hands a closed sink to the object store, when one is configured,
// and returns where the output of t now lives
func (c *Connector) Publish(ctx context.Context, t *Task, sink *Sink) (string, error) {
	if c.uploader == nil || sink.Path == "" {
		return sink.Path, nil
	}
	meta := map[string]string{
		"records":      fmt.Sprint(sink.RecordsWritten()),
		"format":       string(sink.Format()),
		"window_begin": t.Window.Begin.UTC().Format(time.RFC3339),
		"window_end":   t.Window.End.UTC().Format(time.RFC3339),
	}
	location, err := c.uploader.Upload(ctx, sink.Path, filepath.Base(sink.Path), meta)
	if err != nil {
		return "", err
	}
	if !c.cfg.Output.KeepLocal {
		if err := os.Remove(sink.Path); err != nil {
			c.logger.Warn("failed to remove uploaded output", zap.String("path", sink.Path), zap.Error(err))
		}
	}
	return location, nil
}

// Close releases the HTTP client and the uploader
func (c *Connector) Close() error {
	var errs []error
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	if c.uploader != nil {
		errs = append(errs, c.uploader.Close())
	}
	return errors.Join(errs...)
}

// Package config defines the task configuration of a REST extraction and
// loads it from YAML or JSON files with environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
	"github.com/ajitpratap0/nebula-restclient/pkg/schema"
)

// Cadence names accepted by window.cadence
const (
	CadenceCount    = "count"
	CadenceDuration = "duration"
	CadenceDaily    = "daily"
	CadenceWeekly   = "weekly"
	CadenceMonthly  = "monthly"
	CadenceYearly   = "yearly"
)

// Error policies accepted by performance.error_policy
const (
	PolicyFailFast   = "fail_fast"
	PolicySkipRecord = "skip_record"
)

// Config is the full description of one extraction task
type Config struct {
	Name          string              `yaml:"name" json:"name" mapstructure:"name"`
	Window        WindowConfig        `yaml:"window" json:"window" mapstructure:"window"`
	Timestamp     TimestampConfig     `yaml:"timestamp" json:"timestamp" mapstructure:"timestamp"`
	Columns       []ColumnConfig      `yaml:"columns" json:"columns" mapstructure:"columns"`
	Source        SourceConfig        `yaml:"source" json:"source" mapstructure:"source"`
	Output        OutputConfig        `yaml:"output" json:"output" mapstructure:"output"`
	Performance   PerformanceConfig   `yaml:"performance" json:"performance" mapstructure:"performance"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// WindowConfig is the overall extraction window and how it is split
type WindowConfig struct {
	Begin     string        `yaml:"begin" json:"begin" mapstructure:"begin"`
	End       string        `yaml:"end" json:"end" mapstructure:"end"`
	Cadence   string        `yaml:"cadence" json:"cadence" mapstructure:"cadence"`
	Count     int           `yaml:"count" json:"count" mapstructure:"count"`
	Step      time.Duration `yaml:"step" json:"step" mapstructure:"step"`
	MaxSplits int           `yaml:"max_splits" json:"max_splits" mapstructure:"max_splits"`
	Location  string        `yaml:"location" json:"location" mapstructure:"location"`
	WeekStart string        `yaml:"week_start" json:"week_start" mapstructure:"week_start"`
}

// TimestampConfig holds the default parsing and rendering rules
type TimestampConfig struct {
	Format       string `yaml:"format" json:"format" mapstructure:"format"`
	Zone         string `yaml:"zone" json:"zone" mapstructure:"zone"`
	OutputFormat string `yaml:"output_format" json:"output_format" mapstructure:"output_format"`
}

// ColumnConfig binds a destination column to a path in the service record
type ColumnConfig struct {
	Name string `yaml:"name" json:"name" mapstructure:"name"`
	Type string `yaml:"type" json:"type" mapstructure:"type"`
	// Path defaults to the column name
	Path   string `yaml:"path,omitempty" json:"path,omitempty" mapstructure:"path"`
	Format string `yaml:"format,omitempty" json:"format,omitempty" mapstructure:"format"`
	Zone   string `yaml:"zone,omitempty" json:"zone,omitempty" mapstructure:"zone"`
}

// SourceConfig describes where records come from
type SourceConfig struct {
	// Kind is http, file or a kind registered with the connector
	Kind string `yaml:"kind" json:"kind" mapstructure:"kind"`
	URL  string `yaml:"url,omitempty" json:"url,omitempty" mapstructure:"url"`
	// Path is a JSON lines or JSON array file for the file kind
	Path string `yaml:"path,omitempty" json:"path,omitempty" mapstructure:"path"`
	// RecordsPath locates the array of records inside a response page
	RecordsPath string `yaml:"records_path" json:"records_path" mapstructure:"records_path"`
	// NextPath locates the next page URL or cursor inside a response page
	NextPath      string `yaml:"next_path" json:"next_path" mapstructure:"next_path"`
	CursorParam   string `yaml:"cursor_param" json:"cursor_param" mapstructure:"cursor_param"`
	BeginParam    string `yaml:"begin_param" json:"begin_param" mapstructure:"begin_param"`
	EndParam      string `yaml:"end_param" json:"end_param" mapstructure:"end_param"`
	WindowFormat  string `yaml:"window_format" json:"window_format" mapstructure:"window_format"`
	PageSize      int    `yaml:"page_size" json:"page_size" mapstructure:"page_size"`
	PageSizeParam string `yaml:"page_size_param" json:"page_size_param" mapstructure:"page_size_param"`
	// MaxPages caps the pages fetched per sub-task; zero means no cap
	MaxPages  int               `yaml:"max_pages" json:"max_pages" mapstructure:"max_pages"`
	RateLimit float64           `yaml:"rate_limit" json:"rate_limit" mapstructure:"rate_limit"`
	Burst     int               `yaml:"burst" json:"burst" mapstructure:"burst"`
	Timeout   time.Duration     `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
	Headers   map[string]string `yaml:"headers,omitempty" json:"headers,omitempty" mapstructure:"headers"`
	// TimestampPath filters file records to the task window; empty keeps all
	TimestampPath string `yaml:"timestamp_path,omitempty" json:"timestamp_path,omitempty" mapstructure:"timestamp_path"`
}

// OutputConfig describes where sealed pages go
type OutputConfig struct {
	// Format is jsonl, arrow, avro or none
	Format      string `yaml:"format" json:"format" mapstructure:"format"`
	Path        string `yaml:"path" json:"path" mapstructure:"path"`
	Compression string `yaml:"compression" json:"compression" mapstructure:"compression"`
	OmitNulls   bool   `yaml:"omit_nulls" json:"omit_nulls" mapstructure:"omit_nulls"`
	// Upload is an s3:// or gs:// URL each sealed file is copied to
	Upload          string `yaml:"upload,omitempty" json:"upload,omitempty" mapstructure:"upload"`
	Region          string `yaml:"region,omitempty" json:"region,omitempty" mapstructure:"region"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" mapstructure:"endpoint"`
	CredentialsFile string `yaml:"credentials_file,omitempty" json:"credentials_file,omitempty" mapstructure:"credentials_file"`
	// KeepLocal keeps the local file after a successful upload
	KeepLocal bool `yaml:"keep_local" json:"keep_local" mapstructure:"keep_local"`
}

// PerformanceConfig controls sub-task execution
type PerformanceConfig struct {
	Workers     int    `yaml:"workers" json:"workers" mapstructure:"workers"`
	ErrorPolicy string `yaml:"error_policy" json:"error_policy" mapstructure:"error_policy"`
}

// ObservabilityConfig controls logging, metrics and tracing
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	LogEncoding string `yaml:"log_encoding" json:"log_encoding" mapstructure:"log_encoding"`
	// LogFile switches logging to a size-rotated file
	LogFile     string  `yaml:"log_file,omitempty" json:"log_file,omitempty" mapstructure:"log_file"`
	Metrics     bool    `yaml:"metrics" json:"metrics" mapstructure:"metrics"`
	MetricsAddr string  `yaml:"metrics_addr" json:"metrics_addr" mapstructure:"metrics_addr"`
	Tracing     bool    `yaml:"tracing" json:"tracing" mapstructure:"tracing"`
	SampleRate  float64 `yaml:"sample_rate" json:"sample_rate" mapstructure:"sample_rate"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	return &Config{
		Name: "restclient",
		Window: WindowConfig{
			Cadence:   CadenceDaily,
			Location:  "UTC",
			WeekStart: "monday",
		},
		Timestamp: TimestampConfig{
			Format:       "rfc3339",
			Zone:         "UTC",
			OutputFormat: "%Y-%m-%dT%H:%M:%S.%L%z",
		},
		Source: SourceConfig{
			Kind:         "http",
			RecordsPath:  "data",
			WindowFormat: "rfc3339",
			BeginParam:   "since",
			EndParam:     "until",
			Burst:        1,
			Timeout:      30 * time.Second,
		},
		Output: OutputConfig{
			Format:      "jsonl",
			Path:        "out",
			Compression: "none",
		},
		Performance: PerformanceConfig{
			Workers:     4,
			ErrorPolicy: PolicyFailFast,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogEncoding: "json",
			SampleRate:  1.0,
		},
	}
}

var (
	cadences     = []string{CadenceCount, CadenceDuration, CadenceDaily, CadenceWeekly, CadenceMonthly, CadenceYearly}
	policies     = []string{PolicyFailFast, PolicySkipRecord}
	outputs      = []string{"jsonl", "arrow", "avro", "none"}
	compressions = []string{"none", "gzip", "zstd", "s2", "snappy", "lz4"}
)

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if len(c.Columns) == 0 {
		return errors.New(errors.ErrorTypeConfig, "at least one column is required")
	}
	seen := make(map[string]bool, len(c.Columns))
	for i, col := range c.Columns {
		if col.Name == "" {
			return errors.Newf(errors.ErrorTypeConfig, "columns[%d] has no name", i)
		}
		if seen[col.Name] {
			return errors.Newf(errors.ErrorTypeConfig, "duplicate column %q", col.Name)
		}
		seen[col.Name] = true
		if _, err := schema.ParseType(col.Type); err != nil {
			return errors.Wrapf(err, errors.ErrorTypeConfig, "columns[%d]", i)
		}
	}

	if err := oneOf("window.cadence", c.Window.Cadence, cadences); err != nil {
		return err
	}
	switch c.Window.Cadence {
	case CadenceCount:
		if c.Window.Count < 1 {
			return errors.New(errors.ErrorTypeConfig, "window.count must be positive for the count cadence")
		}
	case CadenceDuration:
		if c.Window.Step <= 0 {
			return errors.New(errors.ErrorTypeConfig, "window.step must be positive for the duration cadence")
		}
	}
	if c.Window.MaxSplits < 0 {
		return errors.New(errors.ErrorTypeConfig, "window.max_splits cannot be negative")
	}
	if _, err := ParseWeekday(c.Window.WeekStart); err != nil {
		return err
	}

	begin, err := ParseTime(c.Window.Begin, c.Window.Location)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "window.begin")
	}
	end, err := ParseTime(c.Window.End, c.Window.Location)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "window.end")
	}
	if begin.After(end) {
		return errors.New(errors.ErrorTypeConfig, "window.begin is after window.end")
	}

	// other kinds are resolved by the connector's source registry
	if c.Source.Kind == "" {
		return errors.New(errors.ErrorTypeConfig, "source.kind is required")
	}
	if c.Source.Kind == "http" && c.Source.URL == "" {
		return errors.New(errors.ErrorTypeConfig, "source.url is required for the http source")
	}
	if c.Source.Kind == "file" && c.Source.Path == "" {
		return errors.New(errors.ErrorTypeConfig, "source.path is required for the file source")
	}
	if c.Source.MaxPages < 0 {
		return errors.New(errors.ErrorTypeConfig, "source.max_pages cannot be negative")
	}
	if c.Source.RateLimit < 0 {
		return errors.New(errors.ErrorTypeConfig, "source.rate_limit cannot be negative")
	}

	if err := oneOf("output.format", c.Output.Format, outputs); err != nil {
		return err
	}
	if err := oneOf("output.compression", c.Output.Compression, compressions); err != nil {
		return err
	}
	if c.Output.Upload != "" && c.Output.Format == "none" {
		return errors.New(errors.ErrorTypeConfig, "output.upload needs an output format")
	}
	if c.Performance.Workers < 1 {
		return errors.New(errors.ErrorTypeConfig, "performance.workers must be positive")
	}
	if err := oneOf("performance.error_policy", c.Performance.ErrorPolicy, policies); err != nil {
		return err
	}
	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		return errors.New(errors.ErrorTypeConfig, "observability.sample_rate must be within [0, 1]")
	}
	return nil
}

func oneOf(field, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return errors.Newf(errors.ErrorTypeConfig, "%s must be one of %s, got %q", field, strings.Join(allowed, ", "), value)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime reads a window bound. RFC 3339 values carry their own offset;
// dates and local date-times are read in zone.
func ParseTime(s, zone string) (time.Time, error) {
	loc := time.UTC
	if zone != "" {
		l, err := time.LoadLocation(zone)
		if err != nil {
			return time.Time{}, fmt.Errorf("unknown location %q: %w", zone, err)
		}
		loc = l
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time is required")
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a date or RFC 3339 time", s)
}

// ParseWeekday reads a weekday name; empty means Monday
func ParseWeekday(s string) (time.Weekday, error) {
	if s == "" {
		return time.Monday, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) || strings.EqualFold(d.String()[:3], s) {
			return d, nil
		}
	}
	return 0, errors.Newf(errors.ErrorTypeConfig, "unknown weekday %q", s)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-restclient/internal/pipeline"
	"github.com/ajitpratap0/nebula-restclient/pkg/config"
	"github.com/ajitpratap0/nebula-restclient/pkg/connector/rest"
	"github.com/ajitpratap0/nebula-restclient/pkg/json"
	"github.com/ajitpratap0/nebula-restclient/pkg/logger"
	"github.com/ajitpratap0/nebula-restclient/pkg/metrics"
	"github.com/ajitpratap0/nebula-restclient/pkg/observability"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "restclient",
		Short: "Extract time-windowed REST resources into typed files",
		Long: `restclient splits an extraction window into sub-tasks, pages through a
REST resource (or a local JSON file) for each of them and writes the
records, typed by a declared schema, as JSON lines, Arrow or Avro.`,
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "restclient v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "sources",
		Short: "List available source kinds",
		Run: func(cmd *cobra.Command, args []string) {
			for _, kind := range rest.NewRegistry().ListSources() {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", kind)
			}
		},
	})

	root.AddCommand(newValidateCmd(), newPlanCmd(), newRunCmd(), newGuessCmd())
	return root
}

// loader binds command flags onto the configuration keys they override
type loader struct {
	v          *viper.Viper
	configFile string
}

func newLoader(cmd *cobra.Command) *loader {
	l := &loader{}
	cmd.Flags().StringVarP(&l.configFile, "config", "c", "", "Path to the YAML or JSON task configuration (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().String("log-file", "", "Write logs to this size-rotated file instead of stderr")
	return l
}

// bind maps flag names to configuration keys
func (l *loader) bind(cmd *cobra.Command, keys map[string]string) *loader {
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		v, err := config.NewViper()
		if err != nil {
			return err
		}
		keys["log-level"] = "observability.log_level"
		keys["log-file"] = "observability.log_file"
		for flag, key := range keys {
			if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return err
				}
			}
		}
		l.v = v
		return nil
	}
	return l
}

func (l *loader) load() (*config.Config, error) {
	cfg, err := config.LoadWith(l.v, l.configFile)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogEncoding,
		File:     cfg.Observability.LogFile,
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a task configuration",
	}
	l := newLoader(cmd).bind(cmd, map[string]string{})
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := l.load()
		if err != nil {
			return err
		}
		conn, err := rest.New(cfg)
		if err != nil {
			return err
		}
		defer conn.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d columns, %s source, %s output\n",
			cfg.Name, conn.Schema().Len(), cfg.Source.Kind, cfg.Output.Format)
		return nil
	}
	return cmd
}

type plannedTask struct {
	Index  int       `json:"index"`
	Begin  time.Time `json:"begin"`
	End    time.Time `json:"end"`
	Output string    `json:"output,omitempty"`
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the sub-tasks a run would execute",
	}
	cmd.Flags().String("cadence", "", "Override window.cadence")
	cmd.Flags().Int("max-splits", 0, "Override window.max_splits")
	l := newLoader(cmd).bind(cmd, map[string]string{
		"cadence":    "window.cadence",
		"max-splits": "window.max_splits",
	})
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := l.load()
		if err != nil {
			return err
		}
		conn, err := rest.New(cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		tasks, err := conn.Plan()
		if err != nil {
			return err
		}
		planned := make([]plannedTask, len(tasks))
		for i, t := range tasks {
			planned[i] = plannedTask{Index: t.Index, Begin: t.Window.Begin, End: t.Window.End}
			if cfg.Output.Format != "none" {
				planned[i].Output = conn.OutputPath(t)
			}
		}
		return writeJSON(cmd.OutOrStdout(), planned)
	}
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every sub-task of a task configuration",
		Long: `Run plans the extraction window, runs the sub-tasks on a bounded worker
pool and prints a JSON report.

Example:
  restclient run --config orders.yaml --workers 8 --error-policy skip_record`,
	}
	cmd.Flags().Int("workers", runtime.NumCPU(), "Sub-tasks running at once")
	cmd.Flags().String("error-policy", config.PolicyFailFast, "fail_fast or skip_record")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	cmd.Flags().Duration("timeout", 0, "Stop the run after this long")
	l := newLoader(cmd).bind(cmd, map[string]string{
		"workers":      "performance.workers",
		"error-policy": "performance.error_policy",
		"metrics-addr": "observability.metrics_addr",
	})
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := l.load()
		if err != nil {
			return err
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")
		return run(cmd.Context(), cmd.OutOrStdout(), cfg, timeout)
	}
	return cmd
}

func run(ctx context.Context, out io.Writer, cfg *config.Config, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log := logger.Get().With(zap.String("component", "restclient-cli"))
	defer func() { _ = logger.Sync() }()

	if cfg.Observability.Tracing {
		tc := observability.DefaultTracingConfig()
		tc.ServiceName = cfg.Name
		tc.ServiceVersion = version
		tc.SamplingRate = cfg.Observability.SampleRate
		shutdown, err := observability.InitTracing(tc)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Warn("failed to flush spans", zap.Error(err))
			}
		}()
	}

	var m *metrics.Metrics
	if cfg.Observability.Metrics || cfg.Observability.MetricsAddr != "" {
		m = metrics.New()
	}
	if m != nil && cfg.Observability.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: cfg.Observability.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer srv.Close()
		log.Info("serving metrics", zap.String("addr", cfg.Observability.MetricsAddr))
	}

	conn, err := rest.New(cfg, rest.WithMetrics(m))
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warn("failed to close connector", zap.Error(err))
		}
	}()

	runner := pipeline.NewRunner(conn, pipeline.ConfigFrom(cfg))
	log.Info("starting run",
		zap.String("job_id", runner.JobID()),
		zap.String("source", cfg.Source.Kind),
		zap.String("output", cfg.Output.Format),
		zap.Int("workers", cfg.Performance.Workers),
		zap.String("error_policy", cfg.Performance.ErrorPolicy))

	report, runErr := runner.Run(ctx)
	if report != nil {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	}
	return runErr
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

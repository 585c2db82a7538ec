// Package metrics exposes Prometheus collectors for extraction runs.
//
// A Metrics value owns its collectors and the registry they are registered
// with, so tests and embedded runs never share state with the process-wide
// default. Every method is safe on a nil *Metrics, which records nothing.
//
// # Basic Usage
//
//	m := metrics.New()
//	m.SplitsPlanned(len(windows))
//	timer := m.StartTask()
//	...
//	timer.ObserveDuration("success")
//	http.Handle("/metrics", m.Handler())
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "restclient"

// Metrics groups the collectors of one run
type Metrics struct {
	registry *prometheus.Registry

	recordsImported prometheus.Counter
	recordsSkipped  prometheus.Counter
	columnFailures  *prometheus.CounterVec
	splitsPlanned   prometheus.Counter
	activeTasks     prometheus.Gauge
	taskDuration    *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	httpLatency     prometheus.Histogram
	bytesWritten    *prometheus.CounterVec
}

// New registers a fresh set of collectors on their own registry, together
// with the Go runtime and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		recordsImported: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_imported_total",
			Help:      "Rows committed to a page",
		}),
		recordsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Rows discarded because a column failed to import",
		}),
		columnFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "column_import_failures_total",
			Help:      "Column import failures by column and type",
		}, []string{"column", "type"}),
		splitsPlanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "splits_planned_total",
			Help:      "Sub-tasks produced by the splitter",
		}),
		activeTasks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_tasks",
			Help:      "Sub-tasks currently running",
		}),
		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Sub-task wall time by outcome",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"status"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Service requests by status code",
		}, []string{"code"}),
		httpLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Service request latency",
			Buckets:   prometheus.DefBuckets,
		}),
		bytesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_bytes_total",
			Help:      "Bytes written to outputs by format",
		}, []string{"format"}),
	}
}

// Registry returns the registry the collectors live in
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordsImported(n int) {
	if m == nil {
		return
	}
	m.recordsImported.Add(float64(n))
}

func (m *Metrics) RecordsSkipped(n int) {
	if m == nil {
		return
	}
	m.recordsSkipped.Add(float64(n))
}

// ColumnFailure counts one failed value of column
func (m *Metrics) ColumnFailure(column, columnType string) {
	if m == nil {
		return
	}
	m.columnFailures.WithLabelValues(column, columnType).Inc()
}

func (m *Metrics) SplitsPlanned(n int) {
	if m == nil {
		return
	}
	m.splitsPlanned.Add(float64(n))
}

// HTTPRequest records one service round trip; code 0 means no response
func (m *Metrics) HTTPRequest(code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(strconv.Itoa(code)).Inc()
	m.httpLatency.Observe(d.Seconds())
}

func (m *Metrics) BytesWritten(format string, n int64) {
	if m == nil {
		return
	}
	m.bytesWritten.WithLabelValues(format).Add(float64(n))
}

// TaskTimer measures one sub-task
type TaskTimer struct {
	m     *Metrics
	start time.Time
}

// StartTask marks a sub-task active until the timer is observed
func (m *Metrics) StartTask() *TaskTimer {
	if m != nil {
		m.activeTasks.Inc()
	}
	return &TaskTimer{m: m, start: time.Now()}
}

// ObserveDuration records the elapsed time under status and returns it
func (t *TaskTimer) ObserveDuration(status string) time.Duration {
	d := time.Since(t.start)
	if t.m == nil {
		return d
	}
	t.m.activeTasks.Dec()
	t.m.taskDuration.WithLabelValues(status).Observe(d.Seconds())
	return d
}

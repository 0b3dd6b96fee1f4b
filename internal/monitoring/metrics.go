// Package monitoring exposes Prometheus metrics for sessions, terminal I/O
// volume, and the HTTP surface.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Each Metrics value carries its own
// registry so independent instances never collide.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsSpawned prometheus.Counter
	SpawnFailures   prometheus.Counter
	SessionsKilled  prometheus.Counter

	// Terminal I/O metrics
	BytesRead    prometheus.Counter
	BytesWritten prometheus.Counter

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ptybridge_sessions_active",
				Help: "Number of live PTY sessions",
			},
		),
		SessionsSpawned: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptybridge_sessions_spawned_total",
				Help: "Total number of sessions spawned",
			},
		),
		SpawnFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptybridge_spawn_failures_total",
				Help: "Total number of failed spawn attempts",
			},
		),
		SessionsKilled: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptybridge_sessions_killed_total",
				Help: "Total number of kill requests that terminated a child",
			},
		),

		BytesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptybridge_terminal_bytes_read_total",
				Help: "Bytes of terminal output delivered to callers",
			},
		),
		BytesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptybridge_terminal_bytes_written_total",
				Help: "Bytes of input submitted to terminals",
			},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ptybridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ptybridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ptybridge_ws_connections",
				Help: "Number of active WebSocket attachments",
			},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ptybridge_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
	}

	return m
}

// Handler returns an HTTP handler serving this collector's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}

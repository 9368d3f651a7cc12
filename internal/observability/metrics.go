// Package observability exposes Prometheus metrics for the FloodLoop service.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the API
// and the live feed. It satisfies core.MetricsCollector.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec   // labels: method, endpoint, status
	RequestDuration *prometheus.HistogramVec // labels: method, endpoint

	SnapshotsTotal prometheus.Counter
	AlertsFired    prometheus.Counter
	ActiveStreams  prometheus.Gauge
}

// NewMetrics creates all service metrics on a dedicated registry. A dedicated
// registry keeps tests free of "already registered" panics and the /metrics
// endpoint free of unrelated default collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodloop",
			Name:      "http_requests_total",
			Help:      "Total API requests by method, endpoint, and status.",
		}, []string{"method", "endpoint", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "floodloop",
			Name:      "http_request_duration_seconds",
			Help:      "API request duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "endpoint"}),
		SnapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floodloop",
			Name:      "snapshots_recorded_total",
			Help:      "Total weather snapshots persisted.",
		}),
		AlertsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floodloop",
			Name:      "alerts_fired_total",
			Help:      "Total alert firings across all evaluations.",
		}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "floodloop",
			Name:      "active_streams",
			Help:      "Currently open live feed streams.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.SnapshotsTotal,
		m.AlertsFired,
		m.ActiveStreams,
	)

	return m
}

// RecordRequest implements core.MetricsCollector.
func (m *Metrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

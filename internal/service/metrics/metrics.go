// Package metrics provides Prometheus metrics for the sync service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the sync service.
type Metrics struct {
	// Authentication metrics
	AuthRequestsTotal *prometheus.CounterVec
	SessionsIssued    prometheus.Counter

	// CSRF metrics
	CSRFIssuedTotal   prometheus.Counter
	CSRFRejectedTotal prometheus.Counter

	// Rate limit metrics
	RateLimitedTotal *prometheus.CounterVec

	// Sync metrics
	SyncReadsTotal    prometheus.Counter
	SyncWritesTotal   prometheus.Counter
	DocumentSizeBytes *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Registry for metrics
	Registry *prometheus.Registry
}

// New creates a Metrics instance with all metrics registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return &Metrics{
		Registry: reg,

		AuthRequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "probsync_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"action", "status"},
		),
		SessionsIssued: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "probsync_sessions_issued_total",
				Help: "Total number of session tokens issued",
			},
		),

		CSRFIssuedTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "probsync_csrf_issued_total",
				Help: "Total number of CSRF tokens issued",
			},
		),
		CSRFRejectedTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "probsync_csrf_rejected_total",
				Help: "Total number of requests rejected by CSRF validation",
			},
		),

		RateLimitedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "probsync_rate_limited_total",
				Help: "Total number of rate-limited requests",
			},
			[]string{"endpoint"},
		),

		SyncReadsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "probsync_sync_reads_total",
				Help: "Total number of user document reads",
			},
		),
		SyncWritesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "probsync_sync_writes_total",
				Help: "Total number of user document writes",
			},
		),
		DocumentSizeBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "probsync_document_size_bytes",
				Help:    "Stored user document size in bytes",
				Buckets: prometheus.ExponentialBuckets(64, 4, 8),
			},
			[]string{"encoding"},
		),

		HTTPRequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "probsync_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "probsync_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "probsync_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),
	}
}

// Handler returns an HTTP handler for serving Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{
		Registry:          m.Registry,
		EnableOpenMetrics: true,
	})
}

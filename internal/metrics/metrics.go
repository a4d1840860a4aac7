package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the dashboard backend.
type Metrics struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Store metrics
	SnapshotSaves  *prometheus.CounterVec
	ClientsTotal   prometheus.Gauge
	ReportsTotal   prometheus.Gauge

	// External calls
	Syncs         *prometheus.CounterVec
	Analyses      *prometheus.CounterVec
	GraphLatency  *prometheus.HistogramVec
	GeminiLatency *prometheus.HistogramVec

	// Rate limiting
	RateLimitHits *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"method", "path"},
		),
		SnapshotSaves: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_saves_total",
				Help:      "Snapshot writes to the durable slots",
			},
			[]string{"status"},
		),
		ClientsTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "clients_total",
				Help:      "Number of clients in the store",
			},
		),
		ReportsTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reports_total",
				Help:      "Number of weekly reports in the store",
			},
		),
		Syncs: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "syncs_total",
				Help:      "Ad platform sync attempts by outcome",
			},
			[]string{"status"}, // ok, no_data, error
		),
		Analyses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Insight generator invocations by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		GraphLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graph_api_latency_seconds",
				Help:      "Meta Graph API call latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint"},
		),
		GeminiLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gemini_latency_seconds",
				Help:      "Insight generator call latency in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"model"},
		),
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"path"},
		),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, path, http.StatusText(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSnapshotSave records a snapshot write outcome.
func (m *Metrics) RecordSnapshotSave(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SnapshotSaves.WithLabelValues(status).Inc()
}

// RecordSync records a sync outcome ("ok", "no_data" or "error").
func (m *Metrics) RecordSync(status string) {
	m.Syncs.WithLabelValues(status).Inc()
}

// RecordAnalysis records an insight generator call.
func (m *Metrics) RecordAnalysis(kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Analyses.WithLabelValues(kind, status).Inc()
}

// RecordGraphCall records a Graph API call latency.
func (m *Metrics) RecordGraphCall(endpoint string, duration time.Duration) {
	m.GraphLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordGeminiCall records an insight generator call latency.
func (m *Metrics) RecordGeminiCall(model string, duration time.Duration) {
	m.GeminiLatency.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordRateLimitHit records a rate limit rejection.
func (m *Metrics) RecordRateLimitHit(path string) {
	m.RateLimitHits.WithLabelValues(path).Inc()
}

// UpdateStoreCounts updates the client/report gauges.
func (m *Metrics) UpdateStoreCounts(clients, reports int) {
	m.ClientsTotal.Set(float64(clients))
	m.ReportsTotal.Set(float64(reports))
}

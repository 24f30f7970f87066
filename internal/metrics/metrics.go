package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRegistry holds all Prometheus metrics for Flightline
type MetricsRegistry struct {
	// HTTP Metrics
	HTTPRequestsTotal    prometheus.CounterVec
	HTTPRequestDuration  prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.GaugeVec

	// Checklist Metrics
	ChecklistTransitionsTotal prometheus.CounterVec

	// Import Metrics
	ImportOutcomesTotal   prometheus.CounterVec
	ProviderQueryDuration prometheus.HistogramVec
	TrackPointsWritten    prometheus.Counter
}

// NewMetricsRegistry initializes and returns a new MetricsRegistry with all metrics
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		// HTTP Metrics
		HTTPRequestsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightline_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		HTTPRequestDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flightline_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint", "method"},
		),
		HTTPRequestsInFlight: *promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flightline_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"endpoint"},
		),

		// Checklist Metrics
		ChecklistTransitionsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightline_checklist_transitions_total",
				Help: "Checklist run transitions by phase and transition kind",
			},
			[]string{"phase", "transition"},
		),

		// Import Metrics
		ImportOutcomesTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightline_import_outcomes_total",
				Help: "Auto-import pipeline outcomes (matched, ambiguous, empty, failed)",
			},
			[]string{"outcome"},
		),
		ProviderQueryDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flightline_provider_query_duration_seconds",
				Help:    "Track provider query latency in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
			},
			[]string{"provider"},
		),
		TrackPointsWritten: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "flightline_track_points_written_total",
				Help: "Total track points persisted by attach and refresh",
			},
		),
	}
}

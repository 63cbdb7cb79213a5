// Package metrics provides Prometheus metrics collection for the serving
// adapter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics exposed by a seam server.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Validation metrics
	ValidationFailures *prometheus.CounterVec

	// Schema metrics
	SchemaRequests prometheus.Counter
}

// New creates a collector registered on the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector registered on a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "seam",
				Name:      "requests_total",
				Help:      "Total number of procedure calls processed",
			},
			[]string{"procedure", "kind", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "seam",
				Name:      "request_duration_seconds",
				Help:      "Procedure call duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"procedure", "kind"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "seam",
				Name:      "requests_in_flight",
				Help:      "Number of procedure calls currently being processed",
			},
		),
		ValidationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "seam",
				Name:      "validation_failures_total",
				Help:      "Total number of payload validation failures",
			},
			[]string{"procedure", "direction"},
		),
		SchemaRequests: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "seam",
				Name:      "schema_requests_total",
				Help:      "Total number of schema snapshot requests",
			},
		),
	}
}

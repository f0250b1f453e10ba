// Package metrics exposes Prometheus instrumentation for the analysis
// pipeline and the HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline and HTTP metrics for the service.
type Metrics struct {
	registry *prometheus.Registry

	SubmissionsTotal   prometheus.Counter
	SubmissionFailures *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	ActiveSessions     prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
}

// New creates a metrics set on its own registry so tests can instantiate it
// repeatedly.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		SubmissionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "resonanze_submissions_total",
			Help: "Total number of audio submissions accepted into the pipeline",
		}),
		SubmissionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resonanze_submission_failures_total",
			Help: "Pipeline failures by stage",
		}, []string{"stage"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "resonanze_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "resonanze_active_sessions",
			Help: "Current number of tracked sessions",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resonanze_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"route", "status"}),
	}
}

// Registry returns the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Validator metrics
	ValidationsTotal *prometheus.CounterVec

	// Admission queue metrics
	SubmissionsTotal *prometheus.CounterVec
	RunningJobs      prometheus.Gauge
	QueuedJobs       prometheus.Gauge

	// Stats stream metrics
	WSConnections prometheus.Gauge
}

// NewMetrics creates a metrics collector backed by its own registry, so
// repeated construction (tests, multiple servers) never double-registers.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scriptgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ValidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptgate_validations_total",
				Help: "Script validations by outcome and error type",
			},
			[]string{"outcome", "error_type"},
		),
		SubmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptgate_submissions_total",
				Help: "Execution submissions by admission decision",
			},
			[]string{"decision"},
		),
		RunningJobs: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptgate_running_jobs",
				Help: "Number of jobs currently executing",
			},
		),
		QueuedJobs: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptgate_queued_jobs",
				Help: "Number of jobs waiting for a running slot",
			},
		),
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptgate_ws_connections",
				Help: "Number of active stats stream connections",
			},
		),
	}
}

// Registry exposes the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordValidation counts one validation outcome. errType is empty for
// valid scripts.
func (m *Metrics) RecordValidation(valid bool, errType string) {
	outcome := "valid"
	if !valid {
		outcome = "rejected"
	}
	m.ValidationsTotal.WithLabelValues(outcome, errType).Inc()
}

// RecordSubmission counts one admission decision.
func (m *Metrics) RecordSubmission(decision string) {
	m.SubmissionsTotal.WithLabelValues(decision).Inc()
}

// SetQueueLoad updates the load gauges from a stats snapshot.
func (m *Metrics) SetQueueLoad(running, queued int) {
	m.RunningJobs.Set(float64(running))
	m.QueuedJobs.Set(float64(queued))
}

// Package metrics provides Prometheus metrics for kycform.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Connections
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter

	// Events
	EventsTotal   *prometheus.CounterVec
	EventDuration *prometheus.HistogramVec

	// Renders
	RenderDuration prometheus.Histogram
	DiffSize       prometheus.Histogram

	// Form
	ValidationFailures *prometheus.CounterVec
	StepTransitions    *prometheus.CounterVec

	// Submissions
	SubmissionsInFlight prometheus.Gauge
	SubmissionsTotal    *prometheus.CounterVec
	SubmissionDuration  prometheus.Histogram

	// Snapshots
	SnapshotErrors *prometheus.CounterVec
}

// New creates a metrics instance with the given namespace.
// Go runtime and process collectors are registered alongside.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of active LiveView connections",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total LiveView connections established",
		}),

		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Client events handled, by event and status",
		}, []string{"event", "status"}),
		EventDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_duration_seconds",
			Help:      "Time spent handling a client event including render",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"event"}),

		RenderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Component render duration",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		DiffSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "diff_size_bytes",
			Help:      "Size of diffs pushed to clients",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 10),
		}),

		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Field validation failures, by step and field",
		}, []string{"step", "field"}),
		StepTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_transitions_total",
			Help:      "Form phase transitions, by source and target phase",
		}, []string{"from", "to"}),

		SubmissionsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "submissions_in_flight",
			Help:      "Submissions currently waiting on the provider",
		}),
		SubmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Completed submissions, by outcome",
		}, []string{"outcome"}),
		SubmissionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_duration_seconds",
			Help:      "Submission provider latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 2.5, 5, 10},
		}),

		SnapshotErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_errors_total",
			Help:      "Session snapshot store failures, by operation",
		}, []string{"op"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ConnectionOpened records a new connection.
func (m *Metrics) ConnectionOpened() {
	m.ConnectionsTotal.Inc()
	m.ConnectionsActive.Inc()
}

// ConnectionClosed records a closed connection.
func (m *Metrics) ConnectionClosed() {
	m.ConnectionsActive.Dec()
}

// RecordEvent records a handled client event.
func (m *Metrics) RecordEvent(event string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.EventsTotal.WithLabelValues(event, status).Inc()
	m.EventDuration.WithLabelValues(event).Observe(duration.Seconds())
}

// RecordRender records a render and the size of the resulting diff.
func (m *Metrics) RecordRender(duration time.Duration, diffSize int) {
	m.RenderDuration.Observe(duration.Seconds())
	if diffSize > 0 {
		m.DiffSize.Observe(float64(diffSize))
	}
}

// Nop returns metrics bound to a throwaway registry, for tests and tools
// that do not expose an endpoint.
func Nop() *Metrics {
	return New("nop")
}

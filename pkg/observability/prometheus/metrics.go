// Package prometheus instruments the state machine dispatch engine with
// Prometheus metrics. The package holds no reference to the engine;
// machines record into a Metrics collection through the observer and
// WithMetrics hooks.
package prometheus

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DefaultRegistry is the default Prometheus registry
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer is the default Prometheus registerer
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "hsm"}, DefaultRegistry)

	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics holds all Prometheus metrics for the dispatch engine.
type Metrics struct {
	// Dispatch loop metrics
	EventsDispatchedTotal *prometheus.CounterVec
	DispatchDuration      *prometheus.HistogramVec

	// Transition outcome metrics
	TransitionsTotal     *prometheus.CounterVec
	GuardRejectionsTotal *prometheus.CounterVec
	UnhandledEventsTotal *prometheus.CounterVec

	// Queue metrics
	QueueDepth prometheus.Gauge
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics creates a new metrics collection
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}

	return &Metrics{
		EventsDispatchedTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hsm_events_dispatched_total",
				Help: "Total number of events dispatched by the root machine",
			},
			[]string{"machine"},
		),
		DispatchDuration: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hsm_dispatch_duration_seconds",
				Help:    "Time spent dispatching a single event",
				Buckets: []float64{.000001, .00001, .0001, .001, .01, .1, 1},
			},
			[]string{"machine"},
		),
		TransitionsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hsm_transitions_total",
				Help: "Total number of state transitions executed",
			},
			[]string{"machine", "from", "to"},
		),
		GuardRejectionsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hsm_guard_rejections_total",
				Help: "Total number of transitions cancelled by a guard",
			},
			[]string{"machine", "state"},
		),
		UnhandledEventsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hsm_unhandled_events_total",
				Help: "Total number of events that bubbled to the root without a match",
			},
			[]string{"machine"},
		),
		QueueDepth: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "hsm_queue_depth",
				Help: "Number of undelivered events in the queue",
			},
		),
	}
}

// RecordDispatch records one pass of the dispatch loop
func (m *Metrics) RecordDispatch(machine string, duration time.Duration) {
	m.EventsDispatchedTotal.WithLabelValues(machine).Inc()
	m.DispatchDuration.WithLabelValues(machine).Observe(duration.Seconds())
}

// RecordTransition records an executed state transition
func (m *Metrics) RecordTransition(machine, from, to string) {
	m.TransitionsTotal.WithLabelValues(machine, from, to).Inc()
}

// RecordGuardRejection records a transition cancelled by its guard
func (m *Metrics) RecordGuardRejection(machine, state string) {
	m.GuardRejectionsTotal.WithLabelValues(machine, state).Inc()
}

// RecordUnhandled records an event unhandled at the top level
func (m *Metrics) RecordUnhandled(machine string) {
	m.UnhandledEventsTotal.WithLabelValues(machine).Inc()
}

// SetQueueDepth updates the queue depth gauge
func (m *Metrics) SetQueueDepth(n int) {
	m.QueueDepth.Set(float64(n))
}

package hsm

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hsmio/hsm/pkg/core"
	obsprom "github.com/hsmio/hsm/pkg/observability/prometheus"
)

// Observer is notified of dispatch outcomes. Observers run synchronously
// on the dispatch goroutine, so every callback for event i completes
// before event i+1 is processed; implementations must not block.
type Observer interface {
	OnTransition(machine string, from, to State, e Event)
	OnGuardRejected(machine string, state State, e Event)
	OnUnhandled(machine string, e Event)
}

// LoggingObserver logs all dispatch outcomes.
type LoggingObserver struct {
	logger core.Logger
}

// NewLoggingObserver creates a new logging observer.
func NewLoggingObserver(logger core.Logger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

func (o *LoggingObserver) OnTransition(machine string, from, to State, e Event) {
	o.logger.Infof("observer: %s transitioned %s -> %s (event %d)",
		machine, from.Name(), to.Name(), e.ID)
}

func (o *LoggingObserver) OnGuardRejected(machine string, state State, e Event) {
	o.logger.Infof("observer: %s guard rejected event %d in state %s",
		machine, e.ID, state.Name())
}

func (o *LoggingObserver) OnUnhandled(machine string, e Event) {
	o.logger.Errorf("observer: %s could not handle event %d", machine, e.ID)
}

// MetricsObserver records dispatch outcomes as Prometheus metrics.
type MetricsObserver struct {
	metrics *obsprom.Metrics
}

// NewMetricsObserver creates an observer backed by the given metrics
// collection.
func NewMetricsObserver(metrics *obsprom.Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: metrics}
}

func (o *MetricsObserver) OnTransition(machine string, from, to State, e Event) {
	o.metrics.RecordTransition(machine, from.Name(), to.Name())
}

func (o *MetricsObserver) OnGuardRejected(machine string, state State, e Event) {
	o.metrics.RecordGuardRejection(machine, state.Name())
}

func (o *MetricsObserver) OnUnhandled(machine string, e Event) {
	o.metrics.RecordUnhandled(machine)
}

// TracingObserver emits one OpenTelemetry span per dispatch outcome,
// carrying the machine, states and event id as attributes.
type TracingObserver struct {
	tracer trace.Tracer
}

// NewTracingObserver creates an observer emitting spans through the given
// tracer provider.
func NewTracingObserver(tp trace.TracerProvider) *TracingObserver {
	return &TracingObserver{tracer: tp.Tracer("github.com/hsmio/hsm")}
}

func (o *TracingObserver) OnTransition(machine string, from, to State, e Event) {
	_, span := o.tracer.Start(context.Background(), "hsm.transition",
		trace.WithAttributes(
			attribute.String("hsm.machine", machine),
			attribute.String("hsm.from", from.Name()),
			attribute.String("hsm.to", to.Name()),
			attribute.String("hsm.event", strconv.Itoa(int(e.ID))),
		))
	span.End()
}

func (o *TracingObserver) OnGuardRejected(machine string, state State, e Event) {
	_, span := o.tracer.Start(context.Background(), "hsm.guard_rejected",
		trace.WithAttributes(
			attribute.String("hsm.machine", machine),
			attribute.String("hsm.state", state.Name()),
			attribute.String("hsm.event", strconv.Itoa(int(e.ID))),
		))
	span.End()
}

func (o *TracingObserver) OnUnhandled(machine string, e Event) {
	_, span := o.tracer.Start(context.Background(), "hsm.unhandled",
		trace.WithAttributes(
			attribute.String("hsm.machine", machine),
			attribute.String("hsm.event", strconv.Itoa(int(e.ID))),
		))
	span.End()
}

// ChainObserver fans callbacks out to multiple observers in order.
type ChainObserver struct {
	observers []Observer
}

// NewChainObserver creates a new chain observer.
func NewChainObserver(observers ...Observer) *ChainObserver {
	return &ChainObserver{observers: observers}
}

func (o *ChainObserver) OnTransition(machine string, from, to State, e Event) {
	for _, observer := range o.observers {
		observer.OnTransition(machine, from, to, e)
	}
}

func (o *ChainObserver) OnGuardRejected(machine string, state State, e Event) {
	for _, observer := range o.observers {
		observer.OnGuardRejected(machine, state, e)
	}
}

func (o *ChainObserver) OnUnhandled(machine string, e Event) {
	for _, observer := range o.observers {
		observer.OnUnhandled(machine, e)
	}
}

package hsm

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace/noop"

	obsprom "github.com/hsmio/hsm/pkg/observability/prometheus"
)

func TestLoggingObserver(t *testing.T) {
	buf := &safeBuffer{}
	o := NewLoggingObserver(newBufferLogger(buf))

	from := NewState("from")
	to := NewState("to")

	o.OnTransition("m", from, to, Event{ID: evGo})
	o.OnGuardRejected("m", from, Event{ID: evGo})
	o.OnUnhandled("m", Event{ID: evUnknown})

	out := buf.String()
	assert.Contains(t, out, "transitioned from -> to")
	assert.Contains(t, out, "guard rejected")
	assert.Contains(t, out, "could not handle")
}

func TestMetricsObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := obsprom.NewMetrics(reg)
	o := NewMetricsObserver(metrics)

	from := NewState("from")
	to := NewState("to")

	o.OnTransition("m", from, to, Event{ID: evGo})
	o.OnTransition("m", from, to, Event{ID: evGo})
	o.OnGuardRejected("m", from, Event{ID: evGo})
	o.OnUnhandled("m", Event{ID: evUnknown})

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.TransitionsTotal.WithLabelValues("m", "from", "to")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GuardRejectionsTotal.WithLabelValues("m", "from")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UnhandledEventsTotal.WithLabelValues("m")))
}

func TestTracingObserverDoesNotPanic(t *testing.T) {
	o := NewTracingObserver(noop.NewTracerProvider())

	from := NewState("from")
	to := NewState("to")

	o.OnTransition("m", from, to, Event{ID: evGo})
	o.OnGuardRejected("m", from, Event{ID: evGo})
	o.OnUnhandled("m", Event{ID: evUnknown})
}

func TestChainObserverFansOut(t *testing.T) {
	first := &recorder{}
	second := &recorder{}
	chain := NewChainObserver(first, second)

	from := NewState("from")
	to := NewState("to")
	chain.OnTransition("m", from, to, Event{ID: evGo})
	chain.OnUnhandled("m", Event{ID: evUnknown})

	assert.Equal(t, []string{"from->to"}, first.transitions)
	assert.Equal(t, []string{"from->to"}, second.transitions)
	assert.Equal(t, 1, first.unhandledCount())
	assert.Equal(t, 1, second.unhandledCount())
}

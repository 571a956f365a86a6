package hsm

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsmio/hsm/pkg/queue"
)

func newSimpleMachine(t *testing.T, q *queue.EventQueue[Event], opts ...MachineOption) (*Machine, State, State) {
	t.Helper()

	a := NewState("A")
	b := NewState("B")
	c := NewState("C")

	opts = append([]MachineOption{WithLogger(quietLogger())}, opts...)
	m, err := NewMachine("M", a, c, q, opts...)
	require.NoError(t, err)
	require.NoError(t, m.Add(a, evGo, b))
	require.NoError(t, m.Add(b, evFinish, c))
	return m, a, b
}

func TestShutdownFromAnotherGoroutine(t *testing.T) {
	q := queue.New[Event]()
	m, _, b := newSimpleMachine(t, q)

	require.NoError(t, m.Start())
	require.NoError(t, q.Push(Event{ID: evGo}))
	waitFor(t, func() bool { return m.CurrentState() == b })

	errs := make(chan error, 1)
	go func() {
		errs <- m.Stop()
	}()

	select {
	case err := <-errs:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	assert.True(t, m.Interrupted())
	assert.Nil(t, m.CurrentState())
	assert.True(t, q.Stopped())

	// Second shutdown is a no-op
	require.NoError(t, m.Stop())
}

func TestConcurrentStopsAreSafe(t *testing.T) {
	q := queue.New[Event]()
	m, _, _ := newSimpleMachine(t, q)
	require.NoError(t, m.Start())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Stop()
		}()
	}
	wg.Wait()

	assert.True(t, m.Interrupted())
	assert.Nil(t, m.CurrentState())
}

func TestStopWithoutEvents(t *testing.T) {
	q := queue.New[Event]()
	m, a, _ := newSimpleMachine(t, q)

	require.NoError(t, m.Start())
	assert.Equal(t, a, m.CurrentState())
	require.NoError(t, m.Stop())
}

func TestUnexpectedQueueStopIsFatal(t *testing.T) {
	q := queue.New[Event]()
	m, _, _ := newSimpleMachine(t, q)

	require.NoError(t, m.Start())

	// Stopping the queue without shutting the machine down is not an
	// orderly interruption; the loop records it as a failure.
	q.Stop()
	time.Sleep(50 * time.Millisecond)

	err := m.Stop()
	require.Error(t, err)
	assert.True(t, errors.Is(err, &Error{Code: ErrorCodeQueueInterrupted}))
}

func TestStepPolicyDrivesMachineSynchronously(t *testing.T) {
	q := queue.New[Event]()
	p := NewStepPolicy()
	m, _, b := newSimpleMachine(t, q, WithPolicy(p))

	require.NoError(t, m.Start())

	require.NoError(t, q.Push(Event{ID: evGo}))
	require.NoError(t, p.Step())
	assert.Equal(t, b, m.CurrentState())

	require.NoError(t, m.Stop())
	assert.ErrorIs(t, p.Step(), queue.ErrInterrupted)
}

func TestStepPolicyReachesStopState(t *testing.T) {
	q := queue.New[Event]()
	p := NewStepPolicy()
	m, _, _ := newSimpleMachine(t, q, WithPolicy(p))

	require.NoError(t, m.Start())
	require.NoError(t, q.Push(Event{ID: evGo}))
	require.NoError(t, q.Push(Event{ID: evFinish}))

	require.NoError(t, p.Step())
	require.NoError(t, p.Step())

	assert.True(t, m.Interrupted())
	assert.Nil(t, m.CurrentState())
	assert.True(t, q.Stopped())
}

func TestGoroutinePolicyStartIsIdempotent(t *testing.T) {
	q := queue.New[Event]()
	p := NewGoroutinePolicy()
	m, _, b := newSimpleMachine(t, q, WithPolicy(p))

	require.NoError(t, m.Start())
	p.Start(m) // second Start must not spawn a second loop

	require.NoError(t, q.Push(Event{ID: evGo}))
	waitFor(t, func() bool { return m.CurrentState() == b })
	require.NoError(t, m.Stop())
}

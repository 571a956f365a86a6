package hsm

import (
	"sync/atomic"

	"github.com/hsmio/hsm/pkg/core"
	"github.com/hsmio/hsm/pkg/queue"
)

// Root is the surface an execution policy drives: the root composite of a
// machine hierarchy. Both *Machine and *Orthogonal implement it.
type Root interface {
	Name() string
	Queue() *queue.EventQueue[Event]
	Dispatch(e Event)
	Interrupted() bool
	Logger() core.Logger
}

// ExecutionPolicy is the strategy that drives the dispatch loop. Start
// launches the loop; Stop waits for it to terminate and returns its
// failure, if any. The library ships a dedicated-goroutine policy and a
// caller-driven step policy; user-supplied policies must honor the same
// contract.
type ExecutionPolicy interface {
	Start(r Root)
	Stop() error
}

// GoroutinePolicy drives the dispatch loop on a dedicated goroutine. The
// loop dequeues events until the queue reports interruption: with the
// root's interrupt flag set that is an orderly shutdown; without it the
// failure is retained and returned from Stop.
type GoroutinePolicy struct {
	root    Root
	done    chan struct{}
	started atomic.Bool
	err     error // written by the loop goroutine before done is closed
}

// NewGoroutinePolicy creates the default execution policy.
func NewGoroutinePolicy() *GoroutinePolicy {
	return &GoroutinePolicy{done: make(chan struct{})}
}

// Start launches the dispatch loop. Subsequent calls are no-ops.
func (p *GoroutinePolicy) Start(r Root) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.root = r
	go p.run()
}

func (p *GoroutinePolicy) run() {
	defer close(p.done)

	for {
		e, err := p.root.Queue().Next()
		if err != nil {
			if p.root.Interrupted() {
				p.root.Logger().Warnf("machine %s: dispatch loop interrupted during shutdown", p.root.Name())
				return
			}
			p.err = newError(ErrorCodeQueueInterrupted,
				"machine %s: event queue stopped while running: %v", p.root.Name(), err)
			p.root.Logger().Errorf("%v", p.err)
			return
		}
		p.root.Dispatch(e)
	}
}

// Stop waits for the dispatch loop to terminate. It must not be called
// from the loop goroutine itself; the internal shutdown path (reaching
// the stop state) never calls Stop — the loop drains out through the
// stopped queue instead. Stop before Start returns nil immediately.
func (p *GoroutinePolicy) Stop() error {
	if !p.started.Load() {
		return nil
	}
	<-p.done
	return p.err
}

// StepPolicy is a cooperative policy: no goroutine is spawned, and the
// caller drains the queue by calling Step. Useful for tests and for
// embedding the machine into an existing scheduler loop.
type StepPolicy struct {
	root Root
	err  error
}

// NewStepPolicy creates a caller-driven policy.
func NewStepPolicy() *StepPolicy {
	return &StepPolicy{}
}

// Start records the root; no goroutine is launched.
func (p *StepPolicy) Start(r Root) {
	p.root = r
}

// Step blocks for the next event and dispatches it. It returns
// queue.ErrInterrupted once the machine has shut down.
func (p *StepPolicy) Step() error {
	if p.root == nil {
		return newError(ErrorCodeQueueInterrupted, "step policy not started")
	}
	e, err := p.root.Queue().Next()
	if err != nil {
		if p.root.Interrupted() {
			return queue.ErrInterrupted
		}
		p.err = newError(ErrorCodeQueueInterrupted,
			"machine %s: event queue stopped while running: %v", p.root.Name(), err)
		return p.err
	}
	p.root.Dispatch(e)
	return nil
}

// Stop returns the failure recorded by Step, if any.
func (p *StepPolicy) Stop() error {
	return p.err
}

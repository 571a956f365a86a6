package hsm

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hsmio/hsm/pkg/core"
	"github.com/hsmio/hsm/pkg/queue"
)

// Orthogonal composes two machines that operate in parallel logically
// while sharing the root's dispatch goroutine. Each event is delivered to
// the first region that recognizes it; when both regions recognize the
// same event, only the first region receives it (a deliberate tie-break).
// Events neither region recognizes bubble to the parent.
type Orthogonal struct {
	name    string
	id      string
	stateID StateID
	parent  State

	region1 *Machine
	region2 *Machine

	queue  *queue.EventQueue[Event]
	policy ExecutionPolicy
	logger core.Logger

	started     bool
	interrupted atomic.Bool
	exited      atomic.Bool
}

// OrthogonalOption configures an Orthogonal.
type OrthogonalOption func(*Orthogonal)

// WithOrthogonalLogger sets the diagnostic sink.
func WithOrthogonalLogger(logger core.Logger) OrthogonalOption {
	return func(o *Orthogonal) {
		o.logger = logger
	}
}

// WithOrthogonalPolicy sets the execution policy used when the orthogonal
// composite is the root.
func WithOrthogonalPolicy(p ExecutionPolicy) OrthogonalOption {
	return func(o *Orthogonal) {
		o.policy = p
	}
}

// NewOrthogonal composes two region machines. Both regions must share the
// given event queue and must not already belong to another composite.
func NewOrthogonal(name string, region1, region2 *Machine, q *queue.EventQueue[Event], opts ...OrthogonalOption) (*Orthogonal, error) {
	if region1 == nil || region2 == nil {
		return nil, fmt.Errorf("hsm: orthogonal %s requires two regions", name)
	}
	if region1.Parent() != nil || region2.Parent() != nil {
		return nil, fmt.Errorf("hsm: orthogonal %s: regions must not already have a parent", name)
	}
	if region1.Queue() != q || region2.Queue() != q {
		return nil, fmt.Errorf("hsm: orthogonal %s: regions must share the composite's event queue", name)
	}

	o := &Orthogonal{
		name:    name,
		id:      uuid.New().String(),
		stateID: nextStateID(),
		region1: region1,
		region2: region2,
		queue:   q,
		logger:  region1.Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}

	region1.setParent(o)
	region2.setParent(o)
	return o, nil
}

// Name returns the composite's name.
func (o *Orthogonal) Name() string { return o.name }

// ID returns the composite's state identity.
func (o *Orthogonal) ID() StateID { return o.stateID }

// InstanceID returns the unique instance identifier.
func (o *Orthogonal) InstanceID() string { return o.id }

// Parent returns the enclosing state, or nil for the root.
func (o *Orthogonal) Parent() State { return o.parent }

func (o *Orthogonal) setParent(p State) { o.parent = p }

// Region1 returns the first region.
func (o *Orthogonal) Region1() *Machine { return o.region1 }

// Region2 returns the second region.
func (o *Orthogonal) Region2() *Machine { return o.region2 }

// Queue returns the shared event queue.
func (o *Orthogonal) Queue() *queue.EventQueue[Event] { return o.queue }

// Logger returns the diagnostic sink.
func (o *Orthogonal) Logger() core.Logger { return o.logger }

// Interrupted reports whether the composite has been exited.
func (o *Orthogonal) Interrupted() bool { return o.interrupted.Load() }

// CurrentState returns the composite itself: both regions are active, so
// descent stops here and routing happens inside Execute.
func (o *Orthogonal) CurrentState() State { return o }

// Recognizes reports whether either region recognizes the event.
func (o *Orthogonal) Recognizes(id EventID) bool {
	return o.region1.Recognizes(id) || o.region2.Recognizes(id)
}

// Start enters both regions and launches the execution policy. Start is
// only valid when the orthogonal composite is the root.
func (o *Orthogonal) Start() error {
	if o.parent != nil {
		return fmt.Errorf("hsm: Start called on nested orthogonal %s", o.name)
	}
	if o.started {
		return newError(ErrorCodeDoubleStart, "orthogonal %s already started", o.name)
	}
	o.started = true

	o.region1.startMu.Lock()
	o.region1.markStarted()
	o.region1.startMu.Unlock()
	o.region2.startMu.Lock()
	o.region2.markStarted()
	o.region2.startMu.Unlock()

	o.OnEntry()

	if o.policy == nil {
		o.policy = NewGoroutinePolicy()
	}
	o.policy.Start(o)

	o.logger.Infof("orthogonal %s started (regions %s, %s)",
		o.name, o.region1.Name(), o.region2.Name())
	return nil
}

// Stop shuts the composite down from outside the dispatch loop. Stop is
// idempotent; it returns the loop failure, if any.
func (o *Orthogonal) Stop() error {
	if o.parent != nil {
		o.OnExit()
		return nil
	}

	// Raise the flag before stopping the queue so the dispatch loop reads
	// the interruption as an orderly shutdown.
	o.interrupted.Store(true)
	o.queue.Stop()
	var err error
	if o.policy != nil {
		err = o.policy.Stop()
	}
	o.OnExit()
	return err
}

// OnEntry enters region 1, then region 2.
func (o *Orthogonal) OnEntry() {
	o.interrupted.Store(false)
	o.exited.Store(false)
	o.region1.OnEntry()
	o.region2.OnEntry()
}

// OnExit mirrors entry in reverse: region 2 exits first, then region 1.
// For a root composite the event queue is stopped. Idempotent.
func (o *Orthogonal) OnExit() {
	o.interrupted.Store(true)
	if !o.exited.CompareAndSwap(false, true) {
		return
	}

	o.region2.OnExit()
	o.region1.OnExit()
	o.logger.Infof("orthogonal %s exited", o.name)

	if o.parent == nil {
		o.queue.Stop()
	}
}

// Dispatch delivers one event. The execution policy calls Dispatch for
// every event it dequeues when the composite is the root.
func (o *Orthogonal) Dispatch(e Event) {
	o.Execute(e)
}

// Execute routes the event to the first region that recognizes it,
// descending to that region's innermost active machine. Unrecognized
// events bubble to the parent.
func (o *Orthogonal) Execute(e Event) {
	if o.interrupted.Load() {
		o.logger.Warnf("orthogonal %s is not active; dropping event %d", o.name, e.ID)
		return
	}

	switch {
	case o.region1.Recognizes(e.ID):
		o.region1.innermost().Execute(e)
	case o.region2.Recognizes(e.ID):
		o.region2.innermost().Execute(e)
	default:
		o.bubble(e)
	}
}

// bubble forwards an event neither region recognizes. Events bubbling out
// of a region also land here and must not be re-routed into the regions.
func (o *Orthogonal) bubble(e Event) {
	switch p := o.parent.(type) {
	case *Machine:
		p.Execute(e)
	case *Orthogonal:
		p.bubble(e)
	default:
		o.logger.Errorf("orthogonal %s: unhandled event %d at top level", o.name, e.ID)
	}
}

package hsm

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hsmio/hsm/pkg/core"
	obsprom "github.com/hsmio/hsm/pkg/observability/prometheus"
	"github.com/hsmio/hsm/pkg/queue"
)

// Machine is a composite state: a State that contains sub-states, owns a
// transition table and dispatches events to its active child. The root
// machine additionally owns the event queue consumer loop through its
// execution policy; nested machines share the root's queue and thread.
type Machine struct {
	name    string
	id      string // instance id
	stateID StateID
	parent  State

	start State
	stop  State

	table    *transitionTable
	events   map[EventID]struct{}
	children []State
	adopted  map[StateID]struct{}

	queue  *queue.EventQueue[Event]
	policy ExecutionPolicy

	logger    core.Logger
	observers []Observer
	metrics   *obsprom.Metrics

	// current is written on the dispatch goroutine (and by Stop after the
	// loop has been joined); the lock makes reads from other goroutines
	// safe.
	mu      sync.RWMutex
	current State

	startMu sync.Mutex
	started bool

	// interrupted signals shutdown to the dispatch loop; exited guards the
	// exit-hook teardown so it runs exactly once per entry.
	interrupted atomic.Bool
	exited      atomic.Bool
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithLogger sets the diagnostic sink.
func WithLogger(logger core.Logger) MachineOption {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithObserver adds an observer. Observers are notified synchronously on
// the dispatch goroutine, preserving the per-event ordering guarantee.
func WithObserver(o Observer) MachineOption {
	return func(m *Machine) {
		m.observers = append(m.observers, o)
	}
}

// WithPolicy sets the execution policy driving the dispatch loop.
// Defaults to a dedicated-goroutine policy.
func WithPolicy(p ExecutionPolicy) MachineOption {
	return func(m *Machine) {
		m.policy = p
	}
}

// WithMetrics enables Prometheus instrumentation of the dispatch loop.
func WithMetrics(metrics *obsprom.Metrics) MachineOption {
	return func(m *Machine) {
		m.metrics = metrics
	}
}

// WithInstanceID sets a custom instance ID instead of a generated one.
func WithInstanceID(id string) MachineOption {
	return func(m *Machine) {
		m.id = id
	}
}

// NewMachine creates a composite state machine with the given start and
// stop states, sharing the given event queue. The root machine drains the
// queue once started; nested machines only inherit it.
func NewMachine(name string, start, stop State, q *queue.EventQueue[Event], opts ...MachineOption) (*Machine, error) {
	if start == nil || stop == nil {
		return nil, fmt.Errorf("hsm: machine %s requires start and stop states", name)
	}
	if q == nil {
		return nil, fmt.Errorf("hsm: machine %s requires an event queue", name)
	}

	m := &Machine{
		name:    name,
		id:      uuid.New().String(),
		stateID: nextStateID(),
		start:   start,
		stop:    stop,
		table:   newTransitionTable(),
		events:  make(map[EventID]struct{}),
		adopted: make(map[StateID]struct{}),
		queue:   q,
		logger:  core.NewDefaultLogger(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if err := m.adopt(start); err != nil {
		return nil, err
	}
	if err := m.adopt(stop); err != nil {
		return nil, err
	}

	return m, nil
}

// adopt makes s a sub-state of m. A state may belong to exactly one
// machine.
func (m *Machine) adopt(s State) error {
	if s.ID() == m.stateID {
		return newError(ErrorCodeInvalidTransition,
			"machine %s cannot contain itself", m.name)
	}
	if _, ok := m.adopted[s.ID()]; ok {
		return nil
	}
	if s.Parent() != nil {
		return newError(ErrorCodeInvalidTransition,
			"state %s already belongs to %s", s.Name(), s.Parent().Name())
	}
	s.setParent(m)
	m.adopted[s.ID()] = struct{}{}
	m.children = append(m.children, s)
	return nil
}

// Add inserts a transition from -> to triggered by event. Use WithGuard
// and WithAction to attach a guard and an action. Add is only legal
// before Start; afterwards the table is immutable.
func (m *Machine) Add(from State, event EventID, to State, opts ...TransitionOption) error {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	if m.started {
		return newError(ErrorCodeAddAfterStart,
			"machine %s already started; transition table is immutable", m.name)
	}
	if from == nil || to == nil {
		return newError(ErrorCodeInvalidTransition,
			"machine %s: transition endpoints must not be nil", m.name)
	}
	if err := m.adopt(from); err != nil {
		return err
	}
	if err := m.adopt(to); err != nil {
		return err
	}

	t := &Transition{from: from, to: to, trigger: event}
	for _, opt := range opts {
		opt(t)
	}
	if err := m.table.insert(t); err != nil {
		return err
	}
	m.events[event] = struct{}{}
	return nil
}

// Name returns the machine name.
func (m *Machine) Name() string { return m.name }

// ID returns the machine's state identity.
func (m *Machine) ID() StateID { return m.stateID }

// InstanceID returns the unique instance identifier.
func (m *Machine) InstanceID() string { return m.id }

// Parent returns the enclosing state, or nil for the root.
func (m *Machine) Parent() State { return m.parent }

func (m *Machine) setParent(p State) { m.parent = p }

// Queue returns the shared event queue.
func (m *Machine) Queue() *queue.EventQueue[Event] { return m.queue }

// Logger returns the diagnostic sink.
func (m *Machine) Logger() core.Logger { return m.logger }

// Interrupted reports whether the machine has been exited.
func (m *Machine) Interrupted() bool { return m.interrupted.Load() }

// CurrentState returns the active child state, or nil when the machine is
// not entered.
func (m *Machine) CurrentState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Machine) setCurrent(s State) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
}

// Events returns the sorted set of event ids this machine recognizes,
// derived from its transition table and those of nested machines.
func (m *Machine) Events() []EventID {
	set := make(map[EventID]struct{})
	m.collectEvents(set)
	out := make([]EventID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *Machine) collectEvents(set map[EventID]struct{}) {
	for id := range m.events {
		set[id] = struct{}{}
	}
	for _, child := range m.children {
		switch c := child.(type) {
		case *Machine:
			c.collectEvents(set)
		case *Orthogonal:
			c.region1.collectEvents(set)
			c.region2.collectEvents(set)
		}
	}
}

// Recognizes reports whether this machine (or a nested machine) has a
// transition triggered by the event.
func (m *Machine) Recognizes(id EventID) bool {
	if _, ok := m.events[id]; ok {
		return true
	}
	for _, child := range m.children {
		switch c := child.(type) {
		case *Machine:
			if c.Recognizes(id) {
				return true
			}
		case *Orthogonal:
			if c.Recognizes(id) {
				return true
			}
		}
	}
	return false
}

// Start enters the machine and launches the execution policy. Start is
// only valid on the root machine; nested machines are entered by their
// parent's transitions. The transition table is immutable once Start has
// returned.
func (m *Machine) Start() error {
	if m.parent != nil {
		return fmt.Errorf("hsm: Start called on nested machine %s", m.name)
	}

	m.startMu.Lock()
	if m.started {
		m.startMu.Unlock()
		return newError(ErrorCodeDoubleStart, "machine %s already started", m.name)
	}
	m.markStarted()
	m.startMu.Unlock()

	for _, issue := range NewVisualizer(m).Validate() {
		m.logger.Warnf("machine %s: %s", m.name, issue)
	}

	m.OnEntry()

	if m.policy == nil {
		m.policy = NewGoroutinePolicy()
	}
	m.policy.Start(m)

	m.logger.Infof("machine %s started in state %s", m.name, m.start.Name())
	return nil
}

// markStarted freezes the transition tables of this machine and every
// nested machine. Callers hold m.startMu.
func (m *Machine) markStarted() {
	m.started = true
	for _, child := range m.children {
		switch c := child.(type) {
		case *Machine:
			c.startMu.Lock()
			c.markStarted()
			c.startMu.Unlock()
		case *Orthogonal:
			for _, region := range []*Machine{c.region1, c.region2} {
				region.startMu.Lock()
				region.markStarted()
				region.startMu.Unlock()
			}
			c.started = true
		}
	}
}

// Stop shuts the machine down from outside the dispatch loop: it sets the
// interrupt flag, stops the queue, joins the loop and then runs the exit
// hooks of the active state chain. Stop is idempotent and safe to call
// from any goroutine. It returns the loop failure, if any.
func (m *Machine) Stop() error {
	if m.parent != nil {
		m.OnExit()
		return nil
	}

	// Raise the flag before stopping the queue so the dispatch loop reads
	// the interruption as an orderly shutdown.
	m.interrupted.Store(true)
	m.queue.Stop()
	var err error
	if m.policy != nil {
		err = m.policy.Stop()
	}
	m.OnExit()
	return err
}

// OnEntry activates the machine: the current state becomes the start
// state and its entry hook runs. Re-entering a composite always resets to
// the start state (shallow reset; no history).
func (m *Machine) OnEntry() {
	m.interrupted.Store(false)
	m.exited.Store(false)
	m.setCurrent(m.start)
	m.logger.Infof("machine %s entered; current state %s", m.name, m.start.Name())
	m.start.OnEntry()
}

// OnExit deactivates the machine: the active child's exit hook runs, the
// current state is cleared and the interrupt flag is raised. For the root
// machine the event queue is stopped so a blocked dispatch loop wakes up.
// OnExit is idempotent.
func (m *Machine) OnExit() {
	m.interrupted.Store(true)
	if !m.exited.CompareAndSwap(false, true) {
		return
	}

	cur := m.CurrentState()
	if cur != nil {
		cur.OnExit()
	}
	m.setCurrent(nil)
	m.logger.Infof("machine %s exited", m.name)

	if m.parent == nil {
		m.queue.Stop()
	}
}

// Dispatch delivers one event: it descends to the innermost active
// machine and executes the event there. The execution policy calls
// Dispatch for every event it dequeues.
func (m *Machine) Dispatch(e Event) {
	began := time.Now()

	m.innermost().Execute(e)

	if m.metrics != nil {
		m.metrics.RecordDispatch(m.name, time.Since(began))
		m.metrics.SetQueueDepth(m.queue.Len())
	}
}

// innermost returns the most deeply nested active composite, following
// CurrentState links from this machine downwards.
func (m *Machine) innermost() State {
	active := m
	for {
		switch child := active.CurrentState().(type) {
		case *Machine:
			active = child
		case *Orthogonal:
			return child
		default:
			return active
		}
	}
}

// Execute dispatches one event against this machine's transition table.
// On a lookup miss the event bubbles up to the parent machine; at the
// root an unmatched event is reported and discarded. A guard rejection
// leaves the current state untouched and does not bubble.
func (m *Machine) Execute(e Event) {
	cur := m.CurrentState()
	if cur == nil {
		m.logger.Warnf("machine %s is not active; dropping event %d", m.name, e.ID)
		return
	}

	t := m.table.next(cur, e)
	if t == nil {
		m.bubble(e)
		return
	}

	if t.guard != nil && !t.guard(e) {
		m.logger.Infof("machine %s: guard prevented transition %s -> %s (event %d)",
			m.name, t.from.Name(), t.to.Name(), e.ID)
		m.notifyGuardRejected(cur, e)
		return
	}

	t.doTransition(e)
	m.setCurrent(t.to)
	m.logger.Infof("machine %s: transition %s -> %s (event %d)",
		m.name, t.from.Name(), t.to.Name(), e.ID)
	m.notifyTransition(t.from, t.to, e)

	if t.to.ID() == m.stop.ID() {
		m.OnExit()
	}
}

// bubble forwards an unmatched event to the parent, or reports it at the
// top level. The active child stays entered while its ancestors handle
// the event.
func (m *Machine) bubble(e Event) {
	switch p := m.parent.(type) {
	case *Machine:
		p.Execute(e)
	case *Orthogonal:
		p.bubble(e)
	default:
		m.logger.Errorf("machine %s: unhandled event %d at top level", m.name, e.ID)
		m.notifyUnhandled(e)
	}
}

func (m *Machine) notifyTransition(from, to State, e Event) {
	for _, o := range m.observers {
		o.OnTransition(m.name, from, to, e)
	}
}

func (m *Machine) notifyGuardRejected(state State, e Event) {
	for _, o := range m.observers {
		o.OnGuardRejected(m.name, state, e)
	}
}

func (m *Machine) notifyUnhandled(e Event) {
	for _, o := range m.observers {
		o.OnUnhandled(m.name, e)
	}
}

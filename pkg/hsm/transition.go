package hsm

// GuardFunc decides whether a transition may occur. Guards must be free of
// side effects on the machine: a rejection leaves the current state
// untouched and runs no hooks.
type GuardFunc func(e Event) bool

// ActionFunc runs between the exit and entry hooks of an external
// transition (or alone, for an internal transition). Actions close over
// whatever context they need; the machine never inspects them.
type ActionFunc func(e Event)

// Transition connects a source state to a target state for one trigger
// event, with an optional guard and action.
type Transition struct {
	from    State
	to      State
	trigger EventID
	guard   GuardFunc
	action  ActionFunc
}

// TransitionOption configures a transition added via Machine.Add.
type TransitionOption func(*Transition)

// WithGuard attaches a guard condition. The guard is evaluated by the
// machine before the transition executes; returning false cancels the
// transition without side effects.
func WithGuard(g GuardFunc) TransitionOption {
	return func(t *Transition) {
		t.guard = g
	}
}

// WithAction attaches a transition action, invoked after the source
// state's exit hook and before the target state's entry hook.
func WithAction(a ActionFunc) TransitionOption {
	return func(t *Transition) {
		t.action = a
	}
}

// From returns the source state.
func (t *Transition) From() State { return t.from }

// To returns the target state.
func (t *Transition) To() State { return t.to }

// Trigger returns the event that fires this transition.
func (t *Transition) Trigger() EventID { return t.trigger }

// Guarded reports whether the transition carries a guard.
func (t *Transition) Guarded() bool { return t.guard != nil }

// Internal reports whether this is a self-transition that suppresses
// entry/exit hooks.
func (t *Transition) Internal() bool { return t.from.ID() == t.to.ID() }

// doTransition executes the transition. The guard has already been
// evaluated by the caller; this keeps a guard rejection observable
// without side effects.
func (t *Transition) doTransition(e Event) {
	if t.Internal() {
		if t.action != nil {
			t.action(e)
		}
		return
	}

	t.from.OnExit()
	if t.action != nil {
		t.action(e)
	}
	t.to.OnEntry()
}

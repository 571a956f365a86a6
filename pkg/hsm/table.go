package hsm

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type tableKey struct {
	state StateID
	event EventID
}

// transitionTable maps (state identity, event id) to a transition.
// Insertion order is preserved so that diagnostics and diagrams are
// deterministic across runs.
type transitionTable struct {
	entries *orderedmap.OrderedMap[tableKey, *Transition]
}

func newTransitionTable() *transitionTable {
	return &transitionTable{
		entries: orderedmap.New[tableKey, *Transition](),
	}
}

// insert adds a transition. Double insertion of the same (state, event)
// key is a programming error and is rejected.
func (tt *transitionTable) insert(t *Transition) error {
	key := tableKey{state: t.from.ID(), event: t.trigger}
	if _, exists := tt.entries.Get(key); exists {
		return newError(ErrorCodeDuplicateTransition,
			"transition for (%s, %d) already defined", t.from.Name(), t.trigger)
	}
	tt.entries.Set(key, t)
	return nil
}

// next returns the transition for (from, event), or nil when no entry
// matches. The caller decides whether to bubble up or report the event
// as unhandled.
func (tt *transitionTable) next(from State, e Event) *Transition {
	if from == nil {
		return nil
	}
	t, _ := tt.entries.Get(tableKey{state: from.ID(), event: e.ID})
	return t
}

func (tt *transitionTable) size() int {
	return tt.entries.Len()
}

// each visits transitions in insertion order.
func (tt *transitionTable) each(visit func(*Transition)) {
	for pair := tt.entries.Oldest(); pair != nil; pair = pair.Next() {
		visit(pair.Value)
	}
}

package hsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeafStateHooks(t *testing.T) {
	var entered, exited, executed bool

	s := NewState("leaf",
		WithEntry(func() { entered = true }),
		WithExit(func() { exited = true }),
		WithExecute(func(e Event) { executed = e.ID == evGo }),
	)

	assert.Equal(t, "leaf", s.Name())
	assert.Nil(t, s.Parent())
	assert.Equal(t, s, s.CurrentState())

	s.OnEntry()
	s.OnExit()
	s.Execute(Event{ID: evGo})

	assert.True(t, entered)
	assert.True(t, exited)
	assert.True(t, executed)
}

func TestLeafStateDefaultsAreNoOps(t *testing.T) {
	s := NewState("bare")

	// Must not panic
	s.OnEntry()
	s.OnExit()
	s.Execute(Event{ID: evGo})
}

func TestStateIDsAreUnique(t *testing.T) {
	a := NewState("same-name")
	b := NewState("same-name")

	assert.NotEqual(t, a.ID(), b.ID(), "states with equal names must keep distinct identities")
}

func TestActiveLeafOnLeaf(t *testing.T) {
	s := NewState("solo")
	assert.Equal(t, s, ActiveLeaf(s))
}

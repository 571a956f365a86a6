package hsm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsmio/hsm/pkg/queue"
)

func newDiagramMachine(t *testing.T) *Machine {
	t.Helper()
	q := queue.New[Event]()

	red := NewState("red")
	green := NewState("green")
	off := NewState("off")

	m, err := NewMachine("light", red, off, q, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, m.Add(red, evGo, green))
	require.NoError(t, m.Add(green, evGo, red))
	require.NoError(t, m.Add(green, evFinish, off, WithGuard(func(Event) bool { return true })))
	return m
}

func TestToMermaid(t *testing.T) {
	m := newDiagramMachine(t)
	out := NewVisualizer(m).ToMermaid()

	assert.True(t, strings.HasPrefix(out, "stateDiagram-v2"))
	assert.Contains(t, out, "[*] --> red")
	assert.Contains(t, out, "off --> [*]")
	assert.Contains(t, out, "red --> green")
	assert.Contains(t, out, "[guarded]")
}

func TestToMermaidIsDeterministic(t *testing.T) {
	m := newDiagramMachine(t)
	v := NewVisualizer(m)
	assert.Equal(t, v.ToMermaid(), v.ToMermaid())
}

func TestToDOT(t *testing.T) {
	m := newDiagramMachine(t)
	out := NewVisualizer(m).ToDOT()

	assert.True(t, strings.HasPrefix(out, "digraph hsm {"))
	assert.Contains(t, out, `start -> "red";`)
	assert.Contains(t, out, `"red" -> "green"`)
	assert.Contains(t, out, `"off" [shape=doublecircle];`)
}

func TestStats(t *testing.T) {
	m := newDiagramMachine(t)
	stats := NewVisualizer(m).Stats()

	assert.Equal(t, "light", stats["machine"])
	assert.Equal(t, 3, stats["states"])
	assert.Equal(t, 3, stats["transitions"])
	assert.Equal(t, 1, stats["machines"])
	assert.Equal(t, 2, stats["events"])
}

func TestValidateCleanMachine(t *testing.T) {
	m := newDiagramMachine(t)
	assert.Empty(t, NewVisualizer(m).Validate())
}

func TestValidateFlagsUnreachableAndDeadEnd(t *testing.T) {
	q := queue.New[Event]()

	a := NewState("a")
	b := NewState("b")
	orphan := NewState("orphan")
	stop := NewState("stop")

	m, err := NewMachine("m", a, stop, q, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, m.Add(a, evGo, b))
	require.NoError(t, m.Add(orphan, evFinish, stop))

	issues := NewVisualizer(m).Validate()

	joined := strings.Join(issues, "\n")
	assert.Contains(t, joined, `"orphan" is unreachable`)
	assert.Contains(t, joined, `"b" has no outgoing transitions`)
}

func TestStatsWithNestedMachine(t *testing.T) {
	q := queue.New[Event]()

	inner1 := NewState("inner1")
	innerStop := NewState("inner-stop")
	sub, err := NewMachine("sub", inner1, innerStop, q, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, sub.Add(inner1, evStep, innerStop))

	stop := NewState("stop")
	parent, err := NewMachine("parent", sub, stop, q, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, parent.Add(sub, evGo, stop))

	stats := NewVisualizer(parent).Stats()
	assert.Equal(t, 2, stats["machines"])
	assert.Equal(t, 2, stats["transitions"])

	out := NewVisualizer(parent).ToMermaid()
	assert.Contains(t, out, "state sub {")
}

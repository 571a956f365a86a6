package hsm

import (
	"fmt"
	"strings"
)

// Visualizer generates visual representations of a machine hierarchy.
// Output order follows transition insertion order, so diagrams are
// deterministic across runs.
type Visualizer struct {
	machine *Machine
}

// NewVisualizer creates a visualizer for a machine.
func NewVisualizer(m *Machine) *Visualizer {
	return &Visualizer{machine: m}
}

// ToMermaid generates a Mermaid state diagram.
func (v *Visualizer) ToMermaid() string {
	var sb strings.Builder

	sb.WriteString("stateDiagram-v2\n")
	v.mermaidMachine(&sb, v.machine, "    ")
	return sb.String()
}

func (v *Visualizer) mermaidMachine(sb *strings.Builder, m *Machine, indent string) {
	fmt.Fprintf(sb, "%s[*] --> %s\n", indent, m.start.Name())
	fmt.Fprintf(sb, "%s%s --> [*]\n", indent, m.stop.Name())

	m.table.each(func(t *Transition) {
		label := fmt.Sprintf("e%d", t.trigger)
		if t.Guarded() {
			label += " [guarded]"
		}
		if t.Internal() {
			label += " (internal)"
		}
		fmt.Fprintf(sb, "%s%s --> %s : %s\n", indent, t.from.Name(), t.to.Name(), label)
	})

	for _, child := range m.children {
		switch c := child.(type) {
		case *Machine:
			fmt.Fprintf(sb, "%sstate %s {\n", indent, c.Name())
			v.mermaidMachine(sb, c, indent+"    ")
			fmt.Fprintf(sb, "%s}\n", indent)
		case *Orthogonal:
			fmt.Fprintf(sb, "%sstate %s {\n", indent, c.Name())
			v.mermaidMachine(sb, c.region1, indent+"    ")
			fmt.Fprintf(sb, "%s--\n", indent)
			v.mermaidMachine(sb, c.region2, indent+"    ")
			fmt.Fprintf(sb, "%s}\n", indent)
		}
	}
}

// ToDOT generates a Graphviz DOT representation.
func (v *Visualizer) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph hsm {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=circle];\n\n")
	sb.WriteString("  start [shape=point];\n")
	v.dotMachine(&sb, v.machine, true)
	sb.WriteString("}\n")
	return sb.String()
}

func (v *Visualizer) dotMachine(sb *strings.Builder, m *Machine, root bool) {
	if root {
		fmt.Fprintf(sb, "  start -> %q;\n", m.start.Name())
	}
	fmt.Fprintf(sb, "  %q [shape=doublecircle];\n", m.stop.Name())

	m.table.each(func(t *Transition) {
		label := fmt.Sprintf("e%d", t.trigger)
		if t.Guarded() {
			label += "\\n[guard]"
		}
		if t.action != nil {
			label += "\\n[action]"
		}
		fmt.Fprintf(sb, "  %q -> %q [label=\"%s\"];\n", t.from.Name(), t.to.Name(), label)
	})

	for _, child := range m.children {
		switch c := child.(type) {
		case *Machine:
			v.dotMachine(sb, c, false)
		case *Orthogonal:
			v.dotMachine(sb, c.region1, false)
			v.dotMachine(sb, c.region2, false)
		}
	}
}

// Stats returns counts describing the machine hierarchy.
func (v *Visualizer) Stats() map[string]interface{} {
	states, transitions, machines := v.count(v.machine)
	return map[string]interface{}{
		"machine":     v.machine.Name(),
		"states":      states,
		"transitions": transitions,
		"machines":    machines,
		"events":      len(v.machine.Events()),
	}
}

func (v *Visualizer) count(m *Machine) (states, transitions, machines int) {
	machines = 1
	transitions = m.table.size()
	for _, child := range m.children {
		states++
		switch c := child.(type) {
		case *Machine:
			s, t, n := v.count(c)
			states += s
			transitions += t
			machines += n
		case *Orthogonal:
			s1, t1, n1 := v.count(c.region1)
			s2, t2, n2 := v.count(c.region2)
			states += s1 + s2
			transitions += t1 + t2
			machines += n1 + n2
		}
	}
	return states, transitions, machines
}

// Validate performs static checks on the machine hierarchy and returns
// human-readable issues: states unreachable from the start state, and
// dead-end states that are not the stop state.
func (v *Visualizer) Validate() []string {
	return v.validateMachine(v.machine)
}

func (v *Visualizer) validateMachine(m *Machine) []string {
	var issues []string

	// BFS over transition edges from the start state
	reachable := map[StateID]bool{m.start.ID(): true}
	frontier := []StateID{m.start.ID()}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		m.table.each(func(t *Transition) {
			if t.from.ID() == cur && !reachable[t.to.ID()] {
				reachable[t.to.ID()] = true
				frontier = append(frontier, t.to.ID())
			}
		})
	}

	outgoing := make(map[StateID]int)
	m.table.each(func(t *Transition) {
		if !t.Internal() {
			outgoing[t.from.ID()]++
		}
	})

	for _, child := range m.children {
		if !reachable[child.ID()] {
			issues = append(issues,
				fmt.Sprintf("state %q is unreachable from start state %q", child.Name(), m.start.Name()))
		}
		if outgoing[child.ID()] == 0 && child.ID() != m.stop.ID() {
			issues = append(issues,
				fmt.Sprintf("state %q has no outgoing transitions and is not the stop state", child.Name()))
		}

		switch c := child.(type) {
		case *Machine:
			issues = append(issues, v.validateMachine(c)...)
		case *Orthogonal:
			issues = append(issues, v.validateMachine(c.region1)...)
			issues = append(issues, v.validateMachine(c.region2)...)
		}
	}

	return issues
}

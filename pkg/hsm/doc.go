// Package hsm provides a hierarchical state machine runtime driven by an
// interruptible event queue.
//
// Features:
// - Leaf and composite states with entry/exit hooks
// - Guarded transitions with actions, internal and external
// - O(1) transition-table lookup keyed by stable state identity
// - Bubble-up dispatch: unhandled events are delegated to ancestor machines
// - Orthogonal regions: two machines receiving events in parallel
// - Pluggable execution policy (dedicated goroutine by default)
// - Observable transitions (logging, Prometheus, OpenTelemetry)
//
// Example:
//
//	q := queue.New[hsm.Event]()
//	idle := hsm.NewState("idle")
//	busy := hsm.NewState("busy")
//	done := hsm.NewState("done")
//
//	m, _ := hsm.NewMachine("worker", idle, done, q)
//	m.Add(idle, evStart, busy,
//		hsm.WithAction(func(e hsm.Event) { startWork(e.Data) }))
//	m.Add(busy, evFinish, done,
//		hsm.WithGuard(func(e hsm.Event) bool { return workComplete() }))
//
//	m.Start()
//	q.Push(hsm.Event{ID: evStart})
//	...
//	m.Stop()
//
// All hooks, guards and actions run on the single dispatch goroutine owned
// by the root machine's execution policy. Events pushed from any goroutine
// are delivered in FIFO order; event i is fully processed before event i+1
// begins.
package hsm

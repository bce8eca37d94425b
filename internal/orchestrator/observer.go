package orchestrator

import (
	"slices"
	"sync"
)

// EventKind names a change notification.
type EventKind string

const (
	EventInputChanged      EventKind = "input_changed"
	EventSolverChanged     EventKind = "solver_changed"
	EventStateChanged      EventKind = "state_changed"
	EventSubProblemAdded   EventKind = "subproblem_added"
	EventSubProblemRemoved EventKind = "subproblem_removed"

	// Emitted by a Directory only.
	EventRegistered   EventKind = "registered"
	EventDeregistered EventKind = "deregistered"
)

// Event describes one change of a problem. SubProblem and Definition are set
// for sub-problem events, State for state changes.
type Event struct {
	Kind       EventKind
	Problem    AnyProblem
	SubProblem AnyProblem
	Definition SubRoutine
	State      ProblemState
}

// Observer receives events. Observers are called synchronously, after the
// problem released its lock, so they may read and modify the problem.
type Observer func(Event)

type observers struct {
	mu   sync.Mutex
	next uint64
	fns  map[uint64]Observer
}

func (o *observers) add(fn Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fns == nil {
		o.fns = make(map[uint64]Observer)
	}
	id := o.next
	o.next++
	o.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.fns, id)
			o.mu.Unlock()
		})
	}
}

func (o *observers) notify(e Event) {
	o.mu.Lock()
	ids := make([]uint64, 0, len(o.fns))
	for id := range o.fns {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	// Subscription order; observers removed in the meantime are skipped.
	slices.Sort(ids)
	for _, id := range ids {
		o.mu.Lock()
		fn, ok := o.fns[id]
		o.mu.Unlock()
		if ok {
			fn(e)
		}
	}
}

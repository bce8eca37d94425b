package orchestrator

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Register adds p and, recursively, all of its sub-problems to their
// managers. Sub-problems created later by a solver change are registered
// as they appear; discarded ones are deregistered. Registering a problem
// twice is a no-op.
func (d *Directory) Register(p AnyProblem) error {
	if p == nil {
		return fmt.Errorf("register: %w: nil problem", ErrInvalidInput)
	}
	return d.register(p, uuid.Nil)
}

func (d *Directory) register(p AnyProblem, parent uuid.UUID) error {
	m, err := d.Lookup(p.Type())
	if err != nil {
		return fmt.Errorf("register %s: %w", p.ID(), err)
	}
	added, err := m.add(p)
	if err != nil {
		return err
	}
	if parent != uuid.Nil {
		d.mu.Lock()
		d.parents[p.ID()] = parent
		d.mu.Unlock()
	}
	if !added {
		return nil
	}
	d.watch(p)
	d.emit(Event{Kind: EventRegistered, Problem: p})

	for _, child := range p.SubProblems() {
		if err := d.register(child, p.ID()); err != nil {
			return err
		}
	}
	return nil
}

// Deregister removes p and its whole sub-problem tree from their managers
// and stops following their changes. A sub-problem goes away with its
// parent or when the parent's solver changes; deregistering it on its own
// fails with ErrSubProblemInUse.
func (d *Directory) Deregister(p AnyProblem) error {
	if p == nil {
		return fmt.Errorf("deregister: %w: nil problem", ErrInvalidInput)
	}
	d.mu.Lock()
	parent, held := d.parents[p.ID()]
	d.mu.Unlock()
	if held {
		return fmt.Errorf("deregister %s: %w by %s", p.ID(), ErrSubProblemInUse, parent)
	}
	return d.deregister(p)
}

func (d *Directory) deregister(p AnyProblem) error {
	m, err := d.Lookup(p.Type())
	if err != nil {
		return fmt.Errorf("deregister %s: %w", p.ID(), err)
	}
	d.mu.Lock()
	delete(d.parents, p.ID())
	d.mu.Unlock()
	if !m.remove(p) {
		return nil
	}
	d.unwatch(p)
	d.emit(Event{Kind: EventDeregistered, Problem: p})

	for _, child := range p.SubProblems() {
		if err := d.deregister(child); err != nil {
			return err
		}
	}
	return nil
}

func (d *Directory) watch(p AnyProblem) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subs[p.ID()]; ok {
		return
	}
	d.subs[p.ID()] = p.Subscribe(d.handle)
}

func (d *Directory) unwatch(p AnyProblem) {
	d.mu.Lock()
	cancel, ok := d.subs[p.ID()]
	delete(d.subs, p.ID())
	d.mu.Unlock()
	if ok {
		cancel()
	}
}

func (d *Directory) handle(e Event) {
	switch e.Kind {
	case EventSubProblemAdded:
		if err := d.register(e.SubProblem, e.Problem.ID()); err != nil {
			d.logger.Error("sub-problem registration failed",
				slog.String("problem_id", e.Problem.ID().String()),
				slog.String("subproblem_id", e.SubProblem.ID().String()),
				slog.String("error", err.Error()),
			)
		}
	case EventSubProblemRemoved:
		if err := d.deregister(e.SubProblem); err != nil {
			d.logger.Error("sub-problem deregistration failed",
				slog.String("problem_id", e.Problem.ID().String()),
				slog.String("subproblem_id", e.SubProblem.ID().String()),
				slog.String("error", err.Error()),
			)
		}
	}
	d.emit(e)
}

func (d *Directory) emit(e Event) {
	if d.hook != nil {
		d.hook(e)
	}
}

package orchestrator

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Directory maps every problem type to its manager and keeps the managers'
// instance sets in sync with the sub-problem trees of registered problems.
type Directory struct {
	byType  map[AnyType]AnyManager
	byID    map[string]AnyManager
	ordered []AnyManager
	logger  *slog.Logger
	hook    Observer

	mu   sync.Mutex
	subs map[uuid.UUID]func()
	// parents maps a registered sub-problem to the problem holding it.
	parents map[uuid.UUID]uuid.UUID
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithLogger sets the logger used for failures inside event callbacks.
func WithLogger(logger *slog.Logger) DirectoryOption {
	return func(d *Directory) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithHook forwards every event of every registered problem to fn, plus
// EventRegistered and EventDeregistered.
func WithHook(fn Observer) DirectoryOption {
	return func(d *Directory) {
		d.hook = fn
	}
}

// NewDirectory builds a directory over the given managers. Type ids must be
// unique and every sub-routine type used by any solver needs a manager.
func NewDirectory(managers []AnyManager, opts ...DirectoryOption) (*Directory, error) {
	d := &Directory{
		byType: make(map[AnyType]AnyManager, len(managers)),
		byID:   make(map[string]AnyManager, len(managers)),
		logger: slog.Default(),
		subs:   make(map[uuid.UUID]func()),

		parents: make(map[uuid.UUID]uuid.UUID),
	}
	for _, opt := range opts {
		opt(d)
	}

	for _, m := range managers {
		t := m.Type()
		if _, dup := d.byType[t]; dup {
			return nil, fmt.Errorf("new directory: %w: %s", ErrDuplicateType, t.ID())
		}
		if _, dup := d.byID[t.ID()]; dup {
			return nil, fmt.Errorf("new directory: %w: id %s", ErrDuplicateType, t.ID())
		}
		d.byType[t] = m
		d.byID[t.ID()] = m
		d.ordered = append(d.ordered, m)
	}
	for _, m := range managers {
		for _, t := range m.subRoutineTypes() {
			if _, ok := d.byType[t]; !ok {
				return nil, fmt.Errorf("new directory: solver of %s uses %s: %w", m.Type().ID(), t.ID(), ErrUnregisteredType)
			}
		}
	}
	for _, m := range managers {
		if err := m.attach(d); err != nil {
			return nil, fmt.Errorf("new directory: %w", err)
		}
	}
	slices.SortFunc(d.ordered, func(a, b AnyManager) int {
		return strings.Compare(a.Type().ID(), b.Type().ID())
	})
	return d, nil
}

// Lookup returns the manager of t.
func (d *Directory) Lookup(t AnyType) (AnyManager, error) {
	if m, ok := d.byType[t]; ok {
		return m, nil
	}
	if t == nil {
		return nil, ErrUnregisteredType
	}
	return nil, fmt.Errorf("%w: %s", ErrUnregisteredType, t.ID())
}

// LookupID returns the manager of the type with the given id.
func (d *Directory) LookupID(typeID string) (AnyManager, bool) {
	m, ok := d.byID[typeID]
	return m, ok
}

// Managers returns all managers ordered by type id.
func (d *Directory) Managers() []AnyManager {
	return slices.Clone(d.ordered)
}

// Types returns all registered types ordered by id.
func (d *Directory) Types() []AnyType {
	out := make([]AnyType, 0, len(d.ordered))
	for _, m := range d.ordered {
		out = append(out, m.Type())
	}
	return out
}

// ManagerFor returns the typed manager of t.
func ManagerFor[I, O any](d *Directory, t *ProblemType[I, O]) (*Manager[I, O], error) {
	m, err := d.Lookup(t)
	if err != nil {
		return nil, err
	}
	typed, ok := m.(*Manager[I, O])
	if !ok {
		return nil, fmt.Errorf("manager for %s: %w", t.ID(), ErrTypeMismatch)
	}
	return typed, nil
}

// ConfigureDefaults gives every sub-problem in the tree below p that has no
// solver the preferred solver for its type, or else the first one its
// manager knows.
func (d *Directory) ConfigureDefaults(p AnyProblem, preferred map[string]string) error {
	for _, child := range p.SubProblems() {
		if child.SolverID() == "" {
			m, err := d.Lookup(child.Type())
			if err != nil {
				return err
			}
			solverID := preferred[child.Type().ID()]
			if solverID == "" {
				infos := m.SolverInfos()
				if len(infos) == 0 {
					return fmt.Errorf("configure %s: %w: no solver for %s", child.ID(), ErrSolverNotFound, child.Type().ID())
				}
				solverID = infos[0].ID
			}
			if err := m.configure(child, Configuration{SolverID: &solverID}); err != nil {
				return err
			}
		}
		if err := d.ConfigureDefaults(child, preferred); err != nil {
			return err
		}
	}
	return nil
}

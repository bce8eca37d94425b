package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// AnyManager is the type-erased view of a Manager.
type AnyManager interface {
	Type() AnyType
	Problems() []AnyProblem
	ExampleProblems() []AnyProblem
	SolverInfos() []SolverInfo
	Problem(id uuid.UUID) (AnyProblem, bool)
	// Create registers a fresh, unconfigured problem.
	Create() (AnyProblem, error)
	// Remove deregisters a problem and its sub-problem tree. Sub-problems
	// still held by a parent are refused with ErrSubProblemInUse.
	Remove(id uuid.UUID) error
	Configure(id uuid.UUID, c Configuration) error
	// Start begins solving a registered problem in the background.
	Start(ctx context.Context, id uuid.UUID) (Waiter, error)

	configure(p AnyProblem, c Configuration) error
	add(p AnyProblem) (bool, error)
	remove(p AnyProblem) bool
	attach(d *Directory) error
	subRoutineTypes() []AnyType
}

// Configuration changes input and solver of a problem in one call. Nil
// fields are left alone; an empty SolverID removes the solver and a JSON
// null input removes the input.
type Configuration struct {
	Input    json.RawMessage
	SolverID *string
}

// Manager owns all solvers, examples and live problems of one problem type.
type Manager[I, O any] struct {
	typ      *ProblemType[I, O]
	solvers  []Solver[I, O]
	examples []*Problem[I, O]

	mu        sync.RWMutex
	instances map[uuid.UUID]*Problem[I, O]
	dir       *Directory
}

// NewManager creates a manager. At least one example is required and
// solver ids must be unique.
func NewManager[I, O any](typ *ProblemType[I, O], solvers []Solver[I, O], examples []*Problem[I, O]) (*Manager[I, O], error) {
	if typ == nil {
		return nil, fmt.Errorf("new manager: %w: nil problem type", ErrInvalidInput)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("no %s problem example available: %w", typ.ID(), ErrMissingExample)
	}
	seen := make(map[string]bool, len(solvers))
	for _, s := range solvers {
		if s == nil {
			return nil, fmt.Errorf("new manager for %s: %w: nil solver", typ.ID(), ErrInvalidInput)
		}
		if seen[s.ID()] {
			return nil, fmt.Errorf("new manager for %s: %w: %s", typ.ID(), ErrDuplicateSolver, s.ID())
		}
		seen[s.ID()] = true
	}
	for _, ex := range examples {
		if ex == nil || ex.typ != typ {
			return nil, fmt.Errorf("new manager for %s: example: %w", typ.ID(), ErrTypeMismatch)
		}
	}
	return &Manager[I, O]{
		typ:       typ,
		solvers:   slices.Clone(solvers),
		examples:  slices.Clone(examples),
		instances: make(map[uuid.UUID]*Problem[I, O]),
	}, nil
}

func (m *Manager[I, O]) Type() AnyType                   { return m.typ }
func (m *Manager[I, O]) ProblemType() *ProblemType[I, O] { return m.typ }

// FindByID returns a registered problem.
func (m *Manager[I, O]) FindByID(id uuid.UUID) (*Problem[I, O], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.instances[id]
	return p, ok
}

// FindSolverByID returns the solver with the given id.
func (m *Manager[I, O]) FindSolverByID(id string) (Solver[I, O], bool) {
	for _, s := range m.solvers {
		if s.ID() == id {
			return s, true
		}
	}
	return nil, false
}

// Instances returns all registered problems ordered by id.
func (m *Manager[I, O]) Instances() []*Problem[I, O] {
	m.mu.RLock()
	out := make([]*Problem[I, O], 0, len(m.instances))
	for _, p := range m.instances {
		out = append(out, p)
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Problem[I, O]) int {
		return strings.Compare(a.id.String(), b.id.String())
	})
	return out
}

// Examples returns the example problems. They are never registered.
func (m *Manager[I, O]) Examples() []*Problem[I, O] {
	return slices.Clone(m.examples)
}

// Solvers returns the solvers in registration order.
func (m *Manager[I, O]) Solvers() []Solver[I, O] {
	return slices.Clone(m.solvers)
}

// NewInstance creates and registers an unconfigured problem.
func (m *Manager[I, O]) NewInstance() (*Problem[I, O], error) {
	p := NewProblem(m.typ)
	if err := m.AddInstance(p); err != nil {
		return nil, err
	}
	return p, nil
}

// AddInstance registers p together with its sub-problem tree.
func (m *Manager[I, O]) AddInstance(p *Problem[I, O]) error {
	if p == nil || p.typ != m.typ {
		return fmt.Errorf("add instance to %s: %w", m.typ.ID(), ErrTypeMismatch)
	}
	d, err := m.directory()
	if err != nil {
		return err
	}
	return d.Register(p)
}

// RemoveInstance deregisters p together with its sub-problem tree.
func (m *Manager[I, O]) RemoveInstance(p *Problem[I, O]) error {
	if p == nil || p.typ != m.typ {
		return fmt.Errorf("remove instance from %s: %w", m.typ.ID(), ErrTypeMismatch)
	}
	d, err := m.directory()
	if err != nil {
		return err
	}
	return d.Deregister(p)
}

func (m *Manager[I, O]) directory() (*Directory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.dir == nil {
		return nil, fmt.Errorf("%s: %w", m.typ.ID(), ErrDetachedManager)
	}
	return m.dir, nil
}

// Problems returns the registered problems as AnyProblem.
func (m *Manager[I, O]) Problems() []AnyProblem {
	instances := m.Instances()
	out := make([]AnyProblem, 0, len(instances))
	for _, p := range instances {
		out = append(out, p)
	}
	return out
}

// ExampleProblems returns the examples as AnyProblem.
func (m *Manager[I, O]) ExampleProblems() []AnyProblem {
	out := make([]AnyProblem, 0, len(m.examples))
	for _, p := range m.examples {
		out = append(out, p)
	}
	return out
}

// SolverInfos describes the solvers in registration order.
func (m *Manager[I, O]) SolverInfos() []SolverInfo {
	out := make([]SolverInfo, 0, len(m.solvers))
	for _, s := range m.solvers {
		out = append(out, DescribeSolver(s))
	}
	return out
}

// Problem returns a registered problem.
func (m *Manager[I, O]) Problem(id uuid.UUID) (AnyProblem, bool) {
	p, ok := m.FindByID(id)
	if !ok {
		return nil, false
	}
	return p, true
}

// Create registers a new unconfigured problem.
func (m *Manager[I, O]) Create() (AnyProblem, error) {
	p, err := m.NewInstance()
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Remove deregisters a top-level problem and its sub-problem tree.
func (m *Manager[I, O]) Remove(id uuid.UUID) error {
	p, ok := m.FindByID(id)
	if !ok {
		return fmt.Errorf("remove %s/%s: %w", m.typ.ID(), id, ErrProblemNotFound)
	}
	return m.RemoveInstance(p)
}

// Configure applies c to a registered problem.
func (m *Manager[I, O]) Configure(id uuid.UUID, c Configuration) error {
	p, ok := m.FindByID(id)
	if !ok {
		return fmt.Errorf("configure %s/%s: %w", m.typ.ID(), id, ErrProblemNotFound)
	}
	return m.configure(p, c)
}

func (m *Manager[I, O]) configure(p AnyProblem, c Configuration) error {
	typed, ok := p.(*Problem[I, O])
	if !ok || typed.typ != m.typ {
		return fmt.Errorf("configure %s with %s: %w", p.ID(), m.typ.ID(), ErrTypeMismatch)
	}
	if c.Input != nil {
		if err := typed.setInputJSON(c.Input); err != nil {
			return err
		}
	}
	if c.SolverID != nil {
		var solver Solver[I, O]
		if *c.SolverID != "" {
			s, ok := m.FindSolverByID(*c.SolverID)
			if !ok {
				return fmt.Errorf("configure %s/%s: %w: %s", m.typ.ID(), typed.id, ErrSolverNotFound, *c.SolverID)
			}
			solver = s
		}
		if err := typed.SetSolver(solver); err != nil {
			return err
		}
	}
	return nil
}

// Start solves a registered problem in the background.
func (m *Manager[I, O]) Start(ctx context.Context, id uuid.UUID) (Waiter, error) {
	p, ok := m.FindByID(id)
	if !ok {
		return nil, fmt.Errorf("start %s/%s: %w", m.typ.ID(), id, ErrProblemNotFound)
	}
	pending, err := p.Start(ctx)
	if err != nil {
		return nil, err
	}
	return pending, nil
}

func (m *Manager[I, O]) add(p AnyProblem) (bool, error) {
	typed, ok := p.(*Problem[I, O])
	if !ok || typed.typ != m.typ {
		return false, fmt.Errorf("register %s with %s: %w", p.ID(), m.typ.ID(), ErrTypeMismatch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.instances[typed.id]; exists {
		return false, nil
	}
	m.instances[typed.id] = typed
	return true, nil
}

func (m *Manager[I, O]) remove(p AnyProblem) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.instances[p.ID()]; !exists {
		return false
	}
	delete(m.instances, p.ID())
	return true
}

func (m *Manager[I, O]) attach(d *Directory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dir != nil && m.dir != d {
		return fmt.Errorf("%s: %w", m.typ.ID(), ErrAlreadyAttached)
	}
	m.dir = d
	return nil
}

func (m *Manager[I, O]) subRoutineTypes() []AnyType {
	var out []AnyType
	for _, s := range m.solvers {
		for _, def := range s.SubRoutines() {
			out = append(out, def.Type())
		}
	}
	return out
}

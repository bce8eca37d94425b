package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/AaronLay10/SolverEngine/internal/orchestrator")

// AnyProblem is the type-erased view of a Problem.
type AnyProblem interface {
	ID() uuid.UUID
	Type() AnyType
	State() ProblemState
	// InputValue returns the current input, if set.
	InputValue() (any, bool)
	// SolverID returns the id of the current solver, or "" when none is set.
	SolverID() string
	// SolutionValue returns the last *Solution[O], or nil.
	SolutionValue() any
	SolutionStatus() (status SolutionStatus, elapsed time.Duration, ok bool)
	SubProblems() []AnyProblem
	SubProblemsFor(def SubRoutine) []AnyProblem
	SubProblemRefs() []SubProblemRef
	Subscribe(fn Observer) (cancel func())
	Bound() (Bound, bool)
	EstimateBound(ctx context.Context) (Bound, error)
	CompareBound() (Comparison, error)

	setInputJSON(raw json.RawMessage) error
}

// Problem is one instance of a problem type: an optional input, an optional
// solver, the last solution and one sub-problem per sub-routine the solver
// declares. A Problem is safe for concurrent use.
type Problem[I, O any] struct {
	id  uuid.UUID
	typ *ProblemType[I, O]

	mu       sync.RWMutex
	input    *I
	solver   Solver[I, O]
	state    ProblemState
	solution *Solution[O]
	bound    *Bound

	subs      subProblems
	observers observers
}

// NewProblem creates an unconfigured problem of the given type.
func NewProblem[I, O any](typ *ProblemType[I, O]) *Problem[I, O] {
	return &Problem[I, O]{
		id:    uuid.New(),
		typ:   typ,
		state: StateNeedsConfiguration,
	}
}

// NewProblemWithInput creates a problem with its input already set.
func NewProblemWithInput[I, O any](typ *ProblemType[I, O], input I) *Problem[I, O] {
	p := NewProblem(typ)
	p.input = &input
	return p
}

func (p *Problem[I, O]) ID() uuid.UUID                   { return p.id }
func (p *Problem[I, O]) Type() AnyType                   { return p.typ }
func (p *Problem[I, O]) ProblemType() *ProblemType[I, O] { return p.typ }

// State returns the current lifecycle state.
func (p *Problem[I, O]) State() ProblemState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Input returns the current input.
func (p *Problem[I, O]) Input() (I, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.input == nil {
		var zero I
		return zero, false
	}
	return *p.input, true
}

func (p *Problem[I, O]) InputValue() (any, bool) {
	in, ok := p.Input()
	if !ok {
		return nil, false
	}
	return in, true
}

// Solver returns the current solver, or nil.
func (p *Problem[I, O]) Solver() Solver[I, O] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.solver
}

func (p *Problem[I, O]) SolverID() string {
	if s := p.Solver(); s != nil {
		return s.ID()
	}
	return ""
}

// Solution returns the last solution. It is nil until a solve starts and
// again after input or solver change.
func (p *Problem[I, O]) Solution() *Solution[O] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.solution
}

func (p *Problem[I, O]) SolutionValue() any {
	if s := p.Solution(); s != nil {
		return s
	}
	return nil
}

func (p *Problem[I, O]) SolutionStatus() (SolutionStatus, time.Duration, bool) {
	s := p.Solution()
	if s == nil {
		return "", 0, false
	}
	return s.Status, s.Elapsed(), true
}

// SubProblems returns the children created for the current solver, in the
// order the solver declares its sub-routines.
func (p *Problem[I, O]) SubProblems() []AnyProblem {
	return p.subs.problems()
}

// SubProblemsFor returns the children bound to def.
func (p *Problem[I, O]) SubProblemsFor(def SubRoutine) []AnyProblem {
	return p.subs.problemsFor(def)
}

func (p *Problem[I, O]) SubProblemRefs() []SubProblemRef {
	return p.subs.refs()
}

// Subscribe registers fn for all future events of p.
func (p *Problem[I, O]) Subscribe(fn Observer) func() {
	return p.observers.add(fn)
}

// SetInput replaces the input and drops any previous solution.
func (p *Problem[I, O]) SetInput(input I) error {
	return p.updateInput(&input)
}

// ClearInput removes the input.
func (p *Problem[I, O]) ClearInput() error {
	return p.updateInput(nil)
}

func (p *Problem[I, O]) updateInput(input *I) error {
	p.mu.Lock()
	if p.state == StateSolving {
		p.mu.Unlock()
		return fmt.Errorf("set input of %s: %w", p.id, ErrProblemSolving)
	}
	p.input = input
	p.solution = nil
	p.bound = nil
	state, changed := p.refreshStateLocked()
	p.mu.Unlock()

	p.observers.notify(Event{Kind: EventInputChanged, Problem: p})
	p.notifyState(state, changed)
	return nil
}

func (p *Problem[I, O]) setInputJSON(raw json.RawMessage) error {
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return p.ClearInput()
	}
	var input I
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("%w for %s: %v", ErrInvalidInput, p.typ.ID(), err)
	}
	return p.SetInput(input)
}

// SetSolver replaces the solver. All previous sub-problems are discarded and
// one fresh sub-problem per declared sub-routine is created. Setting the
// solver that is already set (same id) changes nothing.
func (p *Problem[I, O]) SetSolver(solver Solver[I, O]) error {
	p.mu.Lock()
	if p.state == StateSolving {
		p.mu.Unlock()
		return fmt.Errorf("set solver of %s: %w", p.id, ErrProblemSolving)
	}
	if sameSolver(p.solver, solver) {
		p.mu.Unlock()
		return nil
	}
	p.solver = solver
	p.solution = nil
	var defs []SubRoutine
	if solver != nil {
		defs = solver.SubRoutines()
	}
	removed, added := p.subs.rebuild(defs)
	state, changed := p.refreshStateLocked()
	p.mu.Unlock()

	// Old children go first so observers never see both sets at once.
	for _, e := range removed {
		p.observers.notify(Event{Kind: EventSubProblemRemoved, Problem: p, SubProblem: e.problem, Definition: e.definition})
	}
	p.observers.notify(Event{Kind: EventSolverChanged, Problem: p})
	for _, e := range added {
		p.observers.notify(Event{Kind: EventSubProblemAdded, Problem: p, SubProblem: e.problem, Definition: e.definition})
	}
	p.notifyState(state, changed)
	return nil
}

func sameSolver[I, O any](a, b Solver[I, O]) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID() == b.ID()
}

func (p *Problem[I, O]) refreshStateLocked() (ProblemState, bool) {
	next := StateNeedsConfiguration
	if p.input != nil && p.solver != nil {
		next = StateReadyToSolve
	}
	if next == p.state {
		return next, false
	}
	p.state = next
	return next, true
}

func (p *Problem[I, O]) notifyState(state ProblemState, changed bool) {
	if changed {
		p.observers.notify(Event{Kind: EventStateChanged, Problem: p, State: state})
	}
}

// Solve runs the current solver to completion and returns its solution.
// Solver failures are recorded in the solution; the returned error is
// non-nil when the problem could not be solved at all or the solver
// returned an error.
func (p *Problem[I, O]) Solve(ctx context.Context) (*Solution[O], error) {
	solver, input, err := p.begin()
	if err != nil {
		return nil, err
	}
	return p.run(ctx, solver, input)
}

// Start runs the solver in the background. Preconditions are checked before
// Start returns, and the problem is SOLVING by then.
func (p *Problem[I, O]) Start(ctx context.Context) (*Pending[O], error) {
	solver, input, err := p.begin()
	if err != nil {
		return nil, err
	}
	pending := &Pending[O]{done: make(chan struct{})}
	go func() {
		defer close(pending.done)
		pending.solution, pending.err = p.run(ctx, solver, input)
	}()
	return pending, nil
}

func (p *Problem[I, O]) begin() (Solver[I, O], I, error) {
	var zero I
	p.mu.Lock()
	if p.state == StateSolving {
		p.mu.Unlock()
		return nil, zero, fmt.Errorf("solve %s: %w", p.id, ErrConcurrentSolve)
	}
	if p.input == nil || p.solver == nil {
		p.mu.Unlock()
		return nil, zero, fmt.Errorf("solve %s (input set: %t, solver set: %t): %w",
			p.id, p.input != nil, p.solver != nil, ErrNotConfigured)
	}
	solver, input := p.solver, *p.input
	p.state = StateSolving
	p.solution = NewSolution[O](solver.Name())
	p.mu.Unlock()

	p.notifyState(StateSolving, true)
	return solver, input, nil
}

func (p *Problem[I, O]) run(ctx context.Context, solver Solver[I, O], input I) (*Solution[O], error) {
	ctx, span := tracer.Start(ctx, "orchestrator.solve", trace.WithAttributes(
		attribute.String("problem.id", p.id.String()),
		attribute.String("problem.type", p.typ.ID()),
		attribute.String("solver.id", solver.ID()),
	))
	defer span.End()

	start := time.Now()
	solution, err := solveGuarded(ctx, solver, input, &p.subs)
	solution = finalize(solution, solver, err)
	solution.ExecutionMilliseconds = time.Since(start).Milliseconds()

	span.SetAttributes(attribute.String("solution.status", string(solution.Status)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	p.mu.Lock()
	p.solution = solution
	p.state = StateSolved
	p.mu.Unlock()
	p.notifyState(StateSolved, true)

	if err != nil {
		return solution, fmt.Errorf("solve %s with %s: %w", p.id, solver.ID(), err)
	}
	return solution, nil
}

// finalize guarantees a completed solution whatever the solver returned.
// solveGuarded turns a solver panic into an error so the problem still
// reaches StateSolved.
func solveGuarded[I, O any](ctx context.Context, solver Solver[I, O], input I, r Resolver) (s *Solution[O], err error) {
	defer func() {
		if v := recover(); v != nil {
			s, err = nil, fmt.Errorf("%w: %v", ErrSolverPanic, v)
		}
	}()
	return solver.Solve(ctx, input, r)
}

func finalize[I, O any](s *Solution[O], solver Solver[I, O], err error) *Solution[O] {
	if s == nil {
		s = NewSolution[O](solver.Name())
	}
	if s.SolverName == "" {
		s.SolverName = solver.Name()
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	switch {
	case err != nil:
		s.Fail(err.Error())
	case !s.Status.IsCompleted():
		s.Fail("solver returned without completing the solution")
	}
	return s
}

func (p *Problem[I, O]) String() string {
	return fmt.Sprintf("Problem{id=%s, type=%s, state=%s}", p.id, p.typ.ID(), p.State())
}

// Pending is a solve started with Start.
type Pending[O any] struct {
	done     chan struct{}
	solution *Solution[O]
	err      error
}

// Done is closed once the solve finished.
func (p *Pending[O]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the solve finished or ctx is done.
func (p *Pending[O]) Wait(ctx context.Context) (*Solution[O], error) {
	select {
	case <-p.done:
		return p.solution, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitAny is Wait for callers that only hold a Waiter.
func (p *Pending[O]) WaitAny(ctx context.Context) (any, error) {
	s, err := p.Wait(ctx)
	if s == nil {
		return nil, err
	}
	return s, err
}

// Waiter is the type-erased view of a Pending.
type Waiter interface {
	Done() <-chan struct{}
	WaitAny(ctx context.Context) (any, error)
}

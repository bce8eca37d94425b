package orchestrator

import (
	"context"
	"fmt"
)

// Solver solves problems of one type. A solver that delegates work declares
// its sub-routines up front and runs them through the Resolver it is handed.
type Solver[I, O any] interface {
	// ID is unique among the solvers of one problem type.
	ID() string
	Name() string
	Description() string
	SubRoutines() []SubRoutine
	Solve(ctx context.Context, input I, r Resolver) (*Solution[O], error)
}

// Resolver gives a running solver access to the sub-problems created for its
// declared sub-routines. It is implemented by the engine only.
type Resolver interface {
	subProblem(def SubRoutine) (AnyProblem, error)
}

// SubRoutine is the type-erased view of a SubRoutineDefinition.
type SubRoutine interface {
	Type() AnyType
	Description() string
	Required() bool
	newProblem() AnyProblem
}

// SubRoutineDefinition declares that a solver needs to solve a problem of
// another type while it runs. Definitions are identified by pointer.
type SubRoutineDefinition[I, O any] struct {
	typ         *ProblemType[I, O]
	description string
	required    bool
}

// RequiredSubRoutine declares a sub-routine the solver always runs.
func RequiredSubRoutine[I, O any](typ *ProblemType[I, O], description string) *SubRoutineDefinition[I, O] {
	return &SubRoutineDefinition[I, O]{typ: typ, description: description, required: true}
}

// OptionalSubRoutine declares a sub-routine the solver may skip.
func OptionalSubRoutine[I, O any](typ *ProblemType[I, O], description string) *SubRoutineDefinition[I, O] {
	return &SubRoutineDefinition[I, O]{typ: typ, description: description}
}

func (d *SubRoutineDefinition[I, O]) Type() AnyType                   { return d.typ }
func (d *SubRoutineDefinition[I, O]) ProblemType() *ProblemType[I, O] { return d.typ }
func (d *SubRoutineDefinition[I, O]) Description() string             { return d.description }
func (d *SubRoutineDefinition[I, O]) Required() bool                  { return d.required }

func (d *SubRoutineDefinition[I, O]) newProblem() AnyProblem {
	return NewProblem(d.typ)
}

// Run sets input on the sub-problem bound to d and solves it synchronously.
// The sub-problem keeps its own solver; Run fails when d was not declared by
// the solver that received r.
func (d *SubRoutineDefinition[I, O]) Run(ctx context.Context, r Resolver, input I) (*Solution[O], error) {
	if r == nil {
		return nil, fmt.Errorf("run %q: %w", d.description, ErrUnknownSubRoutine)
	}
	child, err := r.subProblem(d)
	if err != nil {
		return nil, err
	}
	problem, ok := child.(*Problem[I, O])
	if !ok {
		return nil, fmt.Errorf("run %q: %w: %s", d.description, ErrTypeMismatch, child.Type().ID())
	}
	if err := problem.SetInput(input); err != nil {
		return nil, err
	}
	return problem.Solve(ctx)
}

// SubRoutineInfo describes a declared sub-routine for listings.
type SubRoutineInfo struct {
	TypeID      string `json:"typeId"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// SolverInfo describes a solver for listings.
type SolverInfo struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	SubRoutines []SubRoutineInfo `json:"subRoutines"`
}

// DescribeSubRoutine returns the listing view of a sub-routine.
func DescribeSubRoutine(def SubRoutine) SubRoutineInfo {
	return SubRoutineInfo{
		TypeID:      def.Type().ID(),
		Description: def.Description(),
		Required:    def.Required(),
	}
}

// DescribeSolver returns the listing view of a solver.
func DescribeSolver[I, O any](s Solver[I, O]) SolverInfo {
	defs := s.SubRoutines()
	info := SolverInfo{
		ID:          s.ID(),
		Name:        s.Name(),
		Description: s.Description(),
		SubRoutines: make([]SubRoutineInfo, 0, len(defs)),
	}
	for _, def := range defs {
		info.SubRoutines = append(info.SubRoutines, DescribeSubRoutine(def))
	}
	return info
}

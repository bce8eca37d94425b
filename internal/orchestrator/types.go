package orchestrator

import (
	"fmt"
	"reflect"
)

// AnyType is the type-erased view of a ProblemType, used wherever problems of
// different input/output kinds are handled together.
type AnyType interface {
	ID() string
	InputKind() reflect.Type
	OutputKind() reflect.Type
	CanEstimate() bool
}

// ProblemType identifies one category of problem together with the Go types
// of its input and result. Types are compared by pointer, never structurally:
// two types with the same id and kinds are still different types.
type ProblemType[I, O any] struct {
	id        string
	estimator Estimator[I]
	value     ValueFunc[O]
}

// NewProblemType defines a problem type. The id must be globally unique;
// NewDirectory rejects duplicates.
func NewProblemType[I, O any](id string) *ProblemType[I, O] {
	return &ProblemType[I, O]{id: id}
}

// ID returns the unique identifier of the type.
func (t *ProblemType[I, O]) ID() string {
	return t.id
}

// InputKind returns the Go type of the problem input.
func (t *ProblemType[I, O]) InputKind() reflect.Type {
	return reflect.TypeFor[I]()
}

// OutputKind returns the Go type of the solution data.
func (t *ProblemType[I, O]) OutputKind() reflect.Type {
	return reflect.TypeFor[O]()
}

// WithEstimator lets problems of the type estimate a bound before solving.
// Call it while defining the type, before problems are created.
func (t *ProblemType[I, O]) WithEstimator(e Estimator[I]) *ProblemType[I, O] {
	t.estimator = e
	return t
}

// WithSolutionValue sets how results are turned into a number comparable
// with a bound.
func (t *ProblemType[I, O]) WithSolutionValue(fn ValueFunc[O]) *ProblemType[I, O] {
	t.value = fn
	return t
}

// CanEstimate reports whether the type has an estimator.
func (t *ProblemType[I, O]) CanEstimate() bool {
	return t.estimator != nil
}

func (t *ProblemType[I, O]) String() string {
	return fmt.Sprintf("ProblemType{id=%s, input=%s, output=%s}", t.id, t.InputKind(), t.OutputKind())
}

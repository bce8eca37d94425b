package orchestrator

import (
	"time"

	"github.com/google/uuid"
)

// Solution holds the outcome of one solve: status, result data, debug output
// and timing. Solver failures are reported here, not as Go errors.
type Solution[O any] struct {
	ID                    uuid.UUID      `json:"id"`
	Status                SolutionStatus `json:"status"`
	MetaData              string         `json:"metaData,omitempty"`
	Data                  *O             `json:"solutionData,omitempty"`
	DebugData             string         `json:"debugData,omitempty"`
	SolverName            string         `json:"solverName,omitempty"`
	ExecutionMilliseconds int64          `json:"executionMilliseconds"`
}

// NewSolution creates a solution in COMPUTING state.
func NewSolution[O any](solverName string) *Solution[O] {
	return &Solution[O]{
		ID:         uuid.New(),
		Status:     StatusComputing,
		SolverName: solverName,
	}
}

// FailedSolution creates an INVALID solution carrying the given explanation.
func FailedSolution[O any](solverName, debug string) *Solution[O] {
	s := NewSolution[O](solverName)
	s.Abort(debug)
	return s
}

// Complete stores the result and marks the solution SOLVED.
// It has no effect on an already completed solution.
func (s *Solution[O]) Complete(data O) {
	if s.Status.IsCompleted() {
		return
	}
	s.Data = &data
	s.Status = StatusSolved
}

// Abort marks the solution INVALID.
func (s *Solution[O]) Abort(debug string) {
	s.finish(StatusInvalid, debug)
}

// Fail marks the solution ERROR.
func (s *Solution[O]) Fail(debug string) {
	s.finish(StatusError, debug)
}

func (s *Solution[O]) finish(status SolutionStatus, debug string) {
	if s.Status.IsCompleted() {
		return
	}
	s.Status = status
	if debug != "" {
		s.DebugData = debug
	}
}

// Result returns the solution data, if any.
func (s *Solution[O]) Result() (O, bool) {
	if s == nil || s.Data == nil {
		var zero O
		return zero, false
	}
	return *s.Data, true
}

// Elapsed returns the recorded execution time.
func (s *Solution[O]) Elapsed() time.Duration {
	return time.Duration(s.ExecutionMilliseconds) * time.Millisecond
}

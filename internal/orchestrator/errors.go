package orchestrator

import "errors"

var (
	// ErrNotConfigured is returned when a problem is solved without both input and solver.
	ErrNotConfigured = errors.New("orchestrator: problem needs input and solver before solving")
	// ErrConcurrentSolve is returned when a problem is solved while it is already solving.
	ErrConcurrentSolve = errors.New("orchestrator: problem is already solving")
	// ErrProblemSolving is returned when input or solver change while a solve is running.
	ErrProblemSolving = errors.New("orchestrator: cannot reconfigure a problem while it is solving")
	// ErrUnknownSubRoutine indicates a solver ran a sub-routine it never declared.
	ErrUnknownSubRoutine = errors.New("orchestrator: sub-routine was not declared by the current solver")
	// ErrUnregisteredType indicates a problem type without a manager.
	ErrUnregisteredType = errors.New("orchestrator: no problem manager registered for type")
	ErrDuplicateType    = errors.New("orchestrator: problem type registered twice")
	ErrMissingExample   = errors.New("orchestrator: no problem example available")
	ErrDuplicateSolver  = errors.New("orchestrator: duplicate solver id")
	ErrTypeMismatch     = errors.New("orchestrator: problem type mismatch")
	ErrDetachedManager  = errors.New("orchestrator: problem manager is not part of a directory")
	ErrAlreadyAttached  = errors.New("orchestrator: problem manager already belongs to a directory")
	ErrProblemNotFound  = errors.New("orchestrator: problem not found")
	ErrSolverNotFound   = errors.New("orchestrator: solver not found")
	ErrInvalidInput     = errors.New("orchestrator: invalid input")
	// ErrSubProblemInUse is returned when a sub-problem is removed while its parent still holds it.
	ErrSubProblemInUse = errors.New("orchestrator: sub-problem is held by its parent")
	// ErrNoEstimator is returned when a bound is requested for a type without an estimator.
	ErrNoEstimator = errors.New("orchestrator: problem type has no bound estimator")
	// ErrBoundUnavailable is returned when no bound or comparison can be produced.
	ErrBoundUnavailable = errors.New("orchestrator: bound unavailable")
	// ErrSolverPanic wraps a panic raised inside a solver.
	ErrSolverPanic = errors.New("orchestrator: solver panicked")
)

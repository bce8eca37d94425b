package orchestrator

// ProblemState represents the lifecycle state of a problem.
type ProblemState string

const (
	// StateNeedsConfiguration means input or solver is still missing.
	StateNeedsConfiguration ProblemState = "NEEDS_CONFIGURATION"
	// StateReadyToSolve means input and solver are set.
	StateReadyToSolve ProblemState = "READY_TO_SOLVE"
	// StateSolving means a solve is running; the problem cannot be reconfigured.
	StateSolving ProblemState = "SOLVING"
	// StateSolved means the last solve finished, whatever its outcome.
	StateSolved ProblemState = "SOLVED"
)

// SolutionStatus indicates how far a solution process has come and how it ended.
type SolutionStatus string

const (
	// StatusComputing marks a solution whose solver is still running.
	StatusComputing SolutionStatus = "COMPUTING"
	// StatusSolved marks a solution that carries a result.
	StatusSolved SolutionStatus = "SOLVED"
	// StatusInvalid marks a problem that cannot be solved, usually because of its input.
	StatusInvalid SolutionStatus = "INVALID"
	// StatusError marks a solver that broke down while solving.
	StatusError SolutionStatus = "ERROR"
)

// IsCompleted returns true once the status can no longer change.
func (s SolutionStatus) IsCompleted() bool {
	switch s {
	case StatusSolved, StatusInvalid, StatusError:
		return true
	}
	return false
}

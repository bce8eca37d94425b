package solvers

import (
	"context"
	"fmt"
	"strings"

	"github.com/AaronLay10/SolverEngine/internal/orchestrator"
)

// AnomalyKind selects which anomaly of a formula is searched for.
type AnomalyKind string

const (
	// AnomalyVoid: no assignment satisfies the formula.
	AnomalyVoid AnomalyKind = "void"
	// AnomalyDead: variables that are false in every satisfying assignment.
	AnomalyDead AnomalyKind = "dead"
)

// AnomalyInput is a DIMACS formula, typically an encoded feature model,
// together with the anomaly to look for.
type AnomalyInput struct {
	Formula string      `json:"formula"`
	Anomaly AnomalyKind `json:"anomaly"`
}

// AnomalyType finds void or dead anomalies; the result is a readable report.
// Dead checks can be bounded before solving.
var AnomalyType = orchestrator.NewProblemType[AnomalyInput, string]("anomaly").
	WithEstimator(estimateDead).
	WithSolutionValue(deadCount)

const (
	noDeadReport   = "No variables are dead.\n"
	deadReportHead = "The following variables are dead:\n"
)

// SatAnomalySolver reduces anomaly checks to sat problems.
type SatAnomalySolver struct {
	satCheck *orchestrator.SubRoutineDefinition[string, string]
}

// NewSatAnomalySolver creates the solver with its sat sub-routine.
func NewSatAnomalySolver() *SatAnomalySolver {
	return &SatAnomalySolver{
		satCheck: orchestrator.RequiredSubRoutine(SatType,
			"Decides the formula, and for dead checks the formula with each variable forced true"),
	}
}

func (s *SatAnomalySolver) ID() string   { return "sat-anomaly" }
func (s *SatAnomalySolver) Name() string { return "SAT-based Anomaly Solver" }
func (s *SatAnomalySolver) Description() string {
	return "Void: the formula is unsatisfiable. Dead: formula AND v is unsatisfiable."
}

func (s *SatAnomalySolver) SubRoutines() []orchestrator.SubRoutine {
	return []orchestrator.SubRoutine{s.satCheck}
}

func (s *SatAnomalySolver) Solve(ctx context.Context, input AnomalyInput, r orchestrator.Resolver) (*orchestrator.Solution[string], error) {
	formula, err := ParseFormula(input.Formula)
	if err != nil {
		return orchestrator.FailedSolution[string](s.Name(), "Conversion error: "+err.Error()), nil
	}

	switch input.Anomaly {
	case AnomalyVoid:
		return s.checkVoid(ctx, formula, r)
	case AnomalyDead:
		return s.checkDead(ctx, formula, r)
	default:
		return orchestrator.FailedSolution[string](s.Name(), fmt.Sprintf("unknown anomaly %q, want %q or %q", input.Anomaly, AnomalyVoid, AnomalyDead)), nil
	}
}

// decide runs the sat sub-routine. A nil result with a nil error means the
// sub-problem failed; its debug text is returned as reason.
func (s *SatAnomalySolver) decide(ctx context.Context, r orchestrator.Resolver, f *Formula) (*SatResult, string, error) {
	child, err := s.satCheck.Run(ctx, r, f.String())
	if err != nil {
		return nil, "", err
	}
	data, ok := child.Result()
	if child.Status != orchestrator.StatusSolved || !ok {
		return nil, child.DebugData, nil
	}
	result, err := ParseSatResult(data)
	if err != nil {
		return nil, "unreadable sat result: " + err.Error(), nil
	}
	return &result, "", nil
}

func (s *SatAnomalySolver) checkVoid(ctx context.Context, f *Formula, r orchestrator.Resolver) (*orchestrator.Solution[string], error) {
	result, reason, err := s.decide(ctx, r, f)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return orchestrator.FailedSolution[string](s.Name(), reason), nil
	}

	solution := orchestrator.NewSolution[string](s.Name())
	solution.DebugData = "DIMACS CNF of the formula:\n" + f.String()
	if !result.Satisfiable {
		solution.Complete("The formula is void. No assignment satisfies it.")
	} else {
		solution.Complete("The formula has valid assignments, for example:\n" + f.Describe(result.Model))
	}
	return solution, nil
}

func (s *SatAnomalySolver) checkDead(ctx context.Context, f *Formula, r orchestrator.Resolver) (*orchestrator.Solution[string], error) {
	var dead, failures []string
	// One sub-problem serves all checks, so they run one after another.
	for v := 1; v <= f.NumVars; v++ {
		result, reason, err := s.decide(ctx, r, f.WithClause(v))
		if err != nil {
			return nil, err
		}
		switch {
		case result == nil:
			failures = append(failures, fmt.Sprintf("%s: %s", f.Name(v), reason))
		case !result.Satisfiable:
			dead = append(dead, f.Name(v))
		}
	}

	if len(failures) > 0 {
		return orchestrator.FailedSolution[string](s.Name(), "Following errors occurred:\n"+strings.Join(failures, "\n")), nil
	}

	solution := orchestrator.NewSolution[string](s.Name())
	if len(dead) == 0 {
		solution.Complete(noDeadReport)
	} else {
		solution.Complete(deadReportHead + strings.Join(dead, "\n") + "\n")
	}
	return solution, nil
}

// estimateDead bounds the number of dead variables from above with a single
// sat call: a variable that is true in some model is not dead.
func estimateDead(ctx context.Context, input AnomalyInput) (orchestrator.Bound, error) {
	if input.Anomaly != AnomalyDead {
		return orchestrator.Bound{}, fmt.Errorf("%w: only %s checks can be bounded", orchestrator.ErrBoundUnavailable, AnomalyDead)
	}
	f, err := ParseFormula(input.Formula)
	if err != nil {
		return orchestrator.Bound{}, fmt.Errorf("%w: %v", orchestrator.ErrInvalidInput, err)
	}
	result, err := decideWithGini(ctx, f, 0)
	if err != nil {
		return orchestrator.Bound{}, err
	}
	alive := 0
	for _, lit := range result.Model {
		if lit > 0 {
			alive++
		}
	}
	return orchestrator.Bound{Value: float64(f.NumVars - alive), Type: orchestrator.BoundUpper}, nil
}

// deadCount reads the number of dead variables from a dead check report.
func deadCount(report string) (float64, bool) {
	if report == noDeadReport {
		return 0, true
	}
	names, ok := strings.CutPrefix(report, deadReportHead)
	if !ok {
		return 0, false
	}
	names = strings.TrimSpace(names)
	if names == "" {
		return 0, true
	}
	return float64(strings.Count(names, "\n") + 1), true
}

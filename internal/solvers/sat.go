package solvers

import (
	"context"
	"strings"
	"time"

	"github.com/crillab/gophersat/solver"
	"github.com/go-air/gini"
	"github.com/go-air/gini/z"

	"github.com/AaronLay10/SolverEngine/internal/orchestrator"
)

// SatType decides satisfiability of a DIMACS CNF formula. The result is
// "s SATISFIABLE" with a "v" model line, or "s UNSATISFIABLE".
var SatType = orchestrator.NewProblemType[string, string]("sat")

// GophersatSolver solves sat problems with crillab/gophersat.
type GophersatSolver struct{}

func (GophersatSolver) ID() string   { return "gophersat" }
func (GophersatSolver) Name() string { return "Gophersat CDCL Solver" }
func (GophersatSolver) Description() string {
	return "Pure Go CDCL solver; parses the DIMACS input itself."
}
func (GophersatSolver) SubRoutines() []orchestrator.SubRoutine { return nil }

func (s GophersatSolver) Solve(ctx context.Context, input string, _ orchestrator.Resolver) (*orchestrator.Solution[string], error) {
	formula, err := ParseFormula(input)
	if err != nil {
		return orchestrator.FailedSolution[string](s.Name(), err.Error()), nil
	}
	pb, err := solver.ParseCNF(strings.NewReader(input))
	if err != nil {
		return orchestrator.FailedSolution[string](s.Name(), err.Error()), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	solution := orchestrator.NewSolution[string](s.Name())
	sv := solver.New(pb)
	switch sv.Solve() {
	case solver.Sat:
		values := sv.Model()
		model := modelFromValues(formula.NumVars, func(v int) bool {
			return v <= len(values) && values[v-1]
		})
		solution.Complete(FormatSatResult(SatResult{Satisfiable: true, Model: model}))
	case solver.Unsat:
		solution.Complete(FormatSatResult(SatResult{}))
	default:
		solution.Fail("solver could not decide the formula")
	}
	return solution, nil
}

// GiniSolver solves sat problems with go-air/gini. It checks ctx between
// short solving slices, so long solves can be cancelled.
type GiniSolver struct {
	// Slice is the solving time between cancellation checks.
	Slice time.Duration
}

func (GiniSolver) ID() string   { return "gini" }
func (GiniSolver) Name() string { return "Gini Incremental Solver" }
func (GiniSolver) Description() string {
	return "CDCL solver with cancellable, time-sliced solving."
}
func (GiniSolver) SubRoutines() []orchestrator.SubRoutine { return nil }

func (s GiniSolver) Solve(ctx context.Context, input string, _ orchestrator.Resolver) (*orchestrator.Solution[string], error) {
	formula, err := ParseFormula(input)
	if err != nil {
		return orchestrator.FailedSolution[string](s.Name(), err.Error()), nil
	}
	result, err := decideWithGini(ctx, formula, s.Slice)
	if err != nil {
		return nil, err
	}
	solution := orchestrator.NewSolution[string](s.Name())
	solution.Complete(FormatSatResult(result))
	return solution, nil
}

// decideWithGini solves f in slices of the given length, checking ctx in
// between.
func decideWithGini(ctx context.Context, f *Formula, slice time.Duration) (SatResult, error) {
	g := gini.New()
	for _, clause := range f.Clauses {
		for _, lit := range clause {
			g.Add(z.Dimacs2Lit(lit))
		}
		g.Add(z.LitNull)
	}

	if slice <= 0 {
		slice = 100 * time.Millisecond
	}
	result := 0
	for result == 0 {
		if err := ctx.Err(); err != nil {
			return SatResult{}, err
		}
		result = g.Try(slice)
	}
	if result < 0 {
		return SatResult{}, nil
	}
	maxVar := int(g.MaxVar())
	model := modelFromValues(f.NumVars, func(v int) bool {
		return v <= maxVar && g.Value(z.Dimacs2Lit(v))
	})
	return SatResult{Satisfiable: true, Model: model}, nil
}

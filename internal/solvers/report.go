package solvers

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/AaronLay10/SolverEngine/internal/orchestrator"
)

// AnomalyReport combines the void and dead anomaly checks of one formula.
type AnomalyReport struct {
	Void string `json:"void"`
	Dead string `json:"dead"`
}

// AnomalyReportType runs every anomaly check on a DIMACS formula.
var AnomalyReportType = orchestrator.NewProblemType[string, AnomalyReport]("anomaly-report")

// ReportSolver runs the void and the dead check as two sub-problems in
// parallel.
type ReportSolver struct {
	voidCheck *orchestrator.SubRoutineDefinition[AnomalyInput, string]
	deadCheck *orchestrator.SubRoutineDefinition[AnomalyInput, string]
}

// NewReportSolver creates the solver with its void and dead sub-routines.
func NewReportSolver() *ReportSolver {
	return &ReportSolver{
		voidCheck: orchestrator.RequiredSubRoutine(AnomalyType, "Checks whether the formula is void"),
		deadCheck: orchestrator.RequiredSubRoutine(AnomalyType, "Lists the dead variables of the formula"),
	}
}

func (s *ReportSolver) ID() string          { return "anomaly-report" }
func (s *ReportSolver) Name() string        { return "Anomaly Report" }
func (s *ReportSolver) Description() string { return "Runs the void and dead checks concurrently." }

func (s *ReportSolver) SubRoutines() []orchestrator.SubRoutine {
	return []orchestrator.SubRoutine{s.voidCheck, s.deadCheck}
}

func (s *ReportSolver) Solve(ctx context.Context, input string, r orchestrator.Resolver) (*orchestrator.Solution[AnomalyReport], error) {
	if _, err := ParseFormula(input); err != nil {
		return orchestrator.FailedSolution[AnomalyReport](s.Name(), "Conversion error: "+err.Error()), nil
	}

	var voidResult, deadResult *orchestrator.Solution[string]
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		voidResult, err = s.voidCheck.Run(gctx, r, AnomalyInput{Formula: input, Anomaly: AnomalyVoid})
		return err
	})
	g.Go(func() error {
		var err error
		deadResult, err = s.deadCheck.Run(gctx, r, AnomalyInput{Formula: input, Anomaly: AnomalyDead})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, check := range []struct {
		name   string
		result *orchestrator.Solution[string]
	}{{"void", voidResult}, {"dead", deadResult}} {
		if check.result.Status != orchestrator.StatusSolved {
			return orchestrator.FailedSolution[AnomalyReport](s.Name(),
				fmt.Sprintf("%s check %s: %s", check.name, check.result.Status, check.result.DebugData)), nil
		}
	}

	voidText, _ := voidResult.Result()
	deadText, _ := deadResult.Result()
	solution := orchestrator.NewSolution[AnomalyReport](s.Name())
	solution.Complete(AnomalyReport{Void: voidText, Dead: deadText})
	return solution, nil
}

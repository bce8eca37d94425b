package solvers

import (
	"github.com/AaronLay10/SolverEngine/internal/config"
	"github.com/AaronLay10/SolverEngine/internal/orchestrator"
)

// Catalog builds one manager per problem type with the built-in solvers
// minus the disabled ones, and the built-in examples plus those in set.
func Catalog(cfg *config.Config, set *orchestrator.ExampleSet) ([]orchestrator.AnyManager, error) {
	sat, err := newManager(cfg, set, SatType,
		[]orchestrator.Solver[string, string]{GophersatSolver{}, GiniSolver{}},
		satExamples())
	if err != nil {
		return nil, err
	}
	anomaly, err := newManager(cfg, set, AnomalyType,
		[]orchestrator.Solver[AnomalyInput, string]{NewSatAnomalySolver()},
		anomalyExamples())
	if err != nil {
		return nil, err
	}
	report, err := newManager(cfg, set, AnomalyReportType,
		[]orchestrator.Solver[string, AnomalyReport]{NewReportSolver()},
		reportExamples())
	if err != nil {
		return nil, err
	}
	return []orchestrator.AnyManager{sat, anomaly, report}, nil
}

func newManager[I, O any](
	cfg *config.Config,
	set *orchestrator.ExampleSet,
	typ *orchestrator.ProblemType[I, O],
	all []orchestrator.Solver[I, O],
	builtin []I,
) (*orchestrator.Manager[I, O], error) {
	var enabled []orchestrator.Solver[I, O]
	for _, s := range all {
		if cfg == nil || !cfg.SolverDisabled(s.ID()) {
			enabled = append(enabled, s)
		}
	}

	examples := make([]*orchestrator.Problem[I, O], 0, len(builtin))
	for _, input := range builtin {
		examples = append(examples, orchestrator.NewProblemWithInput(typ, input))
	}
	extra, err := orchestrator.DecodeExamples(set, typ)
	if err != nil {
		return nil, err
	}
	examples = append(examples, extra...)

	return orchestrator.NewManager(typ, enabled, examples)
}

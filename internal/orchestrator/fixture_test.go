package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSolver[I, O any] struct {
	id   string
	subs []SubRoutine
	fn   func(ctx context.Context, input I, r Resolver) (*Solution[O], error)
}

func (s *fakeSolver[I, O]) ID() string                { return s.id }
func (s *fakeSolver[I, O]) Name() string              { return "fake " + s.id }
func (s *fakeSolver[I, O]) Description() string       { return "test solver " + s.id }
func (s *fakeSolver[I, O]) SubRoutines() []SubRoutine { return s.subs }

func (s *fakeSolver[I, O]) Solve(ctx context.Context, input I, r Resolver) (*Solution[O], error) {
	return s.fn(ctx, input, r)
}

func completeWith(name, data string) *Solution[string] {
	s := NewSolution[string](name)
	s.Complete(data)
	return s
}

// fixture is a three level type graph: report -> anomaly -> sat.
type fixture struct {
	sat, anomaly, report *ProblemType[string, string]

	satDef            *SubRoutineDefinition[string, string]
	wideA, wideB      *SubRoutineDefinition[string, string]
	anomalyDef        *SubRoutineDefinition[string, string]
	echo, delegate    *fakeSolver[string, string]
	wide, reportSolve *fakeSolver[string, string]

	satM, anomalyM, reportM *Manager[string, string]
	dir                     *Directory

	mu     sync.Mutex
	events []Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sat:     NewProblemType[string, string]("sat"),
		anomaly: NewProblemType[string, string]("anomaly"),
		report:  NewProblemType[string, string]("report"),
	}
	f.satDef = RequiredSubRoutine(f.sat, "check satisfiability")
	f.wideA = RequiredSubRoutine(f.sat, "first check")
	f.wideB = OptionalSubRoutine(f.sat, "second check")
	f.anomalyDef = RequiredSubRoutine(f.anomaly, "find anomalies")

	f.echo = &fakeSolver[string, string]{
		id: "echo",
		fn: func(context.Context, string, Resolver) (*Solution[string], error) {
			return completeWith("echo", "ok"), nil
		},
	}
	f.delegate = &fakeSolver[string, string]{
		id:   "delegate",
		subs: []SubRoutine{f.satDef},
		fn: func(ctx context.Context, input string, r Resolver) (*Solution[string], error) {
			child, err := f.satDef.Run(ctx, r, "cnf-input")
			if err != nil {
				return nil, err
			}
			data, _ := child.Result()
			return completeWith("delegate", "anomaly:"+data), nil
		},
	}
	f.wide = &fakeSolver[string, string]{
		id:   "wide",
		subs: []SubRoutine{f.wideA, f.wideB, f.wideA},
		fn: func(context.Context, string, Resolver) (*Solution[string], error) {
			return completeWith("wide", "wide"), nil
		},
	}
	f.reportSolve = &fakeSolver[string, string]{
		id:   "report",
		subs: []SubRoutine{f.anomalyDef},
		fn: func(ctx context.Context, input string, r Resolver) (*Solution[string], error) {
			child, err := f.anomalyDef.Run(ctx, r, input)
			if err != nil {
				return nil, err
			}
			data, _ := child.Result()
			return completeWith("report", "report:"+data), nil
		},
	}

	var err error
	f.satM, err = NewManager(f.sat, []Solver[string, string]{f.echo},
		[]*Problem[string, string]{NewProblemWithInput(f.sat, "p cnf 1 1\n1 0\n")})
	require.NoError(t, err)
	f.anomalyM, err = NewManager(f.anomaly, []Solver[string, string]{f.delegate, f.wide},
		[]*Problem[string, string]{NewProblemWithInput(f.anomaly, "x")})
	require.NoError(t, err)
	f.reportM, err = NewManager(f.report, []Solver[string, string]{f.reportSolve},
		[]*Problem[string, string]{NewProblemWithInput(f.report, "x")})
	require.NoError(t, err)

	f.dir, err = NewDirectory([]AnyManager{f.satM, f.anomalyM, f.reportM}, WithHook(f.record))
	require.NoError(t, err)
	return f
}

func (f *fixture) record(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fixture) recorded() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

func (f *fixture) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

// registeredIn reports whether p is an instance of exactly the manager of its type.
func (f *fixture) registeredIn(p AnyProblem) []string {
	var owners []string
	for _, m := range f.dir.Managers() {
		if _, ok := m.Problem(p.ID()); ok {
			owners = append(owners, m.Type().ID())
		}
	}
	return owners
}

func reachable(p AnyProblem) []AnyProblem {
	out := []AnyProblem{p}
	for _, child := range p.SubProblems() {
		out = append(out, reachable(child)...)
	}
	return out
}

func asString(t *testing.T, p AnyProblem) *Problem[string, string] {
	t.Helper()
	typed, ok := p.(*Problem[string, string])
	require.True(t, ok, "unexpected problem type %T", p)
	return typed
}

package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/SolverEngine/internal/config"
	"github.com/AaronLay10/SolverEngine/internal/mqtt"
	"github.com/AaronLay10/SolverEngine/internal/orchestrator"
	"github.com/AaronLay10/SolverEngine/internal/solvers"
)

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func eventNames(a *App) []string {
	var names []string
	for _, e := range a.Bus.Snapshot() {
		names = append(names, e.Name)
	}
	return names
}

func TestBuildDefault(t *testing.T) {
	a := newApp(t, nil)

	var ids []string
	for _, typ := range a.Directory.Types() {
		ids = append(ids, typ.ID())
	}
	assert.ElementsMatch(t, []string{"sat", "anomaly", "anomaly-report"}, ids)
	assert.Nil(t, a.MQTT)
	assert.Nil(t, a.Store)
	assert.Equal(t, []string{"system.startup"}, eventNames(a))

	h := a.Health(context.Background())
	assert.False(t, h.MQTTEnabled)
	assert.False(t, h.PostgresEnabled)
}

func TestSolveEmitsAuditEvents(t *testing.T) {
	a := newApp(t, nil)

	type call struct {
		typeID, solverID string
		status           orchestrator.SolutionStatus
	}
	var mu sync.Mutex
	var calls []call
	a.OnSolved(func(typeID, solverID string, status orchestrator.SolutionStatus, _ time.Duration) {
		mu.Lock()
		calls = append(calls, call{typeID, solverID, status})
		mu.Unlock()
	})

	p, solution, err := a.Solve(context.Background(), SolveRequest{
		TypeID: "sat",
		Input:  rawJSON(t, solvers.ContradictionModel),
	})
	require.NoError(t, err)
	require.NotNil(t, p)

	typed, ok := solution.(*orchestrator.Solution[string])
	require.True(t, ok, "solution is %T", solution)
	data, _ := typed.Result()
	assert.Equal(t, "s UNSATISFIABLE\n", data)
	assert.Equal(t, orchestrator.StateSolved, p.State())

	names := eventNames(a)
	for _, want := range []string{
		"problem.registered",
		"problem.created",
		"problem.input_changed",
		"problem.solver_changed",
		"problem.state_changed",
		"problem.solved",
	} {
		assert.Contains(t, names, want)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 1)
	assert.Equal(t, call{"sat", "gophersat", orchestrator.StatusSolved}, calls[0])
}

func TestSolveHonoursPreferredSolvers(t *testing.T) {
	cfg := config.Default()
	cfg.Events.BufferSize = 4096
	cfg.Solvers.Preferred = map[string]string{"sat": "gini"}
	a := newApp(t, cfg)

	_, solution, err := a.Solve(context.Background(), SolveRequest{
		TypeID: "anomaly-report",
		Input:  rawJSON(t, solvers.VehicleModel),
	})
	require.NoError(t, err)
	report, ok := solution.(*orchestrator.Solution[solvers.AnomalyReport])
	require.True(t, ok, "solution is %T", solution)
	require.Equal(t, orchestrator.StatusSolved, report.Status, report.DebugData)

	sat, err := orchestrator.ManagerFor(a.Directory, solvers.SatType)
	require.NoError(t, err)
	instances := sat.Instances()
	require.Len(t, instances, 2)
	for _, p := range instances {
		assert.Equal(t, "gini", p.SolverID())
	}
}

func TestSolveErrors(t *testing.T) {
	a := newApp(t, nil)
	ctx := context.Background()

	_, _, err := a.Solve(ctx, SolveRequest{TypeID: "tsp"})
	require.ErrorIs(t, err, orchestrator.ErrUnregisteredType)

	p, _, err := a.Solve(ctx, SolveRequest{TypeID: "sat"})
	require.ErrorIs(t, err, orchestrator.ErrNotConfigured)
	assert.Equal(t, orchestrator.StateNeedsConfiguration, p.State())

	_, _, err = a.Solve(ctx, SolveRequest{TypeID: "sat", Input: json.RawMessage(`42`)})
	require.ErrorIs(t, err, orchestrator.ErrInvalidInput)

	_, _, err = a.Solve(ctx, SolveRequest{TypeID: "sat", SolverID: "minisat", Input: rawJSON(t, "p cnf 1 1\n1 0\n")})
	require.ErrorIs(t, err, orchestrator.ErrSolverNotFound)
}

func TestHandleRequest(t *testing.T) {
	a := newApp(t, nil)

	resp := a.HandleRequest(context.Background(), mqtt.Request{
		RequestID: "r-1",
		TypeID:    "anomaly",
		Input:     rawJSON(t, solvers.AnomalyInput{Formula: solvers.VehicleModel, Anomaly: solvers.AnomalyDead}),
	})
	assert.Equal(t, "r-1", resp.RequestID)
	assert.Empty(t, resp.Error)
	assert.NotEmpty(t, resp.ProblemID)

	solution, ok := resp.Solution.(*orchestrator.Solution[string])
	require.True(t, ok, "solution is %T", resp.Solution)
	data, _ := solution.Result()
	assert.Contains(t, data, "Combustion")
	for _, m := range a.Directory.Managers() {
		assert.Empty(t, m.Problems(), "%s problems left after the response", m.Type().ID())
	}

	failed := a.HandleRequest(context.Background(), mqtt.Request{RequestID: "r-2", TypeID: "nope"})
	assert.Equal(t, "r-2", failed.RequestID)
	assert.NotEmpty(t, failed.Error)
	assert.Empty(t, failed.ProblemID)
}

func TestInvalidSolutionIsReportedAsFailed(t *testing.T) {
	a := newApp(t, nil)

	var statuses []orchestrator.SolutionStatus
	a.OnSolved(func(_, _ string, status orchestrator.SolutionStatus, _ time.Duration) {
		statuses = append(statuses, status)
	})

	_, _, err := a.Solve(context.Background(), SolveRequest{TypeID: "sat", Input: rawJSON(t, "garbage")})
	require.NoError(t, err)
	assert.Equal(t, []orchestrator.SolutionStatus{orchestrator.StatusInvalid}, statuses)
	assert.Contains(t, eventNames(a), "problem.failed")
	assert.NotContains(t, eventNames(a), "problem.solved")
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := Build(context.Background(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	sub := a.Bus.Subscribe()
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	_, open := <-sub
	for open {
		_, open = <-sub
	}
	assert.Equal(t, 0, a.Bus.SubscriberCount())

	names := eventNames(a)
	assert.Equal(t, "system.shutdown", names[len(names)-1])
}

package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetSolverRegistersChild(t *testing.T) {
	f := newFixture(t)
	p, err := f.anomalyM.NewInstance()
	require.NoError(t, err)

	require.NoError(t, p.SetSolver(f.delegate))

	children := p.SubProblems()
	require.Len(t, children, 1)
	child := children[0]
	assert.Equal(t, "sat", child.Type().ID())
	assert.Equal(t, StateNeedsConfiguration, child.State())
	assert.Equal(t, []string{"sat"}, f.registeredIn(child))
	_, ok := f.satM.FindByID(child.ID())
	assert.True(t, ok)
}

func TestResolverRunsChildBeforeParentCompletes(t *testing.T) {
	f := newFixture(t)
	p, err := f.anomalyM.NewInstance()
	require.NoError(t, err)
	require.NoError(t, p.SetInput("x"))
	require.NoError(t, p.SetSolver(f.delegate))
	child := asString(t, p.SubProblemsFor(f.satDef)[0])
	require.NoError(t, child.SetSolver(f.echo))
	f.reset()

	solution, err := p.Solve(context.Background())
	require.NoError(t, err)

	data, _ := solution.Result()
	assert.Equal(t, "anomaly:ok", data)
	input, ok := child.Input()
	require.True(t, ok)
	assert.Equal(t, "cnf-input", input)
	assert.Equal(t, StateSolved, child.State())

	childSolved, parentSolved := -1, -1
	for i, e := range f.recorded() {
		if e.Kind != EventStateChanged || e.State != StateSolved {
			continue
		}
		switch e.Problem.ID() {
		case child.ID():
			childSolved = i
		case p.ID():
			parentSolved = i
		}
	}
	require.NotEqual(t, -1, childSolved)
	require.NotEqual(t, -1, parentSolved)
	assert.Less(t, childSolved, parentSolved)
}

func TestChildWithoutSolverFailsParent(t *testing.T) {
	f := newFixture(t)
	p, err := f.anomalyM.NewInstance()
	require.NoError(t, err)
	require.NoError(t, p.SetInput("x"))
	require.NoError(t, p.SetSolver(f.delegate))

	solution, err := p.Solve(context.Background())
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, StatusError, solution.Status)
}

func TestSetSolverTearsDownPreviousTree(t *testing.T) {
	f := newFixture(t)
	p, err := f.anomalyM.NewInstance()
	require.NoError(t, err)

	require.NoError(t, p.SetSolver(f.delegate))
	old := p.SubProblems()
	require.Len(t, old, 1)

	require.NoError(t, p.SetSolver(f.wide))
	for _, child := range old {
		assert.Empty(t, f.registeredIn(child))
	}
	current := p.SubProblems()
	require.Len(t, current, 2)
	for _, child := range current {
		assert.Equal(t, []string{"sat"}, f.registeredIn(child))
	}
	assert.Len(t, f.satM.Instances(), 2)
}

func TestRegistrationCoversWholeTree(t *testing.T) {
	f := newFixture(t)
	top := NewProblem(f.report)
	require.NoError(t, top.SetSolver(f.reportSolve))
	require.NoError(t, f.dir.ConfigureDefaults(top, nil))
	assert.Empty(t, f.registeredIn(top.SubProblems()[0].SubProblems()[0]),
		"unregistered trees are configured in place only")

	require.NoError(t, f.reportM.AddInstance(top))
	for _, p := range reachable(top) {
		assert.Equal(t, []string{p.Type().ID()}, f.registeredIn(p))
	}
}

func TestConfigureDefaultsThenSolveThreeLevels(t *testing.T) {
	f := newFixture(t)
	top, err := f.reportM.NewInstance()
	require.NoError(t, err)
	require.NoError(t, top.SetInput("x"))
	require.NoError(t, top.SetSolver(f.reportSolve))
	require.NoError(t, f.dir.ConfigureDefaults(top, map[string]string{"anomaly": "delegate"}))

	all := reachable(top)
	require.Len(t, all, 3)
	for _, p := range all {
		assert.Equal(t, []string{p.Type().ID()}, f.registeredIn(p))
		assert.NotEmpty(t, p.SolverID())
	}

	solution, err := top.Solve(context.Background())
	require.NoError(t, err)
	data, _ := solution.Result()
	assert.Equal(t, "report:anomaly:ok", data)
}

func TestRemoveCascadesThroughAllLevels(t *testing.T) {
	f := newFixture(t)
	top, err := f.reportM.NewInstance()
	require.NoError(t, err)
	require.NoError(t, top.SetSolver(f.reportSolve))
	require.NoError(t, f.dir.ConfigureDefaults(top, nil))
	all := reachable(top)
	require.Len(t, all, 3)

	require.NoError(t, f.reportM.Remove(top.ID()))
	for _, p := range all {
		assert.Empty(t, f.registeredIn(p))
	}
	assert.Empty(t, f.reportM.Instances())
	assert.Empty(t, f.anomalyM.Instances())
	assert.Empty(t, f.satM.Instances())

	// A removed tree is no longer followed.
	f.reset()
	require.NoError(t, asString(t, all[1]).SetSolver(f.wide))
	assert.Empty(t, f.satM.Instances())
	assert.Empty(t, f.recorded())
}

func TestRegisterIsIdempotent(t *testing.T) {
	f := newFixture(t)
	p := NewProblem(f.sat)
	require.NoError(t, f.dir.Register(p))
	require.NoError(t, f.dir.Register(p))
	require.NoError(t, f.satM.AddInstance(p))

	registered := 0
	for _, e := range f.recorded() {
		if e.Kind == EventRegistered {
			registered++
		}
	}
	assert.Equal(t, 1, registered)
	assert.Len(t, f.satM.Instances(), 1)

	require.NoError(t, f.dir.Deregister(p))
	require.NoError(t, f.dir.Deregister(p))
	assert.Empty(t, f.satM.Instances())
}

func TestRemovingHeldSubProblemFails(t *testing.T) {
	f := newFixture(t)
	p, err := f.anomalyM.NewInstance()
	require.NoError(t, err)
	require.NoError(t, p.SetSolver(f.delegate))
	child := p.SubProblems()[0]

	err = f.satM.Remove(child.ID())
	require.ErrorIs(t, err, ErrSubProblemInUse)
	assert.Equal(t, []string{"sat"}, f.registeredIn(child))
	require.Len(t, p.SubProblems(), 1)
	assert.Equal(t, child.ID(), p.SubProblems()[0].ID())

	// The parent still owns the child's lifetime.
	require.NoError(t, p.SetSolver(f.echo))
	assert.Empty(t, f.registeredIn(child))
	assert.Empty(t, f.satM.Instances())

	require.NoError(t, p.SetSolver(f.delegate))
	next := p.SubProblems()[0]
	require.NoError(t, f.anomalyM.Remove(p.ID()))
	assert.Empty(t, f.registeredIn(next))
	assert.Empty(t, f.anomalyM.Instances())
}

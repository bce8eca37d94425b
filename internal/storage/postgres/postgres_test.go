package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/SolverEngine/internal/events"
)

func TestInsertArgs(t *testing.T) {
	e := events.Event{
		Timestamp: "2026-03-01T10:00:00.5Z",
		Level:     "info",
		Name:      "problem.solved",
		Fields:    map[string]interface{}{"problem_id": "p-1", "type_id": "sat", "status": "SOLVED"},
	}

	args, err := insertArgs(e, "toolbox-1")
	require.NoError(t, err)
	require.Len(t, args, 8)

	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 500_000_000, time.UTC), args[0])
	assert.Equal(t, "problem.solved", args[2])
	assert.Nil(t, args[3].(*string))
	assert.JSONEq(t, `{"problem_id":"p-1","type_id":"sat","status":"SOLVED"}`, string(args[4].([]byte)))
	assert.Equal(t, "p-1", *args[5].(*string))
	assert.Equal(t, "sat", *args[6].(*string))
	assert.Equal(t, "toolbox-1", args[7])
}

func TestInsertArgsWithoutProblem(t *testing.T) {
	e := events.Event{Timestamp: "2026-03-01T10:00:00Z", Level: "info", Name: "system.startup", Message: "started"}

	args, err := insertArgs(e, "toolbox-1")
	require.NoError(t, err)
	assert.Equal(t, "started", *args[3].(*string))
	assert.Nil(t, args[4].([]byte))
	assert.Nil(t, args[5].(*string))
}

func TestInsertArgsRejectsBadTimestamp(t *testing.T) {
	_, err := insertArgs(events.Event{Timestamp: "yesterday"}, "x")
	require.Error(t, err)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 200, clampLimit(0))
	assert.Equal(t, 50, clampLimit(50))
	assert.Equal(t, 10000, clampLimit(1_000_000))
}

// TestRoundTrip needs a database; set TOOLBOX_TEST_PG_DSN to run it.
func TestRoundTrip(t *testing.T) {
	dsn := os.Getenv("TOOLBOX_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TOOLBOX_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	client, err := New(ctx, dsn, "test-"+time.Now().Format("150405.000"))
	require.NoError(t, err)
	defer client.Close()

	problemID := "round-trip-" + time.Now().Format(time.RFC3339Nano)
	require.NoError(t, client.Append(events.Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     "info",
		Name:      "problem.created",
		Fields:    map[string]interface{}{"problem_id": problemID, "type_id": "sat"},
	}))

	rows, err := client.QueryProblem(ctx, problemID, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "problem.created", rows[0].Event)
	assert.Equal(t, "sat", *rows[0].TypeID)
}

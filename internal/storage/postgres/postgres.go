package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/AaronLay10/SolverEngine/internal/events"
)

// EventRow represents an event stored in Postgres.
type EventRow struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	ProblemID *string                `json:"problem_id,omitempty"`
	TypeID    *string                `json:"type_id,omitempty"`
	Instance  string                 `json:"instance"`
}

// Client stores audit events in the problem_events table. It implements
// events.Sink.
type Client struct {
	db       *sql.DB
	instance string
}

// New connects with the given lib/pq DSN and creates the table if needed.
// instance tags every row so several toolboxes can share a database.
func New(ctx context.Context, dsn, instance string) (*Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{
		db:       db,
		instance: instance,
	}

	if err := client.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create problem_events table: %w", err)
	}

	return client, nil
}

func (c *Client) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS problem_events (
			event_id   BIGSERIAL PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL,
			level      TEXT NOT NULL,
			event      TEXT NOT NULL,
			msg        TEXT,
			fields     JSONB,
			problem_id TEXT,
			type_id    TEXT,
			instance   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_problem_events_ts ON problem_events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_problem_events_problem_id ON problem_events(problem_id);
	`
	_, err := c.db.ExecContext(ctx, query)
	return err
}

// insertArgs maps an event onto the INSERT parameters.
func insertArgs(e events.Event, instance string) ([]interface{}, error) {
	ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid event timestamp %q: %w", e.Timestamp, err)
	}

	var fieldsJSON []byte
	if e.Fields != nil {
		fieldsJSON, err = json.Marshal(e.Fields)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	return []interface{}{
		ts, e.Level, e.Name,
		nullable(e.Message),
		fieldsJSON,
		nullable(stringField(e.Fields, "problem_id")),
		nullable(stringField(e.Fields, "type_id")),
		instance,
	}, nil
}

func stringField(fields map[string]interface{}, key string) string {
	s, _ := fields[key].(string)
	return s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Append inserts an event into the database.
func (c *Client) Append(e events.Event) error {
	args, err := insertArgs(e, c.instance)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO problem_events (ts, level, event, msg, fields, problem_id, type_id, instance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = c.db.ExecContext(ctx, query, args...)
	return err
}

// Query returns the last N events in descending order by timestamp.
func (c *Client) Query(ctx context.Context, limit int) ([]EventRow, error) {
	query := `
		SELECT event_id, ts, level, event, msg, fields, problem_id, type_id, instance
		FROM problem_events
		ORDER BY ts DESC
		LIMIT $1
	`
	return c.query(ctx, query, clampLimit(limit))
}

// QueryProblem returns the last N events of one problem, newest first.
func (c *Client) QueryProblem(ctx context.Context, problemID string, limit int) ([]EventRow, error) {
	query := `
		SELECT event_id, ts, level, event, msg, fields, problem_id, type_id, instance
		FROM problem_events
		WHERE problem_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`
	return c.query(ctx, query, problemID, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 10000 {
		return 10000
	}
	return limit
}

func (c *Client) query(ctx context.Context, query string, args ...interface{}) ([]EventRow, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON []byte
		var msg, problemID, typeID sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &problemID, &typeID, &e.Instance); err != nil {
			return nil, err
		}

		if msg.Valid {
			e.Message = &msg.String
		}
		if problemID.Valid {
			e.ProblemID = &problemID.String
		}
		if typeID.Valid {
			e.TypeID = &typeID.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}

		out = append(out, e)
	}

	return out, rows.Err()
}

// Ping checks the connection, for readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

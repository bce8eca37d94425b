package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AaronLay10/SolverEngine/internal/app"
	"github.com/AaronLay10/SolverEngine/internal/events"
)

func newWebhook(t *testing.T) (string, <-chan AlertPayload) {
	t.Helper()
	received := make(chan AlertPayload, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p AlertPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("invalid alert body: %v", err)
		}
		received <- p
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv.URL, received
}

func drain(ch <-chan AlertPayload) []AlertPayload {
	var out []AlertPayload
	for {
		select {
		case p := <-ch:
			out = append(out, p)
		default:
			return out
		}
	}
}

func TestAlerterReportsFailedSolves(t *testing.T) {
	url, received := newWebhook(t)
	a := NewAlerter(AlertConfig{WebhookURL: url}, "toolbox-1", slog.New(slog.NewTextHandler(io.Discard, nil)))

	a.Append(events.Event{Name: "problem.solved", Fields: map[string]interface{}{"problem_id": "p-0"}})
	a.Append(events.Event{Name: "problem.failed", Fields: map[string]interface{}{"problem_id": "p-1", "status": "INVALID"}})
	a.Wait()

	got := drain(received)
	if len(got) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(got))
	}
	if got[0].Event != AlertSolveFailed || got[0].Severity != SeverityWarning || got[0].Instance != "toolbox-1" {
		t.Errorf("unexpected alert %+v", got[0])
	}
	if got[0].Details["problem_id"] != "p-1" {
		t.Errorf("expected problem_id p-1, got %v", got[0].Details)
	}
}

func TestAlerterWaitsForOutageDelay(t *testing.T) {
	url, received := newWebhook(t)
	a := NewAlerter(AlertConfig{
		WebhookURL:              url,
		MQTTDisconnectDelay:     30 * time.Second,
		PostgresDisconnectDelay: 5 * time.Second,
	}, "toolbox-1", slog.New(slog.NewTextHandler(io.Discard, nil)))

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := start
	a.now = func() time.Time { return now }
	down := app.Health{MQTTEnabled: true}

	a.Check(down)
	now = start.Add(10 * time.Second)
	a.Check(down)
	a.Wait()
	if got := drain(received); len(got) != 0 {
		t.Fatalf("expected no alert before the delay, got %+v", got)
	}

	now = start.Add(31 * time.Second)
	a.Check(down)
	now = start.Add(40 * time.Second)
	a.Check(down)
	a.Wait()
	got := drain(received)
	if len(got) != 1 || got[0].Event != AlertMQTTDisconnected || got[0].Severity != SeverityWarning {
		t.Fatalf("expected one disconnect alert, got %+v", got)
	}
	if got[0].Details["disconnected_seconds"] != float64(31) {
		t.Errorf("expected 31 seconds, got %v", got[0].Details["disconnected_seconds"])
	}

	now = start.Add(50 * time.Second)
	a.Check(app.Health{MQTTEnabled: true, MQTTConnected: true})
	a.Wait()
	got = drain(received)
	if len(got) != 1 || got[0].Severity != SeverityInfo {
		t.Fatalf("expected one recovery alert, got %+v", got)
	}
}

func TestAlerterIgnoresDisabledBackends(t *testing.T) {
	url, received := newWebhook(t)
	a := NewAlerter(AlertConfig{WebhookURL: url}, "toolbox-1", slog.New(slog.NewTextHandler(io.Discard, nil)))

	a.Check(app.Health{})
	a.Check(app.Health{})
	a.Wait()
	if got := drain(received); len(got) != 0 {
		t.Errorf("expected no alerts, got %+v", got)
	}
}

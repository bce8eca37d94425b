package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AaronLay10/SolverEngine/internal/app"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := app.Build(context.Background(), nil, logger)
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewServer(ctx, a, logger)
}

func withReadiness(s *Server, state readinessState) {
	s.probe = func(context.Context) readinessState { return state }
}

func getReady(t *testing.T, s *Server) (int, ReadinessResponse) {
	t.Helper()
	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()
	s.handleReady(w, req)

	var resp ReadinessResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return w.Code, resp
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", resp.Status)
	}
}

func TestReadyEndpoint_AllReady(t *testing.T) {
	s := newTestServer(t)
	withReadiness(s, readinessState{
		orchestratorReady: true,
		mqttConnected:     true,
		postgresConnected: true,
	})

	code, resp := getReady(t, s)
	if code != http.StatusOK {
		t.Errorf("expected status 200, got %d", code)
	}
	if !resp.Ready {
		t.Error("expected ready=true")
	}
	for _, name := range []string{"orchestrator", "mqtt", "postgres"} {
		if resp.Checks[name].Status != "ok" {
			t.Errorf("expected %s status 'ok', got '%s'", name, resp.Checks[name].Status)
		}
	}
}

func TestReadyEndpoint_OrchestratorNotReady(t *testing.T) {
	s := newTestServer(t)
	withReadiness(s, readinessState{
		mqttConnected:     true,
		postgresConnected: true,
	})

	code, resp := getReady(t, s)
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", code)
	}
	if resp.Ready {
		t.Error("expected ready=false")
	}
	if resp.Checks["orchestrator"].Status != "not_ready" {
		t.Errorf("expected orchestrator status 'not_ready', got '%s'", resp.Checks["orchestrator"].Status)
	}
	if resp.NotReadyMsg == "" {
		t.Error("expected non-empty message")
	}
}

func TestReadyEndpoint_OptionalMQTTUnavailable(t *testing.T) {
	s := newTestServer(t)
	withReadiness(s, readinessState{
		orchestratorReady: true,
		mqttOptional:      true,
		postgresConnected: true,
	})

	code, resp := getReady(t, s)
	if code != http.StatusOK {
		t.Errorf("expected status 200 (optional dependency), got %d", code)
	}
	if !resp.Ready {
		t.Error("expected ready=true with optional MQTT unavailable")
	}
	if resp.Checks["mqtt"].Status != "unavailable" {
		t.Errorf("expected mqtt status 'unavailable', got '%s'", resp.Checks["mqtt"].Status)
	}
	if !resp.Checks["mqtt"].Optional {
		t.Error("expected mqtt optional=true")
	}
}

func TestReadyEndpoint_RequiredPostgresNotConnected(t *testing.T) {
	s := newTestServer(t)
	withReadiness(s, readinessState{
		orchestratorReady: true,
		mqttConnected:     true,
	})

	code, resp := getReady(t, s)
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", code)
	}
	if resp.Checks["postgres"].Status != "not_ready" {
		t.Errorf("expected postgres status 'not_ready', got '%s'", resp.Checks["postgres"].Status)
	}
}

func TestReadyEndpoint_MultipleDependenciesNotReady(t *testing.T) {
	s := newTestServer(t)
	withReadiness(s, readinessState{postgresConnected: true})

	code, resp := getReady(t, s)
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", code)
	}
	if !strings.Contains(resp.NotReadyMsg, "orchestrator") || !strings.Contains(resp.NotReadyMsg, "mqtt") {
		t.Errorf("expected both reasons in message, got %q", resp.NotReadyMsg)
	}
}

func TestReadyEndpoint_DefaultConfig(t *testing.T) {
	s := newTestServer(t)

	// MQTT and Postgres are disabled by default, so only SetReady matters.
	code, _ := getReady(t, s)
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 before SetReady, got %d", code)
	}

	s.SetReady(true)
	code, resp := getReady(t, s)
	if code != http.StatusOK {
		t.Errorf("expected status 200 after SetReady, got %d", code)
	}
	if resp.Checks["postgres"].Status != "unavailable" || !resp.Checks["postgres"].Optional {
		t.Errorf("expected optional unavailable postgres, got %+v", resp.Checks["postgres"])
	}
}

func TestEventsEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/events", nil)
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	var got []map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 1 || got[0]["event"] != "system.startup" {
		t.Errorf("expected the startup event, got %v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	if _, _, err := s.app.Create("sat"); err != nil {
		t.Fatalf("create: %v", err)
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"toolbox_uptime_seconds",
		"toolbox_events_total",
		"toolbox_ws_clients",
		"toolbox_mqtt_connected",
		`toolbox_problems{instance=`,
		`state="NEEDS_CONFIGURATION",type="sat",`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/AaronLay10/SolverEngine/internal/app"
)

// Server exposes an App over HTTP.
type Server struct {
	app    *app.App
	logger *slog.Logger

	// solveCtx outlives requests; solves started over HTTP run under it.
	solveCtx context.Context
	started  time.Time
	ready    atomic.Bool
	probe    func(ctx context.Context) readinessState
	metrics  *metrics
	alerts   *Alerter
	upgrader websocket.Upgrader
}

// NewServer creates a server for a. Solves it starts are cancelled with ctx.
func NewServer(ctx context.Context, a *app.App, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		app:      a,
		logger:   logger,
		solveCtx: ctx,
		started:  time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// No auth; any origin may watch the event stream.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.probe = s.probeApp
	s.metrics = newMetrics(s)
	a.OnSolved(s.metrics.observeSolve)

	cfg := a.Config.Alerts
	s.alerts = NewAlerter(AlertConfig{
		WebhookURL:              cfg.WebhookURL,
		MQTTDisconnectDelay:     cfg.MQTTDelay,
		PostgresDisconnectDelay: cfg.PostgresDelay,
	}, a.Instance, logger)
	if cfg.WebhookURL != "" {
		a.Bus.AddSink(s.alerts)
	}
	return s
}

// SetReady marks the server ready to take problems.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/metrics", s.metrics.handler().ServeHTTP)
	r.Get("/events", s.handleEvents)
	r.Get("/events/history", s.handleEventHistory)
	r.Get("/ws/events", s.handleWSEvents)
	s.registerProblemRoutes(r)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int, tlsFiles TLSFiles) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if tlsFiles.Enabled() {
		cfg, err := LoadTLSConfig(tlsFiles)
		if err != nil {
			return err
		}
		srv.TLSConfig = cfg
	}

	go s.alerts.Monitor(ctx, alertCheckInterval, s.app.Health)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", slog.String("addr", srv.Addr), slog.Bool("tls", srv.TLSConfig != nil))
		var err error
		if srv.TLSConfig != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.app.Bus.CloseAllSubscribers()
	err := srv.Shutdown(shutdownCtx)
	s.alerts.Wait()
	return err
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   "toolbox",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

type readinessState struct {
	orchestratorReady bool
	mqttConnected     bool
	mqttOptional      bool
	postgresConnected bool
	postgresOptional  bool
}

func (s *Server) probeApp(ctx context.Context) readinessState {
	h := s.app.Health(ctx)
	return readinessState{
		orchestratorReady: s.ready.Load(),
		mqttConnected:     h.MQTTConnected,
		mqttOptional:      !h.MQTTEnabled,
		postgresConnected: h.PostgresConnected,
		postgresOptional:  !h.PostgresEnabled,
	}
}

// CheckStatus is the outcome of one readiness check.
type CheckStatus struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
}

type ReadinessResponse struct {
	Ready       bool                   `json:"ready"`
	Checks      map[string]CheckStatus `json:"checks"`
	NotReadyMsg string                 `json:"message,omitempty"`
}

func dependencyCheck(connected, optional bool) (CheckStatus, bool) {
	switch {
	case connected:
		return CheckStatus{Status: "ok", Optional: optional}, true
	case optional:
		return CheckStatus{Status: "unavailable", Optional: true}, true
	default:
		return CheckStatus{Status: "not_ready"}, false
	}
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	state := s.probe(ctx)

	resp := ReadinessResponse{Ready: true, Checks: make(map[string]CheckStatus)}
	var reasons []string

	if state.orchestratorReady {
		resp.Checks["orchestrator"] = CheckStatus{Status: "ok"}
	} else {
		resp.Checks["orchestrator"] = CheckStatus{Status: "not_ready"}
		reasons = append(reasons, "orchestrator not ready")
	}
	check, ok := dependencyCheck(state.mqttConnected, state.mqttOptional)
	resp.Checks["mqtt"] = check
	if !ok {
		reasons = append(reasons, "mqtt not connected")
	}
	check, ok = dependencyCheck(state.postgresConnected, state.postgresOptional)
	resp.Checks["postgres"] = check
	if !ok {
		reasons = append(reasons, "postgres not connected")
	}

	status := http.StatusOK
	if len(reasons) > 0 {
		resp.Ready = false
		resp.NotReadyMsg = strings.Join(reasons, "; ")
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Bus.Snapshot())
}

// handleEventHistory reads the stored audit trail, newest first.
func (s *Server) handleEventHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.historyLimit(w, r)
	if !ok {
		return
	}
	rows, err := s.app.Store.Query(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

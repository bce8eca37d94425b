// Package app wires configuration, the problem directory, the event bus and
// its sinks into one running toolbox. The HTTP server, the CLI and the MQTT
// request subscriber all work on an App.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/AaronLay10/SolverEngine/internal/config"
	"github.com/AaronLay10/SolverEngine/internal/events"
	"github.com/AaronLay10/SolverEngine/internal/mqtt"
	"github.com/AaronLay10/SolverEngine/internal/orchestrator"
	"github.com/AaronLay10/SolverEngine/internal/solvers"
	"github.com/AaronLay10/SolverEngine/internal/storage/postgres"
)

// SolveObserver is told about every problem that finished solving.
type SolveObserver func(typeID, solverID string, status orchestrator.SolutionStatus, elapsed time.Duration)

// App is a configured toolbox.
type App struct {
	Config    *config.Config
	Directory *orchestrator.Directory
	Bus       *events.Bus
	// Instance names this process in stored events and alerts.
	Instance string

	// MQTT and Store are nil when disabled or unreachable at startup.
	MQTT  *mqtt.Client
	Store *postgres.Client

	logger   *slog.Logger
	requests *mqtt.RequestSubscriber

	mu        sync.RWMutex
	observers []SolveObserver
	closed    bool
}

// Build creates the directory from the solver catalog and connects the
// enabled sinks. Unreachable brokers and databases are logged, not fatal.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Config:   cfg,
		Bus:      events.NewBus(cfg.Events.BufferSize, logger),
		Instance: instanceName(),
		logger:   logger,
	}

	var set *orchestrator.ExampleSet
	if cfg.ExamplesFile != "" {
		s, err := orchestrator.LoadExampleSet(cfg.ExamplesFile)
		if err != nil {
			return nil, fmt.Errorf("load examples: %w", err)
		}
		set = s
	}
	managers, err := solvers.Catalog(cfg, set)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	a.Directory, err = orchestrator.NewDirectory(managers,
		orchestrator.WithLogger(logger),
		orchestrator.WithHook(a.audit))
	if err != nil {
		return nil, fmt.Errorf("build directory: %w", err)
	}

	if cfg.Postgres.Enabled {
		store, err := postgres.New(ctx, cfg.PostgresDSN(), a.Instance)
		if err != nil {
			logger.Warn("postgres unavailable, audit trail disabled",
				slog.String("host", cfg.Postgres.Host), slog.String("error", err.Error()))
		} else {
			a.Store = store
			a.Bus.AddSink(store)
		}
	}

	if cfg.MQTT.Enabled {
		a.MQTT = mqtt.NewClient(cfg.MQTT.BrokerURL, cfg.MQTT.ClientID, logger)
		a.MQTT.Start()
		a.Bus.AddSink(mqtt.NewPublisher(a.MQTT, cfg.MQTT.TopicPrefix))
		a.requests = mqtt.NewRequestSubscriber(a.MQTT, cfg.MQTT.TopicPrefix, a.HandleRequest, logger)
	}

	a.emit("info", "system.startup", "toolbox starting", map[string]interface{}{
		"types":    len(managers),
		"mqtt":     a.MQTT != nil,
		"postgres": a.Store != nil,
		"pid":      os.Getpid(),
	})
	return a, nil
}

func instanceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "toolbox"
	}
	return host
}

// OnSolved registers fn for every finished solve.
func (a *App) OnSolved(fn SolveObserver) {
	a.mu.Lock()
	a.observers = append(a.observers, fn)
	a.mu.Unlock()
}

// ServeRequests starts answering solve requests over MQTT. It does nothing
// when MQTT is disabled.
func (a *App) ServeRequests(ctx context.Context) error {
	if a.requests == nil {
		return nil
	}
	return a.requests.Start(ctx)
}

// Health reports the state of the optional backends.
type Health struct {
	MQTTEnabled       bool
	MQTTConnected     bool
	PostgresEnabled   bool
	PostgresConnected bool
}

// Health probes the backends. Postgres is pinged.
func (a *App) Health(ctx context.Context) Health {
	h := Health{
		MQTTEnabled:     a.Config.MQTT.Enabled,
		PostgresEnabled: a.Config.Postgres.Enabled,
	}
	if a.MQTT != nil {
		h.MQTTConnected = a.MQTT.IsConnected()
	}
	if a.Store != nil {
		h.PostgresConnected = a.Store.Ping(ctx) == nil
	}
	return h
}

// Close waits for in-flight MQTT requests and releases all connections.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	if a.requests != nil {
		a.requests.Wait()
	}
	a.emit("info", "system.shutdown", "toolbox stopping", nil)
	a.Bus.CloseAllSubscribers()
	if a.MQTT != nil {
		a.MQTT.Disconnect()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

func (a *App) emit(level, name, msg string, fields map[string]interface{}) {
	if _, err := a.Bus.Emit(level, name, msg, fields); err != nil {
		a.logger.Error("event emit failed", slog.String("event", name), slog.String("error", err.Error()))
	}
}

// HandleRequest answers one MQTT solve request.
func (a *App) HandleRequest(ctx context.Context, req mqtt.Request) mqtt.Response {
	resp := mqtt.Response{RequestID: req.RequestID}
	p, solution, err := a.Solve(ctx, SolveRequest{
		TypeID:   req.TypeID,
		SolverID: req.SolverID,
		Input:    req.Input,
	})
	if p != nil {
		resp.ProblemID = p.ID().String()
	}
	if err != nil {
		resp.Error = err.Error()
	}
	resp.Solution = solution
	if p != nil {
		a.release(p)
	}
	return resp
}

// release removes the problem tree of an answered request.
func (a *App) release(p orchestrator.AnyProblem) {
	m, ok := a.Directory.LookupID(p.Type().ID())
	if !ok {
		return
	}
	if err := m.Remove(p.ID()); err != nil {
		a.logger.Warn("request problem not released",
			slog.String("problem_id", p.ID().String()),
			slog.String("error", err.Error()))
	}
}

// SolveRequest describes a one-shot solve.
type SolveRequest struct {
	TypeID string
	// SolverID defaults to the preferred solver of the type, then to the
	// first one registered.
	SolverID string
	Input    json.RawMessage
}

// Create registers a new problem of the given type.
func (a *App) Create(typeID string) (orchestrator.AnyManager, orchestrator.AnyProblem, error) {
	m, ok := a.Directory.LookupID(typeID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", orchestrator.ErrUnregisteredType, typeID)
	}
	p, err := m.Create()
	if err != nil {
		return m, nil, err
	}
	a.emit("info", "problem.created", "", map[string]interface{}{
		"problem_id": p.ID().String(),
		"type_id":    typeID,
	})
	return m, p, nil
}

// Solve creates a problem, gives it and every sub-problem a solver and waits
// for the solution. The problem stays registered; HandleRequest removes it
// once answered. The returned solution is a *orchestrator.Solution of the
// type's output.
func (a *App) Solve(ctx context.Context, req SolveRequest) (orchestrator.AnyProblem, any, error) {
	m, p, err := a.Create(req.TypeID)
	if err != nil {
		return nil, nil, err
	}

	solverID := req.SolverID
	if solverID == "" {
		solverID = a.Config.Solvers.Preferred[req.TypeID]
	}
	if solverID == "" {
		infos := m.SolverInfos()
		if len(infos) == 0 {
			return p, nil, fmt.Errorf("%w: no solver for %s", orchestrator.ErrSolverNotFound, req.TypeID)
		}
		solverID = infos[0].ID
	}
	if err := m.Configure(p.ID(), orchestrator.Configuration{Input: req.Input, SolverID: &solverID}); err != nil {
		return p, nil, err
	}
	if err := a.Directory.ConfigureDefaults(p, a.Config.Solvers.Preferred); err != nil {
		return p, nil, err
	}

	pending, err := m.Start(ctx, p.ID())
	if err != nil {
		return p, nil, err
	}
	solution, err := pending.WaitAny(ctx)
	return p, solution, err
}

// audit turns directory notifications into bus events.
func (a *App) audit(e orchestrator.Event) {
	fields := map[string]interface{}{
		"problem_id": e.Problem.ID().String(),
		"type_id":    e.Problem.Type().ID(),
	}
	switch e.Kind {
	case orchestrator.EventSolverChanged:
		fields["solver_id"] = e.Problem.SolverID()
	case orchestrator.EventStateChanged:
		fields["state"] = string(e.State)
	case orchestrator.EventSubProblemAdded, orchestrator.EventSubProblemRemoved:
		fields["sub_problem_id"] = e.SubProblem.ID().String()
		fields["sub_type_id"] = e.SubProblem.Type().ID()
	}
	a.emit("info", "problem."+string(e.Kind), "", fields)

	if e.Kind == orchestrator.EventStateChanged && e.State == orchestrator.StateSolved {
		a.finished(e.Problem)
	}
}

func (a *App) finished(p orchestrator.AnyProblem) {
	status, elapsed, ok := p.SolutionStatus()
	if !ok {
		return
	}
	fields := map[string]interface{}{
		"problem_id":   p.ID().String(),
		"type_id":      p.Type().ID(),
		"solver_id":    p.SolverID(),
		"status":       string(status),
		"execution_ms": elapsed.Milliseconds(),
	}
	if status == orchestrator.StatusSolved {
		a.emit("info", "problem.solved", "", fields)
	} else {
		a.emit("warn", "problem.failed", "", fields)
	}

	a.mu.RLock()
	observers := a.observers
	a.mu.RUnlock()
	for _, fn := range observers {
		fn(p.Type().ID(), p.SolverID(), status, elapsed)
	}
}

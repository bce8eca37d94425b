package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/AaronLay10/SolverEngine/internal/app"
	"github.com/AaronLay10/SolverEngine/internal/events"
)

// Alert severity levels
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Alert event types
const (
	AlertMQTTDisconnected    = "mqtt_disconnected"
	AlertPostgresUnavailable = "postgres_unavailable"
	AlertSolveFailed         = "solve_failed"
)

const alertCheckInterval = 5 * time.Second

// AlertPayload is the JSON structure sent to the webhook.
type AlertPayload struct {
	Instance  string                 `json:"instance"`
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// AlertConfig holds alert configuration.
type AlertConfig struct {
	WebhookURL string
	// How long a backend must be unreachable before alerting.
	MQTTDisconnectDelay     time.Duration
	PostgresDisconnectDelay time.Duration
}

type outage struct {
	since   time.Time
	alerted bool
}

// Alerter posts alerts to a webhook. Without a webhook alerts are logged.
// It is an events.Sink for failed solves.
type Alerter struct {
	cfg      AlertConfig
	instance string
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time
	inflight sync.WaitGroup

	mu       sync.Mutex
	mqtt     outage
	postgres outage
}

// NewAlerter creates an alerter tagging every alert with instance.
func NewAlerter(cfg AlertConfig, instance string, logger *slog.Logger) *Alerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Alerter{
		cfg:      cfg,
		instance: instance,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		now:      time.Now,
	}
}

// Send delivers an alert in the background.
func (a *Alerter) Send(event, severity, message string, details map[string]interface{}) {
	if a.cfg.WebhookURL == "" {
		a.logger.Warn("alert",
			slog.String("alert", event),
			slog.String("severity", severity),
			slog.String("msg", message),
			slog.Any("details", details))
		return
	}

	payload := AlertPayload{
		Instance:  a.instance,
		Event:     event,
		Timestamp: a.now().UTC().Format(time.RFC3339),
		Severity:  severity,
		Message:   message,
		Details:   details,
	}
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		a.post(payload)
	}()
}

// Wait blocks until every sent alert was delivered or dropped.
func (a *Alerter) Wait() {
	a.inflight.Wait()
}

func (a *Alerter) post(payload AlertPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		a.logger.Error("alert encoding failed", slog.String("error", err.Error()))
		return
	}
	resp, err := a.client.Post(a.cfg.WebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		a.logger.Warn("alert webhook failed", slog.String("error", err.Error()))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		a.logger.Warn("alert webhook rejected", slog.Int("status", resp.StatusCode))
	}
}

// Append raises an alert for every failed solve.
func (a *Alerter) Append(e events.Event) error {
	if e.Name != "problem.failed" {
		return nil
	}
	a.Send(AlertSolveFailed, SeverityWarning, "problem did not solve", e.Fields)
	return nil
}

// Check compares the backend state with the last one seen. An outage is
// reported once it lasted the configured delay, and again on recovery.
func (a *Alerter) Check(h app.Health) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if h.MQTTEnabled {
		a.track(&a.mqtt, h.MQTTConnected, now, a.cfg.MQTTDisconnectDelay,
			AlertMQTTDisconnected, SeverityWarning, "MQTT broker disconnected", "MQTT connection restored")
	}
	if h.PostgresEnabled {
		a.track(&a.postgres, h.PostgresConnected, now, a.cfg.PostgresDisconnectDelay,
			AlertPostgresUnavailable, SeverityCritical, "PostgreSQL unavailable", "PostgreSQL connection restored")
	}
}

func (a *Alerter) track(o *outage, connected bool, now time.Time, delay time.Duration, event, severity, down, up string) {
	if connected {
		if o.alerted {
			a.Send(event, SeverityInfo, up, map[string]interface{}{
				"recovered_at": now.UTC().Format(time.RFC3339),
			})
		}
		*o = outage{}
		return
	}

	if o.since.IsZero() {
		o.since = now
	}
	if elapsed := now.Sub(o.since); !o.alerted && elapsed >= delay {
		o.alerted = true
		a.Send(event, severity, down, map[string]interface{}{
			"disconnected_since":   o.since.UTC().Format(time.RFC3339),
			"disconnected_seconds": int(elapsed.Seconds()),
		})
	}
}

// Monitor calls Check with probe every interval until ctx is done.
func (a *Alerter) Monitor(ctx context.Context, interval time.Duration, probe func(context.Context) app.Health) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Check(probe(ctx))
		}
	}
}

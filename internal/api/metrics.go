package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AaronLay10/SolverEngine/internal/app"
	"github.com/AaronLay10/SolverEngine/internal/orchestrator"
	"github.com/AaronLay10/SolverEngine/internal/version"
)

const namespace = "toolbox"

type metrics struct {
	registry      *prometheus.Registry
	solveDuration *prometheus.HistogramVec
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// newMetrics registers the toolbox metrics on a fresh registry. Gauges are
// read from the server when scraped.
func newMetrics(s *Server) *metrics {
	constLabels := prometheus.Labels{"instance": s.app.Instance, "version": version.Version}

	m := &metrics{
		registry: prometheus.NewRegistry(),
		solveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Name:        "solve_duration_seconds",
				Help:        "Duration of finished solves",
				ConstLabels: constLabels,
				Buckets:     prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"type", "solver", "status"},
		),
	}

	health := func() app.Health {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return s.app.Health(ctx)
	}

	m.registry.MustRegister(
		m.solveDuration,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "uptime_seconds",
			Help:        "Number of seconds since the toolbox started",
			ConstLabels: constLabels,
		}, func() float64 { return time.Since(s.started).Seconds() }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "events_total",
			Help:        "Total number of events emitted since startup",
			ConstLabels: constLabels,
		}, func() float64 { return float64(s.app.Bus.TotalCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "ws_clients",
			Help:        "Number of active event stream subscribers",
			ConstLabels: constLabels,
		}, func() float64 { return float64(s.app.Bus.SubscriberCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "mqtt_connected",
			Help:        "Whether the MQTT broker is connected (1) or not (0)",
			ConstLabels: constLabels,
		}, func() float64 { return boolGauge(health().MQTTConnected) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "postgres_connected",
			Help:        "Whether PostgreSQL is connected (1) or not (0)",
			ConstLabels: constLabels,
		}, func() float64 { return boolGauge(health().PostgresConnected) }),
		&problemCollector{
			dir: s.app.Directory,
			desc: prometheus.NewDesc(
				prometheus.BuildFQName(namespace, "", "problems"),
				"Registered problem instances by type and state",
				[]string{"type", "state"},
				constLabels,
			),
		},
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) observeSolve(typeID, solverID string, status orchestrator.SolutionStatus, elapsed time.Duration) {
	m.solveDuration.WithLabelValues(typeID, solverID, string(status)).Observe(elapsed.Seconds())
}

// problemCollector counts the problems of a directory at scrape time.
type problemCollector struct {
	dir  *orchestrator.Directory
	desc *prometheus.Desc
}

var problemStates = []orchestrator.ProblemState{
	orchestrator.StateNeedsConfiguration,
	orchestrator.StateReadyToSolve,
	orchestrator.StateSolving,
	orchestrator.StateSolved,
}

func (c *problemCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *problemCollector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c.dir.Managers() {
		counts := make(map[orchestrator.ProblemState]int)
		for _, p := range m.Problems() {
			counts[p.State()]++
		}
		for _, state := range problemStates {
			ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue,
				float64(counts[state]), m.Type().ID(), string(state))
		}
	}
}

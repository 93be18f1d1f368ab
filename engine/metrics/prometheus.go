// Package metrics provides Prometheus metrics export for the orchestration
// engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exports engine metrics in Prometheus format.
type Exporter struct {
	registry *prometheus.Registry

	// Incident lifecycle metrics
	incidentsTotal   *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	activeIncidents  prometheus.Gauge
	phaseLatency     *prometheus.HistogramVec
	resolutionTime   prometheus.Histogram

	// Consensus metrics
	consensusRounds    prometheus.Histogram
	consensusOutcomes  *prometheus.CounterVec
	consensusAgreement prometheus.Histogram

	// Dependency metrics
	agentFailures   *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
	appendConflicts prometheus.Counter
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// NewExporter creates a new Prometheus metrics exporter.
func NewExporter(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.incidentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "incident_commander",
			Subsystem: "engine",
			Name:      "incidents_total",
			Help:      "Total number of incidents admitted, by severity",
		},
		[]string{"severity"},
	)

	e.transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "incident_commander",
			Subsystem: "engine",
			Name:      "transitions_total",
			Help:      "Total number of committed lifecycle transitions",
		},
		[]string{"status"},
	)

	e.activeIncidents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "incident_commander",
			Subsystem: "engine",
			Name:      "incidents_active",
			Help:      "Number of incidents currently being orchestrated",
		},
	)

	e.phaseLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "incident_commander",
			Subsystem: "engine",
			Name:      "phase_latency_seconds",
			Help:      "Orchestration phase latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"phase"},
	)

	e.resolutionTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "incident_commander",
			Subsystem: "engine",
			Name:      "resolution_seconds",
			Help:      "End-to-end time from detection to a terminal state",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	e.consensusRounds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "incident_commander",
			Subsystem: "engine",
			Name:      "consensus_rounds",
			Help:      "Rounds needed to reach (or fail) consensus",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
	)

	e.consensusOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "incident_commander",
			Subsystem: "engine",
			Name:      "consensus_outcomes_total",
			Help:      "Consensus outcomes by result",
		},
		[]string{"outcome"},
	)

	e.consensusAgreement = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "incident_commander",
			Subsystem: "engine",
			Name:      "consensus_agreement_ratio",
			Help:      "Weighted agreement ratio of decided rounds",
			Buckets:   []float64{0.5, 0.6, 0.667, 0.75, 0.85, 0.95, 1},
		},
	)

	e.agentFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "incident_commander",
			Subsystem: "engine",
			Name:      "agent_failures_total",
			Help:      "Total number of agent invocation failures",
		},
		[]string{"agent", "kind"},
	)

	e.breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "incident_commander",
			Subsystem: "engine",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per dependency (0 closed, 1 half-open, 2 open)",
		},
		[]string{"dependency"},
	)

	e.appendConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "incident_commander",
			Subsystem: "engine",
			Name:      "event_append_conflicts_total",
			Help:      "Optimistic-concurrency conflicts on event append",
		},
	)

	registry.MustRegister(
		e.incidentsTotal,
		e.transitionsTotal,
		e.activeIncidents,
		e.phaseLatency,
		e.resolutionTime,
		e.consensusRounds,
		e.consensusOutcomes,
		e.consensusAgreement,
		e.agentFailures,
		e.breakerState,
		e.appendConflicts,
	)

	return e
}

// RecordIncident records an admitted incident.
func (e *Exporter) RecordIncident(severity string) {
	e.incidentsTotal.WithLabelValues(severity).Inc()
}

// RecordTransition records a committed lifecycle transition.
func (e *Exporter) RecordTransition(status string) {
	e.transitionsTotal.WithLabelValues(status).Inc()
}

// SetActiveIncidents sets the number of in-flight incidents.
func (e *Exporter) SetActiveIncidents(count int) {
	e.activeIncidents.Set(float64(count))
}

// RecordPhase records one phase execution.
func (e *Exporter) RecordPhase(phase string, latency time.Duration) {
	e.phaseLatency.WithLabelValues(phase).Observe(latency.Seconds())
}

// RecordResolution records the detection-to-terminal duration.
func (e *Exporter) RecordResolution(elapsed time.Duration) {
	e.resolutionTime.Observe(elapsed.Seconds())
}

// RecordConsensus records the outcome of a consensus gate.
func (e *Exporter) RecordConsensus(rounds int, agreement float64, decided bool) {
	e.consensusRounds.Observe(float64(rounds))
	if decided {
		e.consensusOutcomes.WithLabelValues("decided").Inc()
		e.consensusAgreement.Observe(agreement)
	} else {
		e.consensusOutcomes.WithLabelValues("escalated").Inc()
	}
}

// RecordAgentFailure records one agent invocation failure.
func (e *Exporter) RecordAgentFailure(agent, kind string) {
	e.agentFailures.WithLabelValues(agent, kind).Inc()
}

// SetBreakerState sets the gauge for one dependency's breaker.
func (e *Exporter) SetBreakerState(dependency string, state string) {
	var v float64
	switch state {
	case "half_open":
		v = 1
	case "open":
		v = 2
	}
	e.breakerState.WithLabelValues(dependency).Set(v)
}

// RecordAppendConflict records one optimistic-concurrency retry.
func (e *Exporter) RecordAppendConflict() {
	e.appendConflicts.Inc()
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

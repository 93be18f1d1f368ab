package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestExporter(t *testing.T) {
	exporter := NewExporter(DefaultConfig())

	t.Run("RecordIncident", func(t *testing.T) {
		exporter.RecordIncident("critical")
		exporter.RecordIncident("critical")
		exporter.RecordIncident("low")

		exporter.SetActiveIncidents(3)
	})

	t.Run("RecordTransition", func(t *testing.T) {
		exporter.RecordTransition("diagnosing")
		exporter.RecordTransition("resolved")
	})

	t.Run("RecordPhase", func(t *testing.T) {
		exporter.RecordPhase("fan_out", 250*time.Millisecond)
		exporter.RecordPhase("resolution", 2*time.Second)
		exporter.RecordResolution(90 * time.Second)
	})

	t.Run("RecordConsensus", func(t *testing.T) {
		exporter.RecordConsensus(1, 1.0, true)
		exporter.RecordConsensus(3, 0.5, false)
	})

	t.Run("RecordAgentFailure", func(t *testing.T) {
		exporter.RecordAgentFailure("prediction", "timeout")
		exporter.RecordAgentFailure("diagnosis", "agents_unavailable")
	})

	t.Run("SetBreakerState", func(t *testing.T) {
		exporter.SetBreakerState("agent:prediction", "open")
		exporter.SetBreakerState("agent:prediction", "half_open")
		exporter.SetBreakerState("agent:prediction", "closed")
		exporter.RecordAppendConflict()
	})
}

func TestExporterHandler(t *testing.T) {
	exporter := NewExporter(DefaultConfig())

	exporter.RecordIncident("high")
	exporter.RecordTransition("detected")
	exporter.RecordConsensus(2, 0.8, true)
	exporter.RecordAgentFailure("resolution", "timeout")

	req := httptest.NewRequest("GET", "/metrics", http.NoBody)
	w := httptest.NewRecorder()

	exporter.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, "incident_commander_engine_incidents_total") {
		t.Error("expected incidents_total metric in output")
	}
	if !strings.Contains(body, "incident_commander_engine_transitions_total") {
		t.Error("expected transitions_total metric in output")
	}
	if !strings.Contains(body, "incident_commander_engine_consensus_rounds") {
		t.Error("expected consensus_rounds metric in output")
	}
	if !strings.Contains(body, "incident_commander_engine_agent_failures_total") {
		t.Error("expected agent_failures_total metric in output")
	}
}

func TestExporterCustomRegistry(t *testing.T) {
	cfg := DefaultConfig()
	e1 := NewExporter(cfg)
	e2 := NewExporter(cfg)

	// Separate default registries, so identical metric names do not collide.
	if e1.Registry() == e2.Registry() {
		t.Error("expected distinct registries for distinct exporters")
	}
}

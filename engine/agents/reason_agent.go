package agents

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/rish2jain/Incident-Commander-sub000/engine/reasoning"
)

// reasonAgent is the shared adapter implementation: one capability, one
// system prompt, one reasoning backend. All five specialized agents are
// instances of it with different framing.
type reasonAgent struct {
	name       string
	capability Capability
	system     string
	backend    reasoning.Service
}

func (a *reasonAgent) Name() string {
	return a.name
}

func (a *reasonAgent) Capability() Capability {
	return a.capability
}

func (a *reasonAgent) Propose(ctx context.Context, snapshot *IncidentSnapshot) (*Recommendation, error) {
	startTime := time.Now()

	answer, err := a.backend.Reason(ctx, reasoning.Request{
		System: a.system,
		Prompt: buildPrompt(snapshot),
	})
	if err != nil {
		return nil, err
	}

	rec := &Recommendation{
		AgentID:    a.name,
		Capability: a.capability,
		Action:     strings.TrimSpace(answer.Action),
		Confidence: clampRound(answer.Confidence),
		Rationale:  answer.Rationale,
		CreatedAt:  time.Now(),
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("agent: recommendation produced",
		"agent", a.name,
		"capability", a.capability,
		"action", rec.Action,
		"confidence", rec.Confidence,
		"duration_ms", time.Since(startTime).Milliseconds())

	return rec, nil
}

// clampRound normalizes near-boundary float noise without masking genuinely
// out-of-range values, which must fail validation.
func clampRound(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func buildPrompt(snapshot *IncidentSnapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Incident %s\n", snapshot.UID)
	fmt.Fprintf(&sb, "Title: %s\n", snapshot.Title)
	fmt.Fprintf(&sb, "Severity: %s\n", snapshot.Severity)
	fmt.Fprintf(&sb, "Source: %s\n", snapshot.Source)
	if snapshot.Description != "" {
		fmt.Fprintf(&sb, "Details: %s\n", snapshot.Description)
	}
	if snapshot.Round > 1 {
		fmt.Fprintf(&sb, "Consensus round %d; leading action so far: %s\n", snapshot.Round, snapshot.LeadingAction)
	}
	sb.WriteString(`Respond with a single JSON object: {"action": "<remediation_action>", "confidence": <0..1>, "rationale": "<one sentence>"}`)
	return sb.String()
}

// NewDetectionAgent classifies and confirms the incoming signal.
func NewDetectionAgent(backend reasoning.Service) Agent {
	return &reasonAgent{
		name:       "detection",
		capability: CapabilityDetection,
		backend:    backend,
		system: "You are the detection agent of an incident response team. " +
			"Confirm whether the signal is a real incident, classify it, and rate your confidence.",
	}
}

// NewDiagnosisAgent identifies the most likely root cause.
func NewDiagnosisAgent(backend reasoning.Service) Agent {
	return &reasonAgent{
		name:       "diagnosis",
		capability: CapabilityDiagnosis,
		backend:    backend,
		system: "You are the diagnosis agent of an incident response team. " +
			"Identify the most likely root cause and propose the remediation action that addresses it.",
	}
}

// NewPredictionAgent forecasts blast radius if no action is taken.
func NewPredictionAgent(backend reasoning.Service) Agent {
	return &reasonAgent{
		name:       "prediction",
		capability: CapabilityPrediction,
		backend:    backend,
		system: "You are the prediction agent of an incident response team. " +
			"Forecast how the incident will evolve without intervention and recommend the action that best limits the blast radius.",
	}
}

// NewResolutionAgent weighs candidate remediations for safety and speed.
func NewResolutionAgent(backend reasoning.Service) Agent {
	return &reasonAgent{
		name:       "resolution",
		capability: CapabilityResolution,
		backend:    backend,
		system: "You are the resolution agent of an incident response team. " +
			"Choose the remediation action with the best recovery-time-to-risk tradeoff.",
	}
}

// NewCommunicationAgent judges stakeholder impact of candidate actions.
func NewCommunicationAgent(backend reasoning.Service) Agent {
	return &reasonAgent{
		name:       "communication",
		capability: CapabilityCommunication,
		backend:    backend,
		system: "You are the communication agent of an incident response team. " +
			"Assess stakeholder impact and vote for the remediation action you can best communicate and stand behind.",
	}
}

// DefaultSet wires the full capability set onto one reasoning backend.
func DefaultSet(backend reasoning.Service) map[Capability]Agent {
	return map[Capability]Agent{
		CapabilityDetection:     NewDetectionAgent(backend),
		CapabilityDiagnosis:     NewDiagnosisAgent(backend),
		CapabilityPrediction:    NewPredictionAgent(backend),
		CapabilityResolution:    NewResolutionAgent(backend),
		CapabilityCommunication: NewCommunicationAgent(backend),
	}
}

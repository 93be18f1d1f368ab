// Package agents defines the uniform adapter contract implemented by the
// specialized reasoning agents. Each agent covers one capability and
// produces a Recommendation from an incident snapshot; the orchestrator
// wraps every invocation with a circuit breaker and a deadline.
package agents

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Capability is the closed set of agent specializations.
type Capability string

const (
	CapabilityDetection     Capability = "detection"
	CapabilityDiagnosis     Capability = "diagnosis"
	CapabilityPrediction    Capability = "prediction"
	CapabilityResolution    Capability = "resolution"
	CapabilityCommunication Capability = "communication"
)

// Capabilities lists every capability in pipeline order.
func Capabilities() []Capability {
	return []Capability{
		CapabilityDetection,
		CapabilityDiagnosis,
		CapabilityPrediction,
		CapabilityResolution,
		CapabilityCommunication,
	}
}

// ErrMalformed marks an agent response that failed validation (for example a
// confidence outside [0,1]). It counts as a single breaker failure, the same
// as a timeout or transport error.
var ErrMalformed = errors.New("malformed agent response")

// IncidentSnapshot is the read-only view of an incident handed to agents.
type IncidentSnapshot struct {
	UID         string
	Title       string
	Description string
	Source      string
	Severity    string
	Status      string
	// Round is the consensus round this proposal feeds, starting at 1.
	Round int
	// LeadingAction carries the currently leading candidate action in
	// re-vote rounds; empty in the first round.
	LeadingAction string
}

// Recommendation is one agent's proposed remediation. Immutable once
// produced; consumed by exactly one consensus round.
type Recommendation struct {
	AgentID    string
	Capability Capability
	Action     string
	Confidence float64
	Rationale  string
	Abstain    bool
	CreatedAt  time.Time
}

// Abstain builds the zero-confidence placeholder recorded when an agent is
// unavailable. It carries no weight at the consensus gate.
func Abstain(agentID string, capability Capability) *Recommendation {
	return &Recommendation{
		AgentID:    agentID,
		Capability: capability,
		Abstain:    true,
		CreatedAt:  time.Now(),
	}
}

// Validate rejects out-of-range or incomplete recommendations.
func (r *Recommendation) Validate() error {
	if r.Abstain {
		return nil
	}
	if r.Action == "" {
		return errors.Wrap(ErrMalformed, "empty action")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return errors.Wrapf(ErrMalformed, "confidence %v outside [0,1]", r.Confidence)
	}
	return nil
}

// Agent is the uniform adapter contract. Propose must respect the ctx
// deadline; overrunning it, returning an error, or returning a malformed
// recommendation all count as one failure for the agent's dependency key.
type Agent interface {
	Name() string
	Capability() Capability
	Propose(ctx context.Context, snapshot *IncidentSnapshot) (*Recommendation, error)
}

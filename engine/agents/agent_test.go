package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rish2jain/Incident-Commander-sub000/engine/reasoning"
)

func TestRecommendationValidate(t *testing.T) {
	tests := []struct {
		name    string
		rec     *Recommendation
		wantErr bool
	}{
		{"valid", &Recommendation{AgentID: "diagnosis", Action: "scale_pool", Confidence: 0.9}, false},
		{"boundary zero", &Recommendation{AgentID: "diagnosis", Action: "scale_pool", Confidence: 0}, false},
		{"boundary one", &Recommendation{AgentID: "diagnosis", Action: "scale_pool", Confidence: 1}, false},
		{"empty action", &Recommendation{AgentID: "diagnosis", Confidence: 0.9}, true},
		{"confidence above one", &Recommendation{AgentID: "diagnosis", Action: "scale_pool", Confidence: 1.2}, true},
		{"negative confidence", &Recommendation{AgentID: "diagnosis", Action: "scale_pool", Confidence: -0.1}, true},
		{"abstain skips checks", &Recommendation{AgentID: "diagnosis", Abstain: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformed)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAbstainConstructor(t *testing.T) {
	rec := Abstain("prediction", CapabilityPrediction)
	require.True(t, rec.Abstain)
	require.Equal(t, "prediction", rec.AgentID)
	require.Equal(t, CapabilityPrediction, rec.Capability)
	require.Zero(t, rec.Confidence)
	require.NoError(t, rec.Validate())
}

func TestDefaultSetCoversEveryCapability(t *testing.T) {
	set := DefaultSet(reasoning.NewHeuristic())
	require.Len(t, set, len(Capabilities()))
	for _, capability := range Capabilities() {
		agent, ok := set[capability]
		require.True(t, ok, "missing agent for %s", capability)
		require.Equal(t, capability, agent.Capability())
		require.Equal(t, string(capability), agent.Name())
	}
}

func TestReasonAgentPropose(t *testing.T) {
	agent := NewDiagnosisAgent(reasoning.NewHeuristic())

	snapshot := &IncidentSnapshot{
		UID:         "uid-1",
		Title:       "db pool exhausted",
		Description: "connection pool at 100%",
		Source:      "prometheus",
		Severity:    "critical",
		Status:      "diagnosing",
		Round:       1,
	}
	rec, err := agent.Propose(context.Background(), snapshot)
	require.NoError(t, err)
	require.NoError(t, rec.Validate())
	require.Equal(t, "diagnosis", rec.AgentID)
	require.Equal(t, CapabilityDiagnosis, rec.Capability)
	require.Equal(t, "scale_pool", rec.Action)
	require.GreaterOrEqual(t, rec.Confidence, 0.9)

	// Deterministic backend, deterministic recommendation.
	again, err := agent.Propose(context.Background(), snapshot)
	require.NoError(t, err)
	require.Equal(t, rec.Action, again.Action)
	require.Equal(t, rec.Confidence, again.Confidence)
}

func TestReasonAgentPromptCarriesRevoteContext(t *testing.T) {
	snapshot := &IncidentSnapshot{
		UID:           "uid-1",
		Title:         "latency spike",
		Severity:      "high",
		Round:         2,
		LeadingAction: "shift_traffic",
	}
	prompt := buildPrompt(snapshot)
	require.Contains(t, prompt, "Consensus round 2")
	require.Contains(t, prompt, "shift_traffic")

	// First round prompts carry no re-vote framing.
	snapshot.Round = 1
	snapshot.LeadingAction = ""
	prompt = buildPrompt(snapshot)
	require.NotContains(t, prompt, "Consensus round")
}

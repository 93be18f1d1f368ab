package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustPayload(t *testing.T, payload any) string {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(raw)
}

// chainOf builds a well-formed event chain from typed payloads.
func chainOf(t *testing.T, entries []struct {
	eventType IncidentEventType
	payload   any
}) []*IncidentEvent {
	t.Helper()
	events := make([]*IncidentEvent, 0, len(entries))
	prevHash := ""
	for i, entry := range entries {
		event := &IncidentEvent{
			IncidentID: 1,
			Seq:        int64(i + 1),
			Type:       entry.eventType,
			Payload:    mustPayload(t, entry.payload),
			PrevHash:   prevHash,
		}
		event.Hash = ChainHash(event.IncidentID, event.Seq, event.Type, event.Payload, event.PrevHash)
		prevHash = event.Hash
		events = append(events, event)
	}
	return events
}

func fullLifecycle(t *testing.T) []*IncidentEvent {
	t.Helper()
	return chainOf(t, []struct {
		eventType IncidentEventType
		payload   any
	}{
		{EventDetected, &DetectedPayload{Title: "db pool exhausted", Source: "prometheus", Severity: SeverityCritical}},
		{EventAgentRecommended, &AgentRecommendedPayload{Agent: "detection", Capability: "detection", Action: "scale_pool", Confidence: 0.95, Round: 1}},
		{EventAgentRecommended, &AgentRecommendedPayload{Agent: "diagnosis", Capability: "diagnosis", Action: "scale_pool", Confidence: 0.9, Round: 1}},
		{EventAgentRecommended, &AgentRecommendedPayload{Agent: "prediction", Capability: "prediction", Action: "scale_pool", Confidence: 0.85, Round: 1}},
		{EventAgentRecommended, &AgentRecommendedPayload{Agent: "resolution", Capability: "resolution", Action: "scale_pool", Confidence: 0.92, Round: 1}},
		{EventAgentRecommended, &AgentRecommendedPayload{Agent: "communication", Capability: "communication", Action: "scale_pool", Confidence: 0.95, Round: 1}},
		{EventConsensusReached, &ConsensusReachedPayload{Action: "scale_pool", Confidence: 0.91, AgreementRatio: 1, Round: 1}},
		{EventActionExecuted, &ActionExecutedPayload{Stage: StageResolution, Action: "scale_pool", DurationMs: 42}},
		{EventActionExecuted, &ActionExecutedPayload{Stage: StageCommunication, Action: "scale_pool", DurationMs: 12}},
	})
}

func TestChainHashDeterministic(t *testing.T) {
	h1 := ChainHash(1, 1, EventDetected, `{"title":"t"}`, "")
	h2 := ChainHash(1, 1, EventDetected, `{"title":"t"}`, "")
	require.Equal(t, h1, h2)
	require.Len(t, h1, 64)

	// Any input change must change the hash.
	require.NotEqual(t, h1, ChainHash(2, 1, EventDetected, `{"title":"t"}`, ""))
	require.NotEqual(t, h1, ChainHash(1, 2, EventDetected, `{"title":"t"}`, ""))
	require.NotEqual(t, h1, ChainHash(1, 1, EventFailed, `{"title":"t"}`, ""))
	require.NotEqual(t, h1, ChainHash(1, 1, EventDetected, `{"title":"x"}`, ""))
	require.NotEqual(t, h1, ChainHash(1, 1, EventDetected, `{"title":"t"}`, "abc"))
}

func TestVerifyChain(t *testing.T) {
	events := fullLifecycle(t)
	require.NoError(t, VerifyChain(events))

	t.Run("sequence gap", func(t *testing.T) {
		gapped := fullLifecycle(t)
		gapped[3].Seq = 5
		require.Error(t, VerifyChain(gapped))
	})

	t.Run("tampered payload", func(t *testing.T) {
		tampered := fullLifecycle(t)
		tampered[1].Payload = mustPayload(t, &AgentRecommendedPayload{Agent: "detection", Capability: "detection", Action: "rollback_release", Confidence: 0.95, Round: 1})
		require.Error(t, VerifyChain(tampered))
	})

	t.Run("broken link", func(t *testing.T) {
		broken := fullLifecycle(t)
		broken[4].PrevHash = "0000"
		require.Error(t, VerifyChain(broken))
	})

	t.Run("empty chain", func(t *testing.T) {
		require.NoError(t, VerifyChain(nil))
	})
}

func TestFoldStatus(t *testing.T) {
	events := fullLifecycle(t)

	// Folding the full log yields resolved; every prefix yields the expected
	// intermediate state.
	wantByPrefix := []IncidentStatus{
		StatusDetected,         // detected
		StatusDetected,         // detection agent completes within detected
		StatusDiagnosing,       // diagnosis
		StatusDiagnosing,       // prediction
		StatusConsensusPending, // resolution vote
		StatusConsensusPending, // communication vote
		StatusResolving,        // consensus reached
		StatusCommunicating,    // resolution action executed
		StatusResolved,         // communication executed
	}
	for i, want := range wantByPrefix {
		status, err := FoldStatus(events[:i+1])
		require.NoError(t, err, "prefix of %d events", i+1)
		require.Equal(t, want, status, "prefix of %d events", i+1)
	}
}

func TestFoldStatusDeterministic(t *testing.T) {
	events := fullLifecycle(t)
	first, err := FoldStatus(events)
	require.NoError(t, err)
	for range 10 {
		status, err := FoldStatus(events)
		require.NoError(t, err)
		require.Equal(t, first, status)
	}
}

func TestFoldStatusTerminalVariants(t *testing.T) {
	tests := []struct {
		name      string
		eventType IncidentEventType
		payload   any
		want      IncidentStatus
	}{
		{"escalated", EventEscalated, &EscalatedPayload{Reason: "insufficient quorum after 3 rounds", Kind: ErrorKindQuorum, Rounds: 3}, StatusEscalated},
		{"failed", EventFailed, &FailedPayload{Reason: "action timed out", Kind: ErrorKindTimeout}, StatusFailed},
		{"cancelled", EventCancelled, &CancelledPayload{Reason: "operator request"}, StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := chainOf(t, []struct {
				eventType IncidentEventType
				payload   any
			}{
				{EventDetected, &DetectedPayload{Title: "t", Source: "s", Severity: SeverityHigh}},
				{tt.eventType, tt.payload},
			})
			status, err := FoldStatus(events)
			require.NoError(t, err)
			require.Equal(t, tt.want, status)
			require.True(t, status.IsTerminal())
		})
	}
}

func TestFoldStatusRejectsInvalidLogs(t *testing.T) {
	t.Run("empty log", func(t *testing.T) {
		_, err := FoldStatus(nil)
		require.Error(t, err)
	})

	t.Run("event after terminal state", func(t *testing.T) {
		events := chainOf(t, []struct {
			eventType IncidentEventType
			payload   any
		}{
			{EventDetected, &DetectedPayload{Title: "t", Source: "s", Severity: SeverityLow}},
			{EventCancelled, &CancelledPayload{Reason: "dup"}},
			{EventAgentRecommended, &AgentRecommendedPayload{Agent: "diagnosis", Capability: "diagnosis", Round: 1}},
		})
		_, err := FoldStatus(events)
		require.Error(t, err)
	})

	t.Run("detected on non-empty log", func(t *testing.T) {
		events := chainOf(t, []struct {
			eventType IncidentEventType
			payload   any
		}{
			{EventDetected, &DetectedPayload{Title: "t", Source: "s", Severity: SeverityLow}},
			{EventDetected, &DetectedPayload{Title: "t", Source: "s", Severity: SeverityLow}},
		})
		_, err := FoldStatus(events)
		require.Error(t, err)
	})
}

func TestFingerprintDeterministic(t *testing.T) {
	f1 := Fingerprint("prometheus", "db pool exhausted")
	f2 := Fingerprint("prometheus", "db pool exhausted")
	require.Equal(t, f1, f2)
	require.NotEqual(t, f1, Fingerprint("grafana", "db pool exhausted"))
	require.NotEqual(t, f1, Fingerprint("prometheus", "disk full"))
}

func TestEventSeals(t *testing.T) {
	tests := []struct {
		name      string
		eventType IncidentEventType
		payload   any
		want      bool
	}{
		{"detected", EventDetected, &DetectedPayload{Title: "t"}, false},
		{"recommendation", EventAgentRecommended, &AgentRecommendedPayload{Agent: "diagnosis", Capability: "diagnosis"}, false},
		{"consensus", EventConsensusReached, &ConsensusReachedPayload{Action: "scale_pool"}, false},
		{"resolution execution", EventActionExecuted, &ActionExecutedPayload{Stage: StageResolution, Action: "scale_pool"}, false},
		{"communication execution", EventActionExecuted, &ActionExecutedPayload{Stage: StageCommunication, Action: "scale_pool"}, true},
		{"escalated", EventEscalated, &EscalatedPayload{Reason: "no quorum", Kind: ErrorKindQuorum}, true},
		{"failed", EventFailed, &FailedPayload{Reason: "boom", Kind: ErrorKindExecution}, true},
		{"cancelled", EventCancelled, &CancelledPayload{Reason: "operator"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &IncidentEvent{Type: tt.eventType, Payload: mustPayload(t, tt.payload)}
			require.Equal(t, tt.want, event.Seals())
		})
	}
}

func TestEventSealsMalformedExecutionPayload(t *testing.T) {
	event := &IncidentEvent{Type: EventActionExecuted, Payload: "{not json"}
	require.False(t, event.Seals())
}

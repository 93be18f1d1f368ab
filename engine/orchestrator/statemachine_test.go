package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rish2jain/Incident-Commander-sub000/store"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from store.IncidentStatus
		to   store.IncidentStatus
		want bool
	}{
		// Happy path edges.
		{store.StatusDetected, store.StatusDiagnosing, true},
		{store.StatusDiagnosing, store.StatusConsensusPending, true},
		{store.StatusConsensusPending, store.StatusResolving, true},
		{store.StatusResolving, store.StatusCommunicating, true},
		{store.StatusCommunicating, store.StatusResolved, true},

		// No skipping forward.
		{store.StatusDetected, store.StatusConsensusPending, false},
		{store.StatusDetected, store.StatusResolved, false},
		{store.StatusDiagnosing, store.StatusResolving, false},

		// No going backward.
		{store.StatusResolving, store.StatusDiagnosing, false},
		{store.StatusCommunicating, store.StatusDetected, false},

		// Side edges reachable from any non-terminal state.
		{store.StatusDetected, store.StatusEscalated, true},
		{store.StatusDiagnosing, store.StatusFailed, true},
		{store.StatusConsensusPending, store.StatusCancelled, true},
		{store.StatusCommunicating, store.StatusEscalated, true},

		// Terminal states have no outgoing edges.
		{store.StatusResolved, store.StatusDetected, false},
		{store.StatusResolved, store.StatusEscalated, false},
		{store.StatusEscalated, store.StatusResolving, false},
		{store.StatusFailed, store.StatusCancelled, false},
		{store.StatusCancelled, store.StatusCancelled, false},
	}
	for _, tt := range tests {
		got := CanTransition(tt.from, tt.to)
		require.Equal(t, tt.want, got, "%s -> %s", tt.from, tt.to)
	}
}

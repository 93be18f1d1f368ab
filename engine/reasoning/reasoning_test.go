package reasoning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeuristicDeterministic(t *testing.T) {
	h := NewHeuristic()
	req := Request{System: "diagnosis agent", Prompt: "Severity: critical\nconnection pool exhausted"}

	first, err := h.Reason(context.Background(), req)
	require.NoError(t, err)
	second, err := h.Reason(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestHeuristicActionRules(t *testing.T) {
	tests := []struct {
		prompt string
		want   string
	}{
		{"connection pool exhausted", "scale_pool"},
		{"cpu saturation on workers", "scale_pool"},
		{"oom killed repeatedly", "restart_service"},
		{"bad deploy pushed to prod", "rollback_release"},
		{"p99 latency through the roof", "shift_traffic"},
		{"disk usage at 95%", "expand_volume"},
		{"something unclassified", "restart_service"},
	}
	h := NewHeuristic()
	for _, tt := range tests {
		answer, err := h.Reason(context.Background(), Request{Prompt: tt.prompt})
		require.NoError(t, err)
		require.Equal(t, tt.want, answer.Action, "prompt %q", tt.prompt)
	}
}

func TestHeuristicConfidenceBySeverity(t *testing.T) {
	h := NewHeuristic()

	critical, err := h.Reason(context.Background(), Request{Prompt: "Severity: critical\npool exhausted"})
	require.NoError(t, err)
	low, err := h.Reason(context.Background(), Request{Prompt: "Severity: low\npool exhausted"})
	require.NoError(t, err)

	require.Greater(t, critical.Confidence, low.Confidence)
	require.LessOrEqual(t, critical.Confidence, 1.0)
	require.GreaterOrEqual(t, low.Confidence, 0.0)
}

func TestParseAnswer(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		answer, err := parseAnswer(`{"action": "scale_pool", "confidence": 0.9, "rationale": "pool at limit"}`)
		require.NoError(t, err)
		require.Equal(t, "scale_pool", answer.Action)
		require.Equal(t, 0.9, answer.Confidence)
	})

	t.Run("fenced json", func(t *testing.T) {
		answer, err := parseAnswer("```json\n{\"action\": \"rollback_release\", \"confidence\": 0.8}\n```")
		require.NoError(t, err)
		require.Equal(t, "rollback_release", answer.Action)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := parseAnswer("the incident looks bad")
		require.Error(t, err)
	})
}

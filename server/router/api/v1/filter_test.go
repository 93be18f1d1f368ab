package v1

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rish2jain/Incident-Commander-sub000/store"
)

func TestApplyListFilter(t *testing.T) {
	t.Run("empty filter", func(t *testing.T) {
		find := &store.FindIncident{}
		require.NoError(t, applyListFilter("", find))
		require.Nil(t, find.Status)
		require.Nil(t, find.Severity)
	})

	t.Run("status equality", func(t *testing.T) {
		find := &store.FindIncident{}
		require.NoError(t, applyListFilter(`status == "resolved"`, find))
		require.NotNil(t, find.Status)
		require.Equal(t, store.StatusResolved, *find.Status)
	})

	t.Run("reversed operands", func(t *testing.T) {
		find := &store.FindIncident{}
		require.NoError(t, applyListFilter(`"critical" == severity`, find))
		require.NotNil(t, find.Severity)
		require.Equal(t, store.SeverityCritical, *find.Severity)
	})

	t.Run("conjunction", func(t *testing.T) {
		find := &store.FindIncident{}
		require.NoError(t, applyListFilter(`status == "escalated" && severity == "high"`, find))
		require.Equal(t, store.StatusEscalated, *find.Status)
		require.Equal(t, store.SeverityHigh, *find.Severity)
	})

	t.Run("unknown status value", func(t *testing.T) {
		find := &store.FindIncident{}
		require.Error(t, applyListFilter(`status == "exploded"`, find))
	})

	t.Run("unknown field", func(t *testing.T) {
		find := &store.FindIncident{}
		require.Error(t, applyListFilter(`title == "x"`, find))
	})

	t.Run("unsupported operator", func(t *testing.T) {
		find := &store.FindIncident{}
		require.Error(t, applyListFilter(`status != "resolved"`, find))
	})

	t.Run("not an expression", func(t *testing.T) {
		find := &store.FindIncident{}
		require.Error(t, applyListFilter(`status ===`, find))
	})
}

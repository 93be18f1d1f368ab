package profile

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	p := &Profile{}
	p.FromEnv()

	require.Equal(t, "openai", p.ReasonProvider)
	require.Empty(t, p.ReasonAPIKey)
	require.False(t, p.IsReasoningEnabled())

	require.Equal(t, 5, p.Engine.BreakerFailureThreshold)
	require.Equal(t, 0.5, p.Engine.BreakerFailureRate)
	require.Equal(t, 30*time.Second, p.Engine.BreakerCooldown)
	require.InDelta(t, 2.0/3.0, p.Engine.AgreementThreshold, 1e-9)
	require.Equal(t, 0.3, p.Engine.OutlierThreshold)
	require.Equal(t, 3, p.Engine.MaxRounds)
	require.Equal(t, int64(32), p.Engine.MaxConcurrentIncidents)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("INCIDENT_REASON_API_KEY", "sk-test")
	t.Setenv("INCIDENT_CONSENSUS_MAX_ROUNDS", "5")
	t.Setenv("INCIDENT_BREAKER_FAILURES", "3")
	t.Setenv("INCIDENT_BREAKER_COOLDOWN_SECONDS", "10")

	p := &Profile{}
	p.FromEnv()

	require.True(t, p.IsReasoningEnabled())
	require.Equal(t, 5, p.Engine.MaxRounds)
	require.Equal(t, 3, p.Engine.BreakerFailureThreshold)
	require.Equal(t, 10*time.Second, p.Engine.BreakerCooldown)
}

func TestValidate(t *testing.T) {
	t.Run("sqlite gets default dsn", func(t *testing.T) {
		dir := t.TempDir()
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: dir}
		p.FromEnv()
		require.NoError(t, p.Validate())
		require.Equal(t, filepath.Join(dir, "incidentd_dev.db"), p.DSN)
	})

	t.Run("unknown mode falls back to demo", func(t *testing.T) {
		dir := t.TempDir()
		p := &Profile{Mode: "staging", Driver: "sqlite", Data: dir}
		p.FromEnv()
		require.NoError(t, p.Validate())
		require.Equal(t, "demo", p.Mode)
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		dir := t.TempDir()
		p := &Profile{Mode: "dev", Driver: "postgres", Data: dir}
		p.FromEnv()
		require.Error(t, p.Validate())
	})

	t.Run("unsupported driver", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "mysql"}
		p.FromEnv()
		require.Error(t, p.Validate())
	})

	t.Run("agreement threshold bounds", func(t *testing.T) {
		dir := t.TempDir()
		p := &Profile{Mode: "dev", Driver: "sqlite", Data: dir}
		p.FromEnv()
		p.Engine.AgreementThreshold = 1.5
		require.Error(t, p.Validate())
	})
}

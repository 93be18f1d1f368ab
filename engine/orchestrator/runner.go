package orchestrator

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

// ActionRunner executes the remediation action the consensus gate settled
// on. Implementations must respect the ctx deadline.
type ActionRunner interface {
	Name() string
	Execute(ctx context.Context, incidentUID, action string) error
}

// SimulatedRunner pretends to execute remediation actions, with a short
// deterministic latency derived from the action name. It backs demo mode and
// tests; production deployments plug in a real runner.
type SimulatedRunner struct{}

func NewSimulatedRunner() *SimulatedRunner {
	return &SimulatedRunner{}
}

func (r *SimulatedRunner) Name() string {
	return "simulated"
}

func (r *SimulatedRunner) Execute(ctx context.Context, incidentUID, action string) error {
	if action == "" {
		return errors.New("empty remediation action")
	}

	// Latency in [10ms, 100ms), stable per action so runs are reproducible.
	sum := sha256.Sum256([]byte(action))
	delay := time.Duration(10+int(sum[0])%90) * time.Millisecond

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
	}

	slog.Info("runner: action executed",
		"incident_uid", incidentUID,
		"action", action,
		"duration_ms", delay.Milliseconds())
	return nil
}

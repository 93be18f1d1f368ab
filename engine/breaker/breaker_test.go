package breaker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(clock *fakeClock) *Registry {
	return NewRegistry(Config{
		FailureThreshold: 5,
		FailureRate:      0.5,
		MinSamples:       10,
		Window:           60 * time.Second,
		Cooldown:         30 * time.Second,
	}).WithClock(clock.Now)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	clock := newFakeClock()
	registry := newTestRegistry(clock)
	b := registry.Get("agent:prediction")

	// One failure short of the threshold keeps the breaker closed.
	for i := 0; i < 4; i++ {
		require.NoError(t, b.Allow())
		b.ReportFailure()
	}
	require.NoError(t, b.Allow())

	// The fifth consecutive failure opens it.
	b.ReportFailure()
	err := b.Allow()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrOpen)
}

func TestBreakerSuccessResetsConsecutiveCount(t *testing.T) {
	clock := newFakeClock()
	registry := newTestRegistry(clock)
	b := registry.Get("agent:diagnosis")

	for i := 0; i < 4; i++ {
		b.ReportFailure()
	}
	b.ReportSuccess()
	for i := 0; i < 4; i++ {
		b.ReportFailure()
	}
	require.NoError(t, b.Allow())
}

func TestBreakerOpensOnFailureRate(t *testing.T) {
	clock := newFakeClock()
	registry := newTestRegistry(clock)
	b := registry.Get("agent:resolution")

	// Alternate success/failure so the consecutive counter never trips, then
	// push the windowed rate to 50% over MinSamples outcomes.
	for i := 0; i < 5; i++ {
		b.ReportSuccess()
		clock.Advance(time.Second)
		b.ReportFailure()
		clock.Advance(time.Second)
	}
	require.ErrorIs(t, b.Allow(), ErrOpen)
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	clock := newFakeClock()
	registry := newTestRegistry(clock)

	t.Run("probe success closes", func(t *testing.T) {
		b := registry.Get("agent:a")
		for i := 0; i < 5; i++ {
			b.ReportFailure()
		}
		require.ErrorIs(t, b.Allow(), ErrOpen)

		clock.Advance(31 * time.Second)
		require.NoError(t, b.Allow())
		b.ReportSuccess()
		require.Equal(t, StateClosed, b.status().State)
	})

	t.Run("probe failure reopens", func(t *testing.T) {
		b := registry.Get("agent:b")
		for i := 0; i < 5; i++ {
			b.ReportFailure()
		}
		clock.Advance(31 * time.Second)
		require.NoError(t, b.Allow())
		b.ReportFailure()
		require.ErrorIs(t, b.Allow(), ErrOpen)

		// Cooldown restarts after the failed probe.
		clock.Advance(29 * time.Second)
		require.ErrorIs(t, b.Allow(), ErrOpen)
		clock.Advance(2 * time.Second)
		require.NoError(t, b.Allow())
	})
}

func TestRegistryDo(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	registry := newTestRegistry(clock)

	boom := errors.New("boom")
	for i := 0; i < 5; i++ {
		err := registry.Do(ctx, "agent:x", func(context.Context) error { return boom })
		require.ErrorIs(t, err, boom)
	}

	// Open breaker short-circuits: fn must not run.
	invoked := false
	err := registry.Do(ctx, "agent:x", func(context.Context) error {
		invoked = true
		return nil
	})
	require.ErrorIs(t, err, ErrOpen)
	require.False(t, invoked)

	// Breakers are per key: a different dependency is unaffected.
	require.NoError(t, registry.Do(ctx, "agent:y", func(context.Context) error { return nil }))
}

func TestRegistrySnapshot(t *testing.T) {
	clock := newFakeClock()
	registry := newTestRegistry(clock)

	registry.Get("agent:one").ReportFailure()
	registry.Get("agent:two").ReportSuccess()

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 2)
	byKey := make(map[string]Status, len(snapshot))
	for _, status := range snapshot {
		byKey[status.Key] = status
	}
	require.Equal(t, 1, byKey["agent:one"].ConsecutiveFailures)
	require.Equal(t, StateClosed, byKey["agent:two"].State)
}

func TestRegistrySharedAcrossCallers(t *testing.T) {
	clock := newFakeClock()
	registry := newTestRegistry(clock)

	// Failures from concurrent incidents accumulate on the same key.
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.Get("agent:shared").ReportFailure()
		}()
	}
	wg.Wait()
	require.ErrorIs(t, registry.Get("agent:shared").Allow(), ErrOpen)
}

func TestHalfOpenAdmitsSingleProbe(t *testing.T) {
	clock := newFakeClock()
	registry := newTestRegistry(clock)
	b := registry.Get("agent:probe")

	for i := 0; i < 5; i++ {
		b.ReportFailure()
	}
	clock.Advance(31 * time.Second)

	// The first caller after the cooldown wins the probe slot; concurrent
	// callers stay rejected until that probe reports an outcome.
	require.NoError(t, b.Allow())
	require.ErrorIs(t, b.Allow(), ErrOpen)
	require.ErrorIs(t, b.Allow(), ErrOpen)

	b.ReportSuccess()
	require.Equal(t, StateClosed, b.status().State)
	require.NoError(t, b.Allow())
	require.NoError(t, b.Allow())
}

func TestHalfOpenProbeFailureFreesSlotAfterCooldown(t *testing.T) {
	clock := newFakeClock()
	registry := newTestRegistry(clock)
	b := registry.Get("agent:reprobe")

	for i := 0; i < 5; i++ {
		b.ReportFailure()
	}
	clock.Advance(31 * time.Second)
	require.NoError(t, b.Allow())
	b.ReportFailure()

	// The failed probe reopens the breaker; the next cooldown admits a fresh
	// single probe again.
	require.ErrorIs(t, b.Allow(), ErrOpen)
	clock.Advance(31 * time.Second)
	require.NoError(t, b.Allow())
	require.ErrorIs(t, b.Allow(), ErrOpen)
}

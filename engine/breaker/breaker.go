// Package breaker implements per-dependency circuit breakers shared across
// concurrently running incidents. Every agent invocation and external call
// goes through a breaker keyed by its dependency name; an open breaker fails
// fast so the pipeline can substitute an abstain vote instead of blocking.
package breaker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrOpen is returned when a call is rejected because the breaker is open.
var ErrOpen = errors.New("circuit breaker open")

// State is the breaker state for one dependency key.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config tunes breaker behavior. The zero value is not usable; use
// DefaultConfig or fill every field.
type Config struct {
	// FailureThreshold opens the breaker after this many consecutive failures.
	FailureThreshold int
	// FailureRate opens the breaker when the failure fraction within Window
	// reaches this value, once MinSamples outcomes have been observed.
	FailureRate float64
	MinSamples  int
	Window      time.Duration
	// Cooldown is the Open -> HalfOpen delay.
	Cooldown time.Duration
}

// DefaultConfig returns the default breaker configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		FailureRate:      0.5,
		MinSamples:       10,
		Window:           60 * time.Second,
		Cooldown:         30 * time.Second,
	}
}

type outcome struct {
	at time.Time
	ok bool
}

// Breaker tracks failures for a single dependency key. All methods are safe
// for concurrent use; counters mutate under the breaker's own lock since the
// same key is shared by every incident calling that dependency.
type Breaker struct {
	mu sync.Mutex

	key   string
	cfg   Config
	now   func() time.Time
	state State

	consecutiveFailures int
	lastFailure         time.Time
	cooldownUntil       time.Time
	window              []outcome

	// probing marks the single in-flight half-open probe.
	probing bool
}

// Status is a read-only snapshot of one breaker.
type Status struct {
	Key                 string    `json:"key"`
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailure         time.Time `json:"last_failure,omitzero"`
	CooldownUntil       time.Time `json:"cooldown_until,omitzero"`
}

// Allow reports whether a call may proceed. An open breaker whose cooldown
// has elapsed moves to half-open and admits a single probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		if b.probing {
			return errors.Wrapf(ErrOpen, "dependency %s probe in flight", b.key)
		}
		b.probing = true
		return nil
	case StateOpen:
		if b.now().Before(b.cooldownUntil) {
			return errors.Wrapf(ErrOpen, "dependency %s cooling down", b.key)
		}
		b.state = StateHalfOpen
		b.probing = true
		slog.Info("breaker: half-open probe window", "dependency", b.key)
		return nil
	}
	return nil
}

// ReportSuccess records a successful call.
func (b *Breaker) ReportSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.probing = false
	b.record(true)
	if b.state == StateHalfOpen {
		b.state = StateClosed
		slog.Info("breaker: recovered", "dependency", b.key)
	}
}

// ReportFailure records a failed call and opens the breaker when either the
// consecutive-failure threshold or the windowed failure rate is hit.
func (b *Breaker) ReportFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.consecutiveFailures++
	b.lastFailure = now
	b.probing = false
	b.record(false)

	if b.state == StateHalfOpen {
		b.trip(now, "half-open probe failed")
		return
	}
	if b.consecutiveFailures >= b.cfg.FailureThreshold {
		b.trip(now, "consecutive failures")
		return
	}
	if rate, samples := b.failureRate(now); samples >= b.cfg.MinSamples && rate >= b.cfg.FailureRate {
		b.trip(now, "failure rate")
	}
}

func (b *Breaker) trip(now time.Time, reason string) {
	if b.state != StateOpen {
		slog.Warn("breaker: opened",
			"dependency", b.key,
			"reason", reason,
			"consecutive_failures", b.consecutiveFailures)
	}
	b.state = StateOpen
	b.cooldownUntil = now.Add(b.cfg.Cooldown)
}

// record appends an outcome and prunes entries older than the window.
func (b *Breaker) record(ok bool) {
	now := b.now()
	cutoff := now.Add(-b.cfg.Window)
	pruned := b.window[:0]
	for _, o := range b.window {
		if o.at.After(cutoff) {
			pruned = append(pruned, o)
		}
	}
	b.window = append(pruned, outcome{at: now, ok: ok})
}

func (b *Breaker) failureRate(now time.Time) (float64, int) {
	cutoff := now.Add(-b.cfg.Window)
	total, failed := 0, 0
	for _, o := range b.window {
		if o.at.After(cutoff) {
			total++
			if !o.ok {
				failed++
			}
		}
	}
	if total == 0 {
		return 0, 0
	}
	return float64(failed) / float64(total), total
}

func (b *Breaker) status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		Key:                 b.key,
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		LastFailure:         b.lastFailure,
		CooldownUntil:       b.cooldownUntil,
	}
}

// Registry maps dependency keys to breakers. It is injected into the
// orchestrator rather than held as a process-wide singleton.
type Registry struct {
	mu       sync.RWMutex
	cfg      Config
	now      func() time.Time
	breakers map[string]*Breaker
}

// NewRegistry creates a registry with the given config.
func NewRegistry(cfg Config) *Registry {
	if cfg.FailureThreshold <= 0 {
		cfg = DefaultConfig()
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultConfig().MinSamples
	}
	return &Registry{
		cfg:      cfg,
		now:      time.Now,
		breakers: make(map[string]*Breaker),
	}
}

// WithClock overrides the time source, for tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Get returns the breaker for a dependency key, creating it on first use.
func (r *Registry) Get(key string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[key]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[key]; ok {
		return b
	}
	b = &Breaker{key: key, cfg: r.cfg, now: func() time.Time { return r.now() }, state: StateClosed}
	r.breakers[key] = b
	return b
}

// Do gates fn behind the breaker for key. When the breaker is open the call
// is rejected immediately with ErrOpen and fn is never invoked.
func (r *Registry) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	b := r.Get(key)
	if err := b.Allow(); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		b.ReportFailure()
		return err
	}
	b.ReportSuccess()
	return nil
}

// Snapshot returns the current status of every known breaker.
func (r *Registry) Snapshot() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Status, 0, len(r.breakers))
	for _, b := range r.breakers {
		list = append(list, b.status())
	}
	return list
}

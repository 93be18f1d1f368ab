// Package orchestrator drives incidents through the detection, diagnosis,
// consensus, resolution and communication phases. Every transition is
// committed as an event before the materialized incident row is refreshed,
// so the event log stays the single source of truth.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/rish2jain/Incident-Commander-sub000/engine/agents"
	"github.com/rish2jain/Incident-Commander-sub000/engine/breaker"
	"github.com/rish2jain/Incident-Commander-sub000/engine/consensus"
	"github.com/rish2jain/Incident-Commander-sub000/engine/metrics"
	"github.com/rish2jain/Incident-Commander-sub000/engine/publish"
	"github.com/rish2jain/Incident-Commander-sub000/plugin/notify"
	"github.com/rish2jain/Incident-Commander-sub000/store"
)

// Store is the persistence surface the orchestrator depends on.
// *store.Store satisfies it; tests plug in a fake.
type Store interface {
	CreateIncident(ctx context.Context, create *store.Incident) (*store.Incident, error)
	GetIncident(ctx context.Context, find *store.FindIncident) (*store.Incident, error)
	UpdateIncident(ctx context.Context, update *store.UpdateIncident) (*store.Incident, error)
	AppendEvent(ctx context.Context, incidentID int32, eventType store.IncidentEventType, payload any) (*store.IncidentEvent, error)
	ReplayStatus(ctx context.Context, incidentID int32) (store.IncidentStatus, []*store.IncidentEvent, error)
}

// Config tunes the orchestrator. Zero fields fall back to defaults.
type Config struct {
	// AgentWeights assigns the consensus weight per agent name. Agents
	// missing from the map carry zero weight and never influence a decision.
	AgentWeights map[string]float64

	DetectionTimeout     time.Duration
	FanOutTimeout        time.Duration
	ResolutionTimeout    time.Duration
	CommunicationTimeout time.Duration

	// MaxConcurrentIncidents bounds background runs across all incidents.
	MaxConcurrentIncidents int64
}

// DefaultConfig returns the default orchestrator configuration with equal
// weights for the full agent set.
func DefaultConfig() Config {
	weights := make(map[string]float64)
	for _, capability := range agents.Capabilities() {
		weights[string(capability)] = 1.0
	}
	return Config{
		AgentWeights:           weights,
		DetectionTimeout:       30 * time.Second,
		FanOutTimeout:          45 * time.Second,
		ResolutionTimeout:      60 * time.Second,
		CommunicationTimeout:   30 * time.Second,
		MaxConcurrentIncidents: 32,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if len(c.AgentWeights) == 0 {
		c.AgentWeights = def.AgentWeights
	}
	if c.DetectionTimeout <= 0 {
		c.DetectionTimeout = def.DetectionTimeout
	}
	if c.FanOutTimeout <= 0 {
		c.FanOutTimeout = def.FanOutTimeout
	}
	if c.ResolutionTimeout <= 0 {
		c.ResolutionTimeout = def.ResolutionTimeout
	}
	if c.CommunicationTimeout <= 0 {
		c.CommunicationTimeout = def.CommunicationTimeout
	}
	if c.MaxConcurrentIncidents <= 0 {
		c.MaxConcurrentIncidents = def.MaxConcurrentIncidents
	}
	return c
}

// Signal is one incoming detection signal from a monitoring source.
type Signal struct {
	Title       string
	Description string
	Source      string
	Severity    store.IncidentSeverity
}

// Options assembles an orchestrator. Store, Agents, Consensus and Breakers
// are required; the rest default to no-op or simulated implementations.
type Options struct {
	Config    Config
	Store     Store
	Agents    map[agents.Capability]agents.Agent
	Consensus *consensus.Engine
	Breakers  *breaker.Registry
	Runner    ActionRunner
	Notifier  notify.Notifier
	Publisher publish.Publisher
	Metrics   *metrics.Exporter
}

// Orchestrator owns the incident lifecycle. One logical writer per incident:
// the background run goroutine, plus Cancel which signals it first.
type Orchestrator struct {
	cfg       Config
	store     Store
	agents    map[agents.Capability]agents.Agent
	consensus *consensus.Engine
	breakers  *breaker.Registry
	runner    ActionRunner
	notifier  notify.Notifier
	publisher publish.Publisher
	metrics   *metrics.Exporter

	rootCtx    context.Context
	rootCancel context.CancelFunc
	sem        *semaphore.Weighted
	wg         sync.WaitGroup

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// New creates an orchestrator from opts.
func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if len(opts.Agents) == 0 {
		return nil, errors.New("at least one agent is required")
	}
	if opts.Consensus == nil {
		return nil, errors.New("consensus engine is required")
	}
	if opts.Breakers == nil {
		return nil, errors.New("breaker registry is required")
	}
	if opts.Runner == nil {
		opts.Runner = NewSimulatedRunner()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewSlog()
	}
	if opts.Publisher == nil {
		opts.Publisher = publish.Nop{}
	}
	cfg := opts.Config.withDefaults()

	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:        cfg,
		store:      opts.Store,
		agents:     opts.Agents,
		consensus:  opts.Consensus,
		breakers:   opts.Breakers,
		runner:     opts.Runner,
		notifier:   opts.Notifier,
		publisher:  opts.Publisher,
		metrics:    opts.Metrics,
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
		sem:        semaphore.NewWeighted(cfg.MaxConcurrentIncidents),
		running:    make(map[string]context.CancelFunc),
	}, nil
}

// HandleIncident admits a detection signal: the incident row and the genesis
// detected event are committed synchronously, then the lifecycle continues in
// the background. A signal whose fingerprint matches an active incident is
// recorded and immediately cancelled as a duplicate, merged into the survivor.
func (o *Orchestrator) HandleIncident(ctx context.Context, signal *Signal) (*store.Incident, error) {
	if signal.Title == "" {
		return nil, errors.New("signal title is required")
	}
	if signal.Severity == "" {
		signal.Severity = store.SeverityMedium
	}
	if !signal.Severity.IsValid() {
		return nil, errors.Errorf("invalid severity %q", signal.Severity)
	}

	fingerprint := store.Fingerprint(signal.Source, signal.Title)
	survivor, err := o.store.GetIncident(ctx, &store.FindIncident{Fingerprint: &fingerprint, ActiveOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to check for duplicate incident")
	}

	incident, err := o.store.CreateIncident(ctx, &store.Incident{
		Title:       signal.Title,
		Description: signal.Description,
		Source:      signal.Source,
		Severity:    signal.Severity,
		Fingerprint: fingerprint,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create incident")
	}

	if survivor != nil {
		slog.Info("orchestrator: duplicate signal merged",
			"incident_uid", incident.UID,
			"merged_into", survivor.UID)
		return o.commit(ctx, incident, store.EventCancelled, &store.CancelledPayload{
			Reason:     "duplicate of active incident",
			MergedInto: survivor.UID,
		})
	}

	incident, err = o.commit(ctx, incident, store.EventDetected, &store.DetectedPayload{
		Title:    signal.Title,
		Source:   signal.Source,
		Severity: signal.Severity,
	})
	if err != nil {
		return nil, err
	}

	if o.metrics != nil {
		o.metrics.RecordIncident(string(signal.Severity))
	}

	o.wg.Add(1)
	go o.run(incident)

	return incident, nil
}

// run is the single logical writer for one incident's lifecycle.
func (o *Orchestrator) run(incident *store.Incident) {
	defer o.wg.Done()

	trace := shortuuid.New()
	log := slog.With("incident_uid", incident.UID, "trace", trace)

	ctx, cancel := context.WithCancel(o.rootCtx)
	defer cancel()
	o.track(incident.UID, cancel)
	defer o.untrack(incident.UID)

	if err := o.sem.Acquire(ctx, 1); err != nil {
		log.Warn("orchestrator: admission aborted", "error", err)
		return
	}
	defer o.sem.Release(1)

	startTime := time.Now()
	log.Info("orchestrator: lifecycle started", "severity", incident.Severity)

	// Detection phase. The detection agent confirms and classifies; its
	// recommendation is recorded but the state remains detected.
	phaseStart := time.Now()
	detection := o.propose(ctx, incident, agents.CapabilityDetection, 1, "")
	if _, err := o.commitRecommendation(ctx, incident, detection, 1); err != nil {
		o.abort(ctx, incident, log, err)
		return
	}
	o.recordPhase("detection", phaseStart)

	// Fan-out phase: diagnosis and prediction run concurrently under a joint
	// deadline. Unavailable agents yield abstains, never a stalled phase.
	phaseStart = time.Now()
	fanOutCtx, fanOutCancel := context.WithTimeout(ctx, o.cfg.FanOutTimeout)
	fanned := o.proposeAll(fanOutCtx, incident, []agents.Capability{agents.CapabilityDiagnosis, agents.CapabilityPrediction}, 1, "")
	fanOutCancel()
	for _, rec := range fanned {
		if _, err := o.commitRecommendation(ctx, incident, rec, 1); err != nil {
			o.abort(ctx, incident, log, err)
			return
		}
	}
	o.recordPhase("fanout", phaseStart)

	// Consensus phase: collect resolution and communication votes, evaluate,
	// and re-poll the full voting set when agreement falls short.
	phaseStart = time.Now()
	decision, err := o.runConsensus(ctx, incident, fanned, log)
	if err != nil {
		o.abort(ctx, incident, log, err)
		return
	}
	o.recordPhase("consensus", phaseStart)
	if decision == nil {
		// Escalated inside runConsensus.
		return
	}

	// Resolution phase: execute the decided action through the runner's
	// breaker. A failed or unavailable runner fails the incident.
	phaseStart = time.Now()
	resolutionCtx, resolutionCancel := context.WithTimeout(ctx, o.cfg.ResolutionTimeout)
	err = o.breakers.Do(resolutionCtx, "runner:"+o.runner.Name(), func(c context.Context) error {
		return o.runner.Execute(c, incident.UID, decision.Action)
	})
	resolutionCancel()
	if err != nil {
		if ctx.Err() != nil {
			log.Info("orchestrator: lifecycle interrupted during resolution")
			return
		}
		o.fail(ctx, incident, log, fmt.Sprintf("action %q failed: %v", decision.Action, err), executionKind(err))
		return
	}
	incident, err = o.commit(ctx, incident, store.EventActionExecuted, &store.ActionExecutedPayload{
		Stage:      store.StageResolution,
		Action:     decision.Action,
		DurationMs: time.Since(phaseStart).Milliseconds(),
	})
	if err != nil {
		o.abort(ctx, incident, log, err)
		return
	}
	o.recordPhase("resolution", phaseStart)

	// Communication phase: stakeholder notification is best-effort. A dead
	// notifier degrades the communication record instead of failing the
	// incident.
	phaseStart = time.Now()
	notifyCtx, notifyCancel := context.WithTimeout(ctx, o.cfg.CommunicationTimeout)
	notifyErr := o.breakers.Do(notifyCtx, "notifier:"+o.notifier.Name(), func(c context.Context) error {
		return o.notifier.Notify(c, &notify.Notification{
			IncidentUID: incident.UID,
			Title:       incident.Title,
			Severity:    string(incident.Severity),
			Status:      string(store.StatusResolved),
			Action:      decision.Action,
			Timestamp:   time.Now().Unix(),
		})
	})
	notifyCancel()
	if ctx.Err() != nil {
		log.Info("orchestrator: lifecycle interrupted during communication")
		return
	}
	communication := &store.ActionExecutedPayload{
		Stage:      store.StageCommunication,
		Action:     decision.Action,
		DurationMs: time.Since(phaseStart).Milliseconds(),
	}
	if notifyErr != nil {
		communication.Degraded = true
		communication.Detail = notifyErr.Error()
		log.Warn("orchestrator: notification degraded", "error", notifyErr)
	}
	if _, err := o.commit(ctx, incident, store.EventActionExecuted, communication); err != nil {
		o.abort(ctx, incident, log, err)
		return
	}
	o.recordPhase("communication", phaseStart)

	if o.metrics != nil {
		o.metrics.RecordResolution(time.Since(startTime))
	}
	log.Info("orchestrator: incident resolved",
		"action", decision.Action,
		"confidence", decision.Confidence,
		"rounds", decision.Round,
		"elapsed_ms", time.Since(startTime).Milliseconds())
}

// runConsensus runs up to MaxRounds voting rounds. It returns (nil, nil)
// after escalating on an exhausted round budget or an empty voting set.
func (o *Orchestrator) runConsensus(ctx context.Context, incident *store.Incident, fanned []*agents.Recommendation, log *slog.Logger) (*consensus.Decision, error) {
	voters := []agents.Capability{
		agents.CapabilityDiagnosis,
		agents.CapabilityPrediction,
		agents.CapabilityResolution,
		agents.CapabilityCommunication,
	}

	leading := ""
	maxRounds := o.consensus.MaxRounds()
	for round := 1; round <= maxRounds; round++ {
		var recs []*agents.Recommendation
		if round == 1 {
			// First round reuses the fan-out recommendations and only polls
			// the remaining voters.
			pollCtx, pollCancel := context.WithTimeout(ctx, o.cfg.FanOutTimeout)
			polled := o.proposeAll(pollCtx, incident, []agents.Capability{agents.CapabilityResolution, agents.CapabilityCommunication}, round, leading)
			pollCancel()
			recs = append(append(recs, fanned...), polled...)
			for _, rec := range polled {
				if _, err := o.commitRecommendation(ctx, incident, rec, round); err != nil {
					return nil, err
				}
			}
		} else {
			pollCtx, pollCancel := context.WithTimeout(ctx, o.cfg.FanOutTimeout)
			recs = o.proposeAll(pollCtx, incident, voters, round, leading)
			pollCancel()
			for _, rec := range recs {
				if _, err := o.commitRecommendation(ctx, incident, rec, round); err != nil {
					return nil, err
				}
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		decision, err := o.consensus.Decide(recs, o.cfg.AgentWeights, round)
		switch {
		case errors.Is(err, consensus.ErrNoVotes):
			if o.metrics != nil {
				o.metrics.RecordConsensus(round, 0, false)
			}
			o.escalate(ctx, incident, log, "all agents abstained", store.ErrorKindAgentsUnavailable, round)
			return nil, nil
		case errors.Is(err, consensus.ErrNeedsAnotherRound):
			if round == maxRounds {
				if o.metrics != nil {
					o.metrics.RecordConsensus(round, decision.AgreementRatio, false)
				}
				o.escalate(ctx, incident, log,
					fmt.Sprintf("insufficient quorum after %d rounds", maxRounds),
					store.ErrorKindQuorum, round)
				return nil, nil
			}
			leading = decision.Action
			log.Info("orchestrator: consensus re-vote",
				"round", round,
				"leading_action", leading,
				"agreement", decision.AgreementRatio)
		case err != nil:
			return nil, err
		default:
			if o.metrics != nil {
				o.metrics.RecordConsensus(round, decision.AgreementRatio, true)
			}
			if _, err := o.commit(ctx, incident, store.EventConsensusReached, decisionPayload(decision)); err != nil {
				return nil, err
			}
			return decision, nil
		}
	}
	// Unreachable: the final round either decides or escalates.
	return nil, errors.New("consensus loop exited without a decision")
}

// propose invokes one agent behind its breaker. Errors, timeouts and open
// breakers all come back as an abstain so the pipeline never stalls on a
// single dependency.
func (o *Orchestrator) propose(ctx context.Context, incident *store.Incident, capability agents.Capability, round int, leading string) *agents.Recommendation {
	agent, ok := o.agents[capability]
	if !ok {
		return agents.Abstain(string(capability), capability)
	}

	timeout := o.cfg.DetectionTimeout
	if capability != agents.CapabilityDetection {
		timeout = o.cfg.FanOutTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var rec *agents.Recommendation
	err := o.breakers.Do(callCtx, "agent:"+agent.Name(), func(c context.Context) error {
		proposed, err := agent.Propose(c, o.snapshot(incident, round, leading))
		if err != nil {
			return err
		}
		rec = proposed
		return nil
	})
	if err != nil {
		if o.metrics != nil {
			o.metrics.RecordAgentFailure(agent.Name(), string(kindOf(err)))
		}
		slog.Debug("orchestrator: agent abstains",
			"incident_uid", incident.UID,
			"agent", agent.Name(),
			"round", round,
			"error", err)
		return agents.Abstain(agent.Name(), capability)
	}
	return rec
}

// proposeAll polls the given capabilities concurrently under ctx and returns
// recommendations in capability order.
func (o *Orchestrator) proposeAll(ctx context.Context, incident *store.Incident, capabilities []agents.Capability, round int, leading string) []*agents.Recommendation {
	recs := make([]*agents.Recommendation, len(capabilities))
	var wg sync.WaitGroup
	for i, capability := range capabilities {
		wg.Add(1)
		go func(i int, capability agents.Capability) {
			defer wg.Done()
			recs[i] = o.propose(ctx, incident, capability, round, leading)
		}(i, capability)
	}
	wg.Wait()
	return recs
}

func (o *Orchestrator) snapshot(incident *store.Incident, round int, leading string) *agents.IncidentSnapshot {
	return &agents.IncidentSnapshot{
		UID:           incident.UID,
		Title:         incident.Title,
		Description:   incident.Description,
		Source:        incident.Source,
		Severity:      string(incident.Severity),
		Status:        string(incident.Status),
		Round:         round,
		LeadingAction: leading,
	}
}

// commitRecommendation records one agent recommendation as an event.
func (o *Orchestrator) commitRecommendation(ctx context.Context, incident *store.Incident, rec *agents.Recommendation, round int) (*store.Incident, error) {
	return o.commit(ctx, incident, store.EventAgentRecommended, &store.AgentRecommendedPayload{
		Agent:      rec.AgentID,
		Capability: string(rec.Capability),
		Action:     rec.Action,
		Confidence: rec.Confidence,
		Rationale:  rec.Rationale,
		Round:      round,
		Abstain:    rec.Abstain,
	})
}

// commit appends one event, refreshes the materialized row from the fold and
// publishes the transition. The incident's in-memory status is updated in
// place so the caller always holds the current view.
func (o *Orchestrator) commit(ctx context.Context, incident *store.Incident, eventType store.IncidentEventType, payload any) (*store.Incident, error) {
	// Fast path only: the caller's view may be stale. The append itself
	// rejects with ErrLogSealed once the log ends in a terminal event, so a
	// racing writer cannot corrupt the fold.
	if incident.Status.IsTerminal() {
		return nil, errors.Errorf("incident %s already terminal (%s)", incident.UID, incident.Status)
	}
	// A cancelled run must not append past the terminal event the cancel
	// path owns.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	event, err := o.store.AppendEvent(ctx, incident.ID, eventType, payload)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to append %s event", eventType)
	}

	status, _, err := o.store.ReplayStatus(ctx, incident.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to replay incident status")
	}
	if status != incident.Status && !CanTransition(incident.Status, status) {
		return nil, errors.Errorf("illegal transition %s -> %s on incident %s", incident.Status, status, incident.UID)
	}

	now := time.Now().Unix()
	update := &store.UpdateIncident{ID: incident.ID, Status: &status, UpdatedTs: &now}
	var summary string
	switch p := payload.(type) {
	case *store.EscalatedPayload:
		update.ErrorKind = &p.Kind
		update.FailureReason = &p.Reason
		summary = p.Reason
	case *store.FailedPayload:
		update.ErrorKind = &p.Kind
		update.FailureReason = &p.Reason
		summary = p.Reason
	case *store.CancelledPayload:
		kind := store.ErrorKindCancelled
		update.ErrorKind = &kind
		update.FailureReason = &p.Reason
		summary = p.Reason
	case *store.ConsensusReachedPayload:
		summary = p.Action
	}
	if status.IsTerminal() {
		update.ResolvedTs = &now
	}

	updated, err := o.store.UpdateIncident(ctx, update)
	if err != nil {
		return nil, errors.Wrap(err, "failed to refresh incident row")
	}
	*incident = *updated

	if o.metrics != nil {
		o.metrics.RecordTransition(string(status))
	}
	o.publisher.Publish(ctx, publish.Update{
		IncidentUID: incident.UID,
		Status:      string(status),
		EventType:   string(eventType),
		Summary:     summary,
		Seq:         event.Seq,
	})
	return incident, nil
}

func (o *Orchestrator) escalate(ctx context.Context, incident *store.Incident, log *slog.Logger, reason string, kind store.ErrorKind, rounds int) {
	log.Warn("orchestrator: incident escalated", "reason", reason, "kind", kind)
	if _, err := o.commit(ctx, incident, store.EventEscalated, &store.EscalatedPayload{
		Reason: reason,
		Kind:   kind,
		Rounds: rounds,
	}); err != nil {
		log.Error("orchestrator: failed to record escalation", "error", err)
	}
}

func (o *Orchestrator) fail(ctx context.Context, incident *store.Incident, log *slog.Logger, reason string, kind store.ErrorKind) {
	log.Error("orchestrator: incident failed", "reason", reason, "kind", kind)
	if _, err := o.commit(ctx, incident, store.EventFailed, &store.FailedPayload{
		Reason: reason,
		Kind:   kind,
	}); err != nil {
		log.Error("orchestrator: failed to record failure", "error", err)
	}
}

// abort handles an unexpected mid-lifecycle error: cancellation ends the run
// silently (the cancel path owns the terminal event), anything else fails
// the incident.
func (o *Orchestrator) abort(ctx context.Context, incident *store.Incident, log *slog.Logger, err error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		log.Info("orchestrator: lifecycle interrupted")
		return
	}
	o.fail(ctx, incident, log, err.Error(), kindOf(err))
}

// Cancel terminates a non-terminal incident. The background run is signalled
// first so the cancelled event is the log's final entry.
func (o *Orchestrator) Cancel(ctx context.Context, uid, reason string) (*store.Incident, error) {
	incident, err := o.store.GetIncident(ctx, &store.FindIncident{UID: &uid})
	if err != nil {
		return nil, err
	}
	if incident == nil {
		return nil, nil
	}
	if incident.Status.IsTerminal() {
		return nil, errors.Errorf("incident %s already terminal (%s)", uid, incident.Status)
	}

	o.mu.Lock()
	if cancel, ok := o.running[uid]; ok {
		cancel()
	}
	o.mu.Unlock()

	if reason == "" {
		reason = "cancelled by operator"
	}
	return o.commit(ctx, incident, store.EventCancelled, &store.CancelledPayload{Reason: reason})
}

// ActiveCount reports how many incident runs are in flight.
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.running)
}

// Shutdown stops admitting work and waits for in-flight runs, bounded by ctx.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.rootCancel()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) track(uid string, cancel context.CancelFunc) {
	o.mu.Lock()
	o.running[uid] = cancel
	active := len(o.running)
	o.mu.Unlock()
	if o.metrics != nil {
		o.metrics.SetActiveIncidents(active)
	}
}

func (o *Orchestrator) untrack(uid string) {
	o.mu.Lock()
	delete(o.running, uid)
	active := len(o.running)
	o.mu.Unlock()
	if o.metrics != nil {
		o.metrics.SetActiveIncidents(active)
	}
}

func (o *Orchestrator) recordPhase(phase string, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordPhase(phase, time.Since(start))
	}
}

func decisionPayload(decision *consensus.Decision) *store.ConsensusReachedPayload {
	votes := make([]store.ConsensusVotePayload, 0, len(decision.Votes))
	for _, v := range decision.Votes {
		votes = append(votes, store.ConsensusVotePayload{
			Agent:           v.AgentID,
			Action:          v.Action,
			Confidence:      v.Confidence,
			Weight:          v.Weight,
			EffectiveWeight: v.EffectiveWeight,
			Outlier:         v.Outlier,
			Abstain:         v.Abstain,
		})
	}
	return &store.ConsensusReachedPayload{
		Action:         decision.Action,
		Confidence:     decision.Confidence,
		AgreementRatio: decision.AgreementRatio,
		Round:          decision.Round,
		Votes:          votes,
	}
}

// kindOf maps an error to its machine-readable class.
func kindOf(err error) store.ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return store.ErrorKindTimeout
	case errors.Is(err, breaker.ErrOpen):
		return store.ErrorKindAgentsUnavailable
	case errors.Is(err, context.Canceled):
		return store.ErrorKindCancelled
	case errors.Is(err, store.ErrSeqConflict):
		return store.ErrorKindStorage
	case errors.Is(err, store.ErrLogSealed):
		return store.ErrorKindInvariant
	case errors.Is(err, agents.ErrMalformed):
		return store.ErrorKindInvariant
	default:
		return store.ErrorKindInternal
	}
}

// executionKind classifies a runner failure: infrastructure classes keep
// their kind, anything else counts as a failed execution of the action.
func executionKind(err error) store.ErrorKind {
	if kind := kindOf(err); kind != store.ErrorKindInternal {
		return kind
	}
	return store.ErrorKindExecution
}

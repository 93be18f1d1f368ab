// Package consensus combines per-agent recommendations into one decision,
// tolerating a bounded fraction of faulty or adversarial agents through
// iterative outlier discounting on weighted votes.
package consensus

import (
	"log/slog"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/rish2jain/Incident-Commander-sub000/engine/agents"
)

// ErrNeedsAnotherRound signals that the agreement threshold was not met and
// the orchestrator should collect a fresh round of recommendations. The
// provisional decision is still returned so re-vote prompts can reference
// the leading action.
var ErrNeedsAnotherRound = errors.New("consensus needs another round")

// ErrNoVotes signals that every agent abstained, leaving nothing to decide.
var ErrNoVotes = errors.New("no non-abstaining votes")

// Config tunes the consensus gate.
type Config struct {
	// AgreementThreshold is the fraction of total effective weight the
	// majority action must carry. Default two-thirds.
	AgreementThreshold float64
	// OutlierThreshold is the confidence distance from the weighted median
	// beyond which a vote's weight is halved for the round.
	OutlierThreshold float64
	// MaxRounds bounds how many rounds the orchestrator runs before
	// escalating. The engine itself is stateless across rounds.
	MaxRounds int
}

// DefaultConfig returns the default consensus configuration.
func DefaultConfig() Config {
	return Config{
		AgreementThreshold: 2.0 / 3.0,
		OutlierThreshold:   0.3,
		MaxRounds:          3,
	}
}

// Vote records how one agent's recommendation entered a round, including the
// discount applied to outliers. Abstains stay in the list with zero weight
// so the audit log preserves the full picture.
type Vote struct {
	AgentID         string  `json:"agent"`
	Action          string  `json:"action,omitempty"`
	Confidence      float64 `json:"confidence"`
	Weight          float64 `json:"weight"`
	EffectiveWeight float64 `json:"effective_weight"`
	Outlier         bool    `json:"outlier,omitempty"`
	Abstain         bool    `json:"abstain,omitempty"`
}

// Decision is the immutable outcome of one consensus round.
type Decision struct {
	Action         string  `json:"action"`
	Confidence     float64 `json:"confidence"`
	AgreementRatio float64 `json:"agreement_ratio"`
	Round          int     `json:"round"`
	Votes          []Vote  `json:"votes"`
}

// Engine evaluates consensus rounds.
type Engine struct {
	cfg Config
}

// New creates a consensus engine; zero config fields fall back to defaults.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.AgreementThreshold <= 0 || cfg.AgreementThreshold > 1 {
		cfg.AgreementThreshold = def.AgreementThreshold
	}
	if cfg.OutlierThreshold <= 0 {
		cfg.OutlierThreshold = def.OutlierThreshold
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = def.MaxRounds
	}
	return &Engine{cfg: cfg}
}

// MaxRounds exposes the configured round budget.
func (e *Engine) MaxRounds() int {
	return e.cfg.MaxRounds
}

// Decide evaluates one round. Abstaining agents and agents without a
// configured weight carry zero weight: they never count against the
// majority. When the majority action's share of effective weight falls
// short of the agreement threshold, the provisional decision is returned
// together with ErrNeedsAnotherRound.
func (e *Engine) Decide(recs []*agents.Recommendation, weights map[string]float64, round int) (*Decision, error) {
	votes := make([]Vote, 0, len(recs))
	for _, rec := range recs {
		weight := weights[rec.AgentID]
		if rec.Abstain || weight <= 0 {
			votes = append(votes, Vote{AgentID: rec.AgentID, Abstain: true})
			continue
		}
		votes = append(votes, Vote{
			AgentID:         rec.AgentID,
			Action:          rec.Action,
			Confidence:      rec.Confidence,
			Weight:          weight,
			EffectiveWeight: weight,
		})
	}

	active := activeVotes(votes)
	if len(active) == 0 {
		return nil, ErrNoVotes
	}

	// Discount outliers: a confidence far from the weighted median halves
	// that vote's weight for this round. This bounds how far up to
	// floor((N-1)/3) faulty agents can drag the outcome.
	median := weightedMedian(active)
	for i := range votes {
		if votes[i].Abstain {
			continue
		}
		if math.Abs(votes[i].Confidence-median) > e.cfg.OutlierThreshold {
			votes[i].Outlier = true
			votes[i].EffectiveWeight = votes[i].Weight / 2
		}
	}

	// Tally effective weight and confidence mass per candidate action.
	weightByAction := map[string]float64{}
	confMassByAction := map[string]float64{}
	totalWeight := 0.0
	for _, v := range votes {
		if v.Abstain {
			continue
		}
		weightByAction[v.Action] += v.EffectiveWeight
		confMassByAction[v.Action] += v.EffectiveWeight * v.Confidence
		totalWeight += v.EffectiveWeight
	}

	majority := majorityAction(weightByAction)
	agreement := weightByAction[majority] / totalWeight
	meanConfidence := confMassByAction[majority] / weightByAction[majority]

	decision := &Decision{
		Action:         majority,
		Confidence:     clamp01(agreement * meanConfidence),
		AgreementRatio: agreement,
		Round:          round,
		Votes:          votes,
	}

	if agreement+1e-9 < e.cfg.AgreementThreshold {
		slog.Info("consensus: agreement below threshold",
			"round", round,
			"leading_action", majority,
			"agreement", agreement,
			"threshold", e.cfg.AgreementThreshold)
		return decision, ErrNeedsAnotherRound
	}

	slog.Info("consensus: decision reached",
		"round", round,
		"action", decision.Action,
		"confidence", decision.Confidence,
		"agreement", agreement)

	return decision, nil
}

func activeVotes(votes []Vote) []Vote {
	active := make([]Vote, 0, len(votes))
	for _, v := range votes {
		if !v.Abstain {
			active = append(active, v)
		}
	}
	return active
}

// weightedMedian returns the confidence at which cumulative weight crosses
// half of the total, over non-abstaining votes.
func weightedMedian(votes []Vote) float64 {
	sorted := make([]Vote, len(votes))
	copy(sorted, votes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Confidence < sorted[j].Confidence })

	total := 0.0
	for _, v := range sorted {
		total += v.Weight
	}
	cum := 0.0
	for _, v := range sorted {
		cum += v.Weight
		if cum >= total/2 {
			return v.Confidence
		}
	}
	return sorted[len(sorted)-1].Confidence
}

// majorityAction picks the action with the highest effective weight,
// breaking ties lexicographically so rounds stay deterministic.
func majorityAction(weightByAction map[string]float64) string {
	best := ""
	bestWeight := math.Inf(-1)
	for action, weight := range weightByAction {
		if weight > bestWeight || (weight == bestWeight && action < best) {
			best = action
			bestWeight = weight
		}
	}
	return best
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

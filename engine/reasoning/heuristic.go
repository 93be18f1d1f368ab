package reasoning

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
)

// Heuristic is a deterministic rule-based reasoning backend used when no LLM
// is configured (dev mode, tests). The same prompt always yields the same
// answer, which keeps replays reproducible.
type Heuristic struct{}

// NewHeuristic creates the rule-based backend.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

func (h *Heuristic) Name() string {
	return "heuristic"
}

// keyword -> remediation action, checked in order.
var actionRules = []struct {
	keyword string
	action  string
}{
	{"pool", "scale_pool"},
	{"connection", "scale_pool"},
	{"cpu", "scale_pool"},
	{"memory", "restart_service"},
	{"oom", "restart_service"},
	{"crash", "restart_service"},
	{"deploy", "rollback_release"},
	{"release", "rollback_release"},
	{"latency", "shift_traffic"},
	{"timeout", "shift_traffic"},
	{"disk", "expand_volume"},
}

func (h *Heuristic) Reason(_ context.Context, req Request) (*Answer, error) {
	text := strings.ToLower(req.System + " " + req.Prompt)

	action := "restart_service"
	for _, rule := range actionRules {
		if strings.Contains(text, rule.keyword) {
			action = rule.action
			break
		}
	}

	// Confidence derives from severity mentions plus a stable prompt-keyed
	// perturbation so distinct agents do not produce identical votes.
	confidence := 0.6
	switch {
	case strings.Contains(text, "critical"):
		confidence = 0.9
	case strings.Contains(text, "high"):
		confidence = 0.8
	case strings.Contains(text, "medium"):
		confidence = 0.7
	}
	confidence += jitter(req.Prompt)

	return &Answer{
		Action:     action,
		Confidence: confidence,
		Rationale:  "rule-based match on incident signal",
	}, nil
}

// jitter maps a prompt to a small deterministic offset in [0, 0.05).
func jitter(prompt string) float64 {
	sum := sha256.Sum256([]byte(prompt))
	n := binary.BigEndian.Uint16(sum[:2])
	return float64(n%500) / 10000
}

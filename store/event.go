package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// ErrSeqConflict is returned by AppendIncidentEvent when another writer won
// the race for the expected sequence number. Callers retry with a refreshed
// sequence; the Store facade does this with a bounded budget.
var ErrSeqConflict = errors.New("incident event sequence conflict")

// ErrLogSealed is returned by AppendEvent when the incident's log already
// ends in a terminal event. A sealed log accepts no further appends, so a
// writer holding a stale view of the incident cannot corrupt the fold.
var ErrLogSealed = errors.New("incident event log sealed by terminal event")

// IncidentEventType enumerates the closed set of event variants.
type IncidentEventType string

const (
	EventDetected         IncidentEventType = "detected"
	EventAgentRecommended IncidentEventType = "agent_recommended"
	EventConsensusReached IncidentEventType = "consensus_reached"
	EventActionExecuted   IncidentEventType = "action_executed"
	EventEscalated        IncidentEventType = "escalated"
	EventFailed           IncidentEventType = "failed"
	EventCancelled        IncidentEventType = "cancelled"
)

func (t IncidentEventType) IsValid() bool {
	switch t {
	case EventDetected, EventAgentRecommended, EventConsensusReached,
		EventActionExecuted, EventEscalated, EventFailed, EventCancelled:
		return true
	}
	return false
}

// IncidentEvent is one immutable, hash-chained entry of an incident's log.
// Seq is strictly monotonic and gapless per incident, assigned at append time.
type IncidentEvent struct {
	ID         int64
	IncidentID int32
	Seq        int64
	Type       IncidentEventType
	Payload    string // JSON
	PrevHash   string
	Hash       string
	CreatedTs  int64
}

// Seals reports whether the event folds into a terminal state, closing the
// log to further appends.
func (e *IncidentEvent) Seals() bool {
	switch e.Type {
	case EventEscalated, EventFailed, EventCancelled:
		return true
	case EventActionExecuted:
		var payload ActionExecutedPayload
		if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
			return false
		}
		return payload.Stage == StageCommunication
	}
	return false
}

type FindIncidentEvent struct {
	IncidentID int32
	// AfterSeq restarts a replay from an arbitrary point; zero means from the start.
	AfterSeq int64
	Limit    *int
}

// ChainHash computes the tamper-evidence hash of an event given its chain
// predecessor. The genesis event uses an empty prevHash.
func ChainHash(incidentID int32, seq int64, eventType IncidentEventType, payload, prevHash string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%d|%s|%s|%s", incidentID, seq, eventType, payload, prevHash)))
	return hex.EncodeToString(sum[:])
}

// VerifyChain checks sequence gaplessness and hash-chain integrity of a
// replayed event list. Events must be ordered by Seq ascending.
func VerifyChain(events []*IncidentEvent) error {
	prevHash := ""
	for i, event := range events {
		if event.Seq != int64(i+1) {
			return errors.Errorf("sequence gap at position %d: got seq %d, want %d", i, event.Seq, i+1)
		}
		if event.PrevHash != prevHash {
			return errors.Errorf("broken chain at seq %d: prev hash mismatch", event.Seq)
		}
		if want := ChainHash(event.IncidentID, event.Seq, event.Type, event.Payload, event.PrevHash); event.Hash != want {
			return errors.Errorf("tampered event at seq %d: hash mismatch", event.Seq)
		}
		prevHash = event.Hash
	}
	return nil
}

// Event payloads. The orchestrator is the sole producer; the fold and the
// audit surface are the consumers.

type DetectedPayload struct {
	Title    string           `json:"title"`
	Source   string           `json:"source"`
	Severity IncidentSeverity `json:"severity"`
}

type AgentRecommendedPayload struct {
	Agent      string  `json:"agent"`
	Capability string  `json:"capability"`
	Action     string  `json:"action,omitempty"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
	Round      int     `json:"round"`
	Abstain    bool    `json:"abstain,omitempty"`
}

type ConsensusVotePayload struct {
	Agent           string  `json:"agent"`
	Action          string  `json:"action,omitempty"`
	Confidence      float64 `json:"confidence"`
	Weight          float64 `json:"weight"`
	EffectiveWeight float64 `json:"effective_weight"`
	Outlier         bool    `json:"outlier,omitempty"`
	Abstain         bool    `json:"abstain,omitempty"`
}

type ConsensusReachedPayload struct {
	Action         string                 `json:"action"`
	Confidence     float64                `json:"confidence"`
	AgreementRatio float64                `json:"agreement_ratio"`
	Round          int                    `json:"round"`
	Votes          []ConsensusVotePayload `json:"votes"`
}

// ActionStage distinguishes the two executions recorded as action_executed:
// the resolution action itself and the stakeholder notification.
type ActionStage string

const (
	StageResolution    ActionStage = "resolution"
	StageCommunication ActionStage = "communication"
)

type ActionExecutedPayload struct {
	Stage      ActionStage `json:"stage"`
	Action     string      `json:"action"`
	DurationMs int64       `json:"duration_ms"`
	Degraded   bool        `json:"degraded,omitempty"`
	Detail     string      `json:"detail,omitempty"`
}

type EscalatedPayload struct {
	Reason string    `json:"reason"`
	Kind   ErrorKind `json:"kind"`
	Rounds int       `json:"rounds,omitempty"`
}

type FailedPayload struct {
	Reason string    `json:"reason"`
	Kind   ErrorKind `json:"kind"`
}

type CancelledPayload struct {
	Reason string `json:"reason"`
	// MergedInto holds the surviving incident UID when cancelled as a duplicate.
	MergedInto string `json:"merged_into,omitempty"`
}

// FoldStatus derives the lifecycle state by folding an ordered event list
// from empty. This is the single source of truth for incident status; the
// incident row merely caches the result.
func FoldStatus(events []*IncidentEvent) (IncidentStatus, error) {
	var status IncidentStatus
	for _, event := range events {
		if status.IsTerminal() {
			return "", errors.Errorf("event %s at seq %d after terminal state %s", event.Type, event.Seq, status)
		}
		switch event.Type {
		case EventDetected:
			if status != "" {
				return "", errors.Errorf("detected event at seq %d on non-empty log", event.Seq)
			}
			status = StatusDetected
		case EventAgentRecommended:
			var payload AgentRecommendedPayload
			if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
				return "", errors.Wrapf(err, "malformed agent_recommended payload at seq %d", event.Seq)
			}
			// Recommendations only advance the phase, never regress it:
			// re-vote rounds replay earlier capabilities without moving the
			// incident backward.
			switch payload.Capability {
			case "detection":
				// Detection completes within the Detected state.
			case "diagnosis", "prediction":
				if status == StatusDetected {
					status = StatusDiagnosing
				}
			case "resolution", "communication":
				if status == StatusDetected || status == StatusDiagnosing {
					status = StatusConsensusPending
				}
			default:
				return "", errors.Errorf("unknown capability %q at seq %d", payload.Capability, event.Seq)
			}
		case EventConsensusReached:
			status = StatusResolving
		case EventActionExecuted:
			var payload ActionExecutedPayload
			if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
				return "", errors.Wrapf(err, "malformed action_executed payload at seq %d", event.Seq)
			}
			switch payload.Stage {
			case StageResolution:
				status = StatusCommunicating
			case StageCommunication:
				status = StatusResolved
			default:
				return "", errors.Errorf("unknown action stage %q at seq %d", payload.Stage, event.Seq)
			}
		case EventEscalated:
			status = StatusEscalated
		case EventFailed:
			status = StatusFailed
		case EventCancelled:
			status = StatusCancelled
		default:
			return "", errors.Errorf("unknown event type %q at seq %d", event.Type, event.Seq)
		}
	}
	if status == "" {
		return "", errors.New("empty event log")
	}
	return status, nil
}

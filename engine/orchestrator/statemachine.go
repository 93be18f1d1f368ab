package orchestrator

import (
	"github.com/rish2jain/Incident-Commander-sub000/store"
)

// transitions is the closed set of allowed lifecycle edges. Escalated and
// Failed are reachable from every non-terminal state; Cancelled from every
// non-terminal state as well. Terminal states have no outgoing edges.
var transitions = map[store.IncidentStatus][]store.IncidentStatus{
	store.StatusDetected: {
		store.StatusDiagnosing,
	},
	store.StatusDiagnosing: {
		store.StatusConsensusPending,
	},
	store.StatusConsensusPending: {
		store.StatusResolving,
	},
	store.StatusResolving: {
		store.StatusCommunicating,
	},
	store.StatusCommunicating: {
		store.StatusResolved,
	},
}

// CanTransition reports whether the lifecycle edge from -> to is allowed.
func CanTransition(from, to store.IncidentStatus) bool {
	if from.IsTerminal() {
		return false
	}
	switch to {
	case store.StatusEscalated, store.StatusFailed, store.StatusCancelled:
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Package notify delivers incident communications to stakeholders. Delivery
// is best-effort: the lifecycle completes even when every sink is down, with
// the degradation recorded in the incident's event log.
package notify

import (
	"context"
)

// Notification is one stakeholder-facing incident update.
type Notification struct {
	IncidentUID string `json:"incident_uid"`
	Title       string `json:"title"`
	Severity    string `json:"severity"`
	Status      string `json:"status"`
	Action      string `json:"action,omitempty"`
	Detail      string `json:"detail,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// Notifier is the outbound communication sink.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, notification *Notification) error
}

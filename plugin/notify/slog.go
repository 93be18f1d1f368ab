package notify

import (
	"context"
	"log/slog"
)

// Slog writes notifications to the structured log. Used in demo and dev
// modes, and as the fallback when no webhook is configured.
type Slog struct{}

func NewSlog() *Slog {
	return &Slog{}
}

func (s *Slog) Name() string {
	return "slog"
}

func (s *Slog) Notify(_ context.Context, notification *Notification) error {
	slog.Info("notify: incident update",
		"incident_uid", notification.IncidentUID,
		"title", notification.Title,
		"severity", notification.Severity,
		"status", notification.Status,
		"action", notification.Action)
	return nil
}

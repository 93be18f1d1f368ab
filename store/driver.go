package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for database drivers.
type Driver interface {
	GetDB() *sql.DB
	Close() error
	IsInitialized(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error

	CreateIncident(ctx context.Context, create *Incident) (*Incident, error)
	ListIncidents(ctx context.Context, find *FindIncident) ([]*Incident, error)
	UpdateIncident(ctx context.Context, update *UpdateIncident) (*Incident, error)
	GetIncidentStats(ctx context.Context) (*IncidentStats, error)

	// AppendIncidentEvent persists an event at the supplied sequence number.
	// A writer racing for the same (incident, seq) slot gets ErrSeqConflict.
	AppendIncidentEvent(ctx context.Context, create *IncidentEvent) (*IncidentEvent, error)
	ListIncidentEvents(ctx context.Context, find *FindIncidentEvent) ([]*IncidentEvent, error)
	LatestIncidentEvent(ctx context.Context, incidentID int32) (*IncidentEvent, error)
}

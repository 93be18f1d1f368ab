package store

// IncidentStatus is the lifecycle state of an incident.
// The current status is always derivable by folding the incident's event log;
// the incident row only materializes the fold for cheap listing.
type IncidentStatus string

const (
	StatusDetected         IncidentStatus = "detected"
	StatusDiagnosing       IncidentStatus = "diagnosing"
	StatusConsensusPending IncidentStatus = "consensus_pending"
	StatusResolving        IncidentStatus = "resolving"
	StatusCommunicating    IncidentStatus = "communicating"
	StatusResolved         IncidentStatus = "resolved"
	StatusEscalated        IncidentStatus = "escalated"
	StatusFailed           IncidentStatus = "failed"
	StatusCancelled        IncidentStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s IncidentStatus) IsTerminal() bool {
	switch s {
	case StatusResolved, StatusEscalated, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsValid reports whether s is a known lifecycle state.
func (s IncidentStatus) IsValid() bool {
	switch s {
	case StatusDetected, StatusDiagnosing, StatusConsensusPending, StatusResolving,
		StatusCommunicating, StatusResolved, StatusEscalated, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IncidentSeverity classifies incident impact.
type IncidentSeverity string

const (
	SeverityLow      IncidentSeverity = "low"
	SeverityMedium   IncidentSeverity = "medium"
	SeverityHigh     IncidentSeverity = "high"
	SeverityCritical IncidentSeverity = "critical"
)

func (s IncidentSeverity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Rank returns the sort rank of a severity, higher is more severe.
func (s IncidentSeverity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// ErrorKind is the machine-readable reason class for non-success terminal states.
type ErrorKind string

const (
	ErrorKindNone              ErrorKind = ""
	ErrorKindTimeout           ErrorKind = "timeout"
	ErrorKindQuorum            ErrorKind = "quorum"
	ErrorKindAgentsUnavailable ErrorKind = "agents_unavailable"
	ErrorKindStorage           ErrorKind = "storage"
	ErrorKindInvariant         ErrorKind = "invariant"
	ErrorKindCancelled         ErrorKind = "cancelled"
	// ErrorKindExecution marks a resolution action that was attempted and failed.
	ErrorKindExecution ErrorKind = "execution"
	// ErrorKindInternal is the class for errors no other kind explains.
	ErrorKindInternal ErrorKind = "internal"
)

// Incident is the materialized view of one incident's event log.
// Mutated only through event application, never directly by callers.
type Incident struct {
	ID          int32
	UID         string
	Title       string
	Description string
	Source      string
	// Fingerprint identifies the originating signal for duplicate detection.
	Fingerprint   string
	Status        IncidentStatus
	Severity      IncidentSeverity
	ErrorKind     ErrorKind
	FailureReason string
	CreatedTs     int64
	UpdatedTs     int64
	ResolvedTs    int64 // zero until a terminal state is reached

	// EventCount is populated on reads via a join, not stored.
	EventCount int64
}

// FindIncidentOrder selects the list sort key.
type FindIncidentOrder string

const (
	OrderByDetectTime FindIncidentOrder = "detect_time"
	OrderBySeverity   FindIncidentOrder = "severity"
	OrderByDuration   FindIncidentOrder = "duration"
)

type FindIncident struct {
	ID          *int32
	UID         *string
	Fingerprint *string
	Status      *IncidentStatus
	Severity    *IncidentSeverity
	// ActiveOnly restricts results to non-terminal incidents.
	ActiveOnly bool

	Limit   *int
	Offset  *int
	OrderBy FindIncidentOrder
	Desc    bool
}

type UpdateIncident struct {
	ID            int32
	Status        *IncidentStatus
	ErrorKind     *ErrorKind
	FailureReason *string
	UpdatedTs     *int64
	ResolvedTs    *int64
}

// IncidentStats is the aggregate summary consumed by dashboards.
type IncidentStats struct {
	CountByStatus map[IncidentStatus]int64
	// MeanTimeToResolveSeconds is the average of resolved_ts - created_ts
	// over resolved incidents. Zero when nothing has resolved yet.
	MeanTimeToResolveSeconds float64
	Total                    int64
}

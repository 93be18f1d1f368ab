package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/rish2jain/Incident-Commander-sub000/store"
)

func (d *DB) CreateIncident(ctx context.Context, create *store.Incident) (*store.Incident, error) {
	fields := []string{"uid", "title", "description", "source", "fingerprint", "status", "severity", "created_ts", "updated_ts"}
	args := []any{create.UID, create.Title, create.Description, create.Source, create.Fingerprint, create.Status, create.Severity, create.CreatedTs, create.UpdatedTs}

	stmt := `INSERT INTO incident (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create incident")
	}

	return create, nil
}

func (d *DB) ListIncidents(ctx context.Context, find *store.FindIncident) ([]*store.Incident, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "i.id = ?"), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "i.uid = ?"), append(args, *find.UID)
	}
	if find.Fingerprint != nil {
		where, args = append(where, "i.fingerprint = ?"), append(args, *find.Fingerprint)
	}
	if find.Status != nil {
		where, args = append(where, "i.status = ?"), append(args, *find.Status)
	}
	if find.Severity != nil {
		where, args = append(where, "i.severity = ?"), append(args, *find.Severity)
	}
	if find.ActiveOnly {
		where = append(where, "i.status NOT IN ('resolved', 'escalated', 'failed', 'cancelled')")
	}

	// LEFT JOIN + COUNT avoids an N+1 query for the event count.
	query := `
		SELECT
			i.id, i.uid, i.title, i.description, i.source, i.fingerprint,
			i.status, i.severity, i.error_kind, i.failure_reason,
			i.created_ts, i.updated_ts, i.resolved_ts,
			COALESCE(COUNT(e.id), 0) AS event_count
		FROM incident i
		LEFT JOIN incident_event e ON e.incident_id = i.id
		WHERE ` + strings.Join(where, " AND ") + `
		GROUP BY i.id
		ORDER BY ` + orderClause(find)

	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
		if find.Offset != nil {
			query += " OFFSET ?"
			args = append(args, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list incidents")
	}
	defer rows.Close()

	list := make([]*store.Incident, 0)
	for rows.Next() {
		incident := &store.Incident{}
		if err := rows.Scan(
			&incident.ID, &incident.UID, &incident.Title, &incident.Description, &incident.Source, &incident.Fingerprint,
			&incident.Status, &incident.Severity, &incident.ErrorKind, &incident.FailureReason,
			&incident.CreatedTs, &incident.UpdatedTs, &incident.ResolvedTs,
			&incident.EventCount,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan incident")
		}
		list = append(list, incident)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate incidents")
	}

	return list, nil
}

func (d *DB) UpdateIncident(ctx context.Context, update *store.UpdateIncident) (*store.Incident, error) {
	set, args := []string{}, []any{}

	if update.Status != nil {
		set, args = append(set, "status = ?"), append(args, *update.Status)
	}
	if update.ErrorKind != nil {
		set, args = append(set, "error_kind = ?"), append(args, *update.ErrorKind)
	}
	if update.FailureReason != nil {
		set, args = append(set, "failure_reason = ?"), append(args, *update.FailureReason)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = ?"), append(args, *update.UpdatedTs)
	}
	if update.ResolvedTs != nil {
		set, args = append(set, "resolved_ts = ?"), append(args, *update.ResolvedTs)
	}

	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}

	args = append(args, update.ID)
	stmt := `UPDATE incident SET ` + strings.Join(set, ", ") + ` WHERE id = ?
		RETURNING id, uid, title, description, source, fingerprint, status, severity, error_kind, failure_reason, created_ts, updated_ts, resolved_ts`
	incident := &store.Incident{}
	err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&incident.ID, &incident.UID, &incident.Title, &incident.Description, &incident.Source, &incident.Fingerprint,
		&incident.Status, &incident.Severity, &incident.ErrorKind, &incident.FailureReason,
		&incident.CreatedTs, &incident.UpdatedTs, &incident.ResolvedTs,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("incident not found")
		}
		return nil, errors.Wrap(err, "failed to update incident")
	}

	return incident, nil
}

func (d *DB) GetIncidentStats(ctx context.Context) (*store.IncidentStats, error) {
	stats := &store.IncidentStats{CountByStatus: map[store.IncidentStatus]int64{}}

	rows, err := d.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM incident GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count incidents by status")
	}
	defer rows.Close()
	for rows.Next() {
		var status store.IncidentStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan status count")
		}
		stats.CountByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate status counts")
	}

	var mttr sql.NullFloat64
	err = d.db.QueryRowContext(ctx,
		`SELECT AVG(resolved_ts - created_ts) FROM incident WHERE status = 'resolved' AND resolved_ts > 0`,
	).Scan(&mttr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute mean time to resolution")
	}
	if mttr.Valid {
		stats.MeanTimeToResolveSeconds = mttr.Float64
	}

	return stats, nil
}

// orderClause builds the ORDER BY expression for a find. Severity sorts by
// rank rather than lexicographically; duration uses the terminal timestamp
// when present and the last update otherwise.
func orderClause(find *store.FindIncident) string {
	direction := "ASC"
	if find.Desc {
		direction = "DESC"
	}
	switch find.OrderBy {
	case store.OrderBySeverity:
		return severityRankExpr + " " + direction + ", i.created_ts DESC"
	case store.OrderByDuration:
		return "(CASE WHEN i.resolved_ts > 0 THEN i.resolved_ts ELSE i.updated_ts END) - i.created_ts " + direction
	default:
		return "i.created_ts " + direction
	}
}

const severityRankExpr = `CASE i.severity
	WHEN 'critical' THEN 4
	WHEN 'high' THEN 3
	WHEN 'medium' THEN 2
	WHEN 'low' THEN 1
	ELSE 0 END`

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

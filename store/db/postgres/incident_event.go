package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/rish2jain/Incident-Commander-sub000/store"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint breach.
const uniqueViolation = "23505"

func (d *DB) AppendIncidentEvent(ctx context.Context, create *store.IncidentEvent) (*store.IncidentEvent, error) {
	fields := []string{"incident_id", "seq", "type", "payload", "prev_hash", "hash", "created_ts"}
	args := []any{create.IncidentID, create.Seq, create.Type, create.Payload, create.PrevHash, create.Hash, create.CreatedTs}

	stmt := `INSERT INTO incident_event (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		// UNIQUE (incident_id, seq) is the optimistic-concurrency gate.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, store.ErrSeqConflict
		}
		return nil, fmt.Errorf("failed to append incident event: %w", err)
	}

	return create, nil
}

func (d *DB) ListIncidentEvents(ctx context.Context, find *store.FindIncidentEvent) ([]*store.IncidentEvent, error) {
	where, args := []string{"incident_id = " + placeholder(1)}, []any{find.IncidentID}

	if find.AfterSeq > 0 {
		where, args = append(where, "seq > "+placeholder(len(args)+1)), append(args, find.AfterSeq)
	}

	query := `
		SELECT id, incident_id, seq, type, payload, prev_hash, hash, created_ts
		FROM incident_event
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY seq ASC`
	if find.Limit != nil {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list incident events: %w", err)
	}
	defer rows.Close()

	list := make([]*store.IncidentEvent, 0)
	for rows.Next() {
		event := &store.IncidentEvent{}
		if err := rows.Scan(
			&event.ID, &event.IncidentID, &event.Seq, &event.Type,
			&event.Payload, &event.PrevHash, &event.Hash, &event.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan incident event: %w", err)
		}
		list = append(list, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate incident events: %w", err)
	}

	return list, nil
}

func (d *DB) LatestIncidentEvent(ctx context.Context, incidentID int32) (*store.IncidentEvent, error) {
	event := &store.IncidentEvent{}
	err := d.db.QueryRowContext(ctx, `
		SELECT id, incident_id, seq, type, payload, prev_hash, hash, created_ts
		FROM incident_event
		WHERE incident_id = `+placeholder(1)+`
		ORDER BY seq DESC
		LIMIT 1`, incidentID,
	).Scan(
		&event.ID, &event.IncidentID, &event.Seq, &event.Type,
		&event.Payload, &event.PrevHash, &event.Hash, &event.CreatedTs,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read latest incident event: %w", err)
	}
	return event, nil
}

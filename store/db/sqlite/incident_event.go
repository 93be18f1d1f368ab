package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/rish2jain/Incident-Commander-sub000/store"
)

func (d *DB) AppendIncidentEvent(ctx context.Context, create *store.IncidentEvent) (*store.IncidentEvent, error) {
	fields := []string{"incident_id", "seq", "type", "payload", "prev_hash", "hash", "created_ts"}
	args := []any{create.IncidentID, create.Seq, create.Type, create.Payload, create.PrevHash, create.Hash, create.CreatedTs}

	stmt := `INSERT INTO incident_event (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		// The UNIQUE(incident_id, seq) constraint is the optimistic-concurrency
		// gate: losing the race for a sequence slot surfaces as a conflict.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, store.ErrSeqConflict
		}
		return nil, errors.Wrap(err, "failed to append incident event")
	}

	return create, nil
}

func (d *DB) ListIncidentEvents(ctx context.Context, find *store.FindIncidentEvent) ([]*store.IncidentEvent, error) {
	where, args := []string{"incident_id = ?"}, []any{find.IncidentID}

	if find.AfterSeq > 0 {
		where, args = append(where, "seq > ?"), append(args, find.AfterSeq)
	}

	query := `
		SELECT id, incident_id, seq, type, payload, prev_hash, hash, created_ts
		FROM incident_event
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY seq ASC`
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list incident events")
	}
	defer rows.Close()

	list := make([]*store.IncidentEvent, 0)
	for rows.Next() {
		event := &store.IncidentEvent{}
		if err := rows.Scan(
			&event.ID, &event.IncidentID, &event.Seq, &event.Type,
			&event.Payload, &event.PrevHash, &event.Hash, &event.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan incident event")
		}
		list = append(list, event)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate incident events")
	}

	return list, nil
}

func (d *DB) LatestIncidentEvent(ctx context.Context, incidentID int32) (*store.IncidentEvent, error) {
	event := &store.IncidentEvent{}
	err := d.db.QueryRowContext(ctx, `
		SELECT id, incident_id, seq, type, payload, prev_hash, hash, created_ts
		FROM incident_event
		WHERE incident_id = ?
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
		return nil, errors.Wrap(err, "failed to read latest incident event")
	}
	return event, nil
}

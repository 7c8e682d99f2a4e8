package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/daybreakhq/daybreak/store"
)

func (d *DB) GetPreferenceSnapshot(ctx context.Context, find *store.FindPreferenceSnapshot) (*store.PreferenceSnapshot, error) {
	stmt := `
		SELECT user_id, payload, created_ts, updated_ts
		FROM preference_snapshot
		WHERE user_id = ?`

	snapshot := &store.PreferenceSnapshot{}
	if err := d.db.QueryRowContext(ctx, stmt, find.UserID).Scan(
		&snapshot.UserID,
		&snapshot.Payload,
		&snapshot.CreatedTs,
		&snapshot.UpdatedTs,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get preference snapshot: %w", err)
	}

	return snapshot, nil
}

func (d *DB) UpsertPreferenceSnapshot(ctx context.Context, upsert *store.UpsertPreferenceSnapshot) (*store.PreferenceSnapshot, error) {
	stmt := `
		INSERT INTO preference_snapshot (user_id, payload, created_ts, updated_ts)
		VALUES (?, ?, strftime('%s', 'now'), strftime('%s', 'now'))
		ON CONFLICT (user_id) DO UPDATE SET
			payload = excluded.payload,
			updated_ts = strftime('%s', 'now')
		RETURNING user_id, payload, created_ts, updated_ts`

	snapshot := &store.PreferenceSnapshot{}
	if err := d.db.QueryRowContext(ctx, stmt, upsert.UserID, upsert.Payload).Scan(
		&snapshot.UserID,
		&snapshot.Payload,
		&snapshot.CreatedTs,
		&snapshot.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to upsert preference snapshot: %w", err)
	}

	return snapshot, nil
}

func (d *DB) DeletePreferenceSnapshot(ctx context.Context, delete *store.DeletePreferenceSnapshot) error {
	stmt := `DELETE FROM preference_snapshot WHERE user_id = ?`
	if _, err := d.db.ExecContext(ctx, stmt, delete.UserID); err != nil {
		return fmt.Errorf("failed to delete preference snapshot: %w", err)
	}
	return nil
}

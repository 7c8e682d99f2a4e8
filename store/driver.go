package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	Migrate(ctx context.Context) error

	// PreferenceSnapshot model related methods.
	GetPreferenceSnapshot(ctx context.Context, find *FindPreferenceSnapshot) (*PreferenceSnapshot, error)
	UpsertPreferenceSnapshot(ctx context.Context, upsert *UpsertPreferenceSnapshot) (*PreferenceSnapshot, error)
	DeletePreferenceSnapshot(ctx context.Context, delete *DeletePreferenceSnapshot) error
}

// PreferenceSnapshot is the persisted last-known-good preference record for
// a user, stored as a JSON payload. At most one row exists per user.
type PreferenceSnapshot struct {
	UserID    string
	Payload   string // JSON-serialized PreferenceRecord
	CreatedTs int64
	UpdatedTs int64
}

// FindPreferenceSnapshot specifies the conditions for finding a snapshot.
type FindPreferenceSnapshot struct {
	UserID string
}

// UpsertPreferenceSnapshot specifies the data for upserting a snapshot.
type UpsertPreferenceSnapshot struct {
	UserID  string
	Payload string // JSON-serialized PreferenceRecord
}

// DeletePreferenceSnapshot specifies the snapshot to delete.
type DeletePreferenceSnapshot struct {
	UserID string
}

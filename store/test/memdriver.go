// Package test provides an in-memory store driver for unit tests.
package test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/daybreakhq/daybreak/store"
)

// MemDriver is an in-memory implementation of store.Driver. It mirrors
// the snapshot-per-user semantics of the SQL drivers without requiring a
// database.
type MemDriver struct {
	mu        sync.Mutex
	snapshots map[string]*store.PreferenceSnapshot

	// FailReads and FailWrites force driver errors, for exercising the
	// store facade's degradation paths.
	FailReads  bool
	FailWrites bool
}

// NewMemDriver creates an empty in-memory driver.
func NewMemDriver() *MemDriver {
	return &MemDriver{snapshots: make(map[string]*store.PreferenceSnapshot)}
}

func (d *MemDriver) GetDB() *sql.DB { return nil }

func (d *MemDriver) Close() error { return nil }

func (d *MemDriver) Migrate(_ context.Context) error { return nil }

func (d *MemDriver) GetPreferenceSnapshot(_ context.Context, find *store.FindPreferenceSnapshot) (*store.PreferenceSnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailReads {
		return nil, errForced
	}
	snapshot, ok := d.snapshots[find.UserID]
	if !ok {
		return nil, nil
	}
	dup := *snapshot
	return &dup, nil
}

func (d *MemDriver) UpsertPreferenceSnapshot(_ context.Context, upsert *store.UpsertPreferenceSnapshot) (*store.PreferenceSnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailWrites {
		return nil, errForced
	}
	now := time.Now().Unix()
	snapshot, ok := d.snapshots[upsert.UserID]
	if !ok {
		snapshot = &store.PreferenceSnapshot{UserID: upsert.UserID, CreatedTs: now}
		d.snapshots[upsert.UserID] = snapshot
	}
	snapshot.Payload = upsert.Payload
	snapshot.UpdatedTs = now
	dup := *snapshot
	return &dup, nil
}

func (d *MemDriver) DeletePreferenceSnapshot(_ context.Context, del *store.DeletePreferenceSnapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailWrites {
		return errForced
	}
	delete(d.snapshots, del.UserID)
	return nil
}

// SeedPayload installs a raw payload, bypassing JSON encoding, so tests
// can plant corrupt snapshots.
func (d *MemDriver) SeedPayload(userID, payload string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now().Unix()
	d.snapshots[userID] = &store.PreferenceSnapshot{
		UserID:    userID,
		Payload:   payload,
		CreatedTs: now,
		UpdatedTs: now,
	}
}

// Has reports whether a snapshot row exists for the user.
func (d *MemDriver) Has(userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.snapshots[userID]
	return ok
}

var errForced = forcedError{}

type forcedError struct{}

func (forcedError) Error() string { return "forced driver failure" }

// Package preference is the single source of truth for a user's daily
// call preferences. Reads degrade gracefully to the local fallback
// snapshot; writes fail loudly so the update coordinator can roll back.
package preference

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/daybreakhq/daybreak/internal/errors"
	"github.com/daybreakhq/daybreak/internal/observability"
	"github.com/daybreakhq/daybreak/server/remote"
	"github.com/daybreakhq/daybreak/server/schema"
	"github.com/daybreakhq/daybreak/store"
)

// Repository owns the live preference cache and reconciles it with the
// remote endpoint and the persistent fallback snapshots.
type Repository struct {
	store  *store.Store
	remote *remote.Client
	logger *slog.Logger

	// group collapses concurrent remote reads per user into one flight.
	group singleflight.Group

	// mu guards gens. A generation bumps on every cache write; a read
	// completing against a stale generation discards its result so the
	// latest completed read or write wins.
	mu   sync.Mutex
	gens map[string]uint64
}

// NewRepository creates a preference repository.
func NewRepository(st *store.Store, client *remote.Client, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		store:  st,
		remote: client,
		logger: logger,
		gens:   make(map[string]uint64),
	}
}

// TestCallResult reports the outcome of a one-shot test call.
type TestCallResult struct {
	Success     bool
	ReferenceID string
	Err         error
}

// GetPreferences returns the user's current preference record. It never
// fails from the caller's perspective: a remote success refreshes the
// cache and the fallback snapshot; a remote failure degrades to the
// snapshot; an absent snapshot yields the documented default record,
// which is not persisted until the next successful write.
func (r *Repository) GetPreferences(ctx context.Context, userID string) *store.PreferenceRecord {
	reqCtx := observability.NewRequestContext(r.logger, "get_preferences", userID)
	gen := r.currentGen(userID)

	v, err, _ := r.group.Do(userID, func() (any, error) {
		wire, fetchErr := r.remote.FetchPreferences(ctx, userID)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return wire, nil
	})
	if err != nil {
		return r.degrade(ctx, reqCtx, userID, err)
	}

	// A nil wire record means the remote has no row yet: create the
	// record lazily from defaults without an explicit create step.
	wire, _ := v.(*schema.WireRecord)
	record := schema.ToDomain(userID, wire)
	if wire != nil && wire.UpdatedAt == nil {
		record.UpdatedAt = time.Now().UTC()
	}

	// A payload that parses but violates the domain invariants is as
	// unusable as one that does not parse: re-code it as a schema failure
	// and degrade, rather than caching and snapshotting an invalid record.
	if validateErr := record.Validate(); validateErr != nil {
		return r.degrade(ctx, reqCtx, userID,
			errors.Wrap(validateErr, errors.ErrCodeSchema, "remote payload violates preference invariants"))
	}

	if r.installRead(ctx, userID, gen, record) {
		if writeErr := r.store.WriteSnapshot(ctx, userID, record); writeErr != nil {
			reqCtx.Warn("failed to persist fallback snapshot", slog.String("error", writeErr.Error()))
		}
	}

	reqCtx.Info("preferences fetched",
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
	return record
}

// degrade resolves a failed read: recoverable failures fall back to the
// persisted snapshot, everything else (and an absent snapshot) yields the
// documented default record.
func (r *Repository) degrade(ctx context.Context, reqCtx *observability.RequestContext, userID string, err error) *store.PreferenceRecord {
	reqCtx.Warn("remote read failed, degrading to fallback",
		slog.String(observability.LogFieldErrorCode, string(errors.GetCodeFromError(err, errors.ErrCodeTransport))),
		slog.String("error", err.Error()))
	if errors.IsRecoverable(err) {
		if snapshot, ok := r.store.ReadSnapshot(ctx, userID); ok {
			return snapshot
		}
	}
	reqCtx.Debug("no snapshot available, returning default record")
	return store.DefaultPreferenceRecord(userID)
}

// UpdatePreferences validates and pushes a delta to the remote endpoint.
// On success the confirmed fields are merged into the cached record and
// the snapshot is refreshed. On failure a typed error is returned and
// nothing is persisted; the caller decides how to roll back.
func (r *Repository) UpdatePreferences(ctx context.Context, userID string, delta *store.PreferenceDelta) (*store.PreferenceRecord, error) {
	reqCtx := observability.NewRequestContext(r.logger, "update_preferences", userID)

	if err := delta.Validate(); err != nil {
		return nil, err
	}

	patch := schema.ToWire(delta)
	confirmed, err := r.remote.UpdatePreferences(ctx, userID, patch)
	if err != nil {
		reqCtx.Error("remote update failed", err,
			slog.String(observability.LogFieldErrorCode, string(errors.GetCodeFromError(err, errors.ErrCodeTransport))))
		return nil, err
	}

	// Merge the confirmed fields over the best record we have so a
	// partial confirmation cannot clobber unrelated fields.
	base, ok := r.store.CachedPreferences(ctx, userID)
	if !ok {
		if base, ok = r.store.ReadSnapshot(ctx, userID); !ok {
			base = store.DefaultPreferenceRecord(userID)
		}
	}
	record := base.Clone()
	schema.MergeWire(record, confirmed)
	record.UserID = userID
	if confirmed == nil || confirmed.UpdatedAt == nil {
		record.UpdatedAt = time.Now().UTC()
	}

	r.OverwriteCached(ctx, userID, record)
	if writeErr := r.store.WriteSnapshot(ctx, userID, record); writeErr != nil {
		reqCtx.Warn("failed to persist fallback snapshot", slog.String("error", writeErr.Error()))
	}

	reqCtx.Info("preferences updated",
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
	return record, nil
}

// TestCall triggers a one-shot test call against the telephony
// collaborator. It always resolves: failures are reported in the result,
// never raised. The call is not cached and not retried.
func (r *Repository) TestCall(ctx context.Context, userID string) TestCallResult {
	reqCtx := observability.NewRequestContext(r.logger, "test_call", userID)

	referenceID, err := r.remote.TriggerTestCall(ctx, userID)
	if err != nil {
		reqCtx.Warn("test call failed", slog.String("error", err.Error()))
		return TestCallResult{Success: false, Err: err}
	}

	reqCtx.Info("test call placed", slog.String("call_reference_id", referenceID))
	return TestCallResult{Success: true, ReferenceID: referenceID}
}

// Cached returns the live cached record without touching the network.
func (r *Repository) Cached(ctx context.Context, userID string) (*store.PreferenceRecord, bool) {
	return r.store.CachedPreferences(ctx, userID)
}

// OverwriteCached replaces the cached record and bumps the generation so
// any read still in flight discards its result on arrival.
func (r *Repository) OverwriteCached(ctx context.Context, userID string, record *store.PreferenceRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gens[userID]++
	r.store.SetCachedPreferences(ctx, userID, record)
}

// currentGen returns the cache generation for a user.
func (r *Repository) currentGen(userID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gens[userID]
}

// installRead installs a completed read into the cache only if no newer
// write or read landed since the read began. Reports whether the record
// was installed.
func (r *Repository) installRead(ctx context.Context, userID string, gen uint64, record *store.PreferenceRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gens[userID] != gen {
		return false
	}
	r.gens[userID]++
	r.store.SetCachedPreferences(ctx, userID, record)
	return true
}

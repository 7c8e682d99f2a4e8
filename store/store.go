package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/daybreakhq/daybreak/internal/errors"
	"github.com/daybreakhq/daybreak/internal/profile"
	"github.com/daybreakhq/daybreak/store/cache"
)

// Store provides access to the live preference cache and the persistent
// fallback snapshots. The live cache holds the record the UI currently
// sees; the snapshot is the last-known-good copy used when the remote
// endpoint is unreachable.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Cache settings
	cacheConfig cache.Config

	// Caches
	preferenceCache *cache.Cache // live record per user, keyed by userID
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	// Default cache settings
	cacheConfig := cache.Config{
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		MaxItems:        1000,
		OnEviction:      nil,
	}

	store := &Store{
		driver:          driver,
		profile:         profile,
		cacheConfig:     cacheConfig,
		preferenceCache: cache.New(cacheConfig),
	}

	return store
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	s.preferenceCache.Close()
	return s.driver.Close()
}

// preferenceCacheKey is the deterministic cache/snapshot key for a user.
func preferenceCacheKey(userID string) string {
	return "preference:" + userID
}

// CachedPreferences returns the live cached record for a user, if any.
// The returned record is a copy; callers may mutate it freely.
func (s *Store) CachedPreferences(ctx context.Context, userID string) (*PreferenceRecord, bool) {
	v, ok := s.preferenceCache.Get(ctx, preferenceCacheKey(userID))
	if !ok {
		return nil, false
	}
	record, ok := v.(*PreferenceRecord)
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

// SetCachedPreferences replaces the live cached record for a user.
func (s *Store) SetCachedPreferences(ctx context.Context, userID string, record *PreferenceRecord) {
	s.preferenceCache.Set(ctx, preferenceCacheKey(userID), record.Clone())
}

// DropCachedPreferences removes the live cached record for a user.
func (s *Store) DropCachedPreferences(ctx context.Context, userID string) {
	s.preferenceCache.Delete(ctx, preferenceCacheKey(userID))
}

// ReadSnapshot loads the persisted fallback record for a user. A corrupt
// payload is treated as absent and the row is cleared; this method never
// returns an error to the caller.
func (s *Store) ReadSnapshot(ctx context.Context, userID string) (*PreferenceRecord, bool) {
	snapshot, err := s.driver.GetPreferenceSnapshot(ctx, &FindPreferenceSnapshot{UserID: userID})
	if err != nil {
		slog.Warn("failed to read preference snapshot",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return nil, false
	}
	if snapshot == nil {
		return nil, false
	}

	record := &PreferenceRecord{}
	if err := json.Unmarshal([]byte(snapshot.Payload), record); err != nil {
		corrupt := errors.StoreCorruption("snapshot payload is not a preference record", err)
		slog.Warn("clearing corrupt preference snapshot",
			slog.String("user_id", userID),
			slog.String("error_code", string(corrupt.GetCode())),
			slog.String("error", corrupt.Error()))
		_ = s.ClearSnapshot(ctx, userID)
		return nil, false
	}
	if record.UserID == "" {
		record.UserID = userID
	}
	return record, true
}

// WriteSnapshot fully overwrites the persisted fallback record for a user.
// Merging happens above this layer, in the preference repository.
func (s *Store) WriteSnapshot(ctx context.Context, userID string, record *PreferenceRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = s.driver.UpsertPreferenceSnapshot(ctx, &UpsertPreferenceSnapshot{
		UserID:  userID,
		Payload: string(payload),
	})
	return err
}

// ClearSnapshot removes the persisted fallback record for a user.
func (s *Store) ClearSnapshot(ctx context.Context, userID string) error {
	return s.driver.DeletePreferenceSnapshot(ctx, &DeletePreferenceSnapshot{UserID: userID})
}

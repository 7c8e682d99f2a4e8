package preference

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/daybreakhq/daybreak/internal/observability"
	"github.com/daybreakhq/daybreak/store"
)

// UpdateState is the lifecycle of a mutation through the coordinator.
type UpdateState string

const (
	// StateIdle means no mutation is in flight for the user.
	StateIdle UpdateState = "idle"
	// StateOptimisticApplied means the delta is visible in the cache but
	// not yet confirmed by the remote.
	StateOptimisticApplied UpdateState = "optimistic-applied"
	// StateSettledSuccess means the remote confirmed the mutation.
	StateSettledSuccess UpdateState = "settled-success"
	// StateSettledRollback means the remote rejected the mutation and the
	// cache was restored to its pre-mutation snapshot.
	StateSettledRollback UpdateState = "settled-rollback"
)

// Coordinator wraps repository mutations with optimistic application,
// snapshot capture, and rollback on failure. At most one mutation per
// user is optimistically applied at a time; a second mutation waits for
// settlement before capturing its own snapshot.
type Coordinator struct {
	repo   *Repository
	logger *slog.Logger

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
	states    map[string]UpdateState

	refetchTimeout time.Duration
	refetchWG      sync.WaitGroup
}

// NewCoordinator creates an update coordinator over the repository.
func NewCoordinator(repo *Repository, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		repo:           repo,
		logger:         logger,
		userLocks:      make(map[string]*sync.Mutex),
		states:         make(map[string]UpdateState),
		refetchTimeout: 10 * time.Second,
	}
}

// Mutate applies a delta optimistically, pushes it to the remote, and on
// failure restores the pre-mutation cache byte-for-byte. Either way a
// reconciling refetch is scheduled: after a failed write the remote state
// is ambiguous and only a fresh read resolves it.
func (c *Coordinator) Mutate(ctx context.Context, userID string, delta *store.PreferenceDelta) (*store.PreferenceRecord, error) {
	// Reject invalid deltas before they flash in the UI.
	if err := delta.Validate(); err != nil {
		return nil, err
	}

	lock := c.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	reqCtx := observability.NewRequestContext(c.logger, "mutate_preferences", userID)

	// Snapshot the currently-cached record; fall through the read path if
	// the cache is cold so there is always something to roll back to.
	snapshot, ok := c.repo.Cached(ctx, userID)
	if !ok {
		snapshot = c.repo.GetPreferences(ctx, userID)
	}

	optimistic := snapshot.Clone()
	optimistic.Apply(delta)
	c.repo.OverwriteCached(ctx, userID, optimistic)
	c.setState(userID, StateOptimisticApplied)

	record, err := c.repo.UpdatePreferences(ctx, userID, delta)
	if err != nil {
		c.repo.OverwriteCached(ctx, userID, snapshot)
		c.setState(userID, StateSettledRollback)
		reqCtx.Warn("mutation rolled back", slog.String("error", err.Error()))
		c.scheduleRefetch(userID)
		return nil, err
	}

	c.setState(userID, StateSettledSuccess)
	reqCtx.Info("mutation settled",
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
	c.scheduleRefetch(userID)
	return record, nil
}

// TestCall passes through to the repository. No retry, no caching;
// debouncing a second test call while one is outstanding is the caller's
// concern.
func (c *Coordinator) TestCall(ctx context.Context, userID string) TestCallResult {
	return c.repo.TestCall(ctx, userID)
}

// State returns the settlement state of the user's latest mutation.
func (c *Coordinator) State(userID string) UpdateState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state, ok := c.states[userID]; ok {
		return state
	}
	return StateIdle
}

// Wait blocks until all scheduled reconciling refetches have finished.
func (c *Coordinator) Wait() {
	c.refetchWG.Wait()
}

// scheduleRefetch kicks off an asynchronous read to reconcile the cache
// with authoritative server state, including server-computed fields.
func (c *Coordinator) scheduleRefetch(userID string) {
	c.refetchWG.Add(1)
	go func() {
		defer c.refetchWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.refetchTimeout)
		defer cancel()
		c.repo.GetPreferences(ctx, userID)
	}()
}

func (c *Coordinator) userLock(userID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		c.userLocks[userID] = lock
	}
	return lock
}

func (c *Coordinator) setState(userID string, state UpdateState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[userID] = state
}

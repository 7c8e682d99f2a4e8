package preference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybreakhq/daybreak/internal/errors"
	"github.com/daybreakhq/daybreak/internal/profile"
	"github.com/daybreakhq/daybreak/server/remote"
	"github.com/daybreakhq/daybreak/store"
	storetest "github.com/daybreakhq/daybreak/store/test"
)

// fixture bundles a repository against an httptest remote and an
// in-memory snapshot driver.
type fixture struct {
	repo   *Repository
	store  *store.Store
	driver *storetest.MemDriver
	server *httptest.Server
}

func newFixture(t *testing.T, handler http.Handler) *fixture {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	driver := storetest.NewMemDriver()
	st := store.New(driver, &profile.Profile{Mode: "dev"})
	t.Cleanup(func() { _ = st.Close() })

	client := remote.NewClient(remote.ClientOptions{
		BaseURL:   server.URL,
		BaseDelay: time.Millisecond,
		MaxDelay:  5 * time.Millisecond,
	})
	return &fixture{
		repo:   NewRepository(st, client, nil),
		store:  st,
		driver: driver,
		server: server,
	}
}

func preferencesHandler(payload string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(payload))
	})
}

func failingHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
}

func TestGetPreferences_TranslatesAndCaches(t *testing.T) {
	f := newFixture(t, preferencesHandler(`{"success":true,"preferences":{"phone_number":"+15551234567","call_time":"07:30","is_active":false}}`))
	ctx := context.Background()

	record := f.repo.GetPreferences(ctx, "user-1")

	assert.Equal(t, "+15551234567", record.PhoneNumber)
	assert.Equal(t, "07:30", record.Time)
	assert.False(t, record.Enabled)

	// The successful fetch refreshed both the live cache and the
	// fallback snapshot.
	cached, ok := f.repo.Cached(ctx, "user-1")
	require.True(t, ok)
	assert.Equal(t, record.PhoneNumber, cached.PhoneNumber)
	assert.True(t, f.driver.Has("user-1"))
}

func TestGetPreferences_IdempotentReads(t *testing.T) {
	f := newFixture(t, preferencesHandler(`{"success":true,"preferences":{"call_time":"06:15","voice":"sage"}}`))
	ctx := context.Background()

	first := f.repo.GetPreferences(ctx, "user-1")
	second := f.repo.GetPreferences(ctx, "user-1")

	// CreatedAt/UpdatedAt are client-stamped here since the wire omits
	// them; compare the user-controlled fields.
	first.CreatedAt, second.CreatedAt = time.Time{}, time.Time{}
	first.UpdatedAt, second.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, first, second)
}

func TestGetPreferences_FallsBackToSnapshot(t *testing.T) {
	f := newFixture(t, failingHandler())
	ctx := context.Background()

	snapshot := store.DefaultPreferenceRecord("user-1")
	snapshot.Time = "17:45"
	snapshot.PhoneNumber = "+15550001111"
	require.NoError(t, f.store.WriteSnapshot(ctx, "user-1", snapshot))

	record := f.repo.GetPreferences(ctx, "user-1")

	assert.Equal(t, "17:45", record.Time)
	assert.Equal(t, "+15550001111", record.PhoneNumber)
}

func TestGetPreferences_DefaultWhenNoSnapshot(t *testing.T) {
	// Scenario: no snapshot and the remote read times out; the caller
	// still gets the documented default record.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"success":true,"preferences":{}}`))
	}))
	t.Cleanup(server.Close)

	driver := storetest.NewMemDriver()
	st := store.New(driver, &profile.Profile{Mode: "dev"})
	t.Cleanup(func() { _ = st.Close() })
	client := remote.NewClient(remote.ClientOptions{
		BaseURL:    server.URL,
		HTTPClient: &http.Client{Timeout: 20 * time.Millisecond},
	})
	repo := NewRepository(st, client, nil)

	record := repo.GetPreferences(context.Background(), "user-1")

	assert.False(t, record.Enabled)
	assert.Equal(t, "09:00", record.Time)
	assert.Equal(t, store.DefaultVoice(), record.Voice)
	assert.Equal(t, store.DefaultWeekdays(), record.Weekdays)

	// The default is not persisted until the next successful write.
	assert.False(t, driver.Has("user-1"))
}

func TestGetPreferences_InvalidRemotePayloadDegrades(t *testing.T) {
	// A payload that parses but violates the domain invariants must not be
	// returned, cached, or persisted as last-known-good.
	invalid := `{"success":true,"preferences":{"call_time":"99:99","voice":"bogus","weekdays":[true,false,true]}}`

	t.Run("falls back to snapshot", func(t *testing.T) {
		f := newFixture(t, preferencesHandler(invalid))
		ctx := context.Background()

		snapshot := store.DefaultPreferenceRecord("user-1")
		snapshot.Time = "17:45"
		require.NoError(t, f.store.WriteSnapshot(ctx, "user-1", snapshot))

		record := f.repo.GetPreferences(ctx, "user-1")

		assert.Equal(t, "17:45", record.Time)
		assert.NoError(t, record.Validate())
	})

	t.Run("defaults when no snapshot exists", func(t *testing.T) {
		f := newFixture(t, preferencesHandler(invalid))
		ctx := context.Background()

		record := f.repo.GetPreferences(ctx, "user-1")

		assert.NoError(t, record.Validate())
		assert.Equal(t, store.DefaultCallTime, record.Time)
		assert.Equal(t, store.DefaultWeekdays(), record.Weekdays)
		assert.Equal(t, store.DefaultVoice(), record.Voice)

		// The invalid payload reached neither the live cache nor the
		// fallback snapshot.
		_, ok := f.repo.Cached(ctx, "user-1")
		assert.False(t, ok)
		assert.False(t, f.driver.Has("user-1"))
	})
}

func TestGetPreferences_LazyCreateOnNotFound(t *testing.T) {
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	record := f.repo.GetPreferences(context.Background(), "user-1")

	assert.Equal(t, "user-1", record.UserID)
	assert.NoError(t, record.Validate())
	// Lazily-created defaults are cached and snapshotted like any
	// successful read.
	assert.True(t, f.driver.Has("user-1"))
}

func TestUpdatePreferences_MergesConfirmedFields(t *testing.T) {
	var sent map[string]any
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
			_, _ = w.Write([]byte(`{"success":true,"preferences":{"is_active":true,"updated_at":"2026-02-11T17:30:00Z"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"preferences":{"call_time":"07:30","phone_number":"+15551234567"}}`))
	}))
	ctx := context.Background()

	// Prime the cache through the read path.
	f.repo.GetPreferences(ctx, "user-1")

	enabled := true
	record, err := f.repo.UpdatePreferences(ctx, "user-1", &store.PreferenceDelta{Enabled: &enabled})
	require.NoError(t, err)

	// Only the delta went over the wire.
	assert.Equal(t, map[string]any{"is_active": true}, sent)

	// Confirmed fields merged over the cached base without clobbering
	// unrelated fields.
	assert.True(t, record.Enabled)
	assert.Equal(t, "07:30", record.Time)
	assert.Equal(t, "+15551234567", record.PhoneNumber)

	expected, _ := time.Parse(time.RFC3339, "2026-02-11T17:30:00Z")
	assert.True(t, record.UpdatedAt.Equal(expected))

	// The snapshot now reflects the merged record.
	snapshot, ok := f.store.ReadSnapshot(ctx, "user-1")
	require.True(t, ok)
	assert.True(t, snapshot.Enabled)
	assert.Equal(t, "07:30", snapshot.Time)
}

func TestUpdatePreferences_ValidationBeforeNetwork(t *testing.T) {
	var calls atomic.Int32
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"success":true,"preferences":{}}`))
	}))

	badTime := "7:30"
	_, err := f.repo.UpdatePreferences(context.Background(), "user-1", &store.PreferenceDelta{Time: &badTime})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	assert.Equal(t, int32(0), calls.Load())
}

func TestUpdatePreferences_FailsLoudly(t *testing.T) {
	f := newFixture(t, failingHandler())
	ctx := context.Background()

	// A snapshot exists, but the write path must not fall back to it.
	require.NoError(t, f.store.WriteSnapshot(ctx, "user-1", store.DefaultPreferenceRecord("user-1")))

	enabled := true
	_, err := f.repo.UpdatePreferences(ctx, "user-1", &store.PreferenceDelta{Enabled: &enabled})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTransport))
}

func TestTestCall_AlwaysResolves(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t, preferencesHandler(`{"success":true,"callReferenceId":"CA42"}`))

		result := f.repo.TestCall(context.Background(), "user-1")

		assert.True(t, result.Success)
		assert.Equal(t, "CA42", result.ReferenceID)
		assert.NoError(t, result.Err)
	})

	t.Run("failure reported, not raised", func(t *testing.T) {
		f := newFixture(t, failingHandler())

		result := f.repo.TestCall(context.Background(), "user-1")

		assert.False(t, result.Success)
		assert.Error(t, result.Err)
		assert.Empty(t, result.ReferenceID)
	})
}

func TestInstallRead_DiscardsStaleReads(t *testing.T) {
	f := newFixture(t, preferencesHandler(`{"success":true,"preferences":{}}`))
	ctx := context.Background()

	// A read begins at generation g.
	gen := f.repo.currentGen("user-1")
	stale := store.DefaultPreferenceRecord("user-1")
	stale.Time = "05:00"

	// A write lands before the read completes.
	newer := store.DefaultPreferenceRecord("user-1")
	newer.Time = "21:00"
	f.repo.OverwriteCached(ctx, "user-1", newer)

	// The read's result arrives late and is discarded.
	assert.False(t, f.repo.installRead(ctx, "user-1", gen, stale))

	cached, ok := f.repo.Cached(ctx, "user-1")
	require.True(t, ok)
	assert.Equal(t, "21:00", cached.Time)
}

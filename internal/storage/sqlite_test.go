package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SyntaxSidekick/contactgate/internal/model"
	"github.com/SyntaxSidekick/contactgate/internal/storage"
)

func newTestStore(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSessionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	sess := &model.Session{
		ID:         "sess-1",
		CSRFToken:  "aabbcc",
		CaptchaSum: 7,
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Hour),
	}
	require.NoError(t, store.SaveSession(ctx, sess))

	got, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "aabbcc", got.CSRFToken)
	assert.Equal(t, 7, got.CaptchaSum)
}

func TestSaveSession_UpsertReplacesChallenge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	sess := &model.Session{ID: "sess-1", CSRFToken: "first", CaptchaSum: 5, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, store.SaveSession(ctx, sess))
	sess.CSRFToken = "second"
	sess.CaptchaSum = 9
	require.NoError(t, store.SaveSession(ctx, sess))

	got, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.CSRFToken)
	assert.Equal(t, 9, got.CaptchaSum)
}

func TestGetSession_MissingAndExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetSession(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)

	now := time.Now().UTC()
	expired := &model.Session{ID: "old", CSRFToken: "x", CaptchaSum: 3, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, store.SaveSession(ctx, expired))
	_, err = store.GetSession(ctx, "old")
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestDeleteExpiredSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.SaveSession(ctx, &model.Session{ID: "live", CSRFToken: "a", CaptchaSum: 2, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.SaveSession(ctx, &model.Session{ID: "dead", CSRFToken: "b", CaptchaSum: 2, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}))

	deleted, err := store.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.GetSession(ctx, "live")
	assert.NoError(t, err)
}

func TestIncrementRateLimit_FixedWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	window := time.Hour
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Five sequential increments within the window count up.
	for i := 1; i <= 5; i++ {
		count, err := store.IncrementRateLimit(ctx, "key-1", now, window)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	// Sixth is over a max of 5.
	count, err := store.IncrementRateLimit(ctx, "key-1", now, window)
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	// Advancing past the window resets the counter to 1.
	later := now.Add(window + time.Second)
	count, err = store.IncrementRateLimit(ctx, "key-1", later, window)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	entry, err := store.GetRateLimitEntry(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Count)
	assert.True(t, entry.WindowStart.Equal(later), "window should restart at the reset time")
}

func TestIncrementRateLimit_IndependentKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	count, err := store.IncrementRateLimit(ctx, "a", now, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.IncrementRateLimit(ctx, "b", now, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRateLimitEntryListAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := store.IncrementRateLimit(ctx, "a", now, time.Hour)
	require.NoError(t, err)
	_, err = store.IncrementRateLimit(ctx, "b", now, time.Hour)
	require.NoError(t, err)

	entries, err := store.ListRateLimitEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, store.DeleteRateLimitEntry(ctx, "a"))
	_, err = store.GetRateLimitEntry(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrRateLimitEntryNotFound)

	err = store.DeleteRateLimitEntry(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrRateLimitEntryNotFound)
}

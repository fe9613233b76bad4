package devicecache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/focusd/go/internal/models"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store := NewSQLiteStore(filepath.Join(t.TempDir(), "focusd.db"))
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	start := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	saved := State{
		UserID:           "user-1",
		Mode:             models.TimerModeFocus,
		RemainingSeconds: 900,
		Active:           true,
		SessionStart:     &start,
		LastPersisted:    time.Date(2025, 6, 1, 9, 45, 0, 0, time.UTC),
		FocusSeconds:     1500,
		BreakSeconds:     300,
	}
	require.NoError(t, store.Save(ctx, saved))

	loaded, err := store.Load(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", loaded.UserID)
	assert.Equal(t, models.TimerModeFocus, loaded.Mode)
	assert.Equal(t, 900, loaded.RemainingSeconds)
	assert.True(t, loaded.Active)
	require.NotNil(t, loaded.SessionStart)
	assert.True(t, start.Equal(*loaded.SessionStart))
	assert.True(t, saved.LastPersisted.Equal(loaded.LastPersisted))
	assert.Equal(t, 1500, loaded.FocusSeconds)
	assert.Equal(t, 300, loaded.BreakSeconds)
}

func TestSQLiteStoreUpsertOverwrites(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := State{
		UserID:           "user-1",
		Mode:             models.TimerModeFocus,
		RemainingSeconds: 1500,
		Active:           true,
		LastPersisted:    time.Now().UTC(),
		FocusSeconds:     1500,
		BreakSeconds:     300,
	}
	require.NoError(t, store.Save(ctx, first))

	second := first
	second.Mode = models.TimerModeBreak
	second.RemainingSeconds = 300
	second.Active = false
	require.NoError(t, store.Save(ctx, second))

	loaded, err := store.Load(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.TimerModeBreak, loaded.Mode)
	assert.Equal(t, 300, loaded.RemainingSeconds)
	assert.False(t, loaded.Active)
	assert.Nil(t, loaded.SessionStart)
}

func TestSQLiteStoreLoadMissing(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Load(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestSQLiteStoreClearOnSignOut(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, State{
		UserID:           "user-1",
		Mode:             models.TimerModeFocus,
		RemainingSeconds: 1200,
		LastPersisted:    time.Now().UTC(),
		FocusSeconds:     1500,
		BreakSeconds:     300,
	}))

	require.NoError(t, store.Clear(ctx, "user-1"))

	_, err := store.Load(ctx, "user-1")
	assert.ErrorIs(t, err, ErrNotCached)
}

package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	assert.Error(t, err)
}

func TestStore_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	base := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	for i, code := range []string{"AAAA", "BBBB", "CCCC"} {
		require.NoError(t, store.Record(ctx, Match{
			SessionID:     "session-" + code,
			Code:          code,
			Host:          "host-" + code,
			PlayersJoined: i + 1,
			CreatedAt:     base,
			EndedAt:       base.Add(time.Duration(i) * time.Minute),
		}))
	}

	matches, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "CCCC", matches[0].Code)
	assert.Equal(t, "BBBB", matches[1].Code)
	assert.Equal(t, "AAAA", matches[2].Code)
	assert.Equal(t, 3, matches[0].PlayersJoined)
	assert.Equal(t, "host-CCCC", matches[0].Host)
	assert.True(t, matches[0].CreatedAt.Equal(base))
	assert.True(t, matches[0].EndedAt.Equal(base.Add(2*time.Minute)))

	limited, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "CCCC", limited[0].Code)
}

func TestStore_RecordDuplicateSession(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	m := Match{SessionID: "dup", Code: "DUPE", Host: "Ann", PlayersJoined: 1}
	require.NoError(t, store.Record(ctx, m))
	m.Host = "Bob"
	require.NoError(t, store.Record(ctx, m))

	matches, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Ann", matches[0].Host)
	assert.False(t, matches[0].EndedAt.IsZero())
}

func TestStore_RecordValidation(t *testing.T) {
	store := openTestStore(t)
	assert.Error(t, store.Record(context.Background(), Match{Code: "NOID"}))
}

func TestStore_Nil(t *testing.T) {
	var store *Store
	assert.True(t, errors.Is(store.Record(context.Background(), Match{SessionID: "x"}), ErrNotConfigured))
	_, err := store.Recent(context.Background(), 5)
	assert.True(t, errors.Is(err, ErrNotConfigured))
	assert.NoError(t, store.Close())
}

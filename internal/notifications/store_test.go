package notifications

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "notifications.json"), nil)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return store, &now
}

func TestAddListNewestFirst(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.Add(ctx, Notification{Title: "first"})
	require.NoError(t, err)
	second, err := store.Add(ctx, Notification{Title: "second", Type: "config"})
	require.NoError(t, err)

	items, unread, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID)
	assert.Equal(t, first.ID, items[1].ID)
	assert.Equal(t, "info", items[1].Type)
	assert.Equal(t, 2, unread)
}

func TestCapAtMaxEntries(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < MaxEntries+5; i++ {
		_, err := store.Add(ctx, Notification{Title: fmt.Sprintf("n%d", i)})
		require.NoError(t, err)
	}
	items, _, err := store.List(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, items, MaxEntries)
	assert.Equal(t, fmt.Sprintf("n%d", MaxEntries+4), items[0].Title)
}

func TestMarkReadAndDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	a, err := store.Add(ctx, Notification{Title: "a"})
	require.NoError(t, err)
	_, err = store.Add(ctx, Notification{Title: "b"})
	require.NoError(t, err)

	require.NoError(t, store.MarkRead(ctx, a.ID))
	_, unread, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	changed, err := store.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	require.NoError(t, store.Delete(ctx, a.ID))
	assert.ErrorIs(t, store.Delete(ctx, a.ID), ErrNotFound)
	assert.ErrorIs(t, store.MarkRead(ctx, "missing"), ErrNotFound)
}

func TestNotifyOnNilStore(t *testing.T) {
	var store *Store
	store.Notify(context.Background(), "config", "t", "m")
}

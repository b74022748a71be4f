package workflows

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grixate/missioncontrol/internal/apperr"
)

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "data", "workflows.json"), nil)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	return store, &now
}

func TestCreateAssignsUniqueIDsAndDefaults(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, Input{Name: "deploy", Steps: []Step{{Label: "build", Dependencies: []string{"ghost"}}}})
	require.NoError(t, err)
	b, err := store.Create(ctx, Input{Name: "deploy"})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.CreatedAt, a.UpdatedAt)
	require.Len(t, a.Steps, 1)
	assert.NotEmpty(t, a.Steps[0].ID)
	assert.Equal(t, Sequential, a.Steps[0].Execution)
	assert.Equal(t, []string{"ghost"}, a.Steps[0].Dependencies)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCreateValidates(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Create(context.Background(), Input{Name: " "})
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
	_, err = store.Create(context.Background(), Input{Name: "x", Steps: []Step{{Execution: "async"}}})
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
}

func TestUpdateKeepsCreatedAt(t *testing.T) {
	store, now := newTestStore(t)
	ctx := context.Background()
	wf, err := store.Create(ctx, Input{Name: "a"})
	require.NoError(t, err)

	*now = now.Add(time.Hour)
	updated, err := store.Update(ctx, wf.ID, Input{Name: "b", Description: "d"})
	require.NoError(t, err)
	assert.Equal(t, wf.ID, updated.ID)
	assert.Equal(t, wf.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(wf.UpdatedAt))
	assert.Equal(t, "b", updated.Name)

	_, err = store.Update(ctx, "missing", Input{Name: "b"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteMissingLeavesFileUntouched(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	_, err := store.Create(ctx, Input{Name: "a"})
	require.NoError(t, err)
	before, err := os.ReadFile(store.path)
	require.NoError(t, err)

	deleted, err := store.Delete(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, deleted)
	after, err := os.ReadFile(store.path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDeleteRemovesWorkflow(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	wf, err := store.Create(ctx, Input{Name: "a"})
	require.NoError(t, err)

	deleted, err := store.Delete(ctx, wf.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = store.Get(ctx, wf.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunIsNotImplemented(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	wf, err := store.Create(ctx, Input{Name: "a"})
	require.NoError(t, err)

	err = store.Run(ctx, wf.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotImplemented))
	assert.ErrorIs(t, store.Run(ctx, "missing"), apperr.ErrNotImplemented)
}

func TestCorruptRecordsAreSkipped(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.path), 0o755))
	require.NoError(t, os.WriteFile(store.path, []byte(`[{"id":"ok","name":"fine","steps":[]}, {"id": 5}, "junk"]`), 0o644))

	list, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ok", list[0].ID)
}

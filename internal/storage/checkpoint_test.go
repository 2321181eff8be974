package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/conciliador/internal/model"
)

func TestCheckpointCreateListRestore(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.SaveReport(ctx, testReport()))

	cm, err := store.NewCheckpointManager()
	require.NoError(t, err)

	info, err := cm.Create(ctx, "before-close", "manual")
	require.NoError(t, err)
	assert.Equal(t, "before-close", info.ID)
	assert.Equal(t, 1, info.Reports)
	assert.Equal(t, 2, info.Invoices)
	assert.Equal(t, ExpectedSchemaVersion, info.SchemaVersion)
	assert.False(t, info.IsAuto)

	_, err = cm.Create(ctx, "before-close", "again")
	assert.True(t, errors.Is(err, ErrCheckpointExists))

	list, err := cm.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// Mutate after the checkpoint, then restore.
	require.NoError(t, store.SaveReport(ctx, testReportFor("2024-04")))
	require.NoError(t, cm.Restore(ctx, "before-close"))

	reopened, err := NewSQLiteStorage(store.Path())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	periods, err := reopened.ListPeriods(ctx)
	require.NoError(t, err)
	assert.Len(t, periods, 1)
}

func TestCheckpointInvalidIDs(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	cm, err := store.NewCheckpointManager()
	require.NoError(t, err)

	for _, id := range []string{"../escape", "a/b", `a\b`} {
		_, err := cm.Create(ctx, id, "")
		assert.ErrorIs(t, err, ErrInvalidCheckpointID, id)
		assert.ErrorIs(t, cm.Restore(ctx, id), ErrInvalidCheckpointID, id)
		assert.ErrorIs(t, cm.Delete(ctx, id), ErrInvalidCheckpointID, id)
	}

	assert.ErrorIs(t, cm.Restore(ctx, "missing"), ErrCheckpointNotFound)
	assert.ErrorIs(t, cm.Delete(ctx, "missing"), ErrCheckpointNotFound)
}

func TestAutoCheckpointPrunesOldest(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	cm, err := store.NewCheckpointManager()
	require.NoError(t, err)

	// Auto tags carry a per-second timestamp, so seed distinct ids directly.
	for i := 0; i < maxAutoCheckpoints+2; i++ {
		_, err := cm.create(ctx, "auto-close-"+string(rune('a'+i)), "", true)
		require.NoError(t, err)
	}
	require.NoError(t, cm.pruneAuto(ctx))

	list, err := cm.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, maxAutoCheckpoints)
}

func TestCheckpointDelete(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	cm, err := store.NewCheckpointManager()
	require.NoError(t, err)

	_, err = cm.Create(ctx, "tmp", "")
	require.NoError(t, err)
	require.NoError(t, cm.Delete(ctx, "tmp"))

	_, statErr := os.Stat(filepath.Join(filepath.Dir(store.Path()), "checkpoints", "tmp.db"))
	assert.True(t, os.IsNotExist(statErr))
}

func testReportFor(period string) *model.MonthlyReport {
	r := testReport()
	r.Period = model.PeriodID(period)
	return r
}

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMigrator_PostgresLifecycle(t *testing.T) {
	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	require.NoError(t, store.MigrateDown(ctx, 100))
	state, err := store.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, MigrationState{Current: 0, Applied: 0, Pending: []int64{1, 2}}, state)
	require.False(t, state.UpToDate())

	require.NoError(t, store.MigrateUp(ctx, 1))
	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), state.Current)
	require.Equal(t, []int64{2}, state.Pending)

	require.NoError(t, store.MigrateUp(ctx, 0))
	require.NoError(t, store.MigrateUp(ctx, 0), "repeated up must be a no-op")
	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), state.Current)
	require.Equal(t, 2, state.Applied)
	require.True(t, state.UpToDate())

	require.NoError(t, store.MigrateDown(ctx, 0))
	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), state.Current)

	require.NoError(t, store.MigrateDown(ctx, 1))
	require.NoError(t, store.MigrateDown(ctx, 1), "down on empty schema must be a no-op")
	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Zero(t, state.Applied)

	require.NoError(t, store.MigrateUp(ctx, 0))
}

func TestMigrator_Guards(t *testing.T) {
	var nilStore *Store
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.ErrorIs(t, nilStore.MigrateUp(ctx, 0), errStoreNotInitialized)
	require.ErrorIs(t, nilStore.MigrateDown(ctx, 1), errStoreNotInitialized)
	_, err := nilStore.MigrationStatus(ctx)
	require.ErrorIs(t, err, errStoreNotInitialized)

	store := openRawPostgresStoreForIntegrationTest(t)
	require.ErrorContains(t, store.migrate(ctx, direction("sideways"), 0), "unsupported migration direction")
}

//go:build integration

package main

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/fraud-stepup-backend/internal/infrastructure/database"
	"github.com/davidleathers/fraud-stepup-backend/internal/testutil/containers"
)

func TestMigrations(t *testing.T) {
	ctx := context.Background()

	pg, err := containers.NewPostgresContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	logger := zaptest.NewLogger(t)
	dir := containers.MigrationsDir()

	tableExists := func(t *testing.T, name string) bool {
		t.Helper()
		conn, err := pgx.Connect(ctx, pg.ConnectionString)
		require.NoError(t, err)
		defer conn.Close(ctx)

		var exists bool
		err = conn.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", "public."+name).Scan(&exists)
		require.NoError(t, err)
		return exists
	}

	t.Run("up creates the schema", func(t *testing.T) {
		require.NoError(t, run("up", 0, dir, pg.ConnectionString, logger))
		assert.True(t, tableExists(t, "transactions"))
		assert.True(t, tableExists(t, "customers"))
		assert.True(t, tableExists(t, "audit_events"))
	})

	t.Run("up again is a no-op", func(t *testing.T) {
		require.NoError(t, run("up", 0, dir, pg.ConnectionString, logger))

		m, err := database.NewMigrator(pg.ConnectionString, dir)
		require.NoError(t, err)
		defer m.Close()

		version, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(1), version)
		assert.False(t, dirty)
	})

	t.Run("down drops the schema", func(t *testing.T) {
		require.NoError(t, run("down", 0, dir, pg.ConnectionString, logger))
		assert.False(t, tableExists(t, "transactions"))
	})

	t.Run("invalid input", func(t *testing.T) {
		assert.Error(t, run("sideways", 0, dir, pg.ConnectionString, logger))
		assert.Error(t, run("up", -1, dir, pg.ConnectionString, logger))
		assert.Error(t, run("up", 0, dir, "", logger))
	})
}

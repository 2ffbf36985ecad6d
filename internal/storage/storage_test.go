package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskmanager/internal/config"
	"taskmanager/internal/model"
)

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		DBDriver:   config.DriverSQLite,
		SQLitePath: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	}

	store, err := Open(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = store.Close(ctx) }()

	assert.Equal(t, config.DriverSQLite, store.Driver())
	require.NoError(t, store.Migrate(ctx, false))

	u := &model.User{Name: "Ann", Email: "ann@example.com", PasswordHash: "x", Role: model.RoleUser}
	require.NoError(t, store.Users.Create(ctx, u))

	// A reset drops existing rows.
	require.NoError(t, store.Migrate(ctx, true))
	_, err = store.Users.FindByID(ctx, u.ID)
	assert.Error(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{DBDriver: "postgres"}, zap.NewNop())
	assert.Error(t, err)
}

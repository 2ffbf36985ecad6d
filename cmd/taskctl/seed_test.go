package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskmanager/internal/auth"
	"taskmanager/internal/db"
	"taskmanager/internal/model"
	"taskmanager/internal/repository"
	"taskmanager/internal/service"
)

const seedJSON = `[
	{"name": "Root", "email": "root@example.com", "password": "secret123", "role": "admin"},
	{"name": "Mia", "email": "mia@example.com", "password": "secret123", "role": "Manager"},
	{"name": "Ann", "email": "ann@example.com", "password": "secret123", "manager": "mia@example.com"},
	{"name": "Bad", "email": "bad@example.com", "password": "1"}
]`

func TestLoadSeedUsers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(seedJSON), 0o600))

	users, err := loadSeedUsers(path)
	require.NoError(t, err)
	require.Len(t, users, 4)
	assert.Equal(t, "mia@example.com", users[2].Manager)

	_, err = loadSeedUsers(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSeedUsers(t *testing.T) {
	ctx := context.Background()
	gdb, err := db.NewSQLite("file:"+uuid.NewString()+"?mode=memory&cache=shared", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb, false))

	repo := repository.NewUserRepository(gdb)
	authService := service.NewAuthService(repo, auth.NewJWTService("s", time.Minute, time.Hour), auth.NewTokenStore(nil), zap.NewNop())

	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(seedJSON), 0o600))
	users, err := loadSeedUsers(path)
	require.NoError(t, err)

	created, skipped, err := seedUsers(ctx, authService, repo, users, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 3, created)
	assert.Equal(t, 1, skipped)

	mia, err := repo.FindByEmail(ctx, "mia@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, mia.Role)

	ann, err := repo.FindByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	require.NotNil(t, ann.ManagerID)
	assert.Equal(t, mia.ID, *ann.ManagerID)

	// A second run creates nothing.
	created, skipped, err = seedUsers(ctx, authService, repo, users, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 4, skipped)
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, DriverMySQL, cfg.DBDriver)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.False(t, cfg.Debug())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_DRIVER", DriverSQLite)
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REQUEST_TIMEOUT", "2s")
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.Debug())
}

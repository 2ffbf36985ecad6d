package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmanager/internal/model"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", time.Minute, time.Hour)
	user := &model.User{ID: uuid.New(), Email: "a@example.com", Role: model.RoleManager}

	token, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, model.RoleManager, claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.NotEmpty(t, claims.ID)

	id, err := claims.UserUUID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
	assert.InDelta(t, time.Minute.Seconds(), claims.RemainingTTL().Seconds(), 5)
}

func TestJWTService_RefreshTokenID(t *testing.T) {
	svc := NewJWTService("test-secret", 0, 0)
	user := &model.User{ID: uuid.New(), Email: "a@example.com", Role: model.RoleUser}

	tokenID, token, err := svc.GenerateRefreshToken(user)
	require.NoError(t, err)

	extracted, err := svc.ExtractTokenID(token)
	require.NoError(t, err)
	assert.Equal(t, tokenID, extracted)
	assert.Equal(t, DefaultRefreshTokenExpiry, svc.RefreshTTL())
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService("test-secret", time.Minute, time.Hour)
	other := NewJWTService("other-secret", time.Minute, time.Hour)
	user := &model.User{ID: uuid.New(), Email: "a@example.com", Role: model.RoleUser}

	foreign, err := other.GenerateAccessToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.Error(t, err)

	expired := NewJWTService("test-secret", -time.Minute, time.Hour)
	// Negative TTL falls back to the default, so sign an already-expired token by hand.
	expired.accessTTL = -time.Minute
	stale, err := expired.GenerateAccessToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(stale)
	assert.Error(t, err)

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestJWTService_TokenTypes(t *testing.T) {
	svc := NewJWTService("test-secret", time.Minute, time.Hour)
	user := &model.User{ID: uuid.New(), Email: "a@example.com", Role: model.RoleUser}

	access, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)
	_, refresh, err := svc.GenerateRefreshToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	_, err = svc.ValidateAccessToken(refresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	claims, err = svc.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.Type)
	_, err = svc.ValidateRefreshToken(access)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	_, err = svc.ExtractTokenID(access)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"taskmanager/internal/auth"
	"taskmanager/internal/errors"
	"taskmanager/internal/model"
)

func newJWT() *auth.JWTService {
	return auth.NewJWTService("test-secret", time.Minute, time.Hour)
}

func TestAuthService_Register(t *testing.T) {
	tests := []struct {
		name          string
		input         RegisterInput
		setupMock     func(*MockUserRepository, *MockTokenStore)
		expectedError error
		expectedKind  errors.Kind
	}{
		{
			name:  "successful registration",
			input: RegisterInput{Name: "Test User", Email: "  Test@Example.com ", Password: "password123"},
			setupMock: func(m *MockUserRepository, ts *MockTokenStore) {
				m.On("FindByEmail", mock.Anything, "test@example.com").Return(nil, errors.ErrRecordNotFound)
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)
				ts.On("StoreRefreshToken", mock.Anything, mock.Anything, mock.Anything, "test@example.com", time.Hour).Return(nil)
			},
		},
		{
			name:  "email already registered",
			input: RegisterInput{Name: "Existing", Email: "existing@example.com", Password: "password123"},
			setupMock: func(m *MockUserRepository, ts *MockTokenStore) {
				m.On("FindByEmail", mock.Anything, "existing@example.com").Return(&model.User{Email: "existing@example.com"}, nil)
			},
			expectedError: errors.ErrEmailTaken,
			expectedKind:  errors.KindConflict,
		},
		{
			name:  "unique violation on insert",
			input: RegisterInput{Name: "Racer", Email: "race@example.com", Password: "password123"},
			setupMock: func(m *MockUserRepository, ts *MockTokenStore) {
				m.On("FindByEmail", mock.Anything, "race@example.com").Return(nil, errors.ErrRecordNotFound)
				m.On("Create", mock.Anything, mock.Anything).Return(errors.Wrap(errors.KindConflict, "duplicate record", assert.AnError))
			},
			expectedError: errors.ErrEmailTaken,
			expectedKind:  errors.KindConflict,
		},
		{
			name:         "short password",
			input:        RegisterInput{Name: "Shorty", Email: "short@example.com", Password: "abc"},
			setupMock:    func(m *MockUserRepository, ts *MockTokenStore) {},
			expectedKind: errors.KindValidation,
		},
		{
			name:         "missing name",
			input:        RegisterInput{Email: "anon@example.com", Password: "password123"},
			setupMock:    func(m *MockUserRepository, ts *MockTokenStore) {},
			expectedKind: errors.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			mockTokenStore := new(MockTokenStore)
			tt.setupMock(mockRepo, mockTokenStore)

			service := NewAuthService(mockRepo, newJWT(), mockTokenStore, zap.NewNop())
			result, err := service.Register(context.Background(), tt.input)

			if tt.expectedKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.expectedKind, errors.KindOf(err))
				if tt.expectedError != nil {
					assert.Equal(t, tt.expectedError, err)
				}
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "test@example.com", result.User.Email)
				assert.Equal(t, model.RoleUser, result.User.Role)
				assert.True(t, result.User.NotificationPreferences.TaskAssignments)
				assert.NotEmpty(t, result.User.PasswordHash)
				assert.NotEmpty(t, result.AccessToken)
				assert.NotEmpty(t, result.RefreshToken)
			}

			mockRepo.AssertExpectations(t)
			mockTokenStore.AssertExpectations(t)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &model.User{
		ID:           uuid.New(),
		Email:        "test@example.com",
		PasswordHash: string(hashed),
		Role:         model.RoleManager,
	}

	tests := []struct {
		name          string
		email         string
		password      string
		setupMock     func(*MockUserRepository, *MockTokenStore)
		expectedError error
	}{
		{
			name:     "successful login",
			email:    "TEST@example.com",
			password: "password123",
			setupMock: func(mRepo *MockUserRepository, mToken *MockTokenStore) {
				mRepo.On("FindByEmail", mock.Anything, "test@example.com").Return(user, nil)
				mToken.On("StoreRefreshToken", mock.Anything, mock.Anything, user.ID.String(), "test@example.com", time.Hour).Return(nil)
			},
		},
		{
			name:     "unknown email",
			email:    "notfound@example.com",
			password: "password123",
			setupMock: func(mRepo *MockUserRepository, mToken *MockTokenStore) {
				mRepo.On("FindByEmail", mock.Anything, "notfound@example.com").Return(nil, errors.ErrRecordNotFound)
			},
			expectedError: errors.ErrInvalidCredentials,
		},
		{
			name:     "wrong password",
			email:    "test@example.com",
			password: "wrong-password",
			setupMock: func(mRepo *MockUserRepository, mToken *MockTokenStore) {
				mRepo.On("FindByEmail", mock.Anything, "test@example.com").Return(user, nil)
			},
			expectedError: errors.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			mockTokenStore := new(MockTokenStore)
			tt.setupMock(mockRepo, mockTokenStore)

			jwtService := newJWT()
			service := NewAuthService(mockRepo, jwtService, mockTokenStore, zap.NewNop())

			result, err := service.Login(context.Background(), tt.email, tt.password)

			if tt.expectedError != nil {
				assert.Equal(t, tt.expectedError, err)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, user.ID, result.User.ID)

				claims, err := jwtService.ValidateToken(result.AccessToken)
				require.NoError(t, err)
				assert.Equal(t, model.RoleManager, claims.Role)
			}

			mockRepo.AssertExpectations(t)
			mockTokenStore.AssertExpectations(t)
		})
	}
}

func TestAuthService_RefreshToken(t *testing.T) {
	jwtService := newJWT()
	user := &model.User{ID: uuid.New(), Email: "test@example.com", Role: model.RoleUser}
	tokenID, refreshToken, err := jwtService.GenerateRefreshToken(user)
	require.NoError(t, err)

	t.Run("stored token yields access token with current role", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockTokenStore := new(MockTokenStore)
		promoted := *user
		promoted.Role = model.RoleAdmin
		mockTokenStore.On("GetRefreshToken", mock.Anything, tokenID).Return(user.ID.String(), user.Email, nil)
		mockRepo.On("FindByID", mock.Anything, user.ID).Return(&promoted, nil)

		service := NewAuthService(mockRepo, jwtService, mockTokenStore, zap.NewNop())
		access, err := service.RefreshToken(context.Background(), refreshToken)
		require.NoError(t, err)

		claims, err := jwtService.ValidateToken(access)
		require.NoError(t, err)
		assert.Equal(t, model.RoleAdmin, claims.Role)
	})

	t.Run("revoked token", func(t *testing.T) {
		mockTokenStore := new(MockTokenStore)
		mockTokenStore.On("GetRefreshToken", mock.Anything, tokenID).Return("", "", assert.AnError)

		service := NewAuthService(new(MockUserRepository), jwtService, mockTokenStore, zap.NewNop())
		_, err := service.RefreshToken(context.Background(), refreshToken)
		assert.Equal(t, errors.ErrInvalidToken, err)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		access, err := jwtService.GenerateAccessToken(user)
		require.NoError(t, err)
		mockTokenStore := new(MockTokenStore)

		service := NewAuthService(new(MockUserRepository), jwtService, mockTokenStore, zap.NewNop())
		_, err = service.RefreshToken(context.Background(), access)
		assert.Equal(t, errors.ErrInvalidToken, err)
		mockTokenStore.AssertNotCalled(t, "GetRefreshToken", mock.Anything, mock.Anything)
	})

	t.Run("garbage token", func(t *testing.T) {
		service := NewAuthService(new(MockUserRepository), jwtService, new(MockTokenStore), zap.NewNop())
		_, err := service.RefreshToken(context.Background(), "not-a-token")
		assert.Equal(t, errors.KindUnauthenticated, errors.KindOf(err))
	})
}

func TestAuthService_Logout(t *testing.T) {
	jwtService := newJWT()
	user := &model.User{ID: uuid.New(), Email: "test@example.com", Role: model.RoleUser}
	refreshID, refreshToken, err := jwtService.GenerateRefreshToken(user)
	require.NoError(t, err)
	access, err := jwtService.GenerateAccessToken(user)
	require.NoError(t, err)
	claims, err := jwtService.ValidateToken(access)
	require.NoError(t, err)

	mockTokenStore := new(MockTokenStore)
	mockTokenStore.On("DeleteRefreshToken", mock.Anything, refreshID).Return(nil)
	mockTokenStore.On("BlacklistAccessToken", mock.Anything, claims.ID, mock.AnythingOfType("time.Duration")).Return(nil)

	service := NewAuthService(new(MockUserRepository), jwtService, mockTokenStore, zap.NewNop())
	require.NoError(t, service.Logout(context.Background(), refreshToken, claims))
	mockTokenStore.AssertExpectations(t)

	assert.Equal(t, errors.ErrInvalidToken, service.Logout(context.Background(), "bogus", nil))
	// An access token in the refresh slot revokes nothing.
	assert.Equal(t, errors.ErrInvalidToken, service.Logout(context.Background(), access, nil))
}

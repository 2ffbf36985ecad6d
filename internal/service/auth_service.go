package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"taskmanager/internal/auth"
	"taskmanager/internal/errors"
	"taskmanager/internal/model"
	"taskmanager/internal/repository"
)

const (
	bcryptCost        = 10
	minPasswordLength = 6
)

// RegisterInput carries the fields needed to open an account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     model.Role // empty means user
}

// AuthResult is a user together with a fresh token pair.
type AuthResult struct {
	User         *model.User `json:"user"`
	AccessToken  string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
}

// AuthService handles authentication operations.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	// Authenticate verifies credentials without issuing tokens.
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	RefreshToken(ctx context.Context, refreshToken string) (accessToken string, err error)
	// Logout revokes the refresh token (when given) and blacklists the access token.
	Logout(ctx context.Context, refreshToken string, access *auth.Claims) error
}

type authService struct {
	users      repository.UserRepository
	jwtService *auth.JWTService
	tokenStore auth.TokenStoreInterface
	log        *zap.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(users repository.UserRepository, jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface, log *zap.Logger) AuthService {
	return &authService{
		users:      users,
		jwtService: jwtService,
		tokenStore: tokenStore,
		log:        log,
	}
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user with a hashed password and signs them in.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)
	switch {
	case name == "":
		return nil, errors.Validation("name is required")
	case email == "" || !strings.Contains(email, "@"):
		return nil, errors.Validation("a valid email is required")
	case len(in.Password) < minPasswordLength:
		return nil, errors.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	role := in.Role
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return nil, errors.Validation("invalid role")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, errors.ErrEmailTaken
	}
	if err != nil && !repository.IsNotFound(err) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Name:                    name,
		Email:                   email,
		PasswordHash:            string(hashed),
		Role:                    role,
		NotificationPreferences: model.DefaultNotificationPreferences(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.KindOf(err) == errors.KindConflict {
			return nil, errors.ErrEmailTaken
		}
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))
	return s.issue(ctx, user)
}

// Login authenticates a user and returns access and refresh tokens.
func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

func (s *authService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.ErrInvalidCredentials
	}
	return user, nil
}

func (s *authService) issue(ctx context.Context, user *model.User) (*AuthResult, error) {
	accessToken, err := s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	tokenID, refreshToken, err := s.jwtService.GenerateRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	if err := s.tokenStore.StoreRefreshToken(ctx, tokenID, user.ID.String(), user.Email, s.jwtService.RefreshTTL()); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &AuthResult{User: user, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// RefreshToken validates a refresh token and returns a new access token.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil || claims.ID == "" {
		return "", errors.ErrInvalidToken
	}

	storedUserID, storedEmail, err := s.tokenStore.GetRefreshToken(ctx, claims.ID)
	if err != nil {
		return "", errors.ErrInvalidToken
	}
	if storedUserID != claims.UserID || storedEmail != claims.Email {
		return "", errors.ErrInvalidToken
	}

	userID, err := claims.UserUUID()
	if err != nil {
		return "", errors.ErrInvalidToken
	}
	// Reload so the new token carries the current role.
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return "", errors.ErrInvalidToken
		}
		return "", err
	}

	accessToken, err := s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return accessToken, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string, access *auth.Claims) error {
	if refreshToken != "" {
		tokenID, err := s.jwtService.ExtractTokenID(refreshToken)
		if err != nil {
			return errors.ErrInvalidToken
		}
		if err := s.tokenStore.DeleteRefreshToken(ctx, tokenID); err != nil {
			return fmt.Errorf("delete refresh token: %w", err)
		}
	}

	if access != nil && access.ID != "" {
		if err := s.tokenStore.BlacklistAccessToken(ctx, access.ID, access.RemainingTTL()); err != nil {
			return fmt.Errorf("blacklist access token: %w", err)
		}
	}
	return nil
}

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"taskmanager/internal/model"
)

const (
	// DefaultAccessTokenExpiry is used when no access TTL is configured.
	DefaultAccessTokenExpiry = 15 * time.Minute
	// DefaultRefreshTokenExpiry is used when no refresh TTL is configured.
	DefaultRefreshTokenExpiry = 7 * 24 * time.Hour
)

// Token types carried in the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrWrongTokenType is returned when a valid token is presented where the
// other type is required.
var ErrWrongTokenType = errors.New("wrong token type")

// Claims represents JWT claims.
type Claims struct {
	UserID string     `json:"user_id"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
	Type   string     `json:"typ"`
	jwt.RegisteredClaims
}

// UserUUID parses the subject user id.
func (c *Claims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID)
}

// RemainingTTL is how long the token stays valid from now.
func (c *Claims) RemainingTTL() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return time.Until(c.ExpiresAt.Time)
}

// JWTService handles JWT token generation and validation.
type JWTService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewJWTService creates a new JWT service with the given secret and lifetimes.
// Zero lifetimes fall back to the defaults.
func NewJWTService(secret string, accessTTL, refreshTTL time.Duration) *JWTService {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenExpiry
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenExpiry
	}
	return &JWTService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// RefreshTTL is the configured refresh token lifetime.
func (s *JWTService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// GenerateAccessToken generates a new access token for the user.
func (s *JWTService) GenerateAccessToken(user *model.User) (string, error) {
	_, token, err := s.sign(user, TokenTypeAccess, s.accessTTL)
	return token, err
}

// GenerateRefreshToken generates a new refresh token for the user.
// The refresh token ID is returned separately for storage in Redis.
func (s *JWTService) GenerateRefreshToken(user *model.User) (tokenID string, token string, err error) {
	return s.sign(user, TokenTypeRefresh, s.refreshTTL)
}

func (s *JWTService) sign(user *model.User, typ string, ttl time.Duration) (string, string, error) {
	tokenID := generateTokenID()
	now := time.Now()
	claims := &Claims{
		UserID: user.ID.String(),
		Email:  user.Email,
		Role:   user.Role,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return tokenID, token, err
}

// ValidateToken validates a JWT token and returns the claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// ValidateAccessToken validates a token and requires it to be an access token.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.validateType(tokenString, TokenTypeAccess)
}

// ValidateRefreshToken validates a token and requires it to be a refresh token.
func (s *JWTService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return s.validateType(tokenString, TokenTypeRefresh)
}

func (s *JWTService) validateType(tokenString, typ string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != typ {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// ExtractTokenID extracts the token ID (JTI) from a refresh token.
func (s *JWTService) ExtractTokenID(tokenString string) (string, error) {
	claims, err := s.ValidateRefreshToken(tokenString)
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", errors.New("token ID not found")
	}
	return claims.ID, nil
}

// generateTokenID generates a unique token ID.
func generateTokenID() string {
	return uuid.New().String()
}

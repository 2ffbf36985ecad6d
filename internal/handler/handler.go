package handler

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"taskmanager/internal/auth"
	"taskmanager/internal/errors"
	"taskmanager/internal/model"
)

// Context keys set by the auth middleware.
const (
	ClaimsKey = "claims"
	UserKey   = "currentUser"
)

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

func currentUser(c echo.Context) (*model.User, error) {
	user, ok := c.Get(UserKey).(*model.User)
	if !ok || user == nil {
		return nil, errors.ErrInvalidToken
	}
	return user, nil
}

func currentClaims(c echo.Context) *auth.Claims {
	claims, _ := c.Get(ClaimsKey).(*auth.Claims)
	return claims
}

// bind decodes and validates a request body.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return errors.Validation("invalid request body")
	}
	return c.Validate(req)
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, errors.Validation("invalid " + name)
	}
	return id, nil
}

func optionalUUID(raw, field string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, errors.Validation("invalid " + field)
	}
	return &id, nil
}

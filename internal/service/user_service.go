package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskmanager/internal/authz"
	"taskmanager/internal/cache"
	"taskmanager/internal/errors"
	"taskmanager/internal/model"
	"taskmanager/internal/repository"
)

const userCacheTTL = 5 * time.Minute

// ProfileUpdate is a partial profile change; nil fields are untouched.
type ProfileUpdate struct {
	Name                    *string
	Email                   *string
	NotificationPreferences *model.NotificationPatch
}

// UserService exposes identity operations other than authentication.
type UserService interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileUpdate) (*model.User, error)
	ListUsers(ctx context.Context, caller *model.User) ([]model.User, error)
	UpdateRole(ctx context.Context, caller *model.User, userID uuid.UUID, role string) (*model.User, error)
	AssignManager(ctx context.Context, caller *model.User, userID uuid.UUID, managerID *uuid.UUID) (*model.User, error)
	// PromoteByEmail sets a role without a caller check. Operator use only.
	PromoteByEmail(ctx context.Context, email, role string) (*model.User, error)
}

type userService struct {
	repo  repository.UserRepository
	cache *cache.Client
	log   *zap.Logger
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, cache *cache.Client, log *zap.Logger) UserService {
	return &userService{repo: repo, cache: cache, log: log}
}

func (s *userService) cacheKey(id uuid.UUID) string {
	return "user:" + id.String()
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
		var cached model.User
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.ErrUserNotFound
		}
		return nil, err
	}

	if payload, err := json.Marshal(user); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id), payload, userCacheTTL)
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileUpdate) (*model.User, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, errors.Validation("name cannot be empty")
		}
		user.Name = name
	}
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if email == "" || !strings.Contains(email, "@") {
			return nil, errors.Validation("a valid email is required")
		}
		if email != user.Email {
			if other, err := s.repo.FindByEmail(ctx, email); err == nil && other.ID != user.ID {
				return nil, errors.ErrEmailTaken
			} else if err != nil && !repository.IsNotFound(err) {
				return nil, err
			}
			user.Email = email
		}
	}
	if in.NotificationPreferences != nil {
		in.NotificationPreferences.Apply(&user.NotificationPreferences)
	}

	return user, s.save(ctx, user)
}

func (s *userService) ListUsers(ctx context.Context, caller *model.User) ([]model.User, error) {
	if err := authz.Require(caller, model.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

func (s *userService) UpdateRole(ctx context.Context, caller *model.User, userID uuid.UUID, role string) (*model.User, error) {
	if err := authz.Require(caller, model.RoleAdmin); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.setRole(ctx, user, role)
}

func (s *userService) PromoteByEmail(ctx context.Context, email, role string) (*model.User, error) {
	user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.ErrUserNotFound
		}
		return nil, err
	}
	return s.setRole(ctx, user, role)
}

func (s *userService) setRole(ctx context.Context, user *model.User, role string) (*model.User, error) {
	r, ok := model.ParseRole(role)
	if !ok {
		return nil, errors.Validation("role must be one of user, manager, admin")
	}
	user.Role = r
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("user role changed", zap.String("user_id", user.ID.String()), zap.String("role", string(r)))
	return user, nil
}

func (s *userService) AssignManager(ctx context.Context, caller *model.User, userID uuid.UUID, managerID *uuid.UUID) (*model.User, error) {
	if err := authz.Require(caller, model.RoleAdmin); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if managerID != nil {
		if *managerID == user.ID {
			return nil, errors.Validation("a user cannot manage themself")
		}
		manager, err := s.load(ctx, *managerID)
		if err != nil {
			if errors.Is(err, errors.ErrUserNotFound) {
				return nil, errors.Validation("manager does not exist")
			}
			return nil, err
		}
		if !authz.Authorize(manager, model.RoleManager) {
			return nil, errors.Validation("manager must hold the manager or admin role")
		}
	}

	user.ManagerID = managerID
	return user, s.save(ctx, user)
}

// load bypasses the cache so writes start from stored state.
func (s *userService) load(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errors.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) save(ctx context.Context, user *model.User) error {
	if err := s.repo.Update(ctx, user); err != nil {
		if errors.KindOf(err) == errors.KindConflict {
			return errors.ErrEmailTaken
		}
		return err
	}
	_ = s.cache.Delete(ctx, s.cacheKey(user.ID))
	return nil
}

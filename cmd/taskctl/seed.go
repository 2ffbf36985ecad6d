package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"taskmanager/internal/auth"
	"taskmanager/internal/errors"
	"taskmanager/internal/model"
	"taskmanager/internal/repository"
	"taskmanager/internal/service"
)

// SeedUser is one entry of a seed file.
type SeedUser struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	// Manager is the email of the user's manager, resolved after all users exist.
	Manager string `json:"manager"`
}

func seedCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create users from a JSON file or URL, skipping existing emails",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			users, err := loadSeedUsers(source)
			if err != nil {
				return err
			}
			rt.log.Info("seeding users", zap.String("source", source), zap.Int("count", len(users)))

			jwtService := auth.NewJWTService(rt.cfg.JWTSecret, rt.cfg.AccessTokenTTL, rt.cfg.RefreshTokenTTL)
			authService := service.NewAuthService(rt.store.Users, jwtService, auth.NewTokenStore(nil), rt.log)

			created, skipped, err := seedUsers(cmd.Context(), authService, rt.store.Users, users, rt.log)
			if err != nil {
				return err
			}
			fmt.Printf("seed completed: %d created, %d skipped\n", created, skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "file", "f", "", "path or http(s) URL of a JSON array of users")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// loadSeedUsers reads the seed list from a local file or an http(s) URL.
func loadSeedUsers(source string) ([]SeedUser, error) {
	var body []byte
	var err error
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		body, err = fetchSeedFile(source)
	} else {
		body, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, err
	}

	var users []SeedUser
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return users, nil
}

func fetchSeedFile(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch seed file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("seed source returned status code: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// seedUsers registers every new user, then links managers by email.
func seedUsers(ctx context.Context, authService service.AuthService, repo repository.UserRepository, users []SeedUser, log *zap.Logger) (created, skipped int, err error) {
	for _, u := range users {
		_, err := authService.Register(ctx, service.RegisterInput{
			Name:     u.Name,
			Email:    u.Email,
			Password: u.Password,
			Role:     model.Role(strings.ToLower(u.Role)),
		})
		switch {
		case err == nil:
			created++
		case errors.Is(err, errors.ErrEmailTaken):
			log.Info("user exists, skipping", zap.String("email", u.Email))
			skipped++
		case errors.KindOf(err) == errors.KindValidation:
			log.Warn("invalid seed user, skipping", zap.String("email", u.Email), zap.Error(err))
			skipped++
		default:
			return created, skipped, fmt.Errorf("error creating user %s: %w", u.Email, err)
		}
	}

	for _, u := range users {
		if u.Manager == "" {
			continue
		}
		if err := linkManager(ctx, repo, u.Email, u.Manager); err != nil {
			log.Warn("manager not linked", zap.String("email", u.Email), zap.String("manager", u.Manager), zap.Error(err))
		}
	}
	return created, skipped, nil
}

func linkManager(ctx context.Context, repo repository.UserRepository, email, managerEmail string) error {
	user, err := repo.FindByEmail(ctx, service.NormalizeEmail(email))
	if err != nil {
		return err
	}
	manager, err := repo.FindByEmail(ctx, service.NormalizeEmail(managerEmail))
	if err != nil {
		return err
	}
	if manager.ID == user.ID || !manager.Role.Satisfies(model.RoleManager) {
		return errors.Validation("manager must be another user with the manager or admin role")
	}
	user.ManagerID = &manager.ID
	return repo.Update(ctx, user)
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"taskmanager/internal/cache"
	"taskmanager/internal/config"
	"taskmanager/internal/logger"
	"taskmanager/internal/service"
	"taskmanager/internal/storage"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "taskctl",
		Short:         "Operator tooling for the task manager",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(recurCmd())
	rootCmd.AddCommand(promoteCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime is the shared state every subcommand needs.
type runtime struct {
	cfg   *config.Config
	log   *zap.Logger
	store *storage.Storage
}

func open(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Development: true})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, log: log, store: store}, nil
}

func (r *runtime) close() {
	_ = r.store.Close(context.Background())
	_ = r.log.Sync()
}

func migrateCmd() *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema (tables or mongo indexes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()
			return rt.store.Migrate(cmd.Context(), reset || rt.cfg.ResetDB)
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "drop existing data first")
	return cmd
}

func recurCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recur",
		Short: "Spawn successors for every recurring task past its due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			// Cached summaries live in redis; the cache fails safe when it is down.
			cacheClient := cache.New(rt.cfg.RedisAddr, rt.cfg.RedisPass, rt.cfg.RedisDB)
			defer func() { _ = cacheClient.Close() }()

			users := service.NewUserService(rt.store.Users, nil, rt.log)
			notifications := service.NewNotificationService(rt.store.Tasks, users, nil, rt.log)
			analytics := service.NewAnalyticsService(rt.store.Tasks, rt.store.Users, cacheClient, rt.cfg.AnalyticsCacheTTL, rt.log)
			tasks := service.NewTaskService(rt.store.Tasks, rt.store.Users, notifications, analytics, rt.log)

			n, err := tasks.SweepRecurring(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("spawned %d recurring task(s)\n", n)
			return nil
		},
	}
}

func promoteCmd() *cobra.Command {
	var email, role string
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Set a user's role",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			user, err := service.NewUserService(rt.store.Users, nil, rt.log).PromoteByEmail(cmd.Context(), email, role)
			if err != nil {
				return err
			}
			fmt.Printf("%s is now %s\n", user.Email, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().StringVar(&role, "role", "", "user, manager or admin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

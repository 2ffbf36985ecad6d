package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"taskmanager/docs" // swagger docs
	"taskmanager/internal/auth"
	"taskmanager/internal/cache"
	"taskmanager/internal/config"
	"taskmanager/internal/handler"
	"taskmanager/internal/logger"
	"taskmanager/internal/notify"
	"taskmanager/internal/router"
	"taskmanager/internal/service"
	"taskmanager/internal/storage"
)

// @title Task Manager API
// @version 1.0
// @description Task tracking API with role-scoped visibility, notifications, recurring tasks and analytics.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Development: cfg.Debug()})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("database init", zap.Error(err))
	}
	defer func() { _ = store.Close(context.Background()) }()

	if err := store.Migrate(ctx, cfg.ResetDB); err != nil {
		zlog.Fatal("migrate", zap.Error(err))
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer func() { _ = cacheClient.Close() }()
	if err := cacheClient.Ping(ctx); err != nil {
		// The cache fails safe; sessions and live notifications degrade until it is back.
		zlog.Warn("redis unavailable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	pubsub := notify.NewRedisPubSub(cacheClient)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	authService := service.NewAuthService(store.Users, jwtService, tokenStore, zlog)
	userService := service.NewUserService(store.Users, cacheClient, zlog)
	notificationService := service.NewNotificationService(store.Tasks, userService, pubsub, zlog)
	analyticsService := service.NewAnalyticsService(store.Tasks, store.Users, cacheClient, cfg.AnalyticsCacheTTL, zlog)
	taskService := service.NewTaskService(store.Tasks, store.Users, notificationService, analyticsService, zlog)

	e := echo.New()
	router.Register(e, router.Options{
		Config:       cfg,
		Logger:       zlog,
		JWT:          jwtService,
		TokenStore:   tokenStore,
		Users:        userService,
		Auth:         handler.NewAuthHandler(authService),
		User:         handler.NewUserHandler(userService),
		Task:         handler.NewTaskHandler(taskService),
		Notification: handler.NewNotificationHandler(notificationService, pubsub, zlog),
		Analytics:    handler.NewAnalyticsHandler(analyticsService),
	})

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
	} else {
		docs.SwaggerInfo.Host = "localhost:" + cfg.ServerPort
	}
	zlog.Info("swagger documentation available",
		zap.String("url", "http://"+docs.SwaggerInfo.Host+"/swagger/index.html"),
		zap.String("driver", store.Driver()),
	)

	go func() {
		addr := ":" + cfg.ServerPort
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown", zap.Error(err))
	}
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/finwise/finwise-admin/internal/admin"
	"github.com/finwise/finwise-admin/internal/app"
	"github.com/finwise/finwise-admin/internal/audit"
	"github.com/finwise/finwise-admin/internal/gate"
	"github.com/finwise/finwise-admin/internal/identity"
	"github.com/finwise/finwise-admin/internal/observability"
	"github.com/finwise/finwise-admin/internal/platform/cache"
	"github.com/finwise/finwise-admin/internal/platform/db"
	"github.com/finwise/finwise-admin/internal/ratelimit"
	"github.com/finwise/finwise-admin/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// Session resolution depends on Redis, so fail fast at boot.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var limiter ratelimit.Limiter
	if cfg.RateLimitBackend == "redis" {
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow, logger)
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
	}

	resolver := identity.NewRedisResolver(redisClient, cfg.SessionCookie, 2*time.Second)
	directory := identity.NewPGDirectory(dbpool, 2*time.Second)

	queue := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()

	auditStore := audit.NewPGStore(dbpool)
	auditLogger := audit.NewLogger(queue, auditStore, logger)
	auditService := audit.NewService(auditStore)

	metrics := observability.NewMetrics()
	accessGate := gate.New(limiter, resolver, directory, auditLogger, logger, metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	adminRepo := admin.NewRepository(dbpool)
	adminService := admin.NewService(adminRepo, auditLogger, logger)
	analytics := admin.NewAnalytics(adminRepo, redisClient, logger)
	health := admin.NewHealth(dbpool, redisClient, inspector, logger)
	adminHandler := admin.NewHandler(adminService, auditService, analytics, health, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		Gate:         accessGate,
		AdminHandler: adminHandler,
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

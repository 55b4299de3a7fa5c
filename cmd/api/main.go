package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/splax/userseed/internal/app/migrate"
	"github.com/splax/userseed/internal/app/storage"
	httpx "github.com/splax/userseed/internal/http"
	"github.com/splax/userseed/internal/service/auth"
	"github.com/splax/userseed/internal/service/seed"
	"github.com/splax/userseed/pkg/config"
	"github.com/splax/userseed/pkg/logger"
	"github.com/splax/userseed/pkg/tracing"
)

func main() {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		logger.New("api", slog.LevelInfo).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))
	if cfg.Environment.String() == "" {
		log.Warn("APP_ENV is not set; user reseeding is disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, "userseed-api", cfg.OTelEndpoint)
	if err != nil {
		log.Error("failed to configure tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	handle, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "driver", cfg.DatabaseDriver, "error", err)
		os.Exit(1)
	}
	defer handle.Close()

	runner, err := migrate.New(handle.DB, cfg.DatabaseDriver, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	dataset, err := seed.LoadDataset(cfg.SeedUsersFile)
	if err != nil {
		log.Error("failed to load seed dataset", "path", cfg.SeedUsersFile, "error", err)
		os.Exit(1)
	}

	authSvc := auth.New(handle.Store, log, cfg)
	seedSvc := seed.New(handle.Store, dataset, log, cfg)
	log.Info("seed endpoint configured",
		"environment", cfg.Environment.String(),
		"enabled", cfg.Environment.IsDevelopment(),
		"require_auth", cfg.SeedRequireAuth,
		"dataset_users", dataset.Len(),
	)

	var limiter httpx.RateLimiter
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(ctx, addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}
	if limiter == nil {
		limiter = httpx.NewMemoryRateLimiter()
	}

	router := httpx.NewRouter(log, authSvc, seedSvc, limiter, cfg.SeedRequireAuth, handle.Store.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

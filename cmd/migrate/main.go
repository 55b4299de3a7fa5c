package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/splax/userseed/internal/app/migrate"
	"github.com/splax/userseed/internal/app/storage"
	"github.com/splax/userseed/internal/service/seed"
	"github.com/splax/userseed/pkg/config"
	"github.com/splax/userseed/pkg/logger"
)

func main() {
	command := flag.String("command", "up", "migrate command (up|status|down|seed)")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	target := flag.Int64("target", 0, "target version for down command (optional)")
	flag.Parse()

	cfg, err := config.LoadAPIConfig()
	if err != nil {
		logger.New("migrate", slog.LevelInfo).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New("migrate", logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	handle, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "driver", cfg.DatabaseDriver, "error", err)
		os.Exit(1)
	}
	defer handle.Close()

	runner, err := migrate.New(handle.DB, cfg.DatabaseDriver, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migration runner", "error", err)
		os.Exit(1)
	}

	switch *command {
	case "up":
		if err := runner.Ensure(ctx); err != nil {
			log.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	case "status":
		if err := runner.Status(ctx); err != nil {
			log.Error("failed to fetch migration status", "error", err)
			os.Exit(1)
		}
	case "down":
		if err := runner.Down(ctx, *target); err != nil {
			log.Error("failed to roll back migrations", "error", err)
			os.Exit(1)
		}
	case "seed":
		if err := runner.Ensure(ctx); err != nil {
			log.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		dataset, err := seed.LoadDataset(cfg.SeedUsersFile)
		if err != nil {
			log.Error("failed to load seed dataset", "path", cfg.SeedUsersFile, "error", err)
			os.Exit(1)
		}
		result, err := seed.New(handle.Store, dataset, log, cfg).ReseedUsers(ctx, "cli")
		if err != nil {
			log.Error("failed to seed users", "error", err)
			os.Exit(1)
		}
		log.Info("users seeded", "deleted", result.Deleted, "inserted", len(result.Inserted))
	default:
		log.Error("unsupported command", "command", *command)
		os.Exit(1)
	}

	log.Info("migration command completed", "command", *command)
}

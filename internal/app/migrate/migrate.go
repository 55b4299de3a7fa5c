package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	migrations "github.com/splax/userseed/db"
)

// Runner wraps database migration capabilities.
type Runner struct {
	db      *sql.DB
	driver  string
	dialect string
	fsys    fs.FS
	log     *slog.Logger
}

// New returns a migration runner backed by goose. An empty migrationsDir
// selects the migrations embedded in the binary for driver.
func New(db *sql.DB, driver, migrationsDir string, log *slog.Logger) (Runner, error) {
	if db == nil {
		return Runner{}, errors.New("nil database provided")
	}
	dialect, err := dialectFor(driver)
	if err != nil {
		return Runner{}, err
	}
	if log == nil {
		log = slog.Default()
	}

	var fsys fs.FS
	if strings.TrimSpace(migrationsDir) != "" {
		if _, err := os.Stat(migrationsDir); err != nil {
			return Runner{}, fmt.Errorf("locate migrations dir: %w", err)
		}
		fsys = os.DirFS(migrationsDir)
	} else {
		fsys, err = migrations.Migrations(driver)
		if err != nil {
			return Runner{}, err
		}
	}

	return Runner{db: db, driver: driver, dialect: dialect, fsys: fsys, log: log}, nil
}

func dialectFor(driver string) (string, error) {
	switch driver {
	case "postgres":
		return "postgres", nil
	case "sqlite":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Ensure applies pending migrations.
func (r Runner) Ensure(ctx context.Context) error {
	if err := r.configure(); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	r.log.Info("applying migrations", "driver", r.driver)
	if err := goose.UpContext(runCtx, r.db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	r.log.Info("migrations applied")
	return nil
}

// Status reports applied and pending migrations.
func (r Runner) Status(ctx context.Context) error {
	if err := r.configure(); err != nil {
		return err
	}

	r.log.Info("migration status", "driver", r.driver)
	if err := goose.StatusContext(ctx, r.db, "."); err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	return nil
}

// Down rolls back migrations either to the previous version or a specific target version.
func (r Runner) Down(ctx context.Context, targetVersion int64) error {
	if err := r.configure(); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if targetVersion > 0 {
		r.log.Info("rolling back migrations", "target", targetVersion)
		if err := goose.DownToContext(runCtx, r.db, ".", targetVersion); err != nil {
			return fmt.Errorf("rollback to version %d: %w", targetVersion, err)
		}
	} else {
		r.log.Info("rolling back latest migration")
		if err := goose.DownContext(runCtx, r.db, "."); err != nil {
			return fmt.Errorf("rollback latest migration: %w", err)
		}
	}

	r.log.Info("rollback complete")
	return nil
}

// Version reports the current schema version.
func (r Runner) Version(ctx context.Context) (int64, error) {
	if err := r.configure(); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersionContext(ctx, r.db)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// Ping ensures the database connection is alive.
func (r Runner) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// configure points goose's package-level state at this runner.
func (r Runner) configure() error {
	goose.SetBaseFS(r.fsys)
	goose.SetLogger(gooseLogger{log: r.log})
	if err := goose.SetDialect(r.dialect); err != nil {
		return fmt.Errorf("configure goose: %w", err)
	}
	return nil
}

// gooseLogger routes goose output through slog.
type gooseLogger struct {
	log *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
	os.Exit(1)
}

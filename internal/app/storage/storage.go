// Package storage opens the configured user store together with the
// *sql.DB handle the migration runner needs.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/splax/userseed/internal/repository"
	"github.com/splax/userseed/internal/repository/postgres"
	"github.com/splax/userseed/internal/repository/sqlite"
	"github.com/splax/userseed/pkg/config"
)

// Store is the full persistence surface used by the binaries.
type Store interface {
	repository.UserRepository
	repository.UserStore
	repository.UserTransactor
	Ping(ctx context.Context) error
}

// Handle bundles an open store with its migration connection.
type Handle struct {
	Store Store
	DB    *sql.DB
	close func()
}

// Close releases the underlying connections.
func (h *Handle) Close() {
	if h != nil && h.close != nil {
		h.close()
	}
}

// Open connects to the database selected by cfg.DatabaseDriver.
func Open(ctx context.Context, cfg config.APIConfig) (*Handle, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		db := stdlib.OpenDBFromPool(pool)
		return &Handle{
			Store: postgres.New(pool),
			DB:    db,
			close: func() {
				_ = db.Close()
				pool.Close()
			},
		}, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &Handle{
			Store: store,
			DB:    store.DB(),
			close: func() { _ = store.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}

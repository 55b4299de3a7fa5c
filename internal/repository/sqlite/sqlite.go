// Package sqlite implements the user repository on an embedded SQLite
// database, for local development without a PostgreSQL server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/splax/userseed/internal/domain"
	"github.com/splax/userseed/internal/repository"
)

const timeFormat = time.RFC3339Nano

// Store provides a SQLite-backed user repository.
type Store struct {
	db *sql.DB
}

var (
	_ repository.UserRepository = (*Store)(nil)
	_ repository.UserStore      = (*Store)(nil)
	_ repository.UserTransactor = (*Store)(nil)
)

// Open opens a SQLite database. The pool is limited to one connection so that
// in-memory databases are shared and writers never contend.
func Open(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GetUserByEmail fetches a user by email, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, name, email, role, password_hash, created_at FROM users WHERE email = ? COLLATE NOCASE`
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

// GetUserByID retrieves a user by identifier.
func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, name, email, role, password_hash, created_at FROM users WHERE id = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

// DeleteAllUsers removes every user row.
func (s *Store) DeleteAllUsers(ctx context.Context) (int64, error) {
	return userWriter{q: s.db}.DeleteAllUsers(ctx)
}

// InsertUsers stores users outside of an explicit transaction.
func (s *Store) InsertUsers(ctx context.Context, users []domain.User) ([]domain.User, error) {
	return userWriter{q: s.db}.InsertUsers(ctx, users)
}

// InTx runs fn inside a single transaction, committing only when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(repository.UserStore) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(userWriter{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type userWriter struct {
	q execer
}

func (w userWriter) DeleteAllUsers(ctx context.Context) (int64, error) {
	res, err := w.q.ExecContext(ctx, `DELETE FROM users`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (w userWriter) InsertUsers(ctx context.Context, users []domain.User) ([]domain.User, error) {
	const insert = `INSERT INTO users (id, name, email, role, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	stored := make([]domain.User, 0, len(users))
	for _, user := range users {
		user.ID = uuid.NewString()
		if user.Role == "" {
			user.Role = domain.RoleUser
		}
		user.CreatedAt = time.Now().UTC()
		if _, err := w.q.ExecContext(ctx, insert,
			user.ID,
			user.Name,
			user.Email,
			user.Role,
			user.PasswordHash,
			user.CreatedAt.Format(timeFormat),
		); err != nil {
			return nil, mapWriteError(err)
		}
		stored = append(stored, user)
	}
	return stored, nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u         domain.User
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	parsed, err := time.Parse(timeFormat, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	u.CreatedAt = parsed
	return &u, nil
}

func mapWriteError(err error) error {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		// Extended codes carry the primary code in the low byte.
		if sqliteErr.Code()&0xff == sqlitelib.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE") {
			return fmt.Errorf("%w: %s", repository.ErrConflict, sqliteErr.Error())
		}
	}
	return err
}

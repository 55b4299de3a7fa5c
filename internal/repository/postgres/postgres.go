package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/userseed/internal/domain"
	"github.com/splax/userseed/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository = (*Repository)(nil)
	_ repository.UserStore      = (*Repository)(nil)
	_ repository.UserTransactor = (*Repository)(nil)
)

// querier is the subset of pgx shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// userWriter runs bulk user mutations on either the pool or a transaction.
type userWriter struct {
	q querier
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// GetUserByEmail fetches a user by email, ignoring case.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, name, email, role, password_hash, created_at FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	const query = `SELECT id, name, email, role, password_hash, created_at FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// DeleteAllUsers removes every user row.
func (r *Repository) DeleteAllUsers(ctx context.Context) (int64, error) {
	return userWriter{q: r.pool}.DeleteAllUsers(ctx)
}

// InsertUsers stores users outside of an explicit transaction.
func (r *Repository) InsertUsers(ctx context.Context, users []domain.User) ([]domain.User, error) {
	return userWriter{q: r.pool}.InsertUsers(ctx, users)
}

// InTx runs fn inside a single transaction, committing only when fn succeeds.
func (r *Repository) InTx(ctx context.Context, fn func(repository.UserStore) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(userWriter{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	return nil
}

func (w userWriter) DeleteAllUsers(ctx context.Context) (int64, error) {
	tag, err := w.q.Exec(ctx, `DELETE FROM users`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (w userWriter) InsertUsers(ctx context.Context, users []domain.User) ([]domain.User, error) {
	stored := make([]domain.User, len(users))
	if len(users) == 0 {
		return stored, nil
	}

	const insert = `INSERT INTO users (id, name, email, role, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING created_at`
	batch := &pgx.Batch{}
	for i, user := range users {
		user.ID = uuid.NewString()
		if user.Role == "" {
			user.Role = domain.RoleUser
		}
		stored[i] = user
		batch.Queue(insert, user.ID, user.Name, user.Email, user.Role, user.PasswordHash)
	}

	br := w.q.SendBatch(ctx, batch)
	for i := range stored {
		if err := br.QueryRow().Scan(&stored[i].CreatedAt); err != nil {
			br.Close()
			return nil, mapWriteError(err)
		}
	}
	if err := br.Close(); err != nil {
		return nil, mapWriteError(err)
	}
	return stored, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", repository.ErrConflict, pgErr.Detail)
	}
	return err
}

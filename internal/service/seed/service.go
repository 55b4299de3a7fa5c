package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/splax/userseed/internal/domain"
	"github.com/splax/userseed/internal/repository"
	"github.com/splax/userseed/pkg/config"
	"github.com/splax/userseed/pkg/crypto"
)

var tracer = otel.Tracer("github.com/splax/userseed/internal/service/seed")

// Service resets the users collection to a fixed dataset.
type Service struct {
	store   repository.UserStore
	dataset Dataset
	logger  *slog.Logger
	cfg     config.APIConfig
}

// New constructs a Service. The reseed is only permitted when
// cfg.Environment is a development environment.
func New(store repository.UserStore, dataset Dataset, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{store: store, dataset: dataset, logger: logger, cfg: cfg}
}

// Result describes a completed reseed.
type Result struct {
	Deleted  int64
	Inserted []domain.User
}

// ReseedUsers deletes every user and inserts the dataset in their place.
// actor identifies the caller in the audit log.
//
// When the store implements repository.UserTransactor both steps share one
// transaction and a failure leaves the previous users untouched. Otherwise a
// failed insert leaves the collection empty.
func (s Service) ReseedUsers(ctx context.Context, actor string) (Result, error) {
	ctx, span := tracer.Start(ctx, "seed.ReseedUsers", trace.WithAttributes(
		attribute.String("seed.actor", actor),
		attribute.String("seed.environment", s.cfg.Environment.String()),
	))
	defer span.End()

	if !s.cfg.Environment.IsDevelopment() {
		err := &AuthorizationError{Environment: s.cfg.Environment.String()}
		s.logger.Warn("user reseed denied", "actor", actor, "environment", s.cfg.Environment.String())
		span.SetStatus(codes.Error, "permission denied")
		return Result{}, err
	}

	users, err := s.prepare()
	if err != nil {
		s.logger.Error("user reseed failed", "actor", actor, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "prepare dataset")
		return Result{}, err
	}

	var result Result
	replace := func(store repository.UserStore) error {
		deleted, err := store.DeleteAllUsers(ctx)
		if err != nil {
			return &StorageError{Op: OpDelete, Err: err}
		}
		inserted, err := store.InsertUsers(ctx, users)
		if err != nil {
			return &StorageError{Op: OpInsert, Err: err}
		}
		result = Result{Deleted: deleted, Inserted: inserted}
		return nil
	}

	if tx, ok := s.store.(repository.UserTransactor); ok {
		err = tx.InTx(ctx, replace)
		var storageErr *StorageError
		if err != nil && !errors.As(err, &storageErr) {
			err = &StorageError{Op: OpTransaction, Err: err}
		}
	} else {
		s.logger.Warn("user store is not transactional; a failed insert leaves no users", "actor", actor)
		err = replace(s.store)
	}
	if err != nil {
		s.logger.Error("user reseed failed", "actor", actor, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage")
		return Result{}, err
	}

	span.SetAttributes(
		attribute.Int64("seed.deleted", result.Deleted),
		attribute.Int("seed.inserted", len(result.Inserted)),
	)
	s.logger.Info("users reseeded", "actor", actor, "deleted", result.Deleted, "inserted", len(result.Inserted))
	return result, nil
}

// prepare turns the dataset into store records, hashing every password.
func (s Service) prepare() ([]domain.User, error) {
	if s.dataset.Len() == 0 {
		return nil, errEmptyDataset
	}
	users := make([]domain.User, 0, s.dataset.Len())
	for _, seedUser := range s.dataset.Users {
		hash, err := crypto.HashPassword(seedUser.Password, s.cfg.BcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", seedUser.Email, err)
		}
		role := seedUser.Role
		if role == "" {
			role = domain.RoleUser
		}
		users = append(users, domain.User{
			Name:         seedUser.Name,
			Email:        seedUser.Email,
			Role:         role,
			PasswordHash: hash,
		})
	}
	return users, nil
}

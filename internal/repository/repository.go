package repository

import (
	"context"

	"github.com/splax/userseed/internal/domain"
)

// UserRepository looks up individual users.
type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// UserStore mutates the users collection in bulk.
type UserStore interface {
	// DeleteAllUsers removes every user and reports how many rows were removed.
	DeleteAllUsers(ctx context.Context) (int64, error)
	// InsertUsers stores users in order, assigning ID and CreatedAt, and
	// returns the stored records.
	InsertUsers(ctx context.Context, users []domain.User) ([]domain.User, error)
}

// UserTransactor is implemented by stores able to run several UserStore
// calls atomically. The store passed to fn is only valid for its duration;
// any error returned by fn rolls the transaction back.
type UserTransactor interface {
	InTx(ctx context.Context, fn func(UserStore) error) error
}

// Package repository declares the storage contracts the service layer
// depends on. Implementations live in subpackages (see repository/sqlite).
package repository

import (
	"context"

	"github.com/cryptonite/profiles/internal/model"
)

// UserRepository persists user records.
//
// Lookups return an error matching apperror.ErrNotFound when no record
// exists; Create returns one matching apperror.ErrConflict when the username
// is taken.
type UserRepository interface {
	// Create inserts a new record and fills in ID, CreatedAt and UpdatedAt.
	Create(ctx context.Context, user *model.User) error
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// List returns every user, oldest first.
	List(ctx context.Context) ([]model.User, error)
	// RecentUsernames returns up to limit usernames, newest signup first.
	RecentUsernames(ctx context.Context, limit int) ([]string, error)
	// Update writes every mutable field of user, keyed by username.
	Update(ctx context.Context, user *model.User) error
}

package domain

import (
	"context"
	"time"
)

// UserRepository defines the persistence operations the authentication
// core needs. Implementations must enforce email uniqueness at the store
// level (unique index) so that concurrent duplicate registrations resolve
// to exactly one created record.
type UserRepository interface {
	// GetUserByEmail returns the user with the given email, matched
	// case-insensitively, or ErrUserNotFound.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetUserByExternalID returns the user linked to the given federated
	// subject id, or ErrUserNotFound.
	GetUserByExternalID(ctx context.Context, externalID string) (*User, error)

	// CreateUser inserts a new user. It must return ErrDuplicateEmail when
	// a record with the same email already exists.
	CreateUser(ctx context.Context, user *User) error

	// UpdateUser replaces the stored record for user.ID.
	UpdateUser(ctx context.Context, user *User) error

	// UpdateLastLogin sets the last-login timestamp for the given user.
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

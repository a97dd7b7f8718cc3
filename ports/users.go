package ports

import (
	"context"

	"github.com/whispernet/warden/core"
)

// UserStore is the credential store consulted to resolve identities during
// registration and login.
type UserStore interface {
	// Create stores a new user. Returns core.ErrConflict if the email is taken.
	Create(ctx context.Context, user *core.User) error

	// Update overwrites an existing user record, e.g. after an entitlement
	// change. Returns core.ErrNotFound for unknown subjects.
	Update(ctx context.Context, user *core.User) error

	// GetByEmail returns the user registered under email, or core.ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*core.User, error)

	// GetByID returns the user with the given subject id, or core.ErrNotFound.
	GetByID(ctx context.Context, id string) (*core.User, error)
}

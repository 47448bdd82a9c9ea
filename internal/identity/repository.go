package identity

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned when a write violates the wallet or email
	// uniqueness constraint.
	ErrDuplicate = errors.New("duplicate user")
)

// Repository persists users. Implementations normalise wallet addresses and
// emails to lowercase before every write and lookup, and enforce uniqueness
// of both.
type Repository interface {
	Create(ctx context.Context, user User) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	FindByWalletAddress(ctx context.Context, wallet string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	Update(ctx context.Context, id string, patch Patch) (User, error)
	Delete(ctx context.Context, id string) error
	AddCredential(ctx context.Context, id string, cred CredentialOwnership) (User, error)
	RemoveCredential(ctx context.Context, id, tokenID string) (User, error)
	FindVerifiedInstitutions(ctx context.Context) ([]User, error)
}

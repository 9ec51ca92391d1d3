package auth

import (
	"context"
	"time"
)

// AccountStore persists identity records. Every lookup excludes soft-deleted
// rows; implementations return ErrNotFound when nothing matches.
type AccountStore interface {
	Create(ctx context.Context, account *Account) error
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// SetActive marks the account active and clears its activation token in
	// the same statement.
	SetActive(ctx context.Context, accountID string) error

	// SetPasswordHash replaces the stored hash and clears any live reset
	// token in the same statement.
	SetPasswordHash(ctx context.Context, accountID, passwordHash string) error
}

// TokenStore persists the one-time token digests embedded on the account row.
type TokenStore interface {
	// SaveToken records a token digest and expiry for the purpose,
	// overwriting any prior live token (at most one per account/purpose).
	SaveToken(ctx context.Context, accountID string, purpose TokenPurpose, tokenHash string, expiresAt time.Time) error

	// FindByToken resolves a live, unexpired token digest to its account
	// without consuming it.
	FindByToken(ctx context.Context, purpose TokenPurpose, tokenHash string, now time.Time) (*Account, error)

	// ConsumeToken atomically checks expiry and clears the token, returning
	// the owning account id. Exactly one of two concurrent calls with the
	// same token succeeds; the loser gets ErrNotFound.
	ConsumeToken(ctx context.Context, purpose TokenPurpose, tokenHash string, now time.Time) (string, error)
}

// RoleStore reads the role/permission graph.
type RoleStore interface {
	// RolesForAccount lists the account's non-deleted roles.
	RolesForAccount(ctx context.Context, accountID string) ([]Role, error)

	// PermissionsForRole lists the slugs granted by a role.
	PermissionsForRole(ctx context.Context, roleID string) ([]Permission, error)
}

package auth

import (
	"context"
	"errors"
)

// Resolver derives the permission set granted by an account's roles. It runs
// at login and activation to populate the session snapshot, and when an
// administrator asks for a fresh view of a user's grants. It is never invoked
// per authorization check: the session snapshot is authoritative until the
// next login, an explicit staleness tradeoff.
type Resolver struct {
	roles RoleStore
}

func NewResolver(roles RoleStore) (*Resolver, error) {
	if roles == nil {
		return nil, errors.New("role store is required")
	}
	return &Resolver{roles: roles}, nil
}

// Resolve loads the account's non-deleted roles and the deduplicated union
// of their permission slugs. An account with no roles resolves to an empty
// set; downstream checks deny by default.
func (r *Resolver) Resolve(ctx context.Context, accountID string) ([]Role, PermissionSet, error) {
	roles, err := r.roles.RolesForAccount(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	perms := make(PermissionSet)
	for _, role := range roles {
		granted, err := r.roles.PermissionsForRole(ctx, role.ID)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range granted {
			perms.Add(p)
		}
	}
	return roles, perms, nil
}

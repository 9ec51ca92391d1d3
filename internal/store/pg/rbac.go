package pg

import (
	"context"

	"taskfold.org/internal/auth"
)

// RolesForAccount lists the account's roles, excluding soft-deleted ones.
func (s *Store) RolesForAccount(ctx context.Context, accountID string) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name
		from roles r
		join account_roles ar on ar.role_id = r.id
		where ar.account_id = $1 and r.is_deleted = false
		order by r.name
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		var role auth.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// PermissionsForRole lists the slugs a role grants. Slugs no longer in the
// catalog are skipped: a stale grant must never widen access.
func (s *Store) PermissionsForRole(ctx context.Context, roleID string) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.slug
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		where rp.role_id = $1
		order by p.slug
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []auth.Permission
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		if p, err := auth.ParsePermission(slug); err == nil {
			perms = append(perms, p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

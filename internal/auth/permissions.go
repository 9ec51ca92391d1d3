package auth

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Permission identifies a grantable capability. Values outside the catalog
// fail at construction, not silently at check time.
type Permission string

const (
	PermProjectsView     Permission = "projects.view"
	PermProjectsManage   Permission = "projects.manage"
	PermTasksView        Permission = "tasks.view"
	PermTasksManage      Permission = "tasks.manage"
	PermSprintsManage    Permission = "sprints.manage"
	PermMilestonesManage Permission = "milestones.manage"
	PermTemplatesManage  Permission = "templates.manage"
	PermTimelogsView     Permission = "timelogs.view"
	PermTimelogsManage   Permission = "timelogs.manage"
	PermReportsView      Permission = "reports.view"
	PermUsersView        Permission = "users.view"
	PermUsersManage      Permission = "users.manage"
	PermRolesManage      Permission = "roles.manage"
	PermSettingsManage   Permission = "settings.manage"
)

// Catalog lists every permission the application grants, in seed order.
var Catalog = []Permission{
	PermProjectsView,
	PermProjectsManage,
	PermTasksView,
	PermTasksManage,
	PermSprintsManage,
	PermMilestonesManage,
	PermTemplatesManage,
	PermTimelogsView,
	PermTimelogsManage,
	PermReportsView,
	PermUsersView,
	PermUsersManage,
	PermRolesManage,
	PermSettingsManage,
}

var catalogSet = func() map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(Catalog))
	for _, p := range Catalog {
		set[p] = struct{}{}
	}
	return set
}()

// ParsePermission validates a raw slug against the catalog.
func ParsePermission(slug string) (Permission, error) {
	p := Permission(slug)
	if _, ok := catalogSet[p]; !ok {
		return "", fmt.Errorf("%w: unknown permission %q", ErrInvalidInput, slug)
	}
	return p, nil
}

// PermissionSet is the deduplicated union of permissions reachable from an
// account's roles. The zero value denies everything.
type PermissionSet map[Permission]struct{}

func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

func (s PermissionSet) Add(p Permission) {
	s[p] = struct{}{}
}

// Slugs returns the set as a sorted slice, for stable serialization.
func (s PermissionSet) Slugs() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted slug array. Sessions persist the
// snapshot this way.
func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slugs())
}

// UnmarshalJSON restores a set from a slug array. Unknown slugs are dropped
// rather than resurrected: a stale snapshot must never widen access.
func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var slugs []string
	if err := json.Unmarshal(data, &slugs); err != nil {
		return err
	}
	set := make(PermissionSet, len(slugs))
	for _, slug := range slugs {
		if p, err := ParsePermission(slug); err == nil {
			set[p] = struct{}{}
		}
	}
	*s = set
	return nil
}

package auth

import (
	"context"
	"strings"
)

// AdminRoleName is matched case-sensitively by IsAdmin. The coarse role guard
// in AuthorizeRole is deliberately case-insensitive; the two checks are kept
// distinct on purpose.
const AdminRoleName = "Admin"

// PermissionResolver resolves a user's effective permission set from live
// role grants in the directory. It never trusts token claims.
type PermissionResolver struct {
	dir Directory
}

// NewPermissionResolver constructs a resolver over the given directory.
func NewPermissionResolver(dir Directory) *PermissionResolver {
	return &PermissionResolver{dir: dir}
}

// IsAdmin reports whether any of the user's current role assignments is named
// exactly "Admin".
func (r *PermissionResolver) IsAdmin(ctx context.Context, userID string) (bool, error) {
	names, err := r.dir.Roles().NamesForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if name == AdminRoleName {
			return true, nil
		}
	}
	return false, nil
}

// EffectivePermissions returns the union, over all of the user's current role
// assignments, of the granted permission names.
func (r *PermissionResolver) EffectivePermissions(ctx context.Context, userID string) (map[string]struct{}, error) {
	assignments, err := r.dir.Roles().Assignments(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, a := range assignments {
		perms, err := r.dir.Permissions().PermissionsForRole(ctx, a.RoleID)
		if err != nil {
			return nil, err
		}
		for _, p := range perms {
			set[p.Name] = struct{}{}
		}
	}
	return set, nil
}

// Authorize reports whether the user may perform the action guarded by the
// required permission. Administrators bypass explicit grants.
func (r *PermissionResolver) Authorize(ctx context.Context, userID, requiredPermission string) (bool, error) {
	admin, err := r.IsAdmin(ctx, userID)
	if err != nil {
		return false, err
	}
	if admin {
		return true, nil
	}
	perms, err := r.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	_, ok := perms[requiredPermission]
	return ok, nil
}

// AuthorizeRole is the coarse, token-based role guard: it operates only on the
// role-name snapshot embedded in the claims, matching case-insensitively, and
// costs no directory round-trip. The snapshot can be stale relative to live
// assignments until the token is re-issued.
func AuthorizeRole(tokenRoles []string, requiredRole string) bool {
	requiredRole = strings.TrimSpace(requiredRole)
	if requiredRole == "" {
		return false
	}
	for _, role := range tokenRoles {
		if strings.EqualFold(role, requiredRole) {
			return true
		}
	}
	return false
}

package auth

import (
	"context"
	"errors"
	"fmt"
)

// EnsureDefaults makes sure the builtin permissions, the Admin and User roles
// and their grants exist. Admin gets every builtin permission, User gets READ.
// Safe to call on every startup.
func EnsureDefaults(ctx context.Context, dir Directory) error {
	if err := dir.Permissions().Ensure(ctx, BuiltinPermissions); err != nil {
		return fmt.Errorf("ensure permissions: %w", err)
	}

	admin, err := ensureRole(ctx, dir, AdminRoleName, "Full access to every resource")
	if err != nil {
		return err
	}
	user, err := ensureRole(ctx, dir, DefaultRoleName, "Standard account")
	if err != nil {
		return err
	}

	allNames := make([]string, 0, len(BuiltinPermissions))
	for _, p := range BuiltinPermissions {
		allNames = append(allNames, p.Name)
	}
	if err := dir.Permissions().SetForRole(ctx, admin.ID, allNames); err != nil {
		return fmt.Errorf("grant admin permissions: %w", err)
	}
	if err := dir.Permissions().SetForRole(ctx, user.ID, []string{PermissionRead}); err != nil {
		return fmt.Errorf("grant user permissions: %w", err)
	}
	return nil
}

func ensureRole(ctx context.Context, dir Directory, name, description string) (*Role, error) {
	role, err := dir.Roles().FindByName(ctx, name)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("find role %s: %w", name, err)
	}
	role = &Role{Name: name, Description: description}
	if err := dir.Roles().Create(ctx, role); err != nil {
		return nil, fmt.Errorf("create role %s: %w", name, err)
	}
	return role, nil
}

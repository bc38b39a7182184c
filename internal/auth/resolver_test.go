package auth

import (
	"context"
	"testing"
)

func seedDirectory(t *testing.T) *MemoryDirectory {
	t.Helper()
	dir := NewMemoryDirectory()
	if err := EnsureDefaults(context.Background(), dir); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	return dir
}

func addUserWithRole(t *testing.T, dir Directory, email, roleName string) *User {
	t.Helper()
	ctx := context.Background()
	u := &User{Email: email, PasswordHash: "x", Status: UserStatusActive}
	if err := dir.Users().Create(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if roleName != "" {
		role, err := dir.Roles().FindByName(ctx, roleName)
		if err != nil {
			t.Fatalf("find role %s: %v", roleName, err)
		}
		if err := dir.Roles().Assign(ctx, RoleAssignment{UserID: u.ID, RoleID: role.ID}); err != nil {
			t.Fatalf("assign role: %v", err)
		}
	}
	return u
}

func TestIsAdminMatchesExactName(t *testing.T) {
	dir := seedDirectory(t)
	ctx := context.Background()

	// A role spelled differently must not count as Admin.
	lower := &Role{Name: "admin", Description: "not the real one"}
	if err := dir.Roles().Create(ctx, lower); err != nil {
		t.Fatalf("create role: %v", err)
	}

	admin := addUserWithRole(t, dir, "admin@example.com", AdminRoleName)
	impostor := addUserWithRole(t, dir, "impostor@example.com", "admin")
	plain := addUserWithRole(t, dir, "user@example.com", DefaultRoleName)

	r := NewPermissionResolver(dir)
	for _, tc := range []struct {
		user *User
		want bool
	}{
		{admin, true},
		{impostor, false},
		{plain, false},
	} {
		got, err := r.IsAdmin(ctx, tc.user.ID)
		if err != nil {
			t.Fatalf("IsAdmin(%s): %v", tc.user.Email, err)
		}
		if got != tc.want {
			t.Errorf("IsAdmin(%s) = %v, want %v", tc.user.Email, got, tc.want)
		}
	}
}

func TestEffectivePermissionsUnion(t *testing.T) {
	dir := seedDirectory(t)
	ctx := context.Background()

	auditor := &Role{Name: "Auditor"}
	if err := dir.Roles().Create(ctx, auditor); err != nil {
		t.Fatalf("create role: %v", err)
	}
	if err := dir.Permissions().SetForRole(ctx, auditor.ID, []string{PermissionRead, PermissionDelete}); err != nil {
		t.Fatalf("set role perms: %v", err)
	}

	u := addUserWithRole(t, dir, "multi@example.com", DefaultRoleName)
	if err := dir.Roles().Assign(ctx, RoleAssignment{UserID: u.ID, RoleID: auditor.ID}); err != nil {
		t.Fatalf("assign second role: %v", err)
	}

	r := NewPermissionResolver(dir)
	perms, err := r.EffectivePermissions(ctx, u.ID)
	if err != nil {
		t.Fatalf("EffectivePermissions: %v", err)
	}
	for _, want := range []string{PermissionRead, PermissionDelete} {
		if _, ok := perms[want]; !ok {
			t.Errorf("missing permission %s in %v", want, perms)
		}
	}
	if _, ok := perms[PermissionWrite]; ok {
		t.Errorf("unexpected WRITE permission in %v", perms)
	}
}

func TestAuthorizeAdminBypass(t *testing.T) {
	dir := seedDirectory(t)
	ctx := context.Background()

	admin := addUserWithRole(t, dir, "admin@example.com", AdminRoleName)
	plain := addUserWithRole(t, dir, "user@example.com", DefaultRoleName)
	nobody := addUserWithRole(t, dir, "nobody@example.com", "")

	r := NewPermissionResolver(dir)
	cases := []struct {
		name   string
		userID string
		perm   string
		want   bool
	}{
		{"admin any permission", admin.ID, PermissionDelete, true},
		{"admin unknown permission", admin.ID, "SHRED", true},
		{"user granted read", plain.ID, PermissionRead, true},
		{"user denied delete", plain.ID, PermissionDelete, false},
		{"no roles denied", nobody.ID, PermissionRead, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Authorize(ctx, tc.userID, tc.perm)
			if err != nil {
				t.Fatalf("Authorize: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Authorize = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAuthorizeRole(t *testing.T) {
	cases := []struct {
		name     string
		roles    []string
		required string
		want     bool
	}{
		{"exact match", []string{"Admin"}, "Admin", true},
		{"case-insensitive match", []string{"ADMIN"}, "admin", true},
		{"mixed case", []string{"aDmIn"}, "Admin", true},
		{"no match", []string{"User"}, "Admin", false},
		{"empty roles", nil, "Admin", false},
		{"empty required", []string{"Admin"}, "", false},
		{"second of many", []string{"User", "Admin"}, "Admin", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AuthorizeRole(tc.roles, tc.required); got != tc.want {
				t.Fatalf("AuthorizeRole(%v, %q) = %v, want %v", tc.roles, tc.required, got, tc.want)
			}
		})
	}
}

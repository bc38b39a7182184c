package auth

import "context"

// Directory describes the persistence operations the auth core needs. It is
// injected explicitly; nothing in this package reaches for a shared handle.
type Directory interface {
	Users() UserStore
	Roles() RoleStore
	Permissions() PermissionStore
	Connections() ConnectionLogStore
	Close() error
}

// UserStore manages user accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// RoleStore manages roles and user-role assignments.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Find(ctx context.Context, id string) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	Assign(ctx context.Context, assignment RoleAssignment) error
	Assignments(ctx context.Context, userID string) ([]RoleAssignment, error)
	NamesForUser(ctx context.Context, userID string) ([]string, error)
}

// PermissionStore manages the permission catalog and role grants.
type PermissionStore interface {
	Ensure(ctx context.Context, perms []Permission) error
	List(ctx context.Context) ([]Permission, error)
	SetForRole(ctx context.Context, roleID string, permNames []string) error
	PermissionsForRole(ctx context.Context, roleID string) ([]Permission, error)
}

// ConnectionLogStore persists the connection audit trail. Rows are created
// exactly once per successful login.
type ConnectionLogStore interface {
	Create(ctx context.Context, entry *ConnectionLogEntry) error
	Find(ctx context.Context, id string) (*ConnectionLogEntry, error)
	List(ctx context.Context, offset, limit int) ([]*ConnectionLogEntry, int, error)
	ListByUser(ctx context.Context, userID string) ([]*ConnectionLogEntry, error)
	Latest(ctx context.Context, limit int) ([]*ConnectionLogEntry, error)
	Count(ctx context.Context) (int, error)
	SetLogoutTime(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

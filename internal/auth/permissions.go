package auth

// Permission names granted to roles. The seed grants all three to Admin and
// READ to User.
const (
	PermissionRead   = "READ"
	PermissionWrite  = "WRITE"
	PermissionDelete = "DELETE"
)

// DefaultRoleName is assigned to newly registered users.
const DefaultRoleName = "User"

var BuiltinPermissions = []Permission{
	{Name: PermissionRead, Description: "Read domain resources"},
	{Name: PermissionWrite, Description: "Create and update domain resources"},
	{Name: PermissionDelete, Description: "Delete domain resources"},
}

package auth

import "time"

const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User is an account in the directory. The core never deletes users; it only
// creates them at registration and mutates their password hash.
type User struct {
	ID            string    `json:"user_id"`
	FirstName     string    `json:"first_name"`
	MiddleName    string    `json:"middle_name,omitempty"`
	FirstSurname  string    `json:"first_surname"`
	SecondSurname string    `json:"second_surname,omitempty"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	PhoneNumber   string    `json:"phone_number,omitempty"`
	Birthdate     time.Time `json:"birthdate"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Sanitized returns a copy safe to hand back to callers: the password hash is
// stripped regardless of how the struct ends up serialized.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	return u
}

// Role groups permissions. Role names are stable identifiers such as "Admin"
// and "User".
type Role struct {
	ID          string    `json:"role_id"`
	Name        string    `json:"role_name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Permission is a named capability such as READ or WRITE. Permissions are
// granted to roles, never directly to users.
type Permission struct {
	ID          string    `json:"permission_id"`
	Name        string    `json:"permission_name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RoleAssignment links a user to a role.
type RoleAssignment struct {
	UserID    string    `json:"user_id"`
	RoleID    string    `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RolePermission links a role to a granted permission.
type RolePermission struct {
	RoleID       string `json:"role_id"`
	PermissionID string `json:"permission_id"`
}

// ConnectionLogEntry records one successful login. The logout time is set
// later by an explicit update, never automatically.
type ConnectionLogEntry struct {
	ID         string     `json:"connection_id"`
	UserID     string     `json:"user_id"`
	LoginTime  time.Time  `json:"login_time"`
	LogoutTime *time.Time `json:"logout_time"`
	IPAddress  string     `json:"ip_address"`
	DeviceInfo string     `json:"device_info"`
	CreatedAt  time.Time  `json:"created_at"`
}

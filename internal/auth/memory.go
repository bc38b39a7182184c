package auth

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"fintrack.org/internal/ids"
)

// MemoryDirectory is an in-memory Directory used by tests and DSN-less dev
// runs. All operations are guarded by a single mutex; the auth core itself
// adds no locking and relies on per-operation store atomicity.
type MemoryDirectory struct {
	mu          sync.Mutex
	users       map[string]*User
	roles       map[string]*Role
	perms       map[string]*Permission
	assignments []RoleAssignment
	grants      []RolePermission
	connections map[string]*ConnectionLogEntry
}

var _ Directory = (*MemoryDirectory)(nil)

// NewMemoryDirectory returns an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		users:       make(map[string]*User),
		roles:       make(map[string]*Role),
		perms:       make(map[string]*Permission),
		connections: make(map[string]*ConnectionLogEntry),
	}
}

func (d *MemoryDirectory) Users() UserStore                { return (*memUsers)(d) }
func (d *MemoryDirectory) Roles() RoleStore                { return (*memRoles)(d) }
func (d *MemoryDirectory) Permissions() PermissionStore    { return (*memPerms)(d) }
func (d *MemoryDirectory) Connections() ConnectionLogStore { return (*memConns)(d) }
func (d *MemoryDirectory) Close() error                    { return nil }

// User store ---------------------------------------------------------------

type memUsers MemoryDirectory

func (s *memUsers) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = ids.New()
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrAlreadyExists
		}
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	clone := *u
	s.users[u.ID] = &clone
	return nil
}

func (s *memUsers) Find(ctx context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *memUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memUsers) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// Role store ---------------------------------------------------------------

type memRoles MemoryDirectory

func (s *memRoles) Create(ctx context.Context, role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if role.ID == "" {
		role.ID = ids.New()
	}
	for _, existing := range s.roles {
		if existing.Name == role.Name {
			return ErrAlreadyExists
		}
	}
	role.CreatedAt = time.Now().UTC()
	clone := *role
	s.roles[role.ID] = &clone
	return nil
}

func (s *memRoles) Find(ctx context.Context, id string) (*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *role
	return &clone, nil
}

func (s *memRoles) FindByName(ctx context.Context, name string) (*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range s.roles {
		if role.Name == name {
			clone := *role
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memRoles) Assign(ctx context.Context, assignment RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.UserID == assignment.UserID && a.RoleID == assignment.RoleID {
			return nil
		}
	}
	assignment.CreatedAt = time.Now().UTC()
	s.assignments = append(s.assignments, assignment)
	return nil
}

func (s *memRoles) Assignments(ctx context.Context, userID string) ([]RoleAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RoleAssignment
	for _, a := range s.assignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memRoles) NamesForUser(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, a := range s.assignments {
		if a.UserID != userID {
			continue
		}
		if role, ok := s.roles[a.RoleID]; ok {
			names = append(names, role.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Permission store ---------------------------------------------------------

type memPerms MemoryDirectory

func (s *memPerms) Ensure(ctx context.Context, perms []Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range perms {
		if s.findByName(p.Name) != nil {
			continue
		}
		if p.ID == "" {
			p.ID = ids.New()
		}
		p.CreatedAt = time.Now().UTC()
		clone := p
		s.perms[p.ID] = &clone
	}
	return nil
}

func (s *memPerms) List(ctx context.Context) ([]Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Permission, 0, len(s.perms))
	for _, p := range s.perms {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memPerms) SetForRole(ctx context.Context, roleID string, permNames []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	filtered := s.grants[:0]
	for _, g := range s.grants {
		if g.RoleID != roleID {
			filtered = append(filtered, g)
		}
	}
	s.grants = filtered
	for _, name := range permNames {
		p := s.findByName(name)
		if p == nil {
			return ErrNotFound
		}
		s.grants = append(s.grants, RolePermission{RoleID: roleID, PermissionID: p.ID})
	}
	return nil
}

func (s *memPerms) PermissionsForRole(ctx context.Context, roleID string) ([]Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Permission
	for _, g := range s.grants {
		if g.RoleID != roleID {
			continue
		}
		if p, ok := s.perms[g.PermissionID]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *memPerms) findByName(name string) *Permission {
	for _, p := range s.perms {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Connection log store ------------------------------------------------------

type memConns MemoryDirectory

func (s *memConns) Create(ctx context.Context, entry *ConnectionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	entry.CreatedAt = time.Now().UTC()
	clone := *entry
	s.connections[entry.ID] = &clone
	return nil
}

func (s *memConns) Find(ctx context.Context, id string) (*ConnectionLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.connections[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

func (s *memConns) List(ctx context.Context, offset, limit int) ([]*ConnectionLogEntry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sortedLocked()
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	out := make([]*ConnectionLogEntry, 0, end-offset)
	for _, e := range all[offset:end] {
		clone := *e
		out = append(out, &clone)
	}
	return out, total, nil
}

func (s *memConns) ListByUser(ctx context.Context, userID string) ([]*ConnectionLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ConnectionLogEntry
	for _, e := range s.sortedLocked() {
		if e.UserID == userID {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *memConns) Latest(ctx context.Context, limit int) ([]*ConnectionLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sortedLocked()
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	out := make([]*ConnectionLogEntry, 0, len(all))
	for _, e := range all {
		clone := *e
		out = append(out, &clone)
	}
	return out, nil
}

func (s *memConns) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections), nil
}

func (s *memConns) SetLogoutTime(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.connections[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	entry.LogoutTime = &now
	return nil
}

func (s *memConns) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connections[id]; !ok {
		return ErrNotFound
	}
	delete(s.connections, id)
	return nil
}

// sortedLocked returns entries newest-first. Callers must hold the mutex.
func (s *memConns) sortedLocked() []*ConnectionLogEntry {
	out := make([]*ConnectionLogEntry, 0, len(s.connections))
	for _, e := range s.connections {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoginTime.After(out[j].LoginTime) })
	return out
}

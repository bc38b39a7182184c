package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"fintrack.org/internal/ids"
)

var _ Directory = (*PGDirectory)(nil)

// PGDirectory implements Directory on PostgreSQL via database/sql and the pgx
// stdlib driver.
type PGDirectory struct {
	db *sql.DB
}

// OpenPG opens a pooled connection to PostgreSQL.
func OpenPG(dsn string) (*PGDirectory, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PGDirectory{db: db}, nil
}

// NewPGDirectory wraps an existing handle (used by tests with sqlmock).
func NewPGDirectory(db *sql.DB) *PGDirectory {
	return &PGDirectory{db: db}
}

func (d *PGDirectory) Users() UserStore                { return &pgUsers{db: d.db} }
func (d *PGDirectory) Roles() RoleStore                { return &pgRoles{db: d.db} }
func (d *PGDirectory) Permissions() PermissionStore    { return &pgPerms{db: d.db} }
func (d *PGDirectory) Connections() ConnectionLogStore { return &pgConns{db: d.db} }
func (d *PGDirectory) Close() error                    { return d.db.Close() }

// DB exposes the handle for readiness probes.
func (d *PGDirectory) DB() *sql.DB { return d.db }

// User store ---------------------------------------------------------------

type pgUsers struct{ db *sql.DB }

const userColumns = `user_id, first_name, middle_name, first_surname, second_surname,
	email, password_hash, phone_number, birthdate, status, created_at, updated_at`

func (s *pgUsers) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(user_id, first_name, middle_name, first_surname, second_surname,
			email, password_hash, phone_number, birthdate, status)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		u.ID, u.FirstName, u.MiddleName, u.FirstSurname, u.SecondSurname,
		u.Email, u.PasswordHash, u.PhoneNumber, u.Birthdate, u.Status,
	)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return ErrAlreadyExists
	}
	return err
}

func (s *pgUsers) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where user_id=$1`, id)
	return scanUser(row)
}

func (s *pgUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email)
	return scanUser(row)
}

func (s *pgUsers) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2, updated_at=now() where user_id=$1`,
		userID, passwordHash)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.FirstName, &u.MiddleName, &u.FirstSurname, &u.SecondSurname,
		&u.Email, &u.PasswordHash, &u.PhoneNumber, &u.Birthdate, &u.Status,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Role store ---------------------------------------------------------------

type pgRoles struct{ db *sql.DB }

func (s *pgRoles) Create(ctx context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into roles(role_id, role_name, description) values($1,$2,$3)`,
		role.ID, role.Name, role.Description)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return ErrAlreadyExists
	}
	return err
}

func (s *pgRoles) Find(ctx context.Context, id string) (*Role, error) {
	row := s.db.QueryRowContext(ctx,
		`select role_id, role_name, description, created_at from roles where role_id=$1`, id)
	return scanRole(row)
}

func (s *pgRoles) FindByName(ctx context.Context, name string) (*Role, error) {
	row := s.db.QueryRowContext(ctx,
		`select role_id, role_name, description, created_at from roles where role_name=$1`, name)
	return scanRole(row)
}

func scanRole(row *sql.Row) (*Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *pgRoles) Assign(ctx context.Context, assignment RoleAssignment) error {
	_, err := s.db.ExecContext(ctx,
		`insert into user_roles(user_id, role_id) values($1,$2) on conflict do nothing`,
		assignment.UserID, assignment.RoleID)
	return err
}

func (s *pgRoles) Assignments(ctx context.Context, userID string) ([]RoleAssignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`select user_id, role_id, created_at from user_roles where user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		if err := rows.Scan(&a.UserID, &a.RoleID, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *pgRoles) NamesForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select r.role_name from roles r
		 join user_roles ur on ur.role_id = r.role_id
		 where ur.user_id=$1 order by r.role_name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Permission store ---------------------------------------------------------

type pgPerms struct{ db *sql.DB }

func (s *pgPerms) Ensure(ctx context.Context, perms []Permission) error {
	for _, p := range perms {
		if p.ID == "" {
			p.ID = ids.New()
		}
		_, err := s.db.ExecContext(ctx,
			`insert into permissions(permission_id, permission_name, description)
			 values($1,$2,$3) on conflict (permission_name) do nothing`,
			p.ID, p.Name, p.Description)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *pgPerms) List(ctx context.Context) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select permission_id, permission_name, description, created_at
		 from permissions order by permission_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func (s *pgPerms) SetForRole(ctx context.Context, roleID string, permNames []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id=$1`, roleID); err != nil {
		return err
	}
	for _, name := range permNames {
		_, err := tx.ExecContext(ctx,
			`insert into role_permissions(role_id, permission_id)
			 select $1, permission_id from permissions where permission_name=$2`, roleID, name)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *pgPerms) PermissionsForRole(ctx context.Context, roleID string) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select p.permission_id, p.permission_name, p.description, p.created_at
		 from permissions p
		 join role_permissions rp on rp.permission_id = p.permission_id
		 where rp.role_id=$1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func scanPermissions(rows *sql.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// Connection log store ------------------------------------------------------

type pgConns struct{ db *sql.DB }

const connColumns = `connection_id, user_id, login_time, logout_time, ip_address, device_info, created_at`

func (s *pgConns) Create(ctx context.Context, entry *ConnectionLogEntry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into user_connection_log(connection_id, user_id, login_time, logout_time, ip_address, device_info)
		 values($1,$2,$3,$4,$5,$6)`,
		entry.ID, entry.UserID, entry.LoginTime, entry.LogoutTime, entry.IPAddress, entry.DeviceInfo)
	return err
}

func (s *pgConns) Find(ctx context.Context, id string) (*ConnectionLogEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+connColumns+` from user_connection_log where connection_id=$1`, id)
	var e ConnectionLogEntry
	err := row.Scan(&e.ID, &e.UserID, &e.LoginTime, &e.LogoutTime, &e.IPAddress, &e.DeviceInfo, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *pgConns) List(ctx context.Context, offset, limit int) ([]*ConnectionLogEntry, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from user_connection_log`).Scan(&total); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+connColumns+` from user_connection_log
		 order by login_time desc offset $1 limit $2`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	entries, err := scanConnections(rows)
	return entries, total, err
}

func (s *pgConns) ListByUser(ctx context.Context, userID string) ([]*ConnectionLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+connColumns+` from user_connection_log where user_id=$1 order by login_time desc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConnections(rows)
}

func (s *pgConns) Latest(ctx context.Context, limit int) ([]*ConnectionLogEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+connColumns+` from user_connection_log order by login_time desc limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConnections(rows)
}

func (s *pgConns) Count(ctx context.Context) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `select count(*) from user_connection_log`).Scan(&total)
	return total, err
}

func (s *pgConns) SetLogoutTime(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update user_connection_log set logout_time=now() where connection_id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgConns) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from user_connection_log where connection_id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanConnections(rows *sql.Rows) ([]*ConnectionLogEntry, error) {
	var out []*ConnectionLogEntry
	for rows.Next() {
		var e ConnectionLogEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.LoginTime, &e.LogoutTime, &e.IPAddress, &e.DeviceInfo, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

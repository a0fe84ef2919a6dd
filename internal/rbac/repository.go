package rbac

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hrflow/hrflow/internal/platform/db"
)

// Repository is the read side of the role store plus its transaction entry point.
type Repository interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	// AssignedRole returns the user's role with its permission names. The
	// boolean is false when the user holds no role.
	AssignedRole(ctx context.Context, userID int64) (Role, bool, error)
	UsersWithPermission(ctx context.Context, permission string) ([]int64, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	// Role operations
	LockRole(ctx context.Context, id int64) (Role, error)
	RoleNameExists(ctx context.Context, name string, excludeID int64) (bool, error)
	InsertRole(ctx context.Context, name string, system bool) (Role, error)
	SaveRole(ctx context.Context, id int64, name string) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	EnsureRole(ctx context.Context, name string, system bool) (Role, error)

	// Permission operations
	PermissionIDs(ctx context.Context, names []string) (map[string]int64, error)
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	UpsertPermission(ctx context.Context, name, category string) (int64, error)

	// Assignment operations
	InsertAccount(ctx context.Context, acct Account, label string) (int64, error)
	DetachRoleUsers(ctx context.Context, roleID int64) (int64, error)
	LockUser(ctx context.Context, userID int64) error
	ReplaceUserRole(ctx context.Context, userID, roleID int64) error
	SetUserRoleLabel(ctx context.Context, userID int64, label string) error
}

// dbtx is satisfied by *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a read-committed transaction. Writers serialize on
// the rows they lock.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// ListPermissions returns the catalog ordered by name.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, category FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Category); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// ListRoles returns every role with its permission names, ordered by name.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, r.is_system, r.created_at, r.updated_at,
			COALESCE(array_agg(p.name ORDER BY p.name) FILTER (WHERE p.name IS NOT NULL), '{}')
		FROM roles r
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		GROUP BY r.id
		ORDER BY r.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt, &role.Permissions); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	return getRole(ctx, r.pool, `r.id = $1`, id)
}

// GetRoleByName fetches a role by exact name.
func (r *PGRepository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	return getRole(ctx, r.pool, `r.name = $1`, name)
}

// AssignedRole resolves the single role held by a user and its permissions
// in one statement, so a role deleted concurrently reads as no role.
func (r *PGRepository) AssignedRole(ctx context.Context, userID int64) (Role, bool, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		SELECT r.id, r.name, r.is_system, r.created_at, r.updated_at,
			COALESCE(array_agg(p.name ORDER BY p.name) FILTER (WHERE p.name IS NOT NULL), '{}')
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1
		GROUP BY r.id`, userID).Scan(&role.ID, &role.Name, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt, &role.Permissions)
	if db.IsNoRows(err) {
		return Role{}, false, nil
	}
	if err != nil {
		return Role{}, false, err
	}
	return role, true, nil
}

// UsersWithPermission lists users whose assigned role grants permission.
func (r *PGRepository) UsersWithPermission(ctx context.Context, permission string) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ur.user_id
		FROM user_roles ur
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE p.name = $1
		ORDER BY ur.user_id`, permission)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func getRole(ctx context.Context, q dbtx, where string, arg any) (Role, error) {
	var role Role
	err := q.QueryRow(ctx, `
		SELECT r.id, r.name, r.is_system, r.created_at, r.updated_at,
			COALESCE(array_agg(p.name ORDER BY p.name) FILTER (WHERE p.name IS NOT NULL), '{}')
		FROM roles r
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE `+where+`
		GROUP BY r.id`, arg).Scan(&role.ID, &role.Name, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt, &role.Permissions)
	if db.IsNoRows(err) {
		return Role{}, ErrRoleNotFound
	}
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// ============================================================================
// TRANSACTIONAL OPERATIONS
// ============================================================================

func (t *txRepo) LockRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := t.tx.QueryRow(ctx, `SELECT id, name, is_system, created_at, updated_at FROM roles WHERE id = $1 FOR UPDATE`, id).
		Scan(&role.ID, &role.Name, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if db.IsNoRows(err) {
		return Role{}, ErrRoleNotFound
	}
	return role, err
}

func (t *txRepo) RoleNameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1 AND id <> $2)`, name, excludeID).Scan(&exists)
	return exists, err
}

func (t *txRepo) InsertRole(ctx context.Context, name string, system bool) (Role, error) {
	role := Role{Name: name, IsSystem: system}
	err := t.tx.QueryRow(ctx, `INSERT INTO roles (name, is_system) VALUES ($1, $2) RETURNING id, created_at, updated_at`, name, system).
		Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return Role{}, ErrRoleNameTaken
	}
	return role, err
}

func (t *txRepo) SaveRole(ctx context.Context, id int64, name string) (Role, error) {
	var role Role
	err := t.tx.QueryRow(ctx, `UPDATE roles SET name = $2, updated_at = NOW() WHERE id = $1
		RETURNING id, name, is_system, created_at, updated_at`, id, name).
		Scan(&role.ID, &role.Name, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if db.IsNoRows(err) {
		return Role{}, ErrRoleNotFound
	}
	if db.IsUniqueViolation(err) {
		return Role{}, ErrRoleNameTaken
	}
	return role, err
}

func (t *txRepo) DeleteRole(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
		return fmt.Errorf("detach role permissions: %w", err)
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

func (t *txRepo) EnsureRole(ctx context.Context, name string, system bool) (Role, error) {
	var role Role
	err := t.tx.QueryRow(ctx, `
		INSERT INTO roles (name, is_system) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET is_system = EXCLUDED.is_system
		RETURNING id, name, is_system, created_at, updated_at`, name, system).
		Scan(&role.ID, &role.Name, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

func (t *txRepo) PermissionIDs(ctx context.Context, names []string) (map[string]int64, error) {
	out := make(map[string]int64, len(names))
	if len(names) == 0 {
		return out, nil
	}
	rows, err := t.tx.Query(ctx, `SELECT id, name FROM permissions WHERE name = ANY($1)`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[name] = id
	}
	return out, rows.Err()
}

func (t *txRepo) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	if len(permissionIDs) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING`, roleID, permissionIDs)
	return err
}

func (t *txRepo) UpsertPermission(ctx context.Context, name, category string) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO permissions (name, category) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET category = EXCLUDED.category
		RETURNING id`, name, category).Scan(&id)
	return id, err
}

func (t *txRepo) InsertAccount(ctx context.Context, acct Account, label string) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role, department_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`, acct.Name, acct.Email, acct.PasswordHash, label, acct.DepartmentID).Scan(&id)
	switch {
	case db.IsUniqueViolation(err):
		return 0, ErrEmailTaken
	case db.IsForeignKeyViolation(err):
		return 0, ErrUnknownDepartment
	}
	return id, err
}

func (t *txRepo) DetachRoleUsers(ctx context.Context, roleID int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM user_roles WHERE role_id = $1`, roleID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepo) LockUser(ctx context.Context, userID int64) error {
	var id int64
	err := t.tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if db.IsNoRows(err) {
		return ErrUserNotFound
	}
	return err
}

func (t *txRepo) ReplaceUserRole(ctx context.Context, userID, roleID int64) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, assigned_at) VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET role_id = EXCLUDED.role_id, assigned_at = EXCLUDED.assigned_at`, userID, roleID)
	if db.IsForeignKeyViolation(err) {
		return ErrRoleNotFound
	}
	return err
}

func (t *txRepo) SetUserRoleLabel(ctx context.Context, userID int64, label string) error {
	_, err := t.tx.Exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, userID, label)
	return err
}

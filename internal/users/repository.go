package users

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hrflow/hrflow/internal/platform/db"
	"github.com/hrflow/hrflow/internal/rbac"
	"github.com/hrflow/hrflow/internal/shared"
)

// ErrUserNotFound indicates the user id does not exist.
var ErrUserNotFound = fmt.Errorf("users: user %w", shared.ErrNotFound)

// ErrEmailTaken indicates another account already uses the email.
var ErrEmailTaken = rbac.ErrEmailTaken

// ErrUnknownDepartment indicates the department id does not exist.
var ErrUnknownDepartment = rbac.ErrUnknownDepartment

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectUser = `
	SELECT u.id, u.name, u.email, u.role, u.department_id, u.created_at, u.updated_at, r.id, r.name
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id`

func scanUser(row pgx.Row) (User, error) {
	var (
		u        User
		roleID   *int64
		roleName *string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.RoleLabel, &u.DepartmentID, &u.CreatedAt, &u.UpdatedAt, &roleID, &roleName); err != nil {
		return User{}, err
	}
	if roleID != nil && roleName != nil {
		u.Role = &RoleRef{ID: *roleID, Name: *roleName}
	}
	return u, nil
}

// ListUsers returns all users.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, selectUser+` ORDER BY u.name, u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetUser fetches one user with the assigned role.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE u.id = $1`, id))
	if db.IsNoRows(err) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// UpdateUser applies changes to the account row.
func (r *Repository) UpdateUser(ctx context.Context, id int64, changes UserChanges) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET
			name = COALESCE($2, name),
			email = COALESCE($3, email),
			password_hash = COALESCE($4, password_hash),
			department_id = CASE WHEN $6::boolean THEN NULL ELSE COALESCE($5, department_id) END,
			updated_at = NOW()
		WHERE id = $1`, id, changes.Name, changes.Email, changes.PasswordHash, changes.DepartmentID, changes.ClearDepartment)
	switch {
	case db.IsUniqueViolation(err):
		return ErrEmailTaken
	case db.IsForeignKeyViolation(err):
		return ErrUnknownDepartment
	case err != nil:
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser removes the account; its role assignment cascades.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)

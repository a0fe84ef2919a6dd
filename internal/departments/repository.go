package departments

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hrflow/hrflow/internal/platform/db"
	"github.com/hrflow/hrflow/internal/shared"
)

var (
	// ErrDepartmentNotFound indicates the department id does not exist.
	ErrDepartmentNotFound = fmt.Errorf("departments: department %w", shared.ErrNotFound)
	// ErrNameTaken indicates another department already uses the name.
	ErrNameTaken = fmt.Errorf("departments: name already exists: %w", shared.ErrConflict)
	// ErrUnknownManager indicates manager_id does not name a user.
	ErrUnknownManager = fmt.Errorf("departments: manager does not exist: %w", shared.ErrValidation)
	// ErrHasEmployees blocks deleting a department that still has members.
	ErrHasEmployees = fmt.Errorf("departments: cannot delete department with assigned employees: %w", shared.ErrValidation)
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectDepartment = `
	SELECT d.id, d.name, d.manager_id, m.name, d.created_at, d.updated_at,
		(SELECT COUNT(*) FROM users u WHERE u.department_id = d.id)
	FROM departments d
	LEFT JOIN users m ON m.id = d.manager_id`

func scanDepartment(row pgx.Row) (Department, error) {
	var d Department
	err := row.Scan(&d.ID, &d.Name, &d.ManagerID, &d.ManagerName, &d.CreatedAt, &d.UpdatedAt, &d.EmployeeCount)
	return d, err
}

// ListDepartments returns departments ordered by name.
func (r *Repository) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := r.pool.Query(ctx, selectDepartment+` ORDER BY d.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetDepartment fetches one department.
func (r *Repository) GetDepartment(ctx context.Context, id int64) (Department, error) {
	d, err := scanDepartment(r.pool.QueryRow(ctx, selectDepartment+` WHERE d.id = $1`, id))
	if db.IsNoRows(err) {
		return Department{}, ErrDepartmentNotFound
	}
	return d, err
}

// InsertDepartment stores a department.
func (r *Repository) InsertDepartment(ctx context.Context, in CreateInput) (Department, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO departments (name, manager_id) VALUES ($1, $2) RETURNING id`, in.Name, in.ManagerID).Scan(&id)
	if err := classify(err); err != nil {
		return Department{}, err
	}
	return r.GetDepartment(ctx, id)
}

// UpdateDepartment applies a partial update.
func (r *Repository) UpdateDepartment(ctx context.Context, id int64, in UpdateInput) (Department, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE departments SET
			name = COALESCE($2, name),
			manager_id = CASE WHEN $4::boolean THEN $3::bigint ELSE manager_id END,
			updated_at = NOW()
		WHERE id = $1`, id, in.Name, in.ManagerID, in.ManagerSet)
	if err := classify(err); err != nil {
		return Department{}, err
	}
	if tag.RowsAffected() == 0 {
		return Department{}, ErrDepartmentNotFound
	}
	return r.GetDepartment(ctx, id)
}

// DeleteDepartment removes a department without members. The row lock keeps a
// concurrent delete from racing the member count.
func (r *Repository) DeleteDepartment(ctx context.Context, id int64) error {
	return db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		var locked int64
		err := tx.QueryRow(ctx, `SELECT id FROM departments WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if db.IsNoRows(err) {
			return ErrDepartmentNotFound
		}
		if err != nil {
			return err
		}
		var members int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE department_id = $1`, id).Scan(&members); err != nil {
			return err
		}
		if members > 0 {
			return ErrHasEmployees
		}
		_, err = tx.Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
		if db.IsForeignKeyViolation(err) {
			return ErrHasEmployees
		}
		return err
	})
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err):
		return ErrNameTaken
	case db.IsForeignKeyViolation(err):
		return ErrUnknownManager
	}
	return err
}

var _ RepositoryPort = (*Repository)(nil)

package leave

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hrflow/hrflow/internal/platform/db"
	"github.com/hrflow/hrflow/internal/shared"
)

var (
	// ErrLeaveNotFound indicates the leave does not exist or is outside the caller's scope.
	ErrLeaveNotFound = fmt.Errorf("leave: request %w", shared.ErrNotFound)
	// ErrAlreadyDecided indicates the leave is no longer pending.
	ErrAlreadyDecided = fmt.Errorf("leave: request already decided: %w", shared.ErrConflict)
	// ErrUnknownLeaveType indicates the leave type id does not exist.
	ErrUnknownLeaveType = fmt.Errorf("leave: unknown leave type: %w", shared.ErrValidation)
	// ErrLeaveTypeTaken indicates another leave type already uses the name.
	ErrLeaveTypeTaken = fmt.Errorf("leave: leave type already exists: %w", shared.ErrConflict)
	// ErrLeaveTypeNotFound indicates the leave type id does not exist.
	ErrLeaveTypeNotFound = fmt.Errorf("leave: leave type %w", shared.ErrNotFound)
	// ErrLeaveTypeInUse blocks deleting a leave type that leaves still reference.
	ErrLeaveTypeInUse = fmt.Errorf("leave: leave type is in use: %w", shared.ErrValidation)
	// ErrUnknownLeaves rejects bulk decisions naming ids that do not exist.
	ErrUnknownLeaves = fmt.Errorf("leave: unknown leave ids: %w", shared.ErrValidation)
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectLeave = `
	SELECT l.id, l.user_id, u.name, l.leave_type_id, lt.name, l.start_date, l.end_date, l.days,
		l.reason, l.status, l.approver_id, l.approved_at, l.created_at, l.updated_at
	FROM leaves l
	JOIN users u ON u.id = l.user_id
	JOIN leave_types lt ON lt.id = l.leave_type_id`

func scanLeave(row pgx.Row) (Leave, error) {
	var l Leave
	var status string
	err := row.Scan(&l.ID, &l.UserID, &l.UserName, &l.LeaveTypeID, &l.LeaveTypeName, &l.StartDate, &l.EndDate, &l.Days,
		&l.Reason, &status, &l.ApproverID, &l.ApprovedAt, &l.CreatedAt, &l.UpdatedAt)
	l.Status = Status(status)
	return l, err
}

func scopeClause(scope Scope, args []any) (string, []any) {
	var conds []string
	if scope.UserID != nil {
		args = append(args, *scope.UserID)
		conds = append(conds, fmt.Sprintf("l.user_id = $%d", len(args)))
	}
	if scope.DepartmentID != nil {
		args = append(args, *scope.DepartmentID)
		conds = append(conds, fmt.Sprintf("u.department_id = $%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}

// ListLeaves returns leaves visible in scope, newest first.
func (r *Repository) ListLeaves(ctx context.Context, scope Scope) ([]Leave, error) {
	where, args := scopeClause(scope, nil)
	query := selectLeave
	if where != "" {
		query += " WHERE " + where
	}
	rows, err := r.pool.Query(ctx, query+" ORDER BY l.created_at DESC, l.id DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Leave
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetLeave fetches a leave visible in scope.
func (r *Repository) GetLeave(ctx context.Context, id int64, scope Scope) (Leave, error) {
	where, args := scopeClause(scope, []any{id})
	query := selectLeave + " WHERE l.id = $1"
	if where != "" {
		query += " AND " + where
	}
	l, err := scanLeave(r.pool.QueryRow(ctx, query, args...))
	if db.IsNoRows(err) {
		return Leave{}, ErrLeaveNotFound
	}
	return l, err
}

// InsertLeave stores a pending request.
func (r *Repository) InsertLeave(ctx context.Context, in NewLeave) (Leave, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO leaves (user_id, leave_type_id, start_date, end_date, days, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`, in.UserID, in.LeaveTypeID, in.StartDate, in.EndDate, in.Days, in.Reason, string(StatusPending)).Scan(&id)
	if db.IsForeignKeyViolation(err) {
		return Leave{}, ErrUnknownLeaveType
	}
	if err != nil {
		return Leave{}, err
	}
	return r.GetLeave(ctx, id, Scope{})
}

// DecideLeave moves a pending leave to status, recording the approver.
func (r *Repository) DecideLeave(ctx context.Context, id int64, status Status, approverID int64) (Leave, error) {
	err := db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM leaves WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if db.IsNoRows(err) {
			return ErrLeaveNotFound
		}
		if err != nil {
			return err
		}
		if Status(current) != StatusPending {
			return ErrAlreadyDecided
		}
		_, err = tx.Exec(ctx, `
			UPDATE leaves SET status = $2, approver_id = $3, approved_at = $4, updated_at = NOW()
			WHERE id = $1`, id, string(status), approverID, time.Now().UTC())
		return err
	})
	if err != nil {
		return Leave{}, err
	}
	return r.GetLeave(ctx, id, Scope{})
}

// DecideLeaves moves every pending leave in ids to status in one
// transaction. Leaves already decided are skipped; an unknown id aborts the
// batch. The decided leaves are returned in id order.
func (r *Repository) DecideLeaves(ctx context.Context, ids []int64, status Status, approverID int64) ([]Leave, error) {
	var decided []int64
	err := db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT id, status FROM leaves WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
		if err != nil {
			return err
		}
		found := make(map[int64]struct{}, len(ids))
		var pending []int64
		for rows.Next() {
			var id int64
			var current string
			if err := rows.Scan(&id, &current); err != nil {
				rows.Close()
				return err
			}
			found[id] = struct{}{}
			if Status(current) == StatusPending {
				pending = append(pending, id)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				return fmt.Errorf("%w: %d", ErrUnknownLeaves, id)
			}
		}
		if len(pending) == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `
			UPDATE leaves SET status = $2, approver_id = $3, approved_at = $4, updated_at = NOW()
			WHERE id = ANY($1)`, pending, string(status), approverID, time.Now().UTC())
		if err != nil {
			return err
		}
		decided = pending
		return nil
	})
	if err != nil || len(decided) == 0 {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, selectLeave+` WHERE l.id = ANY($1) ORDER BY l.id`, decided)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Leave, 0, len(decided))
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// EditLeave rewrites the details of a pending leave.
func (r *Repository) EditLeave(ctx context.Context, id int64, in NewLeave) (Leave, error) {
	err := db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM leaves WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if db.IsNoRows(err) {
			return ErrLeaveNotFound
		}
		if err != nil {
			return err
		}
		if Status(current) != StatusPending {
			return ErrAlreadyDecided
		}
		_, err = tx.Exec(ctx, `
			UPDATE leaves SET leave_type_id = $2, start_date = $3, end_date = $4, days = $5, reason = $6, updated_at = NOW()
			WHERE id = $1`, id, in.LeaveTypeID, in.StartDate, in.EndDate, in.Days, in.Reason)
		if db.IsForeignKeyViolation(err) {
			return ErrUnknownLeaveType
		}
		return err
	})
	if err != nil {
		return Leave{}, err
	}
	return r.GetLeave(ctx, id, Scope{})
}

// DeleteLeave removes a leave.
func (r *Repository) DeleteLeave(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leaves WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLeaveNotFound
	}
	return nil
}

// UserDepartment returns the department of a user, nil when unset.
func (r *Repository) UserDepartment(ctx context.Context, userID int64) (*int64, error) {
	var dept *int64
	err := r.pool.QueryRow(ctx, `SELECT department_id FROM users WHERE id = $1`, userID).Scan(&dept)
	if db.IsNoRows(err) {
		return nil, nil
	}
	return dept, err
}

// ListLeaveTypes returns leave types ordered by name.
func (r *Repository) ListLeaveTypes(ctx context.Context) ([]LeaveType, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, default_quota, max_consecutive_days FROM leave_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LeaveType
	for rows.Next() {
		var lt LeaveType
		if err := rows.Scan(&lt.ID, &lt.Name, &lt.DefaultQuota, &lt.MaxConsecutiveDays); err != nil {
			return nil, err
		}
		out = append(out, lt)
	}
	return out, rows.Err()
}

// CreateLeaveType inserts a leave type.
func (r *Repository) CreateLeaveType(ctx context.Context, lt LeaveType) (LeaveType, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO leave_types (name, default_quota, max_consecutive_days) VALUES ($1, $2, $3)
		RETURNING id`, lt.Name, lt.DefaultQuota, lt.MaxConsecutiveDays).Scan(&lt.ID)
	if db.IsUniqueViolation(err) {
		return LeaveType{}, ErrLeaveTypeTaken
	}
	return lt, err
}

// GetLeaveType fetches one leave type.
func (r *Repository) GetLeaveType(ctx context.Context, id int64) (LeaveType, error) {
	var lt LeaveType
	err := r.pool.QueryRow(ctx, `SELECT id, name, default_quota, max_consecutive_days FROM leave_types WHERE id = $1`, id).
		Scan(&lt.ID, &lt.Name, &lt.DefaultQuota, &lt.MaxConsecutiveDays)
	if db.IsNoRows(err) {
		return LeaveType{}, ErrLeaveTypeNotFound
	}
	return lt, err
}

// UpdateLeaveType applies a partial update.
func (r *Repository) UpdateLeaveType(ctx context.Context, id int64, in LeaveTypeUpdate) (LeaveType, error) {
	var lt LeaveType
	err := r.pool.QueryRow(ctx, `
		UPDATE leave_types SET
			name = COALESCE($2, name),
			default_quota = COALESCE($3, default_quota),
			max_consecutive_days = COALESCE($4, max_consecutive_days)
		WHERE id = $1
		RETURNING id, name, default_quota, max_consecutive_days`, id, in.Name, in.DefaultQuota, in.MaxConsecutiveDays).
		Scan(&lt.ID, &lt.Name, &lt.DefaultQuota, &lt.MaxConsecutiveDays)
	switch {
	case db.IsNoRows(err):
		return LeaveType{}, ErrLeaveTypeNotFound
	case db.IsUniqueViolation(err):
		return LeaveType{}, ErrLeaveTypeTaken
	}
	return lt, err
}

// DeleteLeaveType removes a leave type no leave refers to.
func (r *Repository) DeleteLeaveType(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leave_types WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return ErrLeaveTypeInUse
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLeaveTypeNotFound
	}
	return nil
}

// EnsureLeaveType inserts lt unless a type with the same name exists.
func (r *Repository) EnsureLeaveType(ctx context.Context, lt LeaveType) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO leave_types (name, default_quota, max_consecutive_days) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING`, lt.Name, lt.DefaultQuota, lt.MaxConsecutiveDays)
	return err
}

var _ RepositoryPort = (*Repository)(nil)

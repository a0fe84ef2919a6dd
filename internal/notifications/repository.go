package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hrflow/hrflow/internal/platform/db"
	"github.com/hrflow/hrflow/internal/shared"
)

// ErrNotificationNotFound indicates the notification does not exist for the user.
var ErrNotificationNotFound = fmt.Errorf("notifications: notification %w", shared.ErrNotFound)

// Repository persists notifications in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores notifications in one batch. Rows whose id already exists are
// skipped, so a retried delivery writes nothing twice.
func (r *Repository) Insert(ctx context.Context, items []Notification) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, n := range items {
		batch.Queue(`
			INSERT INTO notifications (id, user_id, type, title, message, leave_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`, n.ID, n.UserID, string(n.Type), n.Title, n.Message, n.LeaveID, n.CreatedAt)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	var inserted int64
	for range items {
		tag, err := br.Exec()
		if err != nil {
			return inserted, err
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// ListForUser returns the newest notifications of a user.
func (r *Repository) ListForUser(ctx context.Context, userID int64, limit int) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, type, title, message, leave_id, read_at, created_at
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var n Notification
		var typ string
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &n.LeaveID, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = Type(typ)
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadCount counts unread notifications of a user.
func (r *Repository) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID).Scan(&count)
	return count, err
}

// MarkRead stamps one notification as read.
func (r *Repository) MarkRead(ctx context.Context, userID int64, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead stamps every unread notification of a user.
func (r *Repository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read_at = NOW() WHERE user_id = $1 AND read_at IS NULL`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// PurgeRead deletes read notifications older than before.
func (r *Repository) PurgeRead(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE read_at IS NOT NULL AND created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UserName resolves a display name, empty when the user is gone.
func (r *Repository) UserName(ctx context.Context, userID int64) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM users WHERE id = $1`, userID).Scan(&name)
	if db.IsNoRows(err) {
		return "", nil
	}
	return name, err
}

var _ Store = (*Repository)(nil)

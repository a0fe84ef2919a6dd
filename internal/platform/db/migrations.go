package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is a forward-only schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the ordered schema history.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "create users",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					name TEXT NOT NULL,
					email TEXT NOT NULL UNIQUE,
					password_hash TEXT NOT NULL,
					role TEXT NOT NULL DEFAULT 'employee' CHECK (role IN ('admin', 'employee')),
					department_id BIGINT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "create rbac tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS permissions (
					id BIGSERIAL PRIMARY KEY,
					name TEXT NOT NULL UNIQUE,
					category TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name TEXT NOT NULL UNIQUE,
					is_system BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS role_permissions (
					role_id BIGINT NOT NULL REFERENCES roles(id),
					permission_id BIGINT NOT NULL REFERENCES permissions(id),
					PRIMARY KEY (role_id, permission_id)
				);

				CREATE TABLE IF NOT EXISTS user_roles (
					user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id),
					assigned_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_user_roles_role_id ON user_roles(role_id);
			`,
		},
		{
			Version:     3,
			Description: "create leave tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS leave_types (
					id BIGSERIAL PRIMARY KEY,
					name TEXT NOT NULL UNIQUE,
					default_quota INT NOT NULL DEFAULT 0 CHECK (default_quota >= 0),
					max_consecutive_days INT NOT NULL DEFAULT 1 CHECK (max_consecutive_days >= 1)
				);

				CREATE TABLE IF NOT EXISTS leaves (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					leave_type_id BIGINT NOT NULL REFERENCES leave_types(id),
					start_date DATE NOT NULL,
					end_date DATE NOT NULL,
					days INT NOT NULL,
					reason TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
					approver_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					approved_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CHECK (end_date >= start_date)
				);

				CREATE INDEX IF NOT EXISTS idx_leaves_user_id ON leaves(user_id);
			`,
		},
		{
			Version:     4,
			Description: "create notifications",
			SQL: `
				CREATE TABLE IF NOT EXISTS notifications (
					id UUID PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					type TEXT NOT NULL,
					title TEXT NOT NULL,
					message TEXT NOT NULL,
					leave_id BIGINT,
					read_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications(user_id, created_at DESC);
			`,
		},
		{
			Version:     5,
			Description: "create departments",
			SQL: `
				CREATE TABLE IF NOT EXISTS departments (
					id BIGSERIAL PRIMARY KEY,
					name TEXT NOT NULL UNIQUE,
					manager_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				INSERT INTO departments (id, name)
				SELECT DISTINCT department_id, 'Department ' || department_id
				FROM users WHERE department_id IS NOT NULL
				ON CONFLICT DO NOTHING;

				SELECT setval(pg_get_serial_sequence('departments', 'id'),
					COALESCE((SELECT MAX(id) FROM departments), 0) + 1, false);

				ALTER TABLE users
					ADD CONSTRAINT users_department_id_fkey
					FOREIGN KEY (department_id) REFERENCES departments(id);

				CREATE INDEX IF NOT EXISTS idx_users_department_id ON users(department_id);
			`,
		},
	}
}

// Migrate applies pending migrations, each in its own transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return fmt.Errorf("platform/db: create schema_migrations: %w", err)
	}
	for _, m := range Migrations() {
		err := WithTx(ctx, pool, func(tx pgx.Tx) error {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return nil
			}
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`, m.Version, m.Description)
			return err
		})
		if err != nil {
			return fmt.Errorf("platform/db: migration %d (%s): %w", m.Version, m.Description, err)
		}
	}
	return nil
}

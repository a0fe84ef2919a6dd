package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/hrflow/hrflow/internal/app"
	"github.com/hrflow/hrflow/internal/leave"
	"github.com/hrflow/hrflow/internal/platform/db"
	"github.com/hrflow/hrflow/internal/rbac"
	"github.com/hrflow/hrflow/internal/shared"
	"github.com/hrflow/hrflow/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping seed")
		return
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	logger.Info("applying migrations")
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("migrate", slog.Any("error", err))
		os.Exit(1)
	}

	rbacRepo := rbac.NewRepository(pool)
	rbacService := rbac.NewService(rbacRepo, nil, logger)
	logger.Info("seeding permissions and system roles")
	if err := rbacService.Seed(ctx); err != nil {
		logger.Error("seed rbac", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("seeding leave types")
	leaveService := leave.NewService(leave.NewRepository(pool), nil, nil, logger)
	if err := leaveService.SeedLeaveTypes(ctx); err != nil {
		logger.Error("seed leave types", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.SeedAdminEmail == "" || cfg.SeedAdminPassword == "" {
		logger.Info("SEED_ADMIN_EMAIL or SEED_ADMIN_PASSWORD unset, skipping admin account")
		return
	}
	evaluator := rbac.NewEvaluator(rbacRepo, nil, logger, nil)
	usersService := users.NewService(users.NewRepository(pool), rbacService, evaluator, logger)
	admin, err := usersService.CreateUser(ctx, users.CreateUserInput{
		Name:     "Administrator",
		Email:    cfg.SeedAdminEmail,
		Password: cfg.SeedAdminPassword,
		Role:     shared.RoleAdmin,
	})
	switch {
	case errors.Is(err, users.ErrEmailTaken):
		logger.Info("admin account already exists", slog.String("email", cfg.SeedAdminEmail))
	case err != nil:
		logger.Error("seed admin", slog.Any("error", err))
		os.Exit(1)
	default:
		logger.Info("admin account created", slog.Int64("user_id", admin.ID), slog.String("email", admin.Email))
	}
	logger.Info("seed complete")
}

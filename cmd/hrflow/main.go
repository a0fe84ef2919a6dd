package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/hrflow/hrflow/internal/app"
	"github.com/hrflow/hrflow/internal/auth"
	"github.com/hrflow/hrflow/internal/departments"
	"github.com/hrflow/hrflow/internal/leave"
	"github.com/hrflow/hrflow/internal/notifications"
	"github.com/hrflow/hrflow/internal/observability"
	"github.com/hrflow/hrflow/internal/platform/cache"
	"github.com/hrflow/hrflow/internal/platform/db"
	"github.com/hrflow/hrflow/internal/rbac"
	"github.com/hrflow/hrflow/internal/roles"
	"github.com/hrflow/hrflow/internal/users"
	"github.com/hrflow/hrflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	rbacRepo := rbac.NewRepository(dbpool)
	permissionCache := app.NewPermissionCache(cfg, redisClient, logger)
	rbacService := rbac.NewService(rbacRepo, permissionCache, logger)
	evaluator := rbac.NewEvaluator(rbacRepo, permissionCache, logger, metrics)
	rbacMiddleware := rbac.Middleware{Evaluator: evaluator, Logger: logger}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	authService := auth.NewService(auth.NewRepository(dbpool), tokens)

	usersService := users.NewService(users.NewRepository(dbpool), rbacService, evaluator, logger)
	departmentsService := departments.NewService(departments.NewRepository(dbpool), logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	leaveService := leave.NewService(leave.NewRepository(dbpool), evaluator, jobClient, logger)

	notificationsService := notifications.NewService(notifications.NewRepository(dbpool), rbacService, logger)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		Tokens:               tokens,
		AuthHandler:          auth.NewHandler(logger, authService),
		RolesHandler:         roles.NewHandler(logger, rbacService, rbac.NewCatalog(rbacRepo), rbacMiddleware),
		UsersHandler:         users.NewHandler(logger, usersService, rbacMiddleware),
		DepartmentsHandler:   departments.NewHandler(logger, departmentsService, rbacMiddleware),
		LeaveHandler:         leave.NewHandler(logger, leaveService, rbacMiddleware),
		NotificationsHandler: notifications.NewHandler(logger, notificationsService),
		JobHandler:           jobs.NewHandler(inspector, logger),
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("rbac_cache", cfg.RBACCache))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

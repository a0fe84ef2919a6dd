package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/hrflow/hrflow/internal/app"
	jobmetrics "github.com/hrflow/hrflow/internal/jobs"
	"github.com/hrflow/hrflow/internal/notifications"
	"github.com/hrflow/hrflow/internal/platform/db"
	"github.com/hrflow/hrflow/internal/rbac"
	"github.com/hrflow/hrflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	rbacService := rbac.NewService(rbac.NewRepository(pool), nil, logger)
	notificationsService := notifications.NewService(notifications.NewRepository(pool), rbacService, logger)
	metrics := jobmetrics.NewMetrics(nil)

	notifyJob := jobs.NewLeaveNotifyJob(notificationsService, logger, metrics)
	purgeJob := jobs.NewNotificationsPurgeJob(notificationsService, logger, metrics)

	purgeTask, err := jobs.NewNotificationsPurgeTask(cfg.NotificationRetentionDays)
	if err != nil {
		logger.Error("build purge task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLeaveNotify, Handler: notifyJob.Handle},
			{Type: jobs.TaskNotificationsPurge, Handler: purgeJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 2 * * *", Task: purgeTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

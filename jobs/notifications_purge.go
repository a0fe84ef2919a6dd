package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/hrflow/hrflow/internal/jobs"
)

// TaskNotificationsPurge deletes old read notifications.
const TaskNotificationsPurge = "notifications:purge"

// NotificationsPurgePayload configures one purge run.
type NotificationsPurgePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewNotificationsPurgeTask constructs the scheduled purge task.
func NewNotificationsPurgeTask(retentionDays int) (*asynq.Task, error) {
	data, err := json.Marshal(NotificationsPurgePayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationsPurge, data), nil
}

// Purger removes read notifications past retention.
type Purger interface {
	PurgeRead(ctx context.Context, retention time.Duration) (int64, error)
}

// NotificationsPurgeJob processes TaskNotificationsPurge tasks.
type NotificationsPurgeJob struct {
	Purger  Purger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewNotificationsPurgeJob wires the purge handler.
func NewNotificationsPurgeJob(purger Purger, logger *slog.Logger, metrics *jobmetrics.Metrics) *NotificationsPurgeJob {
	return &NotificationsPurgeJob{Purger: purger, Logger: logger, Metrics: metrics}
}

// Handle runs one purge.
func (j *NotificationsPurgeJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Purger == nil {
		return errors.New("notifications purge: handler not configured")
	}
	var payload NotificationsPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.RetentionDays <= 0 {
		return fmt.Errorf("notifications purge: bad payload: %w", asynq.SkipRetry)
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskNotificationsPurge)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	removed, err := j.Purger.PurgeRead(ctx, time.Duration(payload.RetentionDays)*24*time.Hour)
	if err != nil {
		logger.Error("purge notifications", slog.Any("error", err))
		return err
	}
	logger.Info("notifications purged", slog.Int("retention_days", payload.RetentionDays), slog.Int64("removed", removed))
	return nil
}

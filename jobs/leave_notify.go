package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/hrflow/hrflow/internal/leave"
	jobmetrics "github.com/hrflow/hrflow/internal/jobs"
	"github.com/hrflow/hrflow/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Deliverer writes the notifications of one leave event.
type Deliverer interface {
	DeliverLeave(ctx context.Context, notice leave.Notice) (int64, error)
}

// LeaveNotifyJob processes TaskLeaveNotify tasks.
type LeaveNotifyJob struct {
	Deliverer Deliverer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewLeaveNotifyJob wires dependencies for the notification handler.
func NewLeaveNotifyJob(deliverer Deliverer, logger *slog.Logger, metrics *jobmetrics.Metrics) *LeaveNotifyJob {
	return &LeaveNotifyJob{Deliverer: deliverer, Logger: logger, Metrics: metrics}
}

// Handle decodes the notice and writes its notifications. Malformed payloads
// and unknown events are not retried.
func (j *LeaveNotifyJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Deliverer == nil {
		return errors.New("leave notify: handler not configured")
	}
	notice, err := DecodeLeaveNotice(t)
	if err != nil {
		j.logger().Warn("leave notify payload", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskLeaveNotify)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int64("leave_id", notice.LeaveID), slog.String("event", string(notice.Event)))
	written, err := j.Deliverer.DeliverLeave(ctx, notice)
	if err != nil {
		logger.Error("deliver leave notifications", slog.Any("error", err))
		if errors.Is(err, shared.ErrValidation) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	j.metrics().AddNotifications(string(notice.Event), written)
	logger.Info("leave notifications delivered", slog.Int64("written", written))
	return nil
}

func (j *LeaveNotifyJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *LeaveNotifyJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

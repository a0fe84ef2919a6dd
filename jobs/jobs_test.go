package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/hrflow/hrflow/internal/jobs"
	"github.com/hrflow/hrflow/internal/leave"
	"github.com/hrflow/hrflow/internal/shared"
	_ "github.com/hrflow/hrflow/testing"
)

func sampleNotice() leave.Notice {
	return leave.Notice{
		Event:     leave.EventSubmitted,
		LeaveID:   42,
		UserID:    7,
		UserName:  "Eve",
		LeaveType: "Annual",
		StartDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC),
		ActorID:   7,
	}
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: LeaveNotifyTaskID(sampleNotice()), Queue: QueueDefault}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type fakeDeliverer struct {
	notices []leave.Notice
	written int64
	err     error
}

func (f *fakeDeliverer) DeliverLeave(_ context.Context, notice leave.Notice) (int64, error) {
	f.notices = append(f.notices, notice)
	return f.written, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLeaveNotifyTaskRoundTrip(t *testing.T) {
	task, err := NewLeaveNotifyTask(sampleNotice())
	require.NoError(t, err)
	assert.Equal(t, TaskLeaveNotify, task.Type())
	assert.Equal(t, "leave:notify:42:submitted", LeaveNotifyTaskID(sampleNotice()))

	decoded, err := DecodeLeaveNotice(task)
	require.NoError(t, err)
	assert.Equal(t, sampleNotice(), decoded)

	_, err = DecodeLeaveNotice(asynq.NewTask(TaskLeaveNotify, []byte(`{"leave_id":0}`)))
	assert.Error(t, err)
}

func TestClientNotifyLeave(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := NewClientWith(enq)

	require.NoError(t, client.NotifyLeave(context.Background(), sampleNotice()))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskLeaveNotify, enq.tasks[0].Type())

	enq.err = asynq.ErrTaskIDConflict
	assert.NoError(t, client.NotifyLeave(context.Background(), sampleNotice()))

	enq.err = errors.New("redis down")
	assert.Error(t, client.NotifyLeave(context.Background(), sampleNotice()))
}

func TestLeaveNotifyJobHandle(t *testing.T) {
	deliverer := &fakeDeliverer{written: 2}
	job := NewLeaveNotifyJob(deliverer, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewLeaveNotifyTask(sampleNotice())
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, deliverer.notices, 1)
	assert.Equal(t, int64(42), deliverer.notices[0].LeaveID)

	err = job.Handle(context.Background(), asynq.NewTask(TaskLeaveNotify, []byte("not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	deliverer.err = errors.New("db down")
	err = job.Handle(context.Background(), task)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	deliverer.err = shared.ErrValidation
	err = job.Handle(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	var unset *LeaveNotifyJob
	assert.Error(t, unset.Handle(context.Background(), task))
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func TestHealthHandler(t *testing.T) {
	serve := func(inspector QueueInspector) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Route("/jobs", NewHandler(inspector, quietLogger()).MountRoutes)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		return rec
	}

	rec := serve(nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"retry":0}`, rec.Body.String())

	rec = serve(fakeInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Active: 1}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":3,"active":1,"retry":0}`, rec.Body.String())

	rec = serve(fakeInspector{err: errors.New("redis down")})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type fakePurger struct {
	retention time.Duration
	err       error
}

func (f *fakePurger) PurgeRead(_ context.Context, retention time.Duration) (int64, error) {
	f.retention = retention
	return 4, f.err
}

func TestNotificationsPurgeJob(t *testing.T) {
	purger := &fakePurger{}
	job := NewNotificationsPurgeJob(purger, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewNotificationsPurgeTask(90)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 90*24*time.Hour, purger.retention)

	bad, err := NewNotificationsPurgeTask(0)
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)

	purger.err = errors.New("db down")
	assert.Error(t, job.Handle(context.Background(), task))
}

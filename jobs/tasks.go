package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/hrflow/hrflow/internal/leave"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLeaveNotify fans a leave event out into in-app notifications.
	TaskLeaveNotify = "leave:notify"
	// leaveNotifyMaxRetry bounds redelivery of a failing notification task.
	leaveNotifyMaxRetry = 5
)

// NewLeaveNotifyTask constructs the task for notice. The task id is derived
// from the leave and the event so a repeated enqueue is rejected by the queue.
func NewLeaveNotifyTask(notice leave.Notice) (*asynq.Task, error) {
	data, err := json.Marshal(notice)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeaveNotify, data,
		asynq.TaskID(LeaveNotifyTaskID(notice)),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(leaveNotifyMaxRetry),
	), nil
}

// LeaveNotifyTaskID identifies the notification task of one leave event.
func LeaveNotifyTaskID(notice leave.Notice) string {
	return fmt.Sprintf("%s:%d:%s", TaskLeaveNotify, notice.LeaveID, notice.Event)
}

// DecodeLeaveNotice reads the payload of a TaskLeaveNotify task.
func DecodeLeaveNotice(t *asynq.Task) (leave.Notice, error) {
	var notice leave.Notice
	if err := json.Unmarshal(t.Payload(), &notice); err != nil {
		return leave.Notice{}, err
	}
	if notice.LeaveID == 0 || notice.Event == "" {
		return leave.Notice{}, fmt.Errorf("jobs: incomplete leave notice")
	}
	return notice, nil
}

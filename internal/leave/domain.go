package leave

import "time"

// Status is the workflow state of a leave request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Event names a notification-worthy change.
type Event string

const (
	EventSubmitted Event = "submitted"
	EventApproved  Event = "approved"
	EventRejected  Event = "rejected"
	EventCancelled Event = "cancelled"
)

// DateLayout is the wire format of leave dates.
const DateLayout = "2006-01-02"

// Leave is a leave request.
type Leave struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	UserName      string     `json:"user_name,omitempty"`
	LeaveTypeID   int64      `json:"leave_type_id"`
	LeaveTypeName string     `json:"leave_type,omitempty"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       time.Time  `json:"end_date"`
	Days          int        `json:"days"`
	Reason        string     `json:"reason"`
	Status        Status     `json:"status"`
	ApproverID    *int64     `json:"approver_id"`
	ApprovedAt    *time.Time `json:"approved_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// LeaveType is a category of leave with its default yearly allowance.
type LeaveType struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	DefaultQuota       int    `json:"default_quota"`
	MaxConsecutiveDays int    `json:"max_consecutive_days"`
}

// Scope restricts which leaves a caller may see. A zero Scope sees everything.
type Scope struct {
	UserID       *int64
	DepartmentID *int64
}

// CreateInput carries a new leave request.
type CreateInput struct {
	LeaveTypeID int64
	StartDate   time.Time
	EndDate     time.Time
	Reason      string
}

// NewLeave is the row inserted by the repository.
type NewLeave struct {
	UserID      int64
	LeaveTypeID int64
	StartDate   time.Time
	EndDate     time.Time
	Days        int
	Reason      string
}

// CountDays returns the inclusive number of calendar days between start and end.
func CountDays(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if e.Before(s) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}

// DefaultLeaveTypes are seeded on first install.
func DefaultLeaveTypes() []LeaveType {
	return []LeaveType{
		{Name: "Annual", DefaultQuota: 20, MaxConsecutiveDays: 10},
		{Name: "Sick", DefaultQuota: 10, MaxConsecutiveDays: 5},
		{Name: "Unpaid", DefaultQuota: 0, MaxConsecutiveDays: 30},
	}
}

// Notice is the snapshot handed to the notifier. It outlives the leave row,
// so a cancelled request can still be described.
type Notice struct {
	Event     Event     `json:"event"`
	LeaveID   int64     `json:"leave_id"`
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"user_name"`
	LeaveType string    `json:"leave_type"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	ActorID   int64     `json:"actor_id"`
}

// NoticeFor builds the notifier payload for l.
func NoticeFor(l Leave, event Event, actorID int64) Notice {
	return Notice{
		Event:     event,
		LeaveID:   l.ID,
		UserID:    l.UserID,
		UserName:  l.UserName,
		LeaveType: l.LeaveTypeName,
		StartDate: l.StartDate,
		EndDate:   l.EndDate,
		ActorID:   actorID,
	}
}

// EditInput carries the new details of a pending request. Nil fields keep
// their current value.
type EditInput struct {
	LeaveTypeID *int64
	StartDate   *time.Time
	EndDate     *time.Time
	Reason      *string
}

// LeaveTypeUpdate is a partial leave type update.
type LeaveTypeUpdate struct {
	Name               *string
	DefaultQuota       *int
	MaxConsecutiveDays *int
}

// BulkResult reports how many requests a bulk decision moved out of pending.
type BulkResult struct {
	Status Status
	Count  int
}

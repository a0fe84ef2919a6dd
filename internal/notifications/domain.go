package notifications

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies a notification.
type Type string

const (
	TypeLeaveSubmitted Type = "leave_submitted"
	TypeLeaveApproved  Type = "leave_approved"
	TypeLeaveRejected  Type = "leave_rejected"
	TypeLeaveCancelled Type = "leave_cancelled"
)

// Notification is an in-app message addressed to one user.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    int64      `json:"user_id"`
	Type      Type       `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	LeaveID   *int64     `json:"leave_id,omitempty"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// DefaultListLimit caps the inbox listing.
const DefaultListLimit = 50

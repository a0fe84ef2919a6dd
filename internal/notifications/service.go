package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hrflow/hrflow/internal/leave"
	"github.com/hrflow/hrflow/internal/shared"
)

// namespace seeds deterministic notification ids.
var namespace = uuid.MustParse("5b0c5e3e-7d1a-4f43-9a43-2f1d3c6f8a10")

// Store is the persistence port of the service.
type Store interface {
	Insert(ctx context.Context, items []Notification) (int64, error)
	ListForUser(ctx context.Context, userID int64, limit int) ([]Notification, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID int64, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	UserName(ctx context.Context, userID int64) (string, error)
	PurgeRead(ctx context.Context, before time.Time) (int64, error)
}

// Recipients resolves who is allowed to act on leave requests.
type Recipients interface {
	UsersWithPermission(ctx context.Context, permission string) ([]int64, error)
}

// Service writes and reads in-app notifications.
type Service struct {
	store      Store
	recipients Recipients
	logger     *slog.Logger
	now        func() time.Time
}

// NewService constructs the service.
func NewService(store Store, recipients Recipients, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, recipients: recipients, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// DeliverLeave writes the notifications for one leave event. Submissions and
// cancellations go to every user whose role grants "approve leave"; decisions
// go to the requester. Delivering the same notice twice is a no-op.
func (s *Service) DeliverLeave(ctx context.Context, notice leave.Notice) (int64, error) {
	var recipients []int64
	switch notice.Event {
	case leave.EventSubmitted, leave.EventCancelled:
		approvers, err := s.recipients.UsersWithPermission(ctx, shared.PermLeaveApprove)
		if err != nil {
			return 0, fmt.Errorf("resolve approvers: %w", err)
		}
		for _, id := range approvers {
			if id != notice.UserID {
				recipients = append(recipients, id)
			}
		}
	case leave.EventApproved, leave.EventRejected:
		recipients = []int64{notice.UserID}
	default:
		return 0, fmt.Errorf("notifications: unknown leave event %q: %w", notice.Event, shared.ErrValidation)
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	typ, title, message, err := s.compose(ctx, notice)
	if err != nil {
		return 0, err
	}
	leaveID := notice.LeaveID
	now := s.now()
	items := make([]Notification, 0, len(recipients))
	for _, userID := range recipients {
		items = append(items, Notification{
			ID:        notificationID(notice, userID),
			UserID:    userID,
			Type:      typ,
			Title:     title,
			Message:   message,
			LeaveID:   &leaveID,
			CreatedAt: now,
		})
	}
	inserted, err := s.store.Insert(ctx, items)
	if err != nil {
		return inserted, err
	}
	s.logger.Info("leave notifications written",
		slog.Int64("leave_id", notice.LeaveID),
		slog.String("event", string(notice.Event)),
		slog.Int64("inserted", inserted))
	return inserted, nil
}

func (s *Service) compose(ctx context.Context, notice leave.Notice) (Type, string, string, error) {
	span := fmt.Sprintf("from %s to %s", notice.StartDate.Format(leave.DateLayout), notice.EndDate.Format(leave.DateLayout))
	switch notice.Event {
	case leave.EventSubmitted:
		return TypeLeaveSubmitted, "New Leave Request",
			fmt.Sprintf("%s has submitted a leave request %s", notice.UserName, span), nil
	case leave.EventCancelled:
		return TypeLeaveCancelled, "Leave Request Cancelled",
			fmt.Sprintf("%s has cancelled their leave request %s", notice.UserName, span), nil
	}
	approver, err := s.store.UserName(ctx, notice.ActorID)
	if err != nil {
		return "", "", "", fmt.Errorf("resolve approver: %w", err)
	}
	if approver == "" {
		approver = "user #" + strconv.FormatInt(notice.ActorID, 10)
	}
	if notice.Event == leave.EventApproved {
		return TypeLeaveApproved, "Leave Request Approved",
			fmt.Sprintf("Your leave request %s has been approved by %s", span, approver), nil
	}
	return TypeLeaveRejected, "Leave Request Rejected",
		fmt.Sprintf("Your leave request %s has been rejected by %s", span, approver), nil
}

func notificationID(notice leave.Notice, userID int64) uuid.UUID {
	key := fmt.Sprintf("leave:%d:%s:%d", notice.LeaveID, notice.Event, userID)
	return uuid.NewSHA1(namespace, []byte(key))
}

// List returns the newest notifications of the user.
func (s *Service) List(ctx context.Context, userID int64) ([]Notification, error) {
	return s.store.ListForUser(ctx, userID, DefaultListLimit)
}

// UnreadCount counts the user's unread notifications.
func (s *Service) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.store.UnreadCount(ctx, userID)
}

// MarkRead marks one of the user's notifications as read.
func (s *Service) MarkRead(ctx context.Context, userID int64, id uuid.UUID) error {
	return s.store.MarkRead(ctx, userID, id)
}

// MarkAllRead marks all of the user's notifications as read.
func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}

// PurgeRead removes read notifications created more than retention ago.
func (s *Service) PurgeRead(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("notifications: retention must be positive: %w", shared.ErrValidation)
	}
	return s.store.PurgeRead(ctx, s.now().Add(-retention))
}

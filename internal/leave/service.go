package leave

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hrflow/hrflow/internal/shared"
)

var (
	// ErrInvalidRange rejects requests ending before they start.
	ErrInvalidRange = fmt.Errorf("leave: end date before start date: %w", shared.ErrValidation)
	// ErrInvalidStatus rejects status updates other than approve or reject.
	ErrInvalidStatus = fmt.Errorf("leave: status must be approved or rejected: %w", shared.ErrValidation)
	// ErrNotOwner blocks changing another user's leave.
	ErrNotOwner = fmt.Errorf("leave: only the owner may change this request: %w", shared.ErrForbidden)
	// ErrTooManyDays rejects requests longer than the leave type allows in one go.
	ErrTooManyDays = fmt.Errorf("leave: request exceeds max consecutive days: %w", shared.ErrValidation)
	// ErrLeaveTypeName rejects blank leave type names.
	ErrLeaveTypeName = fmt.Errorf("leave: leave type name is required: %w", shared.ErrValidation)
	// ErrLeaveTypeLimits rejects a negative quota or a consecutive-day cap below one.
	ErrLeaveTypeLimits = fmt.Errorf("leave: quota must be >= 0 and max consecutive days >= 1: %w", shared.ErrValidation)
	// ErrNoLeaveIDs rejects an empty bulk decision.
	ErrNoLeaveIDs = fmt.Errorf("leave: leave_ids is required: %w", shared.ErrValidation)
)

// RepositoryPort defines data access for leave requests and leave types.
type RepositoryPort interface {
	ListLeaves(ctx context.Context, scope Scope) ([]Leave, error)
	GetLeave(ctx context.Context, id int64, scope Scope) (Leave, error)
	InsertLeave(ctx context.Context, in NewLeave) (Leave, error)
	DecideLeave(ctx context.Context, id int64, status Status, approverID int64) (Leave, error)
	DecideLeaves(ctx context.Context, ids []int64, status Status, approverID int64) ([]Leave, error)
	EditLeave(ctx context.Context, id int64, in NewLeave) (Leave, error)
	DeleteLeave(ctx context.Context, id int64) error
	UserDepartment(ctx context.Context, userID int64) (*int64, error)
	ListLeaveTypes(ctx context.Context) ([]LeaveType, error)
	CreateLeaveType(ctx context.Context, lt LeaveType) (LeaveType, error)
	GetLeaveType(ctx context.Context, id int64) (LeaveType, error)
	UpdateLeaveType(ctx context.Context, id int64, in LeaveTypeUpdate) (LeaveType, error)
	DeleteLeaveType(ctx context.Context, id int64) error
	EnsureLeaveType(ctx context.Context, lt LeaveType) error
}

// Authorizer is the subset of the rbac evaluator used by the leave workflow.
type Authorizer interface {
	Authorize(ctx context.Context, userID int64, permission string) error
	HasRole(ctx context.Context, userID int64, roleName string) (bool, error)
}

// Notifier fans out leave events.
type Notifier interface {
	NotifyLeave(ctx context.Context, notice Notice) error
}

// Service implements the leave workflow.
type Service struct {
	repo     RepositoryPort
	authz    Authorizer
	notifier Notifier
	logger   *slog.Logger
}

// NewService constructs the service. A nil notifier disables notifications.
func NewService(repo RepositoryPort, authz Authorizer, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, authz: authz, notifier: notifier, logger: logger}
}

// List returns the leaves the actor may see.
func (s *Service) List(ctx context.Context, actorID int64) ([]Leave, error) {
	if err := s.authz.Authorize(ctx, actorID, shared.PermLeavesView); err != nil {
		return nil, err
	}
	scope, err := s.scopeFor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLeaves(ctx, scope)
}

// Get returns one leave when it is inside the actor's scope.
func (s *Service) Get(ctx context.Context, actorID, id int64) (Leave, error) {
	if err := s.authz.Authorize(ctx, actorID, shared.PermLeavesView); err != nil {
		return Leave{}, err
	}
	scope, err := s.scopeFor(ctx, actorID)
	if err != nil {
		return Leave{}, err
	}
	return s.repo.GetLeave(ctx, id, scope)
}

// Create files a pending request for the actor.
func (s *Service) Create(ctx context.Context, actorID int64, in CreateInput) (Leave, error) {
	if err := s.authz.Authorize(ctx, actorID, shared.PermLeaveCreate); err != nil {
		return Leave{}, err
	}
	row, err := s.checkRequest(ctx, NewLeave{
		UserID:      actorID,
		LeaveTypeID: in.LeaveTypeID,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Reason:      in.Reason,
	})
	if err != nil {
		return Leave{}, err
	}
	created, err := s.repo.InsertLeave(ctx, row)
	if err != nil {
		return Leave{}, err
	}
	s.notify(ctx, NoticeFor(created, EventSubmitted, actorID))
	return created, nil
}

// Decide approves or rejects a pending request. The permission checked
// depends on the target status.
func (s *Service) Decide(ctx context.Context, actorID, id int64, status Status) (Leave, error) {
	perm, event, err := decision(status)
	if err != nil {
		return Leave{}, err
	}
	if err := s.authz.Authorize(ctx, actorID, perm); err != nil {
		return Leave{}, err
	}
	decided, err := s.repo.DecideLeave(ctx, id, status, actorID)
	if err != nil {
		return Leave{}, err
	}
	s.notify(ctx, NoticeFor(decided, event, actorID))
	return decided, nil
}

// DecideMany applies one decision to a batch of leaves. Only pending leaves
// change; each one changed is notified.
func (s *Service) DecideMany(ctx context.Context, actorID int64, ids []int64, status Status) (BulkResult, error) {
	perm, event, err := decision(status)
	if err != nil {
		return BulkResult{}, err
	}
	if err := s.authz.Authorize(ctx, actorID, perm); err != nil {
		return BulkResult{}, err
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return BulkResult{}, ErrNoLeaveIDs
	}
	decided, err := s.repo.DecideLeaves(ctx, ids, status, actorID)
	if err != nil {
		return BulkResult{}, err
	}
	for _, l := range decided {
		s.notify(ctx, NoticeFor(l, event, actorID))
	}
	s.logger.Info("leaves decided in bulk", slog.String("status", string(status)), slog.Int("requested", len(ids)), slog.Int("decided", len(decided)))
	return BulkResult{Status: status, Count: len(decided)}, nil
}

// Edit changes the details of a pending request. The owner or an admin may
// edit, and both need the edit permission.
func (s *Service) Edit(ctx context.Context, actorID, id int64, in EditInput) (Leave, error) {
	if err := s.authz.Authorize(ctx, actorID, shared.PermLeaveEdit); err != nil {
		return Leave{}, err
	}
	current, err := s.repo.GetLeave(ctx, id, Scope{})
	if err != nil {
		return Leave{}, err
	}
	if err := s.ownerOrAdmin(ctx, actorID, current); err != nil {
		return Leave{}, err
	}
	if current.Status != StatusPending {
		return Leave{}, ErrAlreadyDecided
	}
	row := NewLeave{
		UserID:      current.UserID,
		LeaveTypeID: current.LeaveTypeID,
		StartDate:   current.StartDate,
		EndDate:     current.EndDate,
		Reason:      current.Reason,
	}
	if in.LeaveTypeID != nil {
		row.LeaveTypeID = *in.LeaveTypeID
	}
	if in.StartDate != nil {
		row.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		row.EndDate = *in.EndDate
	}
	if in.Reason != nil {
		row.Reason = *in.Reason
	}
	if row, err = s.checkRequest(ctx, row); err != nil {
		return Leave{}, err
	}
	return s.repo.EditLeave(ctx, id, row)
}

// Delete removes a leave. Only the owner or an admin may delete it; an
// owner deleting their own request counts as a cancellation.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if err := s.authz.Authorize(ctx, actorID, shared.PermLeaveDelete); err != nil {
		return err
	}
	current, err := s.repo.GetLeave(ctx, id, Scope{})
	if err != nil {
		return err
	}
	if err := s.ownerOrAdmin(ctx, actorID, current); err != nil {
		return err
	}
	if err := s.repo.DeleteLeave(ctx, id); err != nil {
		return err
	}
	if current.UserID == actorID {
		s.notify(ctx, NoticeFor(current, EventCancelled, actorID))
	}
	return nil
}

// LeaveTypes lists leave types.
func (s *Service) LeaveTypes(ctx context.Context) ([]LeaveType, error) {
	return s.repo.ListLeaveTypes(ctx)
}

// CreateLeaveType adds a leave type.
func (s *Service) CreateLeaveType(ctx context.Context, lt LeaveType) (LeaveType, error) {
	lt.Name = strings.TrimSpace(lt.Name)
	if lt.Name == "" {
		return LeaveType{}, ErrLeaveTypeName
	}
	if lt.MaxConsecutiveDays < 1 {
		lt.MaxConsecutiveDays = 1
	}
	if lt.DefaultQuota < 0 {
		return LeaveType{}, ErrLeaveTypeLimits
	}
	return s.repo.CreateLeaveType(ctx, lt)
}

// LeaveType returns one leave type.
func (s *Service) LeaveType(ctx context.Context, id int64) (LeaveType, error) {
	return s.repo.GetLeaveType(ctx, id)
}

// UpdateLeaveType applies a partial update to a leave type.
func (s *Service) UpdateLeaveType(ctx context.Context, id int64, in LeaveTypeUpdate) (LeaveType, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return LeaveType{}, ErrLeaveTypeName
		}
		in.Name = &name
	}
	if (in.DefaultQuota != nil && *in.DefaultQuota < 0) || (in.MaxConsecutiveDays != nil && *in.MaxConsecutiveDays < 1) {
		return LeaveType{}, ErrLeaveTypeLimits
	}
	return s.repo.UpdateLeaveType(ctx, id, in)
}

// DeleteLeaveType removes a leave type that no leave uses.
func (s *Service) DeleteLeaveType(ctx context.Context, id int64) error {
	if err := s.repo.DeleteLeaveType(ctx, id); err != nil {
		return err
	}
	s.logger.Info("leave type deleted", slog.Int64("leave_type_id", id))
	return nil
}

// SeedLeaveTypes makes sure the default leave types exist.
func (s *Service) SeedLeaveTypes(ctx context.Context) error {
	for _, lt := range DefaultLeaveTypes() {
		if err := s.repo.EnsureLeaveType(ctx, lt); err != nil {
			return fmt.Errorf("seed leave type %s: %w", lt.Name, err)
		}
	}
	return nil
}

func (s *Service) scopeFor(ctx context.Context, actorID int64) (Scope, error) {
	admin, err := s.authz.HasRole(ctx, actorID, shared.RoleAdmin)
	if err != nil {
		return Scope{}, err
	}
	if admin {
		return Scope{}, nil
	}
	manager, err := s.authz.HasRole(ctx, actorID, shared.RoleDepartmentManager)
	if err != nil {
		return Scope{}, err
	}
	if manager {
		dept, err := s.repo.UserDepartment(ctx, actorID)
		if err != nil {
			return Scope{}, err
		}
		if dept != nil {
			return Scope{DepartmentID: dept}, nil
		}
	}
	return Scope{UserID: &actorID}, nil
}

// checkRequest validates the range and leave type of row and fills in Days.
func (s *Service) checkRequest(ctx context.Context, row NewLeave) (NewLeave, error) {
	if row.EndDate.Before(row.StartDate) {
		return NewLeave{}, ErrInvalidRange
	}
	row.Days = CountDays(row.StartDate, row.EndDate)
	lt, ok, err := s.leaveType(ctx, row.LeaveTypeID)
	if err != nil {
		return NewLeave{}, err
	}
	if !ok {
		return NewLeave{}, ErrUnknownLeaveType
	}
	if lt.MaxConsecutiveDays > 0 && row.Days > lt.MaxConsecutiveDays {
		return NewLeave{}, fmt.Errorf("%w (%d > %d)", ErrTooManyDays, row.Days, lt.MaxConsecutiveDays)
	}
	row.Reason = strings.TrimSpace(row.Reason)
	return row, nil
}

func (s *Service) ownerOrAdmin(ctx context.Context, actorID int64, l Leave) error {
	if l.UserID == actorID {
		return nil
	}
	admin, err := s.authz.HasRole(ctx, actorID, shared.RoleAdmin)
	if err != nil {
		return err
	}
	if !admin {
		return ErrNotOwner
	}
	return nil
}

func decision(status Status) (string, Event, error) {
	switch status {
	case StatusApproved:
		return shared.PermLeaveApprove, EventApproved, nil
	case StatusRejected:
		return shared.PermLeaveReject, EventRejected, nil
	}
	return "", "", ErrInvalidStatus
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *Service) leaveType(ctx context.Context, id int64) (LeaveType, bool, error) {
	types, err := s.repo.ListLeaveTypes(ctx)
	if err != nil {
		return LeaveType{}, false, err
	}
	for _, lt := range types {
		if lt.ID == id {
			return lt, true, nil
		}
	}
	return LeaveType{}, false, nil
}

func (s *Service) notify(ctx context.Context, notice Notice) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyLeave(ctx, notice); err != nil {
		s.logger.Warn("leave notify", slog.Int64("leave_id", notice.LeaveID), slog.String("event", string(notice.Event)), slog.Any("error", err))
	}
}

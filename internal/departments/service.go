package departments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hrflow/hrflow/internal/shared"
)

// ErrNameRequired rejects blank department names.
var ErrNameRequired = fmt.Errorf("departments: name is required: %w", shared.ErrValidation)

// RepositoryPort defines data access for departments.
type RepositoryPort interface {
	ListDepartments(ctx context.Context) ([]Department, error)
	GetDepartment(ctx context.Context, id int64) (Department, error)
	InsertDepartment(ctx context.Context, in CreateInput) (Department, error)
	UpdateDepartment(ctx context.Context, id int64, in UpdateInput) (Department, error)
	DeleteDepartment(ctx context.Context, id int64) error
}

// Service handles department business logic. Permission gates sit on the
// routes.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// List returns all departments.
func (s *Service) List(ctx context.Context) ([]Department, error) {
	return s.repo.ListDepartments(ctx)
}

// Get returns one department.
func (s *Service) Get(ctx context.Context, id int64) (Department, error) {
	return s.repo.GetDepartment(ctx, id)
}

// Create adds a department.
func (s *Service) Create(ctx context.Context, in CreateInput) (Department, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Department{}, ErrNameRequired
	}
	return s.repo.InsertDepartment(ctx, in)
}

// Update renames a department and/or changes its manager.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Department, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Department{}, ErrNameRequired
		}
		in.Name = &name
	}
	return s.repo.UpdateDepartment(ctx, id, in)
}

// Delete removes a department that has no members.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteDepartment(ctx, id); err != nil {
		return err
	}
	s.logger.Info("department deleted", slog.Int64("department_id", id))
	return nil
}

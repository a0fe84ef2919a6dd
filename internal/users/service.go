package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hrflow/hrflow/internal/auth"
	"github.com/hrflow/hrflow/internal/rbac"
	"github.com/hrflow/hrflow/internal/shared"
)

var (
	// ErrSelfDelete blocks users from deleting their own account.
	ErrSelfDelete = fmt.Errorf("users: cannot delete your own account: %w", shared.ErrValidation)
	// ErrNameRequired rejects blank names.
	ErrNameRequired = fmt.Errorf("users: name is required: %w", shared.ErrValidation)
	// ErrPasswordTooShort rejects passwords under eight characters.
	ErrPasswordTooShort = fmt.Errorf("users: password must be at least 8 characters: %w", shared.ErrValidation)
	// ErrInvalidDepartment rejects non-positive department ids.
	ErrInvalidDepartment = fmt.Errorf("users: department_id must be positive: %w", shared.ErrValidation)
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	UpdateUser(ctx context.Context, id int64, changes UserChanges) error
	DeleteUser(ctx context.Context, id int64) error
}

// RoleAssigner is the subset of rbac.Service used for accounts.
type RoleAssigner interface {
	RoleByName(ctx context.Context, name string) (rbac.Role, error)
	CreateAccount(ctx context.Context, acct rbac.Account, roleName string) (int64, error)
	AssignRole(ctx context.Context, userID int64, roleName string) (rbac.Role, error)
	ForgetUser(ctx context.Context, userID int64)
}

// Authorizer answers permission checks.
type Authorizer interface {
	Authorize(ctx context.Context, userID int64, permission string) error
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	roles  RoleAssigner
	authz  Authorizer
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, roles RoleAssigner, authz Authorizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, roles: roles, authz: authz, logger: logger}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns a user. Anyone may read their own account; reading others
// requires "view users".
func (s *Service) GetUser(ctx context.Context, actorID, id int64) (User, error) {
	if actorID != id {
		if err := s.authz.Authorize(ctx, actorID, shared.PermUsersView); err != nil {
			return User{}, err
		}
	}
	return s.repo.GetUser(ctx, id)
}

// CreateUser inserts the account holding the requested role.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	roleName := strings.TrimSpace(in.Role)
	if err := s.knownRole(ctx, roleName); err != nil {
		return User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	id, err := s.roles.CreateAccount(ctx, rbac.Account{
		Name:         strings.TrimSpace(in.Name),
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		DepartmentID: in.DepartmentID,
	}, roleName)
	if err != nil {
		return User{}, err
	}
	return s.repo.GetUser(ctx, id)
}

// UpdateUser edits an account. Anyone may change their own name and password;
// editing another account, or the email, role or department of any account,
// requires "edit user". Role changes go through the role assignment.
func (s *Service) UpdateUser(ctx context.Context, actorID, id int64, in UpdateUserInput) (User, error) {
	if actorID != id || in.touchesAdminFields() {
		if err := s.authz.Authorize(ctx, actorID, shared.PermUserEdit); err != nil {
			return User{}, err
		}
	}
	var changes UserChanges
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return User{}, ErrNameRequired
		}
		changes.Name = &name
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		changes.Email = &email
	}
	if in.Password != nil {
		if len(*in.Password) < 8 {
			return User{}, ErrPasswordTooShort
		}
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return User{}, err
		}
		changes.PasswordHash = &hash
	}
	if in.DepartmentSet {
		if in.DepartmentID == nil {
			changes.ClearDepartment = true
		} else if *in.DepartmentID <= 0 {
			return User{}, ErrInvalidDepartment
		} else {
			changes.DepartmentID = in.DepartmentID
		}
	}
	var roleName string
	if in.Role != nil {
		roleName = strings.TrimSpace(*in.Role)
		if err := s.knownRole(ctx, roleName); err != nil {
			return User{}, err
		}
	}

	if changes.empty() {
		if _, err := s.repo.GetUser(ctx, id); err != nil {
			return User{}, err
		}
	} else if err := s.repo.UpdateUser(ctx, id, changes); err != nil {
		return User{}, err
	}
	if in.Role != nil {
		if _, err := s.roles.AssignRole(ctx, id, roleName); err != nil {
			return User{}, err
		}
		s.logger.Info("user role changed", slog.Int64("user_id", id), slog.Int64("actor_id", actorID), slog.String("role", roleName))
	}
	return s.repo.GetUser(ctx, id)
}

// DeleteUser removes an account other than the caller's own.
func (s *Service) DeleteUser(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return ErrSelfDelete
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.roles.ForgetUser(ctx, id)
	return nil
}

// AssignRole replaces the user's role and returns the updated account.
func (s *Service) AssignRole(ctx context.Context, userID int64, roleName string) (User, error) {
	if _, err := s.roles.AssignRole(ctx, userID, roleName); err != nil {
		return User{}, err
	}
	return s.repo.GetUser(ctx, userID)
}

func (s *Service) knownRole(ctx context.Context, roleName string) error {
	if _, err := s.roles.RoleByName(ctx, roleName); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("users: unknown role %q: %w", roleName, shared.ErrValidation)
		}
		return err
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Profile returns the caller's account with effective permissions.
func (s *Service) Profile(ctx context.Context, userID int64) (Profile, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	perms, err := s.authz.EffectivePermissions(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{User: u, Permissions: perms}, nil
}

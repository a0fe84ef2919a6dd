package rbac

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hrflow/hrflow/internal/shared"
)

var (
	// ErrRoleNotFound indicates the role id or name does not exist.
	ErrRoleNotFound = fmt.Errorf("rbac: role %w", shared.ErrNotFound)
	// ErrUserNotFound indicates the user being assigned does not exist.
	ErrUserNotFound = fmt.Errorf("rbac: user %w", shared.ErrNotFound)
	// ErrSystemRole blocks edits to admin, employee and department_manager.
	ErrSystemRole = fmt.Errorf("rbac: system role is read-only: %w", shared.ErrForbidden)
	// ErrRoleNameTaken indicates another role already uses the name.
	ErrRoleNameTaken = fmt.Errorf("rbac: role name already exists: %w", shared.ErrConflict)
	// ErrRoleNameRequired indicates an empty role name.
	ErrRoleNameRequired = fmt.Errorf("rbac: role name required: %w", shared.ErrValidation)
	// ErrEmailTaken indicates another account already uses the email.
	ErrEmailTaken = fmt.Errorf("rbac: email already registered: %w", shared.ErrConflict)
	// ErrUnknownDepartment indicates an account references a missing department.
	ErrUnknownDepartment = fmt.Errorf("rbac: department does not exist: %w", shared.ErrValidation)
)

// UnknownPermissionsError lists permission names missing from the catalog.
type UnknownPermissionsError struct {
	Names []string
}

func (e *UnknownPermissionsError) Error() string {
	return "rbac: unknown permissions: " + strings.Join(e.Names, ", ")
}

// Is reports validation semantics.
func (e *UnknownPermissionsError) Is(target error) bool {
	return target == shared.ErrValidation
}

// PermissionDeniedError is returned by Evaluator.Authorize.
type PermissionDeniedError struct {
	UserID     int64
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("missing permission %q", e.Permission)
}

// Is reports forbidden semantics.
func (e *PermissionDeniedError) Is(target error) bool {
	return target == shared.ErrForbidden
}

// IsPermissionDenied reports whether err carries a denied decision.
func IsPermissionDenied(err error) bool {
	var denied *PermissionDeniedError
	return errors.As(err, &denied)
}

// IsSystemRole reports whether name is one of the protected built-in roles.
func IsSystemRole(name string) bool {
	switch name {
	case shared.RoleAdmin, shared.RoleEmployee, shared.RoleDepartmentManager:
		return true
	}
	return false
}

// LabelFor returns the coarse user label written alongside a role assignment.
func LabelFor(roleName string) string {
	if roleName == shared.RoleAdmin {
		return shared.LabelAdmin
	}
	return shared.LabelEmployee
}

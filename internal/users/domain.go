package users

import "time"

// User represents a user account for management.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RoleLabel    string    `json:"role"`
	DepartmentID *int64    `json:"department_id"`
	Role         *RoleRef  `json:"assigned_role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RoleRef names the fine-grained role a user holds.
type RoleRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Profile is the authenticated user's view of themselves.
type Profile struct {
	User
	Permissions []string `json:"permissions"`
}

// CreateUserInput carries the fields accepted when creating a user.
type CreateUserInput struct {
	Name         string
	Email        string
	Password     string
	Role         string
	DepartmentID *int64
}

// UpdateUserInput carries a partial account update. Nil fields are left
// untouched. DepartmentSet marks department_id as present, in which case a
// nil DepartmentID clears it.
type UpdateUserInput struct {
	Name          *string
	Email         *string
	Password      *string
	Role          *string
	DepartmentSet bool
	DepartmentID  *int64
}

// touchesAdminFields reports whether the update goes beyond name and password.
func (in UpdateUserInput) touchesAdminFields() bool {
	return in.Email != nil || in.Role != nil || in.DepartmentSet
}

// UserChanges is the column update applied by the repository.
type UserChanges struct {
	Name            *string
	Email           *string
	PasswordHash    *string
	DepartmentID    *int64
	ClearDepartment bool
}

func (c UserChanges) empty() bool {
	return c.Name == nil && c.Email == nil && c.PasswordHash == nil && c.DepartmentID == nil && !c.ClearDepartment
}

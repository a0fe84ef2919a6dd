package rbac

import "time"

// Role is a named permission bundle. A user holds at most one role.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	IsSystem    bool      `json:"is_system"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission represents an atomic capability such as "approve leave".
type Permission struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// CreateRoleInput carries the fields accepted when creating a role.
type CreateRoleInput struct {
	Name        string
	Permissions []string
}

// UpdateRoleInput carries a partial role update. Nil fields are left untouched;
// a non-nil Permissions replaces the whole set.
type UpdateRoleInput struct {
	Name        *string
	Permissions *[]string
}

// Account is the user row written by CreateAccount.
type Account struct {
	Name         string
	Email        string
	PasswordHash string
	DepartmentID *int64
}

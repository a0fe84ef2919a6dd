package departments

import "time"

// Department groups users. Department managers see the leaves of their
// department's members.
type Department struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	ManagerID     *int64    `json:"manager_id"`
	ManagerName   *string   `json:"manager_name,omitempty"`
	EmployeeCount int       `json:"employee_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateInput carries the fields accepted when creating a department.
type CreateInput struct {
	Name      string
	ManagerID *int64
}

// UpdateInput carries a partial update. ManagerSet marks manager_id as
// present, in which case a nil ManagerID clears it.
type UpdateInput struct {
	Name       *string
	ManagerSet bool
	ManagerID  *int64
}

package shared

// Leave permissions.
const (
	PermLeavesView   = "view leaves"
	PermLeaveCreate  = "create leave"
	PermLeaveEdit    = "edit leave"
	PermLeaveDelete  = "delete leave"
	PermLeaveApprove = "approve leave"
	PermLeaveReject  = "reject leave"
)

// People and organisation permissions.
const (
	PermUsersView  = "view users"
	PermUserCreate = "create user"
	PermUserEdit   = "edit user"
	PermUserDelete = "delete user"

	PermDepartmentsView  = "view departments"
	PermDepartmentCreate = "create department"
	PermDepartmentEdit   = "edit department"
	PermDepartmentDelete = "delete department"

	PermLeaveTypesView  = "view leave types"
	PermLeaveTypeCreate = "create leave type"
	PermLeaveTypeEdit   = "edit leave type"
	PermLeaveTypeDelete = "delete leave type"
)

// Access control and reporting permissions.
const (
	PermRolesView   = "view roles"
	PermRoleCreate  = "create role"
	PermRoleEdit    = "edit role"
	PermRoleDelete  = "delete role"
	PermRolesAssign = "assign roles"

	PermReportsExport = "export reports"
	PermReportsView   = "view reports"
)

// System role names. These roles can never be renamed, edited or deleted.
const (
	RoleAdmin             = "admin"
	RoleEmployee          = "employee"
	RoleDepartmentManager = "department_manager"
)

// Coarse legacy labels stored on the user row.
const (
	LabelAdmin    = "admin"
	LabelEmployee = "employee"
)

// CoreScopes lists every permission seeded into the catalog.
func CoreScopes() []string {
	return []string{
		PermLeavesView,
		PermLeaveCreate,
		PermLeaveEdit,
		PermLeaveDelete,
		PermLeaveApprove,
		PermLeaveReject,
		PermUsersView,
		PermUserCreate,
		PermUserEdit,
		PermUserDelete,
		PermDepartmentsView,
		PermDepartmentCreate,
		PermDepartmentEdit,
		PermDepartmentDelete,
		PermLeaveTypesView,
		PermLeaveTypeCreate,
		PermLeaveTypeEdit,
		PermLeaveTypeDelete,
		PermRolesView,
		PermRoleCreate,
		PermRoleEdit,
		PermRoleDelete,
		PermRolesAssign,
		PermReportsExport,
		PermReportsView,
	}
}

// SystemRoleScopes returns the default permission set of each system role.
func SystemRoleScopes() map[string][]string {
	return map[string][]string{
		RoleAdmin: CoreScopes(),
		RoleDepartmentManager: {
			PermLeavesView,
			PermLeaveApprove,
			PermLeaveReject,
			PermUsersView,
			PermDepartmentsView,
			PermLeaveTypesView,
			PermReportsView,
		},
		RoleEmployee: {
			PermLeavesView,
			PermLeaveCreate,
			PermLeaveDelete,
		},
	}
}

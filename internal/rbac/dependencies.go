package rbac

import (
	"sort"

	"github.com/hrflow/hrflow/internal/shared"
)

// dependencies maps a permission to the permissions it cannot work without.
// The table is flat: dependents are never expanded further.
var dependencies = map[string][]string{
	shared.PermUserCreate:       {shared.PermUsersView, shared.PermDepartmentsView, shared.PermRolesView},
	shared.PermUserEdit:         {shared.PermUsersView, shared.PermDepartmentsView, shared.PermRolesView},
	shared.PermDepartmentCreate: {shared.PermDepartmentsView},
	shared.PermDepartmentEdit:   {shared.PermDepartmentsView},
	shared.PermLeaveTypeCreate:  {shared.PermLeaveTypesView},
	shared.PermLeaveTypeEdit:    {shared.PermLeaveTypesView},
	shared.PermRoleCreate:       {shared.PermRolesView},
	shared.PermRoleEdit:         {shared.PermRolesView},
	shared.PermRolesAssign:      {shared.PermRolesView, shared.PermUsersView},
}

// Expand returns requested plus the direct dependencies of each entry,
// deduplicated and sorted. Names without an entry pass through unchanged.
func Expand(requested []string) []string {
	set := make(map[string]struct{}, len(requested)*2)
	for _, name := range requested {
		set[name] = struct{}{}
		for _, dep := range dependencies[name] {
			set[dep] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Dependencies returns the direct dependencies of a permission.
func Dependencies(name string) []string {
	deps := dependencies[name]
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

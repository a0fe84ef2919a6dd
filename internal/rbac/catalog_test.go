package rbac_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrflow/hrflow/internal/rbac"
	"github.com/hrflow/hrflow/internal/rbac/rbactest"
	"github.com/hrflow/hrflow/internal/shared"
)

func TestCategory(t *testing.T) {
	assert.Equal(t, "leave", rbac.Category(rbac.Permission{Name: "approve leave"}))
	assert.Equal(t, "leave", rbac.Category(rbac.Permission{Name: "view leave types"}))
	assert.Equal(t, "leave types", rbac.Category(rbac.Permission{Name: "view leave types", Category: "leave types"}))
	assert.Equal(t, "other", rbac.Category(rbac.Permission{Name: "impersonate"}))
	assert.Equal(t, "other", rbac.Category(rbac.Permission{Name: "  "}))
}

func TestCatalogListAllSorted(t *testing.T) {
	repo, err := rbactest.NewSeeded(context.Background())
	require.NoError(t, err)

	perms, err := rbac.NewCatalog(repo).ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, perms, len(shared.CoreScopes()))
	for i := 1; i < len(perms); i++ {
		assert.Less(t, perms[i-1].Name, perms[i].Name)
	}
}

func TestCatalogGroupedByCategory(t *testing.T) {
	repo, err := rbactest.NewSeeded(context.Background())
	require.NoError(t, err)

	groups, err := rbac.NewCatalog(repo).GroupedByCategory(context.Background())
	require.NoError(t, err)

	names := func(perms []rbac.Permission) []string {
		out := make([]string, 0, len(perms))
		for _, p := range perms {
			out = append(out, p.Name)
		}
		return out
	}
	assert.Equal(t, []string{"approve leave", "create leave", "delete leave", "edit leave", "reject leave"}, names(groups["leave"]))
	assert.Equal(t, []string{"create leave type", "delete leave type", "edit leave type", "view leave types"}, names(groups["leave types"]))
	assert.Equal(t, []string{"assign roles", "view roles"}, names(groups["roles"]))
	assert.Len(t, groups["role"], 3)

	total := 0
	for _, perms := range groups {
		total += len(perms)
	}
	assert.Equal(t, len(shared.CoreScopes()), total)
}

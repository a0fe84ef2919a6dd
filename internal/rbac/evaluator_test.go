package rbac_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrflow/hrflow/internal/rbac"
	"github.com/hrflow/hrflow/internal/shared"
)

type brokenCache struct{}

func (brokenCache) Get(context.Context, int64) (rbac.CacheEntry, error) {
	return rbac.CacheEntry{}, errors.New("cache down")
}

func (brokenCache) Put(context.Context, rbac.CacheEntry) error { return errors.New("cache down") }

func (brokenCache) Invalidate(context.Context, int64) error { return errors.New("cache down") }

func (brokenCache) InvalidateAll(context.Context) error { return errors.New("cache down") }

type recorder struct {
	mu         sync.Mutex
	allowed    int
	denied     int
	hits       int
	misses     int
	lastDenied string
}

func (r *recorder) ObserveDecision(permission string, allowed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if allowed {
		r.allowed++
		return
	}
	r.denied++
	r.lastDenied = permission
}

func (r *recorder) ObserveCacheLookup(hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
		return
	}
	r.misses++
}

func TestEvaluatorServesFromCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.AddUser(1)
	_, err := f.service.AssignRole(ctx, 1, shared.RoleEmployee)
	require.NoError(t, err)

	rec := &recorder{}
	eval := rbac.NewEvaluator(f.repo, f.cache, nil, rec)
	before := f.repo.AssignedRoleReads()
	for i := 0; i < 5; i++ {
		ok, err := eval.HasPermission(ctx, 1, shared.PermLeaveCreate)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, f.repo.AssignedRoleReads()-before)
	assert.Equal(t, 4, rec.hits)
	assert.Equal(t, 1, rec.misses)
}

func TestEvaluatorUserWithoutRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.AddUser(2)

	perms, err := f.evaluator.EffectivePermissions(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, perms)

	ok, err := f.evaluator.HasRole(ctx, 2, shared.RoleEmployee)
	require.NoError(t, err)
	assert.False(t, ok)

	_, held, err := f.evaluator.AssignedRole(ctx, 2)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestEvaluatorMatchingIsExact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.AddUser(1)
	_, err := f.service.AssignRole(ctx, 1, shared.RoleAdmin)
	require.NoError(t, err)

	ok, err := f.evaluator.HasPermission(ctx, 1, "Approve Leave")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.evaluator.HasRole(ctx, 1, "Admin")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthorize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.AddUser(1)
	_, err := f.service.AssignRole(ctx, 1, shared.RoleEmployee)
	require.NoError(t, err)

	rec := &recorder{}
	eval := rbac.NewEvaluator(f.repo, f.cache, nil, rec)
	require.NoError(t, eval.Authorize(ctx, 1, shared.PermLeaveCreate))

	err = eval.Authorize(ctx, 1, shared.PermLeaveApprove)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.NotErrorIs(t, err, shared.ErrValidation)
	assert.True(t, rbac.IsPermissionDenied(err))
	var denied *rbac.PermissionDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, shared.PermLeaveApprove, denied.Permission)
	assert.Equal(t, 1, rec.allowed)
	assert.Equal(t, 1, rec.denied)
	assert.Equal(t, shared.PermLeaveApprove, rec.lastDenied)
}

func TestAuthorizeBlocksOnStoreError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.AddUser(1)
	_, err := f.service.AssignRole(ctx, 1, shared.RoleAdmin)
	require.NoError(t, err)

	eval := rbac.NewEvaluator(f.repo, rbac.NoopCache{}, nil, nil)
	f.repo.SetReadError(errors.New("connection reset"))
	err = eval.Authorize(ctx, 1, shared.PermUsersView)
	require.Error(t, err)
	assert.False(t, rbac.IsPermissionDenied(err))

	ok, err := eval.HasPermission(ctx, 1, shared.PermUsersView)
	assert.Error(t, err)
	assert.False(t, ok)

	f.repo.SetReadError(nil)
	assert.NoError(t, eval.Authorize(ctx, 1, shared.PermUsersView))
}

func TestEvaluatorFallsBackWhenCacheFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.AddUser(1)
	_, err := rbac.NewService(f.repo, brokenCache{}, nil).AssignRole(ctx, 1, shared.RoleDepartmentManager)
	require.NoError(t, err)

	eval := rbac.NewEvaluator(f.repo, brokenCache{}, nil, nil)
	ok, err := eval.HasPermission(ctx, 1, shared.PermLeaveApprove)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = eval.HasPermission(ctx, 1, shared.PermUserDelete)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluatorConcurrentLoads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.AddUser(4)
	_, err := f.service.AssignRole(ctx, 4, shared.RoleDepartmentManager)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			perms, err := f.evaluator.EffectivePermissions(ctx, 4)
			assert.NoError(t, err)
			assert.Contains(t, perms, shared.PermLeaveReject)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, f.repo.AssignedRoleReads(), 20)
}

func TestEvaluatorRoleDeletedBetweenReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.AddUser(1)
	role, err := f.service.CreateRole(ctx, rbac.CreateRoleInput{Name: "auditor", Permissions: []string{shared.PermUsersView}})
	require.NoError(t, err)
	_, err = f.service.AssignRole(ctx, 1, role.Name)
	require.NoError(t, err)

	eval := rbac.NewEvaluator(f.repo, rbac.NoopCache{}, nil, nil)
	f.repo.BetweenAssignedRoleReads(func() {
		require.NoError(t, f.service.DeleteRole(ctx, role.ID))
	})

	ok, err := eval.HasPermission(ctx, 1, shared.PermUsersView)
	require.NoError(t, err)
	assert.False(t, ok)

	err = eval.Authorize(ctx, 1, shared.PermUsersView)
	assert.True(t, rbac.IsPermissionDenied(err))

	_, held, err := eval.AssignedRole(ctx, 1)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestEvaluatorHasRoleWhenRoleVanishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.AddUser(1)
	role, err := f.service.CreateRole(ctx, rbac.CreateRoleInput{Name: "auditor"})
	require.NoError(t, err)
	_, err = f.service.AssignRole(ctx, 1, role.Name)
	require.NoError(t, err)

	f.repo.BetweenAssignedRoleReads(func() {
		require.NoError(t, f.service.DeleteRole(ctx, role.ID))
	})
	ok, err := f.evaluator.HasRole(ctx, 1, "auditor")
	require.NoError(t, err)
	assert.False(t, ok)
}

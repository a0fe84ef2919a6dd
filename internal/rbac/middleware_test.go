package rbac_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrflow/hrflow/internal/rbac"
	"github.com/hrflow/hrflow/internal/shared"
)

func TestMiddleware(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.AddUser(1)
	f.repo.AddUser(2)
	_, err := f.service.AssignRole(ctx, 1, shared.RoleDepartmentManager)
	require.NoError(t, err)

	mw := rbac.Middleware{Evaluator: f.evaluator}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		name    string
		handler http.Handler
		userID  int64
		want    int
	}{
		{"any granted", mw.RequireAny(shared.PermLeaveApprove, shared.PermRoleCreate)(ok), 1, http.StatusNoContent},
		{"any denied", mw.RequireAny(shared.PermRoleCreate, shared.PermRoleDelete)(ok), 1, http.StatusForbidden},
		{"all granted", mw.RequireAll(shared.PermLeaveApprove, shared.PermLeaveReject)(ok), 1, http.StatusNoContent},
		{"all partially granted", mw.RequireAll(shared.PermLeaveApprove, shared.PermLeaveCreate)(ok), 1, http.StatusForbidden},
		{"case sensitive", mw.RequireAny("Approve Leave")(ok), 1, http.StatusForbidden},
		{"no role", mw.RequireAny(shared.PermLeavesView)(ok), 2, http.StatusForbidden},
		{"anonymous", mw.RequireAny(shared.PermLeavesView)(ok), 0, http.StatusUnauthorized},
		{"nothing required", mw.RequireAny(" ")(ok), 0, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.userID > 0 {
				req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: tc.userID}))
			}
			rec := httptest.NewRecorder()
			tc.handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestMiddlewareStoreErrorIsNotAGrant(t *testing.T) {
	f := newFixture(t)
	f.repo.AddUser(1)
	_, err := f.service.AssignRole(context.Background(), 1, shared.RoleAdmin)
	require.NoError(t, err)
	f.repo.SetReadError(assert.AnError)

	mw := rbac.Middleware{Evaluator: rbac.NewEvaluator(f.repo, nil, nil, nil)}
	handler := mw.RequireAny(shared.PermUsersView)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 1}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMiddlewareRecordsDecisions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.AddUser(1)
	_, err := f.service.AssignRole(ctx, 1, shared.RoleEmployee)
	require.NoError(t, err)

	rec := &recorder{}
	mw := rbac.Middleware{Evaluator: rbac.NewEvaluator(f.repo, f.cache, nil, rec)}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	serve := func(h http.Handler) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 1}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, serve(mw.RequireAny(shared.PermLeavesView)(ok)))
	assert.Equal(t, http.StatusForbidden, serve(mw.RequireAll(shared.PermRoleCreate, shared.PermRoleDelete)(ok)))

	assert.Equal(t, 1, rec.allowed)
	assert.Equal(t, 1, rec.denied)
	assert.Equal(t, shared.PermRoleCreate+","+shared.PermRoleDelete, rec.lastDenied)
}

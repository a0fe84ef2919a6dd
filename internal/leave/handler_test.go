package leave_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrflow/hrflow/internal/leave"
	"github.com/hrflow/hrflow/internal/rbac"
	"github.com/hrflow/hrflow/internal/rbac/rbactest"
	"github.com/hrflow/hrflow/internal/shared"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	store, err := rbactest.NewSeeded(ctx)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := rbac.NewMemoryCache(64, time.Minute)
	roles := rbac.NewService(store, cache, logger)
	eval := rbac.NewEvaluator(store, cache, logger, nil)
	for id, role := range map[int64]string{adminID: shared.RoleAdmin, managerID: shared.RoleDepartmentManager, aliceID: shared.RoleEmployee} {
		store.AddUser(id)
		_, err := roles.AssignRole(ctx, id, role)
		require.NoError(t, err)
	}

	service := leave.NewService(newMemoryRepo(), eval, nil, logger)
	handler := leave.NewHandler(logger, service, rbac.Middleware{Evaluator: eval, Logger: logger})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if raw := req.Header.Get("X-User"); raw != "" {
				id, _ := strconv.ParseInt(raw, 10, 64)
				req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: id}))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/leaves", handler.MountRoutes)
	r.Route("/leave-types", handler.MountTypeRoutes)
	return r
}

func call(t *testing.T, h http.Handler, method, path string, user int64, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if user != 0 {
		req.Header.Set("X-User", strconv.FormatInt(user, 10))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLeaveLifecycleOverHTTP(t *testing.T) {
	h := newRouter(t)

	rec := call(t, h, http.MethodPost, "/leaves", aliceID, `{"leave_type_id":1,"start_date":"2026-05-04","end_date":"2026-05-06","reason":"moving"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created leave.Leave
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 3, created.Days)
	path := "/leaves/" + strconv.FormatInt(created.ID, 10)

	rec = call(t, h, http.MethodPatch, path, aliceID, `{"status":"approved"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, h, http.MethodPatch, path, managerID, `{"status":"approved"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(t, h, http.MethodPatch, path, managerID, `{"status":"rejected"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, h, http.MethodGet, path, aliceID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got leave.Leave
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, leave.StatusApproved, got.Status)

	rec = call(t, h, http.MethodDelete, path, aliceID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLeaveRequestValidation(t *testing.T) {
	h := newRouter(t)

	rec := call(t, h, http.MethodPost, "/leaves", aliceID, `{"leave_type_id":1,"start_date":"05/04/2026","end_date":"2026-05-06"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "start_date")

	rec = call(t, h, http.MethodPatch, "/leaves/1", managerID, `{"status":"pending"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = call(t, h, http.MethodGet, "/leaves", 0, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, h, http.MethodGet, "/leaves/abc", aliceID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeaveTypeRoutes(t *testing.T) {
	h := newRouter(t)

	rec := call(t, h, http.MethodGet, "/leave-types", aliceID, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, h, http.MethodGet, "/leave-types", managerID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var types []leave.LeaveType
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &types))
	assert.Len(t, types, 1)

	rec = call(t, h, http.MethodPost, "/leave-types", managerID, `{"name":"Study"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, h, http.MethodPost, "/leave-types", adminID, `{"name":"Study","default_quota":5,"max_consecutive_days":5}`)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestLeaveTypeItemRoutes(t *testing.T) {
	h := newRouter(t)

	rec := call(t, h, http.MethodGet, "/leave-types/1", managerID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, h, http.MethodPut, "/leave-types/1", managerID, `{"default_quota":25}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, h, http.MethodPut, "/leave-types/1", adminID, `{"default_quota":25}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var lt leave.LeaveType
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lt))
	assert.Equal(t, 25, lt.DefaultQuota)
	assert.Equal(t, "Annual", lt.Name)

	rec = call(t, h, http.MethodPut, "/leave-types/1", adminID, `{"max_consecutive_days":0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = call(t, h, http.MethodPost, "/leaves", aliceID, `{"leave_type_id":1,"start_date":"2026-05-04","end_date":"2026-05-04"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = call(t, h, http.MethodDelete, "/leave-types/1", managerID, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = call(t, h, http.MethodDelete, "/leave-types/1", adminID, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = call(t, h, http.MethodPost, "/leave-types", adminID, `{"name":"Study","max_consecutive_days":5}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lt))
	rec = call(t, h, http.MethodDelete, "/leave-types/"+strconv.FormatInt(lt.ID, 10), adminID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = call(t, h, http.MethodGet, "/leave-types/"+strconv.FormatInt(lt.ID, 10), adminID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBulkDecisionRoutes(t *testing.T) {
	h := newRouter(t)
	var ids []int64
	for i := 0; i < 2; i++ {
		rec := call(t, h, http.MethodPost, "/leaves", aliceID, `{"leave_type_id":1,"start_date":"2026-05-04","end_date":"2026-05-05"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		var l leave.Leave
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &l))
		ids = append(ids, l.ID)
	}
	body := `{"leave_ids":[` + strconv.FormatInt(ids[0], 10) + `,` + strconv.FormatInt(ids[1], 10) + `]}`

	rec := call(t, h, http.MethodPost, "/leaves/bulk-approve", aliceID, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, h, http.MethodPost, "/leaves/bulk-approve", managerID, `{"leave_ids":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = call(t, h, http.MethodPost, "/leaves/bulk-reject", managerID, `{"leave_ids":[424242]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = call(t, h, http.MethodPost, "/leaves/bulk-approve", managerID, `{"leave_ids":[`+strconv.FormatInt(ids[0], 10)+`]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"approved_count":1}`, rec.Body.String())

	rec = call(t, h, http.MethodPost, "/leaves/bulk-reject", managerID, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"rejected_count":1}`, rec.Body.String())
}

func TestEditLeaveRouteNeedsPermission(t *testing.T) {
	h := newRouter(t)
	rec := call(t, h, http.MethodPost, "/leaves", aliceID, `{"leave_type_id":1,"start_date":"2026-05-04","end_date":"2026-05-06"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var l leave.Leave
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &l))
	path := "/leaves/" + strconv.FormatInt(l.ID, 10)

	rec = call(t, h, http.MethodPut, path, aliceID, `{"end_date":"2026-05-04"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, h, http.MethodPut, path, adminID, `{"end_date":"04/05/2026"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = call(t, h, http.MethodPut, path, adminID, `{"end_date":"2026-05-04","reason":" shorter "}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got leave.Leave
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Days)
	assert.Equal(t, "shorter", got.Reason)
}

package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrflow/hrflow/internal/auth"
	"github.com/hrflow/hrflow/internal/observability"
	"github.com/hrflow/hrflow/internal/rbac"
	"github.com/hrflow/hrflow/internal/rbac/rbactest"
	"github.com/hrflow/hrflow/internal/roles"
	"github.com/hrflow/hrflow/internal/shared"
	"github.com/hrflow/hrflow/jobs"
)

type routerFixture struct {
	handler  http.Handler
	tokens   *auth.TokenManager
	metrics  *observability.Metrics
	adminTok string
	empTok   string
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := rbactest.NewSeeded(ctx)
	require.NoError(t, err)
	metrics := observability.NewMetrics()
	cache := rbac.NewMemoryCache(16, time.Minute)
	service := rbac.NewService(repo, cache, logger)
	evaluator := rbac.NewEvaluator(repo, cache, logger, metrics)
	for id, role := range map[int64]string{1: shared.RoleAdmin, 2: shared.RoleEmployee} {
		repo.AddUser(id)
		_, err := service.AssignRole(ctx, id, role)
		require.NoError(t, err)
	}

	tokens := auth.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)
	adminTok, err := tokens.Issue(auth.User{ID: 1, Email: "admin@example.com", RoleLabel: shared.LabelAdmin})
	require.NoError(t, err)
	empTok, err := tokens.Issue(auth.User{ID: 2, Email: "eve@example.com", RoleLabel: shared.LabelEmployee})
	require.NoError(t, err)

	cfg := &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second, RateLimitPerMinute: 1000}
	router := NewRouter(RouterParams{
		Logger:       logger,
		Config:       cfg,
		Tokens:       tokens,
		RolesHandler: roles.NewHandler(logger, service, rbac.NewCatalog(repo), rbac.Middleware{Evaluator: evaluator, Logger: logger}),
		JobHandler:   jobs.NewHandler(nil, logger),
		Metrics:      metrics,
	})
	return routerFixture{handler: router, tokens: tokens, metrics: metrics, adminTok: adminTok.AccessToken, empTok: empTok.AccessToken}
}

func (f routerFixture) get(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "203.0.113.7:4000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouterPublicEndpoints(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.get("/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = f.get("/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterRequiresBearerToken(t *testing.T) {
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.get("/roles", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.get("/roles", "garbage").Code)
	assert.Equal(t, http.StatusOK, f.get("/roles", f.adminTok).Code)
	assert.Equal(t, http.StatusForbidden, f.get("/roles", f.empTok).Code)
	assert.Equal(t, http.StatusOK, f.get("/jobs/health", f.empTok).Code)
}

func TestRouterExportsAuthorizationMetrics(t *testing.T) {
	f := newRouterFixture(t)
	f.get("/permissions", f.empTok)

	rec := f.get("/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "hrflow_rbac_cache_lookups_total"), body)
	assert.True(t, strings.Contains(body, `hrflow_http_requests_total{code="403"`), body)
}

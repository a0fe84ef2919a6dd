package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hrflow/hrflow/internal/auth"
	"github.com/hrflow/hrflow/internal/shared"
	_ "github.com/hrflow/hrflow/testing"
)

type stubRepo struct {
	user *auth.User
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func newStubRepo(t *testing.T) *stubRepo {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	return &stubRepo{user: &auth.User{ID: 7, Email: "jane@example.com", Name: "Jane", PasswordHash: string(hash), RoleLabel: shared.LabelEmployee}}
}

func newRouter(t *testing.T, tokens *auth.TokenManager) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, auth.NewService(newStubRepo(t), tokens))
	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	r.With(auth.Authenticate(tokens, logger)).Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		p, ok := shared.PrincipalFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(p)
	})
	return r
}

func login(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoginIssuesUsableToken(t *testing.T) {
	tokens := auth.NewTokenManager("secret", time.Hour)
	h := newRouter(t, tokens)

	rec := login(t, h, `{"email":"Jane@Example.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var token auth.Token
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
	assert.Equal(t, "Bearer", token.TokenType)
	assert.True(t, token.ExpiresAt.After(time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var principal shared.Principal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &principal))
	assert.Equal(t, int64(7), principal.UserID)
	assert.Equal(t, shared.LabelEmployee, principal.RoleLabel)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := newRouter(t, auth.NewTokenManager("secret", time.Hour))

	rec := login(t, h, `{"email":"jane@example.com","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = login(t, h, `{"email":"nobody@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = login(t, h, `{"email":"not-an-email","password":"short"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email"`)
	assert.Contains(t, rec.Body.String(), `"password"`)

	rec = login(t, h, `{"email":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	tokens := auth.NewTokenManager("secret", time.Hour)
	h := newRouter(t, tokens)

	other, err := auth.NewTokenManager("other-secret", time.Hour).Issue(auth.User{ID: 7})
	require.NoError(t, err)

	expiring := auth.NewTokenManager("secret", time.Minute)
	expiring.SetClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	expired, err := expiring.Issue(auth.User{ID: 7})
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":      "",
		"wrong scheme": "Basic abc",
		"garbage":      "Bearer not-a-jwt",
		"wrong secret": "Bearer " + other.AccessToken,
		"expired":      "Bearer " + expired.AccessToken,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestTokenCarriesUniqueID(t *testing.T) {
	tokens := auth.NewTokenManager("secret", time.Hour)
	a, err := tokens.Issue(auth.User{ID: 1})
	require.NoError(t, err)
	b, err := tokens.Issue(auth.User{ID: 1})
	require.NoError(t, err)

	ca, err := tokens.Parse(a.AccessToken)
	require.NoError(t, err)
	cb, err := tokens.Parse(b.AccessToken)
	require.NoError(t, err)
	assert.NotEqual(t, ca.ID, cb.ID)
	assert.Equal(t, "1", ca.Subject)
}

func TestHashPassword(t *testing.T) {
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("password123")))
}

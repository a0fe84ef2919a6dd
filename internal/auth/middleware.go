package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/hrflow/hrflow/internal/platform/httpx"
	"github.com/hrflow/hrflow/internal/shared"
)

// Authenticate resolves the bearer token into a shared.Principal. Requests
// without a valid token get a 401 problem.
func Authenticate(tokens *TokenManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, raw, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			claims, err := tokens.Parse(strings.TrimSpace(raw))
			if err != nil {
				if logger != nil {
					logger.Debug("reject bearer token", slog.Any("error", err))
				}
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			ctx := shared.ContextWithPrincipal(r.Context(), shared.Principal{UserID: claims.UserID, RoleLabel: claims.RoleLabel})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

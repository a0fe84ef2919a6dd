package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hrflow/hrflow/internal/auth"
	"github.com/hrflow/hrflow/internal/departments"
	"github.com/hrflow/hrflow/internal/leave"
	"github.com/hrflow/hrflow/internal/notifications"
	"github.com/hrflow/hrflow/internal/observability"
	"github.com/hrflow/hrflow/internal/platform/httpx"
	"github.com/hrflow/hrflow/internal/roles"
	"github.com/hrflow/hrflow/internal/users"
	"github.com/hrflow/hrflow/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	Tokens               *auth.TokenManager
	AuthHandler          *auth.Handler
	RolesHandler         *roles.Handler
	UsersHandler         *users.Handler
	DepartmentsHandler   *departments.Handler
	LeaveHandler         *leave.Handler
	NotificationsHandler *notifications.Handler
	JobHandler           *jobs.Handler
	Metrics              *observability.Metrics
	LoginRatePerMinute   int
}

// NewRouter constructs the chi.Router with hrflow defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.AuthHandler != nil {
		r.Route("/auth", func(r chi.Router) {
			r.Use(LoginRateLimit(params.LoginRatePerMinute))
			params.AuthHandler.MountRoutes(r)
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(params.Tokens, params.Logger))

		if params.UsersHandler != nil {
			r.Get("/me", params.UsersHandler.Me)
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.DepartmentsHandler != nil {
			r.Route("/departments", params.DepartmentsHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
			r.Route("/permissions", params.RolesHandler.MountPermissionRoutes)
		}
		if params.LeaveHandler != nil {
			r.Route("/leaves", params.LeaveHandler.MountRoutes)
			r.Route("/leave-types", params.LeaveHandler.MountTypeRoutes)
		}
		if params.NotificationsHandler != nil {
			r.Route("/notifications", params.NotificationsHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	return r
}

package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hrflow/hrflow/internal/platform/httpx"
	"github.com/hrflow/hrflow/internal/rbac"
	"github.com/hrflow/hrflow/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermUsersView)).Get("/", h.listUsers)
	r.With(h.rbac.RequireAll(shared.PermUserCreate)).Post("/", h.createUser)
	r.Get("/{id}", h.getUser)
	r.Put("/{id}", h.updateUser)
	r.With(h.rbac.RequireAll(shared.PermUserDelete)).Delete("/{id}", h.deleteUser)
	r.With(h.rbac.RequireAll(shared.PermRolesAssign)).Put("/{id}/role", h.assignRole)
}

// Me serves the caller's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	profile, err := h.service.Profile(r.Context(), principal.UserID)
	if err != nil {
		h.fail(w, "profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

type createUserRequest struct {
	Name         string `json:"name" validate:"required,max=255"`
	Email        string `json:"email" validate:"required,email,max=255"`
	Password     string `json:"password" validate:"required,min=8"`
	Role         string `json:"role" validate:"required"`
	DepartmentID *int64 `json:"department_id,omitempty" validate:"omitempty,gt=0"`
}

type updateUserRequest struct {
	Name         *string          `json:"name" validate:"omitempty,max=255"`
	Email        *string          `json:"email" validate:"omitempty,email,max=255"`
	Password     *string          `json:"password" validate:"omitempty,min=8"`
	Role         *string          `json:"role" validate:"omitempty,min=1"`
	DepartmentID httpx.OptionalID `json:"department_id"`
}

type assignRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	if list == nil {
		list = []User{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	user, err := h.service.CreateUser(r.Context(), CreateUserInput(req))
	if err != nil {
		h.fail(w, "create user", err)
		return
	}
	h.logger.Info("user created", slog.Int64("user_id", user.ID))
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}
	user, err := h.service.GetUser(r.Context(), principal.UserID, id)
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	user, err := h.service.UpdateUser(r.Context(), principal.UserID, id, UpdateUserInput{
		Name:          req.Name,
		Email:         req.Email,
		Password:      req.Password,
		Role:          req.Role,
		DepartmentSet: req.DepartmentID.Present,
		DepartmentID:  req.DepartmentID.Value,
	})
	if err != nil {
		h.fail(w, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	id, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteUser(r.Context(), principal.UserID, id); err != nil {
		h.fail(w, "delete user", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req assignRoleRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	user, err := h.service.AssignRole(r.Context(), id, req.Role)
	if err != nil {
		h.fail(w, "assign role", err)
		return
	}
	h.logger.Info("role assigned", slog.Int64("user_id", id), slog.String("role", req.Role))
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
		return 0, false
	}
	return id, true
}

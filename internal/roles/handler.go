package roles

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hrflow/hrflow/internal/platform/httpx"
	"github.com/hrflow/hrflow/internal/rbac"
	"github.com/hrflow/hrflow/internal/shared"
)

// RoleStore is the subset of rbac.Service used by the handler.
type RoleStore interface {
	ListRoles(ctx context.Context) ([]rbac.Role, error)
	GetRole(ctx context.Context, id int64) (rbac.Role, error)
	CreateRole(ctx context.Context, in rbac.CreateRoleInput) (rbac.Role, error)
	UpdateRole(ctx context.Context, id int64, in rbac.UpdateRoleInput) (rbac.Role, error)
	DeleteRole(ctx context.Context, id int64) error
}

// PermissionCatalog lists the permission catalog.
type PermissionCatalog interface {
	ListAll(ctx context.Context) ([]rbac.Permission, error)
	GroupedByCategory(ctx context.Context) (map[string][]rbac.Permission, error)
}

// Handler manages role management endpoints.
type Handler struct {
	logger  *slog.Logger
	roles   RoleStore
	catalog PermissionCatalog
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, roles RoleStore, catalog PermissionCatalog, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, roles: roles, catalog: catalog, rbac: rbac}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermRolesView))
		r.Get("/", h.listRoles)
		r.Get("/{id}", h.getRole)
	})
	r.With(h.rbac.RequireAll(shared.PermRoleCreate)).Post("/", h.createRole)
	r.With(h.rbac.RequireAll(shared.PermRoleEdit)).Put("/{id}", h.updateRole)
	r.With(h.rbac.RequireAll(shared.PermRoleDelete)).Delete("/{id}", h.deleteRole)
}

// MountPermissionRoutes registers the catalog routes.
func (h *Handler) MountPermissionRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAny(shared.PermRolesView))
	r.Get("/", h.groupedPermissions)
	r.Get("/all", h.allPermissions)
}

type createRoleRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Permissions []string `json:"permissions"`
}

type updateRoleRequest struct {
	Name        *string   `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Permissions *[]string `json:"permissions,omitempty"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.ListRoles(r.Context())
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	if roles == nil {
		roles = []rbac.Role{}
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := roleID(w, r)
	if !ok {
		return
	}
	role, err := h.roles.GetRole(r.Context(), id)
	if err != nil {
		h.fail(w, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	role, err := h.roles.CreateRole(r.Context(), rbac.CreateRoleInput{Name: req.Name, Permissions: req.Permissions})
	if err != nil {
		h.fail(w, "create role", err)
		return
	}
	h.logger.Info("role created", slog.Int64("role_id", role.ID), slog.String("name", role.Name))
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := roleID(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	role, err := h.roles.UpdateRole(r.Context(), id, rbac.UpdateRoleInput{Name: req.Name, Permissions: req.Permissions})
	if err != nil {
		h.fail(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := roleID(w, r)
	if !ok {
		return
	}
	if err := h.roles.DeleteRole(r.Context(), id); err != nil {
		h.fail(w, "delete role", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) groupedPermissions(w http.ResponseWriter, r *http.Request) {
	groups, err := h.catalog.GroupedByCategory(r.Context())
	if err != nil {
		h.fail(w, "group permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

func (h *Handler) allPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.catalog.ListAll(r.Context())
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	if perms == nil {
		perms = []rbac.Permission{}
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	var unknown *rbac.UnknownPermissionsError
	if errors.As(err, &unknown) {
		httpx.RespondValidation(w, map[string]string{"permissions": "unknown permissions: " + strings.Join(unknown.Names, ", ")})
		return
	}
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func roleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "role not found")
		return 0, false
	}
	return id, true
}

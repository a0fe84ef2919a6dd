package departments

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hrflow/hrflow/internal/platform/httpx"
	"github.com/hrflow/hrflow/internal/rbac"
	"github.com/hrflow/hrflow/internal/shared"
)

// Handler exposes department management over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers /departments routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermDepartmentsView)).Get("/", h.list)
	r.With(h.rbac.RequireAll(shared.PermDepartmentCreate)).Post("/", h.create)
	r.With(h.rbac.RequireAny(shared.PermDepartmentsView)).Get("/{id}", h.get)
	r.With(h.rbac.RequireAll(shared.PermDepartmentEdit)).Put("/{id}", h.update)
	r.With(h.rbac.RequireAll(shared.PermDepartmentDelete)).Delete("/{id}", h.delete)
}

type createRequest struct {
	Name      string `json:"name" validate:"required,max=255"`
	ManagerID *int64 `json:"manager_id" validate:"omitempty,gt=0"`
}

type updateRequest struct {
	Name      *string          `json:"name" validate:"omitempty,max=255"`
	ManagerID httpx.OptionalID `json:"manager_id"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list departments", err)
		return
	}
	if list == nil {
		list = []Department{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := departmentID(w, r)
	if !ok {
		return
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get department", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	d, err := h.service.Create(r.Context(), CreateInput(req))
	if err != nil {
		h.fail(w, "create department", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := departmentID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	d, err := h.service.Update(r.Context(), id, UpdateInput{
		Name:       req.Name,
		ManagerSet: req.ManagerID.Present,
		ManagerID:  req.ManagerID.Value,
	})
	if err != nil {
		h.fail(w, "update department", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := departmentID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete department", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func departmentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "department not found")
		return 0, false
	}
	return id, true
}

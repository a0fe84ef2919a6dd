package leave

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hrflow/hrflow/internal/platform/httpx"
	"github.com/hrflow/hrflow/internal/rbac"
	"github.com/hrflow/hrflow/internal/shared"
)

// Handler exposes the leave workflow over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers /leaves routes. Single-leave gates are enforced by
// the service because the approve/reject permission depends on the request
// body; the bulk routes carry theirs in the path.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.With(h.rbac.RequireAll(shared.PermLeaveApprove)).Post("/bulk-approve", h.bulk(StatusApproved))
	r.With(h.rbac.RequireAll(shared.PermLeaveReject)).Post("/bulk-reject", h.bulk(StatusRejected))
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.edit)
	r.Patch("/{id}", h.decide)
	r.Delete("/{id}", h.delete)
}

// MountTypeRoutes registers /leave-types routes.
func (h *Handler) MountTypeRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermLeaveTypesView)).Get("/", h.listTypes)
	r.With(h.rbac.RequireAll(shared.PermLeaveTypeCreate)).Post("/", h.createType)
	r.With(h.rbac.RequireAny(shared.PermLeaveTypesView)).Get("/{id}", h.getType)
	r.With(h.rbac.RequireAll(shared.PermLeaveTypeEdit)).Put("/{id}", h.updateType)
	r.With(h.rbac.RequireAll(shared.PermLeaveTypeDelete)).Delete("/{id}", h.deleteType)
}

type createLeaveRequest struct {
	LeaveTypeID int64  `json:"leave_type_id" validate:"required,gt=0"`
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason      string `json:"reason" validate:"max=1000"`
}

type decideLeaveRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

type editLeaveRequest struct {
	LeaveTypeID *int64  `json:"leave_type_id" validate:"omitempty,gt=0"`
	StartDate   *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate     *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Reason      *string `json:"reason" validate:"omitempty,max=1000"`
}

type bulkRequest struct {
	LeaveIDs []int64 `json:"leave_ids" validate:"required,min=1,dive,gt=0"`
}

type updateTypeRequest struct {
	Name               *string `json:"name" validate:"omitempty,max=100"`
	DefaultQuota       *int    `json:"default_quota" validate:"omitempty,gte=0"`
	MaxConsecutiveDays *int    `json:"max_consecutive_days" validate:"omitempty,gte=1"`
}

type createTypeRequest struct {
	Name               string `json:"name" validate:"required,max=100"`
	DefaultQuota       int    `json:"default_quota" validate:"gte=0"`
	MaxConsecutiveDays int    `json:"max_consecutive_days" validate:"omitempty,gte=1"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	leaves, err := h.service.List(r.Context(), principal.UserID)
	if err != nil {
		h.fail(w, "list leaves", err)
		return
	}
	if leaves == nil {
		leaves = []Leave{}
	}
	httpx.JSON(w, http.StatusOK, leaves)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := leaveID(w, r)
	if !ok {
		return
	}
	l, err := h.service.Get(r.Context(), principal.UserID, id)
	if err != nil {
		h.fail(w, "get leave", err)
		return
	}
	httpx.JSON(w, http.StatusOK, l)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req createLeaveRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	start, _ := time.Parse(DateLayout, req.StartDate)
	end, _ := time.Parse(DateLayout, req.EndDate)
	created, err := h.service.Create(r.Context(), principal.UserID, CreateInput{
		LeaveTypeID: req.LeaveTypeID,
		StartDate:   start,
		EndDate:     end,
		Reason:      req.Reason,
	})
	if err != nil {
		h.fail(w, "create leave", err)
		return
	}
	h.logger.Info("leave submitted", slog.Int64("leave_id", created.ID), slog.Int64("user_id", principal.UserID))
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := leaveID(w, r)
	if !ok {
		return
	}
	var req decideLeaveRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	decided, err := h.service.Decide(r.Context(), principal.UserID, id, Status(req.Status))
	if err != nil {
		h.fail(w, "decide leave", err)
		return
	}
	h.logger.Info("leave decided", slog.Int64("leave_id", id), slog.String("status", req.Status))
	httpx.JSON(w, http.StatusOK, decided)
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := leaveID(w, r)
	if !ok {
		return
	}
	var req editLeaveRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	in := EditInput{LeaveTypeID: req.LeaveTypeID, Reason: req.Reason}
	if req.StartDate != nil {
		start, _ := time.Parse(DateLayout, *req.StartDate)
		in.StartDate = &start
	}
	if req.EndDate != nil {
		end, _ := time.Parse(DateLayout, *req.EndDate)
		in.EndDate = &end
	}
	edited, err := h.service.Edit(r.Context(), principal.UserID, id, in)
	if err != nil {
		h.fail(w, "edit leave", err)
		return
	}
	httpx.JSON(w, http.StatusOK, edited)
}

func (h *Handler) bulk(status Status) http.HandlerFunc {
	key := "approved_count"
	if status == StatusRejected {
		key = "rejected_count"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := h.principal(w, r)
		if !ok {
			return
		}
		var req bulkRequest
		if !httpx.Bind(w, r, &req) {
			return
		}
		res, err := h.service.DecideMany(r.Context(), principal.UserID, req.LeaveIDs, status)
		if err != nil {
			h.fail(w, "bulk decide leaves", err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]int{key: res.Count})
	}
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := leaveID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), principal.UserID, id); err != nil {
		h.fail(w, "delete leave", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.LeaveTypes(r.Context())
	if err != nil {
		h.fail(w, "list leave types", err)
		return
	}
	if types == nil {
		types = []LeaveType{}
	}
	httpx.JSON(w, http.StatusOK, types)
}

func (h *Handler) createType(w http.ResponseWriter, r *http.Request) {
	var req createTypeRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	lt, err := h.service.CreateLeaveType(r.Context(), LeaveType{
		Name:               req.Name,
		DefaultQuota:       req.DefaultQuota,
		MaxConsecutiveDays: req.MaxConsecutiveDays,
	})
	if err != nil {
		h.fail(w, "create leave type", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lt)
}

func (h *Handler) getType(w http.ResponseWriter, r *http.Request) {
	id, ok := leaveTypeID(w, r)
	if !ok {
		return
	}
	lt, err := h.service.LeaveType(r.Context(), id)
	if err != nil {
		h.fail(w, "get leave type", err)
		return
	}
	httpx.JSON(w, http.StatusOK, lt)
}

func (h *Handler) updateType(w http.ResponseWriter, r *http.Request) {
	id, ok := leaveTypeID(w, r)
	if !ok {
		return
	}
	var req updateTypeRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	lt, err := h.service.UpdateLeaveType(r.Context(), id, LeaveTypeUpdate(req))
	if err != nil {
		h.fail(w, "update leave type", err)
		return
	}
	httpx.JSON(w, http.StatusOK, lt)
}

func (h *Handler) deleteType(w http.ResponseWriter, r *http.Request) {
	id, ok := leaveTypeID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteLeaveType(r.Context(), id); err != nil {
		h.fail(w, "delete leave type", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (shared.Principal, bool) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
	}
	return principal, ok
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func leaveID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "leave not found")
		return 0, false
	}
	return id, true
}

func leaveTypeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "leave type not found")
		return 0, false
	}
	return id, true
}

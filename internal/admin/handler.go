package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/finwise/finwise-admin/internal/audit"
	"github.com/finwise/finwise-admin/internal/gate"
	"github.com/finwise/finwise-admin/internal/platform/httpx"
)

// Handler exposes the admin plane over HTTP. Every route is mounted behind
// the access gate, so handlers can rely on gate.AdminFromContext being set.
type Handler struct {
	service   *Service
	auditSvc  *audit.Service
	analytics *Analytics
	health    *Health
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewHandler constructs the admin HTTP handler.
func NewHandler(service *Service, auditSvc *audit.Service, analytics *Analytics, health *Health, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		auditSvc:  auditSvc,
		analytics: analytics,
		health:    health,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := ListUsersParams{
		Search:   q.Get("search"),
		Role:     q.Get("role"),
		Status:   q.Get("status"),
		Page:     intQuery(q.Get("page")),
		PageSize: intQuery(q.Get("page_size")),
		SortBy:   q.Get("sort_by"),
		SortDesc: q.Get("order") != "asc",
	}
	page, err := h.service.ListUsers(r.Context(), gate.AdminFromContext(r.Context()), params)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": page})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	user, err := h.service.GetUser(r.Context(), gate.AdminFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var in UpdateUserInput
	if !h.decode(w, r, &in) {
		return
	}
	user, err := h.service.UpdateUser(r.Context(), gate.AdminFromContext(r.Context()), id, in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "User updated", user)
}

func (h *Handler) suspendUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var in SuspendInput
	if !h.decode(w, r, &in) {
		return
	}
	user, err := h.service.SetSuspension(r.Context(), gate.AdminFromContext(r.Context()), id, in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "User "+in.Action+"ed", user)
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var in RoleChangeInput
	if !h.decode(w, r, &in) {
		return
	}
	user, err := h.service.ChangeRole(r.Context(), gate.AdminFromContext(r.Context()), id, in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Role updated", user)
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := audit.Filters{
		Action:     q.Get("action"),
		Status:     audit.Status(q.Get("status")),
		ActorEmail: q.Get("actor"),
		TargetType: q.Get("target_type"),
		Search:     q.Get("search"),
		From:       timeQuery(q.Get("from")),
		To:         timeQuery(q.Get("to")),
		Page:       intQuery(q.Get("page")),
		PageSize:   intQuery(q.Get("page_size")),
		SortDesc:   q.Get("order") != "asc",
	}
	page, err := h.auditSvc.List(r.Context(), filters)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": page})
}

func (h *Handler) auditStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stats, err := h.auditSvc.StatsForPeriod(r.Context(), timeQuery(q.Get("from")), timeQuery(q.Get("to")))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", stats)
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.GetConfig(r.Context(), gate.AdminFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", entries)
}

func (h *Handler) updateConfig(w http.ResponseWriter, r *http.Request) {
	var in UpdateConfigInput
	if !h.decode(w, r, &in) {
		return
	}
	entries, err := h.service.UpdateConfig(r.Context(), gate.AdminFromContext(r.Context()), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Configuration updated", entries)
}

func (h *Handler) analyticsOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.analytics.Overview(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", overview)
}

func (h *Handler) systemHealth(w http.ResponseWriter, r *http.Request) {
	report := h.health.Report(r.Context())
	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	httpx.JSON(w, status, map[string]any{"success": report.Status == "ok", "data": report})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		httpx.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid user id", nil)
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", nil)
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", validationMessage(err), nil)
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var adminErr *Error
	if errors.As(err, &adminErr) {
		httpx.Error(w, adminErr.Status, adminErr.Code, adminErr.Message, nil)
		return
	}
	h.logger.Error("admin operation failed",
		"path", r.URL.Path, "method", r.Method, "error", err)
	httpx.RespondError(w, err)
}

func validationMessage(err error) string {
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) && len(invalid) > 0 {
		f := invalid[0]
		return "Invalid value for field " + f.Field()
	}
	return "Invalid request body"
}

func intQuery(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func timeQuery(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

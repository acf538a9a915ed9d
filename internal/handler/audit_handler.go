package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"filevault/internal/auth"
	"filevault/internal/domain"
	"filevault/internal/service"
)

type AuditHandler struct {
	authenticator
	auditService *service.AuditService
}

func NewAuditHandler(tokens *auth.Manager, authService *service.AuthService, auditService *service.AuditService) *AuditHandler {
	return &AuditHandler{
		authenticator: authenticator{tokens: tokens, authService: authService},
		auditService:  auditService,
	}
}

func (h *AuditHandler) RegisterRoutes(r chi.Router) {
	r.Get("/audit", h.List)
	r.Get("/audit/users/{id}", h.UserActivity)
	r.Get("/audit/files/{id}", h.FileHistory)
}

// parseFilter собирает фильтр журнала из query-параметров
func parseFilter(r *http.Request) domain.AuditFilter {
	q := r.URL.Query()
	var filter domain.AuditFilter

	if v := q.Get("user_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.UserID = &id
		}
	}
	if v := q.Get("action"); v != "" {
		action := domain.AuditAction(v)
		filter.Action = &action
	}
	if v := q.Get("resource_type"); v != "" {
		filter.ResourceType = &v
	}
	if v := q.Get("resource_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.ResourceID = &id
		}
	}
	if v := q.Get("status"); v != "" {
		filter.Status = &v
	}
	if v := q.Get("start_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.StartDate = &t
		}
	}
	if v := q.Get("end_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.EndDate = &t
		}
	}

	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	return filter
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	entries, total, err := h.auditService.List(r.Context(), *identity, parseFilter(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditLog{}
	}

	response := struct {
		Total   int64             `json:"total"`
		Entries []domain.AuditLog `json:"entries"`
	}{total, entries}

	writeJSON(w, http.StatusOK, response)
}

func (h *AuditHandler) UserActivity(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.auditService.UserActivity(r.Context(), *identity, userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditLog{}
	}

	writeJSON(w, http.StatusOK, entries)
}

func (h *AuditHandler) FileHistory(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.auditService.FileHistory(r.Context(), *identity, fileID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditLog{}
	}

	writeJSON(w, http.StatusOK, entries)
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"filevault/internal/cache"
)

// storagePinger проверяет доступность объектного хранилища
type storagePinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db      *sqlx.DB
	cache   *cache.Client
	storage storagePinger
}

func NewHealthHandler(db *sqlx.DB, cacheClient *cache.Client, storage storagePinger) *HealthHandler {
	return &HealthHandler{db: db, cache: cacheClient, storage: storage}
}

func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/health/detailed", h.HealthDetailed)
}

// Health проверяет доступность базы данных и Redis
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{
		"database": "ok",
		"cache":    "ok",
	}

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.cache.Ping(ctx); err != nil {
		checks["cache"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, checks)
}

// HealthDetailed дополнительно проверяет объектное хранилище.
// S3 медленнее остальных, поэтому не входит в базовую проверку.
func (h *HealthHandler) HealthDetailed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{
		"database": "ok",
		"cache":    "ok",
		"storage":  "ok",
	}

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.cache.Ping(ctx); err != nil {
		checks["cache"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.storage.Ping(ctx); err != nil {
		checks["storage"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, checks)
}

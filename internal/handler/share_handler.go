package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"filevault/internal/auth"
	"filevault/internal/domain"
	"filevault/internal/service"
	"filevault/internal/service/s3"
)

type ShareHandler struct {
	authenticator
	shareService *service.ShareService
	storage      s3.Storage
}

func NewShareHandler(tokens *auth.Manager, authService *service.AuthService, shareService *service.ShareService, storage s3.Storage) *ShareHandler {
	return &ShareHandler{
		authenticator: authenticator{tokens: tokens, authService: authService},
		shareService:  shareService,
		storage:       storage,
	}
}

func (h *ShareHandler) RegisterRoutes(r chi.Router) {
	r.Post("/share", h.CreateLink)
	r.Get("/share/my", h.ListMyLinks)
	r.Get("/share/{token}/info", h.LinkInfo)
	r.Get("/share/{token}", h.Download)
	r.Post("/share/{token}/download", h.Download)
	r.Delete("/share/{token}", h.RevokeLink)
}

func (h *ShareHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req domain.CreateShareLink
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	descriptor, err := h.shareService.Create(r.Context(), *identity, req)
	if err != nil {
		log.Printf("[CreateLink] Failed to create share link: %v", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, descriptor)
}

func (h *ShareHandler) ListMyLinks(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	links, err := h.shareService.ListForOwner(r.Context(), *identity, identity.UserID, offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if links == nil {
		links = []domain.LinkSummary{}
	}

	writeJSON(w, http.StatusOK, links)
}

// LinkInfo — публичные метаданные ссылки. Клиент узнает, нужен ли пароль
// и аутентификация, до попытки скачивания. Ссылка с исчерпанной квотой
// еще показывает свои счетчики, пока не истекла по TTL.
func (h *ShareHandler) LinkInfo(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	snapshot, valid, err := h.shareService.Describe(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	response := struct {
		Filename      string `json:"filename"`
		ContentType   string `json:"content_type"`
		SizeBytes     int64  `json:"size_bytes"`
		ExpiresAt     string `json:"expires_at"`
		HasPassword   bool   `json:"has_password"`
		RequiresAuth  bool   `json:"requires_auth"`
		DownloadCount int    `json:"download_count"`
		MaxDownloads  *int   `json:"max_downloads,omitempty"`
		IsValid       bool   `json:"is_valid"`
	}{
		Filename:      snapshot.Filename,
		ContentType:   snapshot.ContentType,
		SizeBytes:     snapshot.SizeBytes,
		ExpiresAt:     snapshot.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		HasPassword:   snapshot.HasPassword(),
		RequiresAuth:  snapshot.RequiresAuth,
		DownloadCount: snapshot.DownloadCount,
		MaxDownloads:  snapshot.MaxDownloads,
		IsValid:       valid,
	}

	writeJSON(w, http.StatusOK, response)
}

type denyResponse struct {
	Detail domain.DenyReason `json:"detail"`
}

func denyStatus(reason domain.DenyReason) int {
	switch reason {
	case domain.DenyExpiredOrMissing:
		return http.StatusNotFound
	case domain.DenyPasswordRequired, domain.DenyInvalidPassword, domain.DenyAuthRequired:
		return http.StatusUnauthorized
	case domain.DenyForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Download отдает файл по ссылке. Пароль принимается в теле POST-запроса
// или в query-параметре. Аутентификация опциональна, но часть ссылок
// без нее не открывается.
func (h *ShareHandler) Download(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	identity := h.optionalIdentify(r)

	var password *string
	if r.Method == http.MethodPost {
		var body struct {
			Password *string `json:"password,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			password = body.Password
		}
	}
	if password == nil {
		if p := r.URL.Query().Get("password"); p != "" {
			password = &p
		}
	}

	snapshot, reason, err := h.shareService.AuthorizeAccess(r.Context(), token, password, identity)
	if err != nil {
		log.Printf("[ShareDownload] Authorization failed for token %s: %v", token, err)
		writeError(w, err)
		return
	}
	if reason != domain.DenyNone {
		writeJSON(w, denyStatus(reason), denyResponse{Detail: reason})
		return
	}

	counted, err := h.shareService.RecordAccess(r.Context(), token, identity)
	if err != nil {
		writeError(w, err)
		return
	}
	if !counted {
		// Квота исчерпана между проверкой и учетом
		writeJSON(w, http.StatusNotFound, denyResponse{Detail: domain.DenyExpiredOrMissing})
		return
	}

	obj, err := h.storage.GetObject(r.Context(), snapshot.S3Key)
	if err != nil {
		log.Printf("[ShareDownload] Failed to get object %s: %v", snapshot.S3Key, err)
		writeError(w, err)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", snapshot.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(obj.ContentLength(), 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", snapshot.Filename))

	if _, err := io.Copy(w, obj); err != nil {
		log.Printf("[ShareDownload] Failed to stream object %s: %v", snapshot.S3Key, err)
	}
}

func (h *ShareHandler) RevokeLink(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token := chi.URLParam(r, "token")

	if err := h.shareService.Revoke(r.Context(), token, *identity); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

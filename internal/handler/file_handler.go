package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"filevault/internal/auth"
	"filevault/internal/domain"
	"filevault/internal/service"
)

type FileHandler struct {
	authenticator
	fileService *service.FileService
	maxSizeMB   int64
}

func NewFileHandler(tokens *auth.Manager, authService *service.AuthService, fileService *service.FileService, maxSizeMB int64) *FileHandler {
	return &FileHandler{
		authenticator: authenticator{tokens: tokens, authService: authService},
		fileService:   fileService,
		maxSizeMB:     maxSizeMB,
	}
}

func (h *FileHandler) RegisterRoutes(r chi.Router) {
	r.Post("/files/upload", h.Upload)
	r.Get("/files", h.ListOwn)
	r.Get("/files/shared", h.ListShared)
	r.Get("/files/all", h.ListAll)
	r.Get("/files/stats", h.Stats)
	r.Get("/files/{id}", h.Get)
	r.Get("/files/{id}/download", h.Download)
	r.Put("/files/{id}", h.Update)
	r.Delete("/files/{id}", h.Delete)
	r.Get("/files/{id}/permissions", h.ListPermissions)
	r.Post("/files/{id}/permissions", h.GrantPermission)
	r.Delete("/files/{id}/permissions/{userID}", h.RevokePermission)
}

func fileIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	maxBytes := h.maxSizeMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "File is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Printf("[Upload] Failed to read file: %v", err)
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var description *string
	if d := r.FormValue("description"); d != "" {
		description = &d
	}

	upload := &domain.FileUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		OwnerID:     identity.UserID,
		Description: description,
		Data:        data,
	}

	created, err := h.fileService.Upload(r.Context(), *identity, upload)
	if err != nil {
		log.Printf("[Upload] Failed for user %d: %v", identity.UserID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *FileHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	files, err := h.fileService.ListOwn(r.Context(), *identity, offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if files == nil {
		files = []domain.File{}
	}

	writeJSON(w, http.StatusOK, files)
}

func (h *FileHandler) ListShared(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	files, err := h.fileService.ListSharedWith(r.Context(), *identity)
	if err != nil {
		writeError(w, err)
		return
	}
	if files == nil {
		files = []domain.File{}
	}

	writeJSON(w, http.StatusOK, files)
}

func (h *FileHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	files, err := h.fileService.ListAll(r.Context(), *identity, offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if files == nil {
		files = []domain.File{}
	}

	writeJSON(w, http.StatusOK, files)
}

func (h *FileHandler) Stats(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	stats, err := h.fileService.Stats(r.Context(), *identity)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileID, err := fileIDParam(r)
	if err != nil {
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}

	file, err := h.fileService.Get(r.Context(), *identity, fileID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileID, err := fileIDParam(r)
	if err != nil {
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}

	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		h.downloadRange(w, r, *identity, fileID, rangeHeader)
		return
	}

	file, obj, err := h.fileService.Download(r.Context(), *identity, fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Length", strconv.FormatInt(obj.ContentLength(), 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.OriginalFilename))

	if _, err := io.Copy(w, obj); err != nil {
		log.Printf("[Download] Failed to stream file %d: %v", fileID, err)
	}
}

// downloadRange обслуживает Range-запросы (докачка, перемотка видео).
// Поддерживается один диапазон на запрос.
func (h *FileHandler) downloadRange(w http.ResponseWriter, r *http.Request, identity domain.Identity, fileID int64, rangeHeader string) {
	file, err := h.fileService.Get(r.Context(), identity, fileID)
	if err != nil {
		writeError(w, err)
		return
	}

	start, end, err := parseByteRange(rangeHeader, file.SizeBytes)
	if err != nil {
		log.Printf("[Download] Invalid range %q for file %d: %v", rangeHeader, fileID, err)
		http.Error(w, err.Error(), http.StatusRequestedRangeNotSatisfiable)
		return
	}

	file, obj, err := h.fileService.DownloadRange(r.Context(), identity, fileID, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, file.SizeBytes))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.OriginalFilename))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := io.Copy(w, obj); err != nil {
		log.Printf("[Download] Failed to stream range for file %d: %v", fileID, err)
	}
}

// parseByteRange разбирает заголовок вида "bytes=start-end".
// Суффиксная форма "-N" отдает последние N байт, открытая "N-" — хвост файла.
func parseByteRange(rangeHeader string, fileSize int64) (int64, int64, error) {
	if !strings.HasPrefix(rangeHeader, "bytes=") {
		return 0, 0, fmt.Errorf("invalid range format")
	}

	spec := strings.TrimPrefix(rangeHeader, "bytes=")
	if strings.Contains(spec, ",") {
		return 0, 0, fmt.Errorf("multiple ranges not supported")
	}

	parts := strings.Split(strings.TrimSpace(spec), "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid range format")
	}

	var start, end int64
	var err error

	if parts[0] == "" {
		// Суффикс: -N
		var n int64
		n, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, err
		}
		start = fileSize - n
		if start < 0 {
			start = 0
		}
		end = fileSize - 1
	} else {
		start, err = strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return 0, 0, err
		}
		if parts[1] == "" {
			end = fileSize - 1
		} else {
			end, err = strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return 0, 0, err
			}
		}
	}

	if start < 0 || start > end || end >= fileSize {
		return 0, 0, fmt.Errorf("invalid range values")
	}

	return start, end, nil
}

type updateFileRequest struct {
	Filename    *string `json:"filename,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (h *FileHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileID, err := fileIDParam(r)
	if err != nil {
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}

	var req updateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	file, err := h.fileService.Update(r.Context(), *identity, fileID, req.Filename, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileID, err := fileIDParam(r)
	if err != nil {
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}

	if err := h.fileService.Delete(r.Context(), *identity, fileID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *FileHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileID, err := fileIDParam(r)
	if err != nil {
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}

	perms, err := h.fileService.ListPermissions(r.Context(), *identity, fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	if perms == nil {
		perms = []domain.FilePermission{}
	}

	writeJSON(w, http.StatusOK, perms)
}

type grantPermissionRequest struct {
	UserID          int64                  `json:"user_id"`
	PermissionLevel domain.PermissionLevel `json:"permission_level"`
	CanDownload     bool                   `json:"can_download"`
	CanShare        bool                   `json:"can_share"`
}

func (h *FileHandler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileID, err := fileIDParam(r)
	if err != nil {
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}

	var req grantPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	perm := &domain.FilePermission{
		FileID:          fileID,
		UserID:          req.UserID,
		PermissionLevel: req.PermissionLevel,
		CanDownload:     req.CanDownload,
		CanShare:        req.CanShare,
	}

	if err := h.fileService.GrantPermission(r.Context(), *identity, perm); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, perm)
}

func (h *FileHandler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileID, err := fileIDParam(r)
	if err != nil {
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	if err := h.fileService.RevokePermission(r.Context(), *identity, fileID, userID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

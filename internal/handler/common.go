package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"

	"filevault/internal/auth"
	"filevault/internal/domain"
	"filevault/internal/service"
)

// RequestMeta кладет адрес клиента и user agent в контекст запроса,
// сервисы добавляют их к записям аудита
func RequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := domain.RequestMeta{
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
		}
		next.ServeHTTP(w, r.WithContext(domain.WithRequestMeta(r.Context(), meta)))
	})
}

// clientIP учитывает заголовки обратного прокси
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx > 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// authenticator проверяет access токен и черный список из logout
type authenticator struct {
	tokens      *auth.Manager
	authService *service.AuthService
}

func (a *authenticator) identify(r *http.Request) (*domain.Identity, error) {
	tokenString, err := auth.BearerToken(r)
	if err != nil {
		return nil, err
	}

	revoked, err := a.authService.IsTokenRevoked(r.Context(), tokenString)
	if err != nil {
		log.Printf("[Auth] Blacklist check failed: %v", err)
	} else if revoked {
		return nil, errors.New("token revoked")
	}

	return a.tokens.VerifyAccessToken(tokenString)
}

// optionalIdentify — как identify, но без токена возвращает nil
func (a *authenticator) optionalIdentify(r *http.Request) *domain.Identity {
	identity, err := a.identify(r)
	if err != nil {
		return nil
	}
	return identity
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError транслирует ошибки сервисов в HTTP статусы
func writeError(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		http.Error(w, vErr.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrAccessDenied):
		http.Error(w, "Access denied", http.StatusForbidden)
	case errors.Is(err, domain.ErrAlreadyExists):
		http.Error(w, "Already exists", http.StatusConflict)
	case errors.Is(err, domain.ErrStorageUnavailable):
		http.Error(w, "Storage unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

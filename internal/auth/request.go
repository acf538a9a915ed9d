package auth

import (
	"fmt"
	"net/http"
	"strings"
)

// BearerToken извлекает токен из заголовка Authorization
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("no authorization header")
	}

	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header {
		return "", fmt.Errorf("authorization header is not a bearer token")
	}

	return tokenString, nil
}

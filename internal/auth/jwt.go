package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"filevault/internal/domain"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims — утверждения токена: стандартные плюс email, роль и тип токена.
// Subject содержит ID пользователя.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"type"`
}

// TokenPair — пара access/refresh токенов
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Manager выпускает и проверяет JWT токены. Передается явно,
// без глобального состояния.
type Manager struct {
	secretKey  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewManager(cfg *Config) *Manager {
	return &Manager{
		secretKey:  []byte(cfg.SecretKey),
		accessTTL:  time.Duration(cfg.AccessTokenMinutes) * time.Minute,
		refreshTTL: time.Duration(cfg.RefreshTokenDays) * 24 * time.Hour,
	}
}

func (m *Manager) generateToken(userID int64, email string, role domain.RoleName, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:     email,
		Role:      string(role),
		TokenType: tokenType,
	})

	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// CreateTokenPair выпускает access и refresh токены для пользователя
func (m *Manager) CreateTokenPair(userID int64, email string, role domain.RoleName) (*TokenPair, error) {
	access, err := m.generateToken(userID, email, role, TokenTypeAccess, m.accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := m.generateToken(userID, email, role, TokenTypeRefresh, m.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

func (m *Manager) parseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// VerifyAccessToken проверяет access токен и возвращает идентичность вызывающего
func (m *Manager) VerifyAccessToken(tokenString string) (*domain.Identity, error) {
	claims, err := m.parseToken(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.TokenType != TokenTypeAccess {
		return nil, fmt.Errorf("not an access token")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid token subject: %w", err)
	}

	return &domain.Identity{
		UserID: userID,
		Email:  claims.Email,
		Role:   domain.RoleName(claims.Role),
	}, nil
}

// AccessTTL возвращает срок жизни access токена
func (m *Manager) AccessTTL() time.Duration {
	return m.accessTTL
}

// VerifyRefreshToken проверяет refresh токен и возвращает ID пользователя
func (m *Manager) VerifyRefreshToken(tokenString string) (int64, error) {
	claims, err := m.parseToken(tokenString)
	if err != nil {
		return 0, err
	}

	if claims.TokenType != TokenTypeRefresh {
		return 0, fmt.Errorf("not a refresh token")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token subject: %w", err)
	}

	return userID, nil
}

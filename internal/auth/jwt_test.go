package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filevault/internal/domain"
)

func newTestManager() *Manager {
	return NewManager(&Config{
		SecretKey:          "test-secret-key",
		AccessTokenMinutes: 20,
		RefreshTokenDays:   7,
	})
}

func TestTokenPairRoundTrip(t *testing.T) {
	m := newTestManager()

	pair, err := m.CreateTokenPair(42, "user@example.com", domain.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "bearer", pair.TokenType)

	identity, err := m.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(42), identity.UserID)
	assert.Equal(t, "user@example.com", identity.Email)
	assert.Equal(t, domain.RoleUser, identity.Role)

	userID, err := m.VerifyRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestTokenTypeMismatch(t *testing.T) {
	m := newTestManager()

	pair, err := m.CreateTokenPair(1, "user@example.com", domain.RoleUser)
	require.NoError(t, err)

	// Refresh токен не проходит как access и наоборот
	_, err = m.VerifyAccessToken(pair.RefreshToken)
	assert.Error(t, err)

	_, err = m.VerifyRefreshToken(pair.AccessToken)
	assert.Error(t, err)
}

func TestWrongSecretRejected(t *testing.T) {
	m := newTestManager()
	other := NewManager(&Config{SecretKey: "different-secret", AccessTokenMinutes: 20, RefreshTokenDays: 7})

	pair, err := m.CreateTokenPair(1, "user@example.com", domain.RoleUser)
	require.NoError(t, err)

	_, err = other.VerifyAccessToken(pair.AccessToken)
	assert.Error(t, err)
}

func TestGarbageTokenRejected(t *testing.T) {
	m := newTestManager()

	_, err := m.VerifyAccessToken("not.a.token")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer some-token")

	token, err := BearerToken(r)
	require.NoError(t, err)
	assert.Equal(t, "some-token", token)

	// Без заголовка
	r = httptest.NewRequest("GET", "/", nil)
	_, err = BearerToken(r)
	assert.Error(t, err)

	// Не bearer
	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	_, err = BearerToken(r)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, VerifyPassword("correct horse battery staple", hash))
	assert.False(t, VerifyPassword("wrong password", hash))
}

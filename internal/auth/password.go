package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// HashPassword хеширует пароль через bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword сравнивает пароль с хешем
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// BcryptHasher — реализация хеширования паролей для сервисов.
// Выделена в тип, чтобы тесты могли подменить медленный bcrypt.
type BcryptHasher struct{}

func (BcryptHasher) Hash(plaintext string) (string, error) {
	return HashPassword(plaintext)
}

func (BcryptHasher) Verify(plaintext, hash string) bool {
	return VerifyPassword(plaintext, hash)
}

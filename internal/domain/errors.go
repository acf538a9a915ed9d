package domain

import (
	"errors"
	"fmt"
)

// Сентинельные ошибки ядра. Обработчики сопоставляют их с HTTP-статусами
// через errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrAlreadyExists      = errors.New("already exists")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ValidationError — некорректный ввод, проверяется до обращения к хранилищам
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError проверяет, является ли ошибка ошибкой валидации
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

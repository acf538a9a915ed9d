package domain

import (
	"time"
)

// ShareLink — долговременная запись ссылки в базе данных.
// Live-состояние ссылки хранится в Redis с TTL, запись в базе остается
// для аудита и списков даже после истечения срока действия.
type ShareLink struct {
	ID            int64      `json:"id" db:"id"`
	Token         string     `json:"token" db:"token"`
	FileID        int64      `json:"file_id" db:"file_id"`
	CreatedByID   *int64     `json:"created_by_id,omitempty" db:"created_by_id"`
	ExpiresAt     time.Time  `json:"expires_at" db:"expires_at"`
	MaxDownloads  *int       `json:"max_downloads,omitempty" db:"max_downloads"`
	DownloadCount int        `json:"download_count" db:"download_count"`
	PasswordHash  *string    `json:"-" db:"password_hash"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	RequiresAuth  bool       `json:"requires_auth" db:"requires_auth"`
	AllowedEmail  *string    `json:"allowed_email,omitempty" db:"allowed_email"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// IsExpired проверяет, истек ли срок действия ссылки
func (l *ShareLink) IsExpired() bool {
	return time.Now().After(l.ExpiresAt)
}

// IsValid — ссылка активна, не истекла и квота не исчерпана
func (l *ShareLink) IsValid() bool {
	if !l.IsActive {
		return false
	}
	if l.IsExpired() {
		return false
	}
	if l.MaxDownloads != nil && l.DownloadCount >= *l.MaxDownloads {
		return false
	}
	return true
}

// CreateShareLink — параметры создания ссылки
type CreateShareLink struct {
	FileID        int64   `json:"file_id"`
	ExpiryMinutes int     `json:"expiry_minutes"`
	MaxDownloads  *int    `json:"max_downloads,omitempty"`
	Password      *string `json:"password,omitempty"`
	RequiresAuth  bool    `json:"requires_auth"`
	AllowedEmail  *string `json:"allowed_email,omitempty"`
}

// LinkDescriptor — ответ на создание ссылки. Пароль и его хеш
// никогда не попадают в ответ.
type LinkDescriptor struct {
	Token            string    `json:"token"`
	ShareURL         string    `json:"share_url"`
	FileID           int64     `json:"file_id"`
	Filename         string    `json:"filename"`
	ExpiresAt        time.Time `json:"expires_at"`
	ExpiresInMinutes int       `json:"expires_in_minutes"`
	MaxDownloads     *int      `json:"max_downloads,omitempty"`
	HasPassword      bool      `json:"has_password"`
	RequiresAuth     bool      `json:"requires_auth"`
	CreatedAt        time.Time `json:"created_at"`
}

// LinkSnapshot — read-only срез live-состояния ссылки из fast store
type LinkSnapshot struct {
	Token         string    `json:"token"`
	FileID        int64     `json:"file_id"`
	Filename      string    `json:"filename"`
	ContentType   string    `json:"content_type"`
	SizeBytes     int64     `json:"size_bytes"`
	S3Key         string    `json:"-"`
	CreatedByID   int64     `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	MaxDownloads  *int      `json:"max_downloads,omitempty"`
	DownloadCount int       `json:"download_count"`
	PasswordHash  *string   `json:"-"`
	RequiresAuth  bool      `json:"requires_auth"`
	AllowedEmail  *string   `json:"-"`
}

func (s *LinkSnapshot) HasPassword() bool {
	return s.PasswordHash != nil
}

// DenyReason — причина отказа в доступе по ссылке. Порядок проверок
// фиксирован, первая неудавшаяся проверка определяет причину.
type DenyReason string

const (
	DenyNone             DenyReason = ""
	DenyExpiredOrMissing DenyReason = "expired_or_missing"
	DenyPasswordRequired DenyReason = "password_required"
	DenyInvalidPassword  DenyReason = "invalid_password"
	DenyAuthRequired     DenyReason = "auth_required"
	DenyForbidden        DenyReason = "forbidden"
)

// LinkSummary — элемент списка ссылок пользователя
type LinkSummary struct {
	ID            int64     `json:"id"`
	Token         string    `json:"token"`
	FileID        int64     `json:"file_id"`
	Filename      string    `json:"filename"`
	ExpiresAt     time.Time `json:"expires_at"`
	IsActive      bool      `json:"is_active"`
	DownloadCount int       `json:"download_count"`
	MaxDownloads  *int      `json:"max_downloads,omitempty"`
	HasPassword   bool      `json:"has_password"`
	CreatedAt     time.Time `json:"created_at"`
}

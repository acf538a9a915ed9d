package domain

import (
	"time"
)

type File struct {
	ID               int64      `json:"id" db:"id"`
	Filename         string     `json:"filename" db:"filename"`
	OriginalFilename string     `json:"original_filename" db:"original_filename"`
	ContentType      string     `json:"content_type" db:"content_type"`
	SizeBytes        int64      `json:"size_bytes" db:"size_bytes"`
	S3Key            string     `json:"-" db:"s3_key"`
	S3Bucket         string     `json:"-" db:"s3_bucket"`
	IsDeleted        bool       `json:"is_deleted" db:"is_deleted"`
	Description      *string    `json:"description,omitempty" db:"description"`
	OwnerID          int64      `json:"owner_id" db:"owner_id"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

type FileUpload struct {
	Filename    string
	ContentType string
	SizeBytes   int64
	OwnerID     int64
	Description *string
	Data        []byte
}

type PermissionLevel string

const (
	PermissionLevelRead  PermissionLevel = "read"
	PermissionLevelWrite PermissionLevel = "write"
	PermissionLevelAdmin PermissionLevel = "admin"
)

// FilePermission — прямой доступ пользователя к чужому файлу
type FilePermission struct {
	ID              int64           `json:"id" db:"id"`
	FileID          int64           `json:"file_id" db:"file_id"`
	UserID          int64           `json:"user_id" db:"user_id"`
	PermissionLevel PermissionLevel `json:"permission_level" db:"permission_level"`
	CanDownload     bool            `json:"can_download" db:"can_download"`
	CanShare        bool            `json:"can_share" db:"can_share"`
	GrantedByID     *int64          `json:"granted_by_id,omitempty" db:"granted_by_id"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// FileStats — сводная статистика по файлам пользователя
type FileStats struct {
	TotalFiles int64 `json:"total_files" db:"total_files"`
	TotalBytes int64 `json:"total_bytes" db:"total_bytes"`
}

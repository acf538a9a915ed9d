package domain

import (
	"context"
	"time"
)

// AuditAction — тип события аудита
type AuditAction string

const (
	AuditLoginSuccess   AuditAction = "login_success"
	AuditLoginFailed    AuditAction = "login_failed"
	AuditLogout         AuditAction = "logout"
	AuditTokenRefresh   AuditAction = "token_refresh"
	AuditPasswordChange AuditAction = "password_change"

	AuditUserCreate AuditAction = "user_create"
	AuditUserUpdate AuditAction = "user_update"
	AuditUserDelete AuditAction = "user_delete"
	AuditRoleAssign AuditAction = "role_assign"
	AuditRoleCreate AuditAction = "role_create"

	AuditFileUpload   AuditAction = "file_upload"
	AuditFileDownload AuditAction = "file_download"
	AuditFileDelete   AuditAction = "file_delete"
	AuditFileUpdate   AuditAction = "file_update"

	AuditShareCreate      AuditAction = "share_create"
	AuditShareAccess      AuditAction = "share_access"
	AuditShareRevoke      AuditAction = "share_revoke"
	AuditPermissionGrant  AuditAction = "permission_grant"
	AuditPermissionRevoke AuditAction = "permission_revoke"
)

const (
	AuditStatusSuccess = "success"
	AuditStatusFailed  = "failed"
	AuditStatusError   = "error"
)

// AuditLog — запись аудита. Email хранится отдельно от user_id,
// чтобы пережить удаление пользователя.
type AuditLog struct {
	ID           int64       `json:"id" db:"id"`
	UserID       *int64      `json:"user_id,omitempty" db:"user_id"`
	UserEmail    *string     `json:"user_email,omitempty" db:"user_email"`
	Action       AuditAction `json:"action" db:"action"`
	ResourceType *string     `json:"resource_type,omitempty" db:"resource_type"`
	ResourceID   *int64      `json:"resource_id,omitempty" db:"resource_id"`
	Details      *string     `json:"details,omitempty" db:"details"`
	IPAddress    *string     `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent    *string     `json:"user_agent,omitempty" db:"user_agent"`
	Status       string      `json:"status" db:"status"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}

// RequestMeta — адрес и user agent HTTP-запроса. Кладутся в контекст
// на входе и попадают в записи аудита без протаскивания через сервисы.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type requestMetaKey struct{}

func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta, ok
}

// AuditFilter — фильтры запроса журнала аудита
type AuditFilter struct {
	UserID       *int64
	Action       *AuditAction
	ResourceType *string
	ResourceID   *int64
	StartDate    *time.Time
	EndDate      *time.Time
	Status       *string
	Offset       int
	Limit        int
}

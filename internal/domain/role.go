package domain

// RoleName — закрытый набор ролей системы
type RoleName string

const (
	RoleAdmin  RoleName = "admin"
	RoleUser   RoleName = "user"
	RoleViewer RoleName = "viewer"
)

// Permission представляет отдельное право доступа
type Permission string

const (
	PermissionUserCreate     Permission = "user:create"
	PermissionUserRead       Permission = "user:read"
	PermissionUserUpdate     Permission = "user:update"
	PermissionUserDelete     Permission = "user:delete"
	PermissionUserAssignRole Permission = "user:assign_role"
	PermissionFileUpload     Permission = "file:upload"
	PermissionFileDownload   Permission = "file:download"
	PermissionFileDelete     Permission = "file:delete"
	PermissionFileShare      Permission = "file:share"
	PermissionFileReadAll    Permission = "file:read_all"
	PermissionAuditRead      Permission = "audit:read"
)

// rolePermissions — права каждой роли, проверяются на границе авторизации
var rolePermissions = map[RoleName]map[Permission]bool{
	RoleAdmin: {
		PermissionUserCreate:     true,
		PermissionUserRead:       true,
		PermissionUserUpdate:     true,
		PermissionUserDelete:     true,
		PermissionUserAssignRole: true,
		PermissionFileUpload:     true,
		PermissionFileDownload:   true,
		PermissionFileDelete:     true,
		PermissionFileShare:      true,
		PermissionFileReadAll:    true,
		PermissionAuditRead:      true,
	},
	RoleUser: {
		PermissionFileUpload:   true,
		PermissionFileDownload: true,
		PermissionFileDelete:   true,
		PermissionFileShare:    true,
	},
	RoleViewer: {
		PermissionFileDownload: true,
	},
}

// Can проверяет, дает ли роль указанное право
func (r RoleName) Can(p Permission) bool {
	perms, ok := rolePermissions[r]
	if !ok {
		return false
	}
	return perms[p]
}

// IsAdmin — единственное место, где роль сравнивается напрямую
func (r RoleName) IsAdmin() bool {
	return r == RoleAdmin
}

func ValidRole(name string) bool {
	_, ok := rolePermissions[RoleName(name)]
	return ok
}

// Role — запись роли в базе данных
type Role struct {
	ID          int64   `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Description *string `json:"description,omitempty" db:"description"`
}

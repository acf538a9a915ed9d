package domain

import (
	"time"
)

type User struct {
	ID             int64      `json:"id" db:"id"`
	Email          string     `json:"email" db:"email"`
	HashedPassword string     `json:"-" db:"hashed_password"`
	FullName       *string    `json:"full_name,omitempty" db:"full_name"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	IsVerified     bool       `json:"is_verified" db:"is_verified"`
	RoleID         *int64     `json:"role_id,omitempty" db:"role_id"`
	RoleName       *string    `json:"role,omitempty" db:"role_name"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// Role возвращает роль пользователя, viewer по умолчанию
func (u *User) Role() RoleName {
	if u.RoleName == nil {
		return RoleViewer
	}
	return RoleName(*u.RoleName)
}

// Identity — идентичность вызывающего, достаточная для проверок доступа
type Identity struct {
	UserID int64
	Email  string
	Role   RoleName
}

func (u *User) Identity() Identity {
	return Identity{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role(),
	}
}

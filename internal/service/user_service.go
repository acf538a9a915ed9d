package service

import (
	"context"
	"log"

	"filevault/internal/domain"
)

type UserService struct {
	users UserStore
	audit *AuditService
}

func NewUserService(users UserStore, audit *AuditService) *UserService {
	return &UserService{users: users, audit: audit}
}

// Get возвращает пользователя. Свой профиль доступен каждому,
// чужие требуют права user:read.
func (s *UserService) Get(ctx context.Context, identity domain.Identity, userID int64) (*domain.User, error) {
	if userID != identity.UserID && !identity.Role.Can(domain.PermissionUserRead) {
		return nil, domain.ErrAccessDenied
	}
	return s.users.GetByID(ctx, userID)
}

func (s *UserService) List(ctx context.Context, identity domain.Identity, offset, limit int) ([]domain.User, error) {
	if !identity.Role.Can(domain.PermissionUserRead) {
		return nil, domain.ErrAccessDenied
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.users.List(ctx, offset, limit)
}

// Update меняет профиль. Свой профиль может менять каждый,
// чужие требуют права user:update.
func (s *UserService) Update(ctx context.Context, identity domain.Identity, user *domain.User) error {
	if user.ID != identity.UserID && !identity.Role.Can(domain.PermissionUserUpdate) {
		return domain.ErrAccessDenied
	}

	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	s.audit.Record(ctx, &domain.AuditLog{
		UserID:       &identity.UserID,
		UserEmail:    &identity.Email,
		Action:       domain.AuditUserUpdate,
		ResourceType: strPtr("user"),
		ResourceID:   &user.ID,
		Status:       domain.AuditStatusSuccess,
	})

	return nil
}

// Deactivate отключает учетную запись, записи пользователя сохраняются.
// Отключить самого себя нельзя, иначе можно остаться без администраторов.
func (s *UserService) Deactivate(ctx context.Context, identity domain.Identity, userID int64) error {
	if !identity.Role.Can(domain.PermissionUserDelete) {
		return domain.ErrAccessDenied
	}
	if userID == identity.UserID {
		return domain.NewValidationError("user_id", "cannot deactivate your own account")
	}

	if err := s.users.Deactivate(ctx, userID); err != nil {
		return err
	}

	s.audit.Record(ctx, &domain.AuditLog{
		UserID:       &identity.UserID,
		UserEmail:    &identity.Email,
		Action:       domain.AuditUserDelete,
		ResourceType: strPtr("user"),
		ResourceID:   &userID,
		Status:       domain.AuditStatusSuccess,
	})

	log.Printf("[DeactivateUser] User %d deactivated by %d", userID, identity.UserID)

	return nil
}

// AssignRole назначает пользователю роль из закрытого списка
func (s *UserService) AssignRole(ctx context.Context, identity domain.Identity, userID int64, roleName string) error {
	if !identity.Role.Can(domain.PermissionUserAssignRole) {
		return domain.ErrAccessDenied
	}
	if !domain.ValidRole(roleName) {
		return domain.NewValidationError("role", "unknown role: "+roleName)
	}

	role, err := s.users.GetRoleByName(ctx, roleName)
	if err != nil {
		return err
	}

	if err := s.users.AssignRole(ctx, userID, role.ID); err != nil {
		return err
	}

	s.audit.Record(ctx, &domain.AuditLog{
		UserID:       &identity.UserID,
		UserEmail:    &identity.Email,
		Action:       domain.AuditRoleAssign,
		ResourceType: strPtr("user"),
		ResourceID:   &userID,
		Details:      strPtr("role=" + roleName),
		Status:       domain.AuditStatusSuccess,
	})

	return nil
}

// CreateRole заводит новую роль. Имена ролей уникальны,
// повтор завершается ErrAlreadyExists.
func (s *UserService) CreateRole(ctx context.Context, identity domain.Identity, role *domain.Role) error {
	if !identity.Role.Can(domain.PermissionUserAssignRole) {
		return domain.ErrAccessDenied
	}
	if role.Name == "" {
		return domain.NewValidationError("name", "must not be empty")
	}

	if err := s.users.CreateRole(ctx, role); err != nil {
		return err
	}

	s.audit.Record(ctx, &domain.AuditLog{
		UserID:       &identity.UserID,
		UserEmail:    &identity.Email,
		Action:       domain.AuditRoleCreate,
		ResourceType: strPtr("role"),
		ResourceID:   &role.ID,
		Details:      strPtr("name=" + role.Name),
		Status:       domain.AuditStatusSuccess,
	})

	return nil
}

func (s *UserService) ListRoles(ctx context.Context, identity domain.Identity) ([]domain.Role, error) {
	if !identity.Role.Can(domain.PermissionUserRead) {
		return nil, domain.ErrAccessDenied
	}
	return s.users.ListRoles(ctx)
}

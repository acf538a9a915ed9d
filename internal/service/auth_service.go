package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"filevault/internal/auth"
	"filevault/internal/domain"
)

const (
	minPasswordLength = 8
	blacklistPrefix   = "token_blacklist:"
)

// UserStore — хранилище пользователей и ролей
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, offset, limit int) ([]domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, userID int64, hashedPassword string) error
	AssignRole(ctx context.Context, userID, roleID int64) error
	Deactivate(ctx context.Context, userID int64) error
	GetRoleByName(ctx context.Context, name string) (*domain.Role, error)
	ListRoles(ctx context.Context) ([]domain.Role, error)
	CreateRole(ctx context.Context, role *domain.Role) error
}

// TokenBlacklist хранит отозванные access-токены до истечения их срока
type TokenBlacklist interface {
	SetWithExpiry(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

type AuthService struct {
	users     UserStore
	tokens    *auth.Manager
	hasher    PasswordHasher
	blacklist TokenBlacklist
	audit     *AuditService
}

func NewAuthService(users UserStore, tokens *auth.Manager, hasher PasswordHasher, blacklist TokenBlacklist, audit *AuditService) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		blacklist: blacklist,
		audit:     audit,
	}
}

func validateCredentials(email, password string) error {
	if email == "" || !strings.Contains(email, "@") {
		return domain.NewValidationError("email", "invalid email address")
	}
	if len(password) < minPasswordLength {
		return domain.NewValidationError("password",
			fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	return nil
}

// Register создает нового пользователя с ролью user
func (s *AuthService) Register(ctx context.Context, email, password string, fullName *string) (*domain.User, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role, err := s.users.GetRoleByName(ctx, string(domain.RoleUser))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve default role: %w", err)
	}

	user := &domain.User{
		Email:          email,
		HashedPassword: hash,
		FullName:       fullName,
		IsActive:       true,
		RoleID:         &role.ID,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	roleName := string(domain.RoleUser)
	user.RoleName = &roleName

	s.audit.Record(ctx, &domain.AuditLog{
		UserID:    &user.ID,
		UserEmail: &user.Email,
		Action:    domain.AuditUserCreate,
		Status:    domain.AuditStatusSuccess,
	})

	log.Printf("[Register] New user registered: %s", email)

	return user, nil
}

// Login проверяет учетные данные и выдает пару токенов.
// Неудачные попытки входа попадают в журнал аудита.
func (s *AuthService) Login(ctx context.Context, email, password string) (*auth.TokenPair, *domain.User, error) {
	failed := func(details string) {
		s.audit.Record(ctx, &domain.AuditLog{
			UserEmail: &email,
			Action:    domain.AuditLoginFailed,
			Details:   &details,
			Status:    domain.AuditStatusFailed,
		})
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		failed("unknown email")
		return nil, nil, domain.ErrAccessDenied
	}

	if !user.IsActive {
		failed("account disabled")
		return nil, nil, domain.ErrAccessDenied
	}

	if !s.hasher.Verify(password, user.HashedPassword) {
		failed("wrong password")
		return nil, nil, domain.ErrAccessDenied
	}

	pair, err := s.tokens.CreateTokenPair(user.ID, user.Email, user.Role())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tokens: %w", err)
	}

	s.audit.Record(ctx, &domain.AuditLog{
		UserID:    &user.ID,
		UserEmail: &user.Email,
		Action:    domain.AuditLoginSuccess,
		Status:    domain.AuditStatusSuccess,
	})

	return pair, user, nil
}

// Refresh обменивает refresh-токен на новую пару токенов
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	userID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, domain.ErrAccessDenied
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrAccessDenied
	}
	if !user.IsActive {
		return nil, domain.ErrAccessDenied
	}

	pair, err := s.tokens.CreateTokenPair(user.ID, user.Email, user.Role())
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens: %w", err)
	}

	s.audit.Record(ctx, &domain.AuditLog{
		UserID:    &user.ID,
		UserEmail: &user.Email,
		Action:    domain.AuditTokenRefresh,
		Status:    domain.AuditStatusSuccess,
	})

	return pair, nil
}

// Logout помещает access-токен в черный список. Запись живет столько же,
// сколько жил бы сам токен.
func (s *AuthService) Logout(ctx context.Context, identity domain.Identity, accessToken string) error {
	if err := s.blacklist.SetWithExpiry(ctx, blacklistPrefix+accessToken, true, s.tokens.AccessTTL()); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	s.audit.Record(ctx, &domain.AuditLog{
		UserID:    &identity.UserID,
		UserEmail: &identity.Email,
		Action:    domain.AuditLogout,
		Status:    domain.AuditStatusSuccess,
	})

	return nil
}

// IsTokenRevoked проверяет, не отозван ли access-токен через logout
func (s *AuthService) IsTokenRevoked(ctx context.Context, accessToken string) (bool, error) {
	return s.blacklist.Exists(ctx, blacklistPrefix+accessToken)
}

// ChangePassword меняет пароль после проверки текущего
func (s *AuthService) ChangePassword(ctx context.Context, identity domain.Identity, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return domain.NewValidationError("new_password",
			fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(currentPassword, user.HashedPassword) {
		return domain.ErrAccessDenied
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	s.audit.Record(ctx, &domain.AuditLog{
		UserID:    &user.ID,
		UserEmail: &user.Email,
		Action:    domain.AuditPasswordChange,
		Status:    domain.AuditStatusSuccess,
	})

	return nil
}

package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"filevault/internal/domain"
)

const (
	shareKeyPrefix = "share_link:"

	// Ограничения времени жизни ссылки в минутах
	minLinkLifetime     = 1
	maxLinkLifetime     = 43200 // 30 дней
	defaultLinkLifetime = 60
)

// FileResolver отдает метаданные файла для создания ссылки
type FileResolver interface {
	GetByID(ctx context.Context, id int64) (*domain.File, error)
}

// PermissionReader проверяет прямой доступ пользователя к чужому файлу
type PermissionReader interface {
	Get(ctx context.Context, fileID, userID int64) (*domain.FilePermission, error)
}

// ShareRecordStore — долговременные записи ссылок в базе данных
type ShareRecordStore interface {
	Create(ctx context.Context, link *domain.ShareLink) error
	GetByToken(ctx context.Context, token string) (*domain.ShareLink, error)
	IncrementDownloadCount(ctx context.Context, token string) error
	Deactivate(ctx context.Context, token string) error
	ListActiveByCreator(ctx context.Context, userID int64, offset, limit int) ([]domain.LinkSummary, error)
}

// LinkCache — fast store live-состояния ссылок с TTL
type LinkCache interface {
	SetWithExpiry(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Decrement(ctx context.Context, key string) (int64, error)
	GetInt(ctx context.Context, key string) (int64, error)
}

// PasswordHasher хеширует и проверяет пароли ссылок
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// cachedLink — JSON-представление ссылки в fast store. Счетчик скачиваний
// живет в отдельном ключе и сюда не входит.
type cachedLink struct {
	Token        string    `json:"token"`
	FileID       int64     `json:"file_id"`
	Filename     string    `json:"filename"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	S3Key        string    `json:"s3_key"`
	CreatedByID  int64     `json:"created_by_id"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	MaxDownloads *int      `json:"max_downloads,omitempty"`
	PasswordHash *string   `json:"password_hash,omitempty"`
	RequiresAuth bool      `json:"requires_auth"`
	AllowedEmail *string   `json:"allowed_email,omitempty"`
}

type ShareService struct {
	files   FileResolver
	perms   PermissionReader
	records ShareRecordStore
	cache   LinkCache
	audit   *AuditService
	hasher  PasswordHasher
	baseURL string
}

func NewShareService(
	files FileResolver,
	perms PermissionReader,
	records ShareRecordStore,
	cache LinkCache,
	audit *AuditService,
	hasher PasswordHasher,
	baseURL string,
) *ShareService {
	return &ShareService{
		files:   files,
		perms:   perms,
		records: records,
		cache:   cache,
		audit:   audit,
		hasher:  hasher,
		baseURL: baseURL,
	}
}

// generateShareToken возвращает 128-битный случайный токен в hex
func generateShareToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func payloadKey(token string) string {
	return shareKeyPrefix + token
}

func counterKey(token string) string {
	return shareKeyPrefix + token + ":downloads"
}

// canShare — делиться файлом может владелец, администратор или пользователь
// с явным правом can_share
func (s *ShareService) canShare(ctx context.Context, file *domain.File, identity domain.Identity) (bool, error) {
	if file.OwnerID == identity.UserID {
		return true, nil
	}
	if identity.Role.IsAdmin() {
		return true, nil
	}

	perm, err := s.perms.Get(ctx, file.ID, identity.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return perm.CanShare, nil
}

// Create создает новую ссылку: сначала live-состояние в fast store с TTL,
// затем долговременная запись. Если запись не удалась, ключи из fast store
// удаляются, полураспавшихся ссылок не остается.
func (s *ShareService) Create(ctx context.Context, identity domain.Identity, req domain.CreateShareLink) (*domain.LinkDescriptor, error) {
	if req.ExpiryMinutes == 0 {
		req.ExpiryMinutes = defaultLinkLifetime
	}
	if req.ExpiryMinutes < minLinkLifetime || req.ExpiryMinutes > maxLinkLifetime {
		return nil, domain.NewValidationError("expiry_minutes",
			fmt.Sprintf("must be between %d and %d", minLinkLifetime, maxLinkLifetime))
	}
	if req.MaxDownloads != nil && *req.MaxDownloads < 1 {
		return nil, domain.NewValidationError("max_downloads", "must be at least 1")
	}
	if req.Password != nil && *req.Password == "" {
		return nil, domain.NewValidationError("password", "must not be empty")
	}
	if req.AllowedEmail != nil && *req.AllowedEmail == "" {
		return nil, domain.NewValidationError("allowed_email", "must not be empty")
	}

	file, err := s.files.GetByID(ctx, req.FileID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.canShare(ctx, file, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to check sharing rights: %w", err)
	}
	if !allowed {
		return nil, domain.ErrAccessDenied
	}

	var passwordHash *string
	if req.Password != nil {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		passwordHash = &hash
	}

	// Email в allow-list подразумевает обязательную аутентификацию
	requiresAuth := req.RequiresAuth || req.AllowedEmail != nil

	lifetime := time.Duration(req.ExpiryMinutes) * time.Minute

	// Одна повторная попытка на случай коллизии токена
	for attempt := 0; attempt < 2; attempt++ {
		token, err := generateShareToken()
		if err != nil {
			return nil, err
		}

		now := time.Now()
		expiresAt := now.Add(lifetime)

		payload := cachedLink{
			Token:        token,
			FileID:       file.ID,
			Filename:     file.OriginalFilename,
			ContentType:  file.ContentType,
			SizeBytes:    file.SizeBytes,
			S3Key:        file.S3Key,
			CreatedByID:  identity.UserID,
			CreatedAt:    now,
			ExpiresAt:    expiresAt,
			MaxDownloads: req.MaxDownloads,
			PasswordHash: passwordHash,
			RequiresAuth: requiresAuth,
			AllowedEmail: req.AllowedEmail,
		}

		if err := s.cache.SetWithExpiry(ctx, payloadKey(token), payload, lifetime); err != nil {
			return nil, fmt.Errorf("failed to store link state: %w", err)
		}
		// Счетчик скачиваний живет не дольше основной записи
		if err := s.cache.SetWithExpiry(ctx, counterKey(token), 0, lifetime); err != nil {
			s.cache.Delete(ctx, payloadKey(token))
			return nil, fmt.Errorf("failed to store download counter: %w", err)
		}

		createdBy := identity.UserID
		record := &domain.ShareLink{
			Token:        token,
			FileID:       file.ID,
			CreatedByID:  &createdBy,
			ExpiresAt:    expiresAt,
			MaxDownloads: req.MaxDownloads,
			PasswordHash: passwordHash,
			IsActive:     true,
			RequiresAuth: requiresAuth,
			AllowedEmail: req.AllowedEmail,
		}

		if err := s.records.Create(ctx, record); err != nil {
			// Запись не удалась, убираем live-состояние
			if delErr := s.cache.Delete(ctx, payloadKey(token), counterKey(token)); delErr != nil {
				log.Printf("[CreateShareLink] Failed to clean up cache keys for token %s: %v", token, delErr)
			}
			if errors.Is(err, domain.ErrAlreadyExists) {
				log.Printf("[CreateShareLink] Token collision, retrying")
				continue
			}
			return nil, fmt.Errorf("failed to create share link record: %w", err)
		}

		s.audit.Record(ctx, &domain.AuditLog{
			UserID:       &identity.UserID,
			UserEmail:    &identity.Email,
			Action:       domain.AuditShareCreate,
			ResourceType: strPtr("file"),
			ResourceID:   &file.ID,
			Details:      strPtr(fmt.Sprintf("token=%s expires_in=%dm", token, req.ExpiryMinutes)),
			Status:       domain.AuditStatusSuccess,
		})

		log.Printf("[CreateShareLink] Created link for file %d, expires at %s", file.ID, expiresAt.Format(time.RFC3339))

		return &domain.LinkDescriptor{
			Token:            token,
			ShareURL:         fmt.Sprintf("%s/api/v1/share/%s", s.baseURL, token),
			FileID:           file.ID,
			Filename:         file.OriginalFilename,
			ExpiresAt:        expiresAt,
			ExpiresInMinutes: req.ExpiryMinutes,
			MaxDownloads:     req.MaxDownloads,
			HasPassword:      passwordHash != nil,
			RequiresAuth:     requiresAuth,
			CreatedAt:        record.CreatedAt,
		}, nil
	}

	return nil, fmt.Errorf("failed to create share link: token collision")
}

// Describe возвращает снимок живой ссылки и признак валидности.
// Исчерпанная квота не скрывает ссылку: метаданные с downloadCount еще
// доступны, пока запись не истекла по TTL.
func (s *ShareService) Describe(ctx context.Context, token string) (*domain.LinkSnapshot, bool, error) {
	var payload cachedLink
	found, err := s.cache.Get(ctx, payloadKey(token), &payload)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read link state: %w", err)
	}
	if !found {
		return nil, false, domain.ErrNotFound
	}

	count, err := s.cache.GetInt(ctx, counterKey(token))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read download counter: %w", err)
	}

	valid := payload.MaxDownloads == nil || count < int64(*payload.MaxDownloads)

	return &domain.LinkSnapshot{
		Token:         payload.Token,
		FileID:        payload.FileID,
		Filename:      payload.Filename,
		ContentType:   payload.ContentType,
		SizeBytes:     payload.SizeBytes,
		S3Key:         payload.S3Key,
		CreatedByID:   payload.CreatedByID,
		CreatedAt:     payload.CreatedAt,
		ExpiresAt:     payload.ExpiresAt,
		MaxDownloads:  payload.MaxDownloads,
		DownloadCount: int(count),
		PasswordHash:  payload.PasswordHash,
		RequiresAuth:  payload.RequiresAuth,
		AllowedEmail:  payload.AllowedEmail,
	}, valid, nil
}

// Validate проверяет, что ссылка жива и квота не исчерпана.
// Отсутствие записи в fast store означает, что ссылка истекла, отозвана
// или никогда не существовала, наружу эти случаи неразличимы.
func (s *ShareService) Validate(ctx context.Context, token string) (*domain.LinkSnapshot, error) {
	snapshot, valid, err := s.Describe(ctx, token)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, domain.ErrNotFound
	}
	return snapshot, nil
}

// AuthorizeAccess проверяет условия доступа в фиксированном порядке:
// живость ссылки, пароль, аутентификация, allow-list. Первая неудавшаяся
// проверка определяет причину отказа.
func (s *ShareService) AuthorizeAccess(ctx context.Context, token string, password *string, identity *domain.Identity) (*domain.LinkSnapshot, domain.DenyReason, error) {
	snapshot, err := s.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.recordDeniedAccess(ctx, token, identity, domain.DenyExpiredOrMissing)
			return nil, domain.DenyExpiredOrMissing, nil
		}
		return nil, domain.DenyNone, err
	}

	if snapshot.HasPassword() {
		if password == nil || *password == "" {
			s.recordDeniedAccess(ctx, token, identity, domain.DenyPasswordRequired)
			return nil, domain.DenyPasswordRequired, nil
		}
		if !s.hasher.Verify(*password, *snapshot.PasswordHash) {
			s.recordDeniedAccess(ctx, token, identity, domain.DenyInvalidPassword)
			return nil, domain.DenyInvalidPassword, nil
		}
	}

	if snapshot.RequiresAuth && identity == nil {
		s.recordDeniedAccess(ctx, token, identity, domain.DenyAuthRequired)
		return nil, domain.DenyAuthRequired, nil
	}

	if snapshot.AllowedEmail != nil {
		if identity == nil {
			s.recordDeniedAccess(ctx, token, identity, domain.DenyAuthRequired)
			return nil, domain.DenyAuthRequired, nil
		}
		// Сравнение строгое, с учетом регистра
		if identity.Email != *snapshot.AllowedEmail {
			s.recordDeniedAccess(ctx, token, identity, domain.DenyForbidden)
			return nil, domain.DenyForbidden, nil
		}
	}

	return snapshot, domain.DenyNone, nil
}

// RecordAccess учитывает скачивание. При квоте N ровно N конкурентных
// запросов получают true: INCR атомарен, превышение откатывается через DECR.
func (s *ShareService) RecordAccess(ctx context.Context, token string, identity *domain.Identity) (bool, error) {
	var payload cachedLink
	found, err := s.cache.Get(ctx, payloadKey(token), &payload)
	if err != nil {
		return false, fmt.Errorf("failed to read link state: %w", err)
	}
	if !found {
		return false, nil
	}

	// TTL счетчика наследуется от основной записи
	ttl, err := s.cache.TTL(ctx, payloadKey(token))
	if err != nil {
		return false, fmt.Errorf("failed to read link TTL: %w", err)
	}
	// Запись истекла между чтением и проверкой TTL. Инкремент здесь
	// воскресил бы счетчик без TTL.
	if ttl <= 0 {
		return false, nil
	}

	count, err := s.cache.Increment(ctx, counterKey(token), ttl)
	if err != nil {
		return false, fmt.Errorf("failed to increment download counter: %w", err)
	}

	if payload.MaxDownloads != nil && count > int64(*payload.MaxDownloads) {
		if _, err := s.cache.Decrement(ctx, counterKey(token)); err != nil {
			log.Printf("[RecordAccess] Failed to roll back counter for token %s: %v", token, err)
		}
		return false, nil
	}

	// Долговременный счетчик обновляется по возможности, скачивание
	// из-за него не срывается
	if err := s.records.IncrementDownloadCount(ctx, token); err != nil {
		log.Printf("[RecordAccess] Failed to update durable download count for token %s: %v", token, err)
	}

	entry := &domain.AuditLog{
		Action:       domain.AuditShareAccess,
		ResourceType: strPtr("file"),
		ResourceID:   &payload.FileID,
		Details:      strPtr(fmt.Sprintf("token=%s download=%d", token, count)),
		Status:       domain.AuditStatusSuccess,
	}
	if identity != nil {
		entry.UserID = &identity.UserID
		entry.UserEmail = &identity.Email
	}
	s.audit.Record(ctx, entry)

	return true, nil
}

// Revoke отзывает ссылку. Разрешено создателю или администратору.
// Повторный отзыв — тихий no-op.
func (s *ShareService) Revoke(ctx context.Context, token string, identity domain.Identity) error {
	record, err := s.records.GetByToken(ctx, token)
	if err != nil {
		return err
	}

	// Записи без создателя может отозвать только администратор
	if record.CreatedByID == nil {
		if !identity.Role.IsAdmin() {
			return domain.ErrAccessDenied
		}
	} else if *record.CreatedByID != identity.UserID && !identity.Role.IsAdmin() {
		return domain.ErrAccessDenied
	}

	if !record.IsActive {
		return nil
	}

	if err := s.cache.Delete(ctx, payloadKey(token), counterKey(token)); err != nil {
		return fmt.Errorf("failed to remove link state: %w", err)
	}

	if err := s.records.Deactivate(ctx, token); err != nil {
		return fmt.Errorf("failed to deactivate share link: %w", err)
	}

	s.audit.Record(ctx, &domain.AuditLog{
		UserID:       &identity.UserID,
		UserEmail:    &identity.Email,
		Action:       domain.AuditShareRevoke,
		ResourceType: strPtr("file"),
		ResourceID:   &record.FileID,
		Details:      strPtr("token=" + token),
		Status:       domain.AuditStatusSuccess,
	})

	log.Printf("[RevokeShareLink] Link %s revoked by user %d", token, identity.UserID)

	return nil
}

// ListForOwner возвращает активные ссылки пользователя. Чужие списки
// доступны только администратору.
func (s *ShareService) ListForOwner(ctx context.Context, identity domain.Identity, userID int64, offset, limit int) ([]domain.LinkSummary, error) {
	if userID != identity.UserID && !identity.Role.IsAdmin() {
		return nil, domain.ErrAccessDenied
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	return s.records.ListActiveByCreator(ctx, userID, offset, limit)
}

func (s *ShareService) recordDeniedAccess(ctx context.Context, token string, identity *domain.Identity, reason domain.DenyReason) {
	entry := &domain.AuditLog{
		Action:  domain.AuditShareAccess,
		Details: strPtr(fmt.Sprintf("token=%s reason=%s", token, reason)),
		Status:  domain.AuditStatusFailed,
	}
	if identity != nil {
		entry.UserID = &identity.UserID
		entry.UserEmail = &identity.Email
	}
	s.audit.Record(ctx, entry)
}

func strPtr(s string) *string {
	return &s
}

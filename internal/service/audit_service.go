package service

import (
	"context"
	"log"

	"filevault/internal/domain"
)

// AuditStore — хранилище журнала аудита
type AuditStore interface {
	Insert(ctx context.Context, entry *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLog, error)
	Count(ctx context.Context, filter domain.AuditFilter) (int64, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]domain.AuditLog, error)
	ListByFile(ctx context.Context, fileID int64, limit int) ([]domain.AuditLog, error)
}

type AuditService struct {
	store AuditStore
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store}
}

// Record пишет событие в журнал. Сбой записи не прерывает операцию,
// которая его породила, ошибка только логируется.
func (s *AuditService) Record(ctx context.Context, entry *domain.AuditLog) {
	if s == nil || s.store == nil {
		return
	}
	if entry.Status == "" {
		entry.Status = domain.AuditStatusSuccess
	}
	if meta, ok := domain.RequestMetaFromContext(ctx); ok {
		if entry.IPAddress == nil && meta.IPAddress != "" {
			entry.IPAddress = &meta.IPAddress
		}
		if entry.UserAgent == nil && meta.UserAgent != "" {
			entry.UserAgent = &meta.UserAgent
		}
	}
	if err := s.store.Insert(ctx, entry); err != nil {
		log.Printf("[Audit] Failed to record %s: %v", entry.Action, err)
	}
}

// List возвращает страницу журнала с фильтрами. Только для администратора.
func (s *AuditService) List(ctx context.Context, identity domain.Identity, filter domain.AuditFilter) ([]domain.AuditLog, int64, error) {
	if !identity.Role.Can(domain.PermissionAuditRead) {
		return nil, 0, domain.ErrAccessDenied
	}

	entries, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// UserActivity — последние действия пользователя. Пользователь видит свои,
// администратор любые.
func (s *AuditService) UserActivity(ctx context.Context, identity domain.Identity, userID int64, limit int) ([]domain.AuditLog, error) {
	if userID != identity.UserID && !identity.Role.Can(domain.PermissionAuditRead) {
		return nil, domain.ErrAccessDenied
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListByUser(ctx, userID, limit)
}

// FileHistory — история операций над файлом. Только для администратора.
func (s *AuditService) FileHistory(ctx context.Context, identity domain.Identity, fileID int64, limit int) ([]domain.AuditLog, error) {
	if !identity.Role.Can(domain.PermissionAuditRead) {
		return nil, domain.ErrAccessDenied
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListByFile(ctx, fileID, limit)
}

package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"filevault/internal/domain"
)

type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Insert(ctx context.Context, entry *domain.AuditLog) error {
	query := `
        INSERT INTO audit_logs (user_id, user_email, action, resource_type, resource_id,
                                details, ip_address, user_agent, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id, created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		entry.UserID,
		entry.UserEmail,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		entry.Details,
		entry.IPAddress,
		entry.UserAgent,
		entry.Status,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// buildFilter собирает WHERE по заполненным полям фильтра
func buildFilter(filter domain.AuditFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	add := func(cond string, val interface{}) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if filter.Action != nil {
		add("action = $%d", *filter.Action)
	}
	if filter.ResourceType != nil {
		add("resource_type = $%d", *filter.ResourceType)
	}
	if filter.ResourceID != nil {
		add("resource_id = $%d", *filter.ResourceID)
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.StartDate != nil {
		add("created_at >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add("created_at <= $%d", *filter.EndDate)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLog, error) {
	where, args := buildFilter(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
        SELECT id, user_id, user_email, action, resource_type, resource_id,
               details, ip_address, user_agent, status, created_at
        FROM audit_logs%s
        ORDER BY created_at DESC
        OFFSET $%d LIMIT $%d`, where, len(args)+1, len(args)+2)
	args = append(args, filter.Offset, limit)

	var entries []domain.AuditLog
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	return entries, nil
}

func (r *AuditRepository) Count(ctx context.Context, filter domain.AuditFilter) (int64, error) {
	where, args := buildFilter(filter)

	query := "SELECT COUNT(*) FROM audit_logs" + where

	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	return count, nil
}

// ListByUser возвращает последние действия конкретного пользователя
func (r *AuditRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.AuditLog, error) {
	var entries []domain.AuditLog
	query := `
        SELECT id, user_id, user_email, action, resource_type, resource_id,
               details, ip_address, user_agent, status, created_at
        FROM audit_logs
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2`

	if err := r.db.SelectContext(ctx, &entries, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list user activity: %w", err)
	}

	return entries, nil
}

// ListByFile возвращает историю операций над файлом, включая доступы по ссылкам
func (r *AuditRepository) ListByFile(ctx context.Context, fileID int64, limit int) ([]domain.AuditLog, error) {
	var entries []domain.AuditLog
	query := `
        SELECT id, user_id, user_email, action, resource_type, resource_id,
               details, ip_address, user_agent, status, created_at
        FROM audit_logs
        WHERE resource_type = 'file' AND resource_id = $1
        ORDER BY created_at DESC
        LIMIT $2`

	if err := r.db.SelectContext(ctx, &entries, query, fileID, limit); err != nil {
		return nil, fmt.Errorf("failed to list file history: %w", err)
	}

	return entries, nil
}

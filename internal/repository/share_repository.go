package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"filevault/internal/domain"
)

// uniqueViolation — код ошибки PostgreSQL для нарушения уникальности
const uniqueViolation = "23505"

type ShareRepository struct {
	db *sqlx.DB
}

func NewShareRepository(db *sqlx.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

// Create вставляет долговременную запись ссылки
func (r *ShareRepository) Create(ctx context.Context, link *domain.ShareLink) error {
	query := `
        INSERT INTO share_links (
            token, file_id, created_by_id, expires_at,
            max_downloads, password_hash, requires_auth, allowed_email
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8
        ) RETURNING id, created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		link.Token,
		link.FileID,
		link.CreatedByID,
		link.ExpiresAt,
		link.MaxDownloads,
		link.PasswordHash,
		link.RequiresAuth,
		link.AllowedEmail,
	).Scan(&link.ID, &link.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create share link: %w", err)
	}

	return nil
}

// GetByToken возвращает запись по токену независимо от ее состояния
func (r *ShareRepository) GetByToken(ctx context.Context, token string) (*domain.ShareLink, error) {
	query := `SELECT * FROM share_links WHERE token = $1`

	var link domain.ShareLink
	if err := r.db.GetContext(ctx, &link, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get share link: %w", err)
	}

	return &link, nil
}

// IncrementDownloadCount увеличивает счетчик скачиваний в базе.
// Счетчик в базе — исторический, для enforcement авторитетен fast store.
func (r *ShareRepository) IncrementDownloadCount(ctx context.Context, token string) error {
	query := `
        UPDATE share_links
        SET download_count = download_count + 1, updated_at = CURRENT_TIMESTAMP
        WHERE token = $1`

	result, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("failed to increment download count: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// Deactivate помечает ссылку отозванной. Запись не удаляется —
// она остается для истории.
func (r *ShareRepository) Deactivate(ctx context.Context, token string) error {
	query := `
        UPDATE share_links
        SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP
        WHERE token = $1`

	result, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("failed to deactivate share link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// ListActiveByCreator возвращает активные ссылки пользователя, новые первыми
func (r *ShareRepository) ListActiveByCreator(ctx context.Context, userID int64, offset, limit int) ([]domain.LinkSummary, error) {
	query := `
        SELECT
            sl.id, sl.token, sl.file_id, f.filename,
            sl.expires_at, sl.is_active, sl.download_count, sl.max_downloads,
            (sl.password_hash IS NOT NULL) AS has_password, sl.created_at
        FROM share_links sl
        JOIN files f ON f.id = sl.file_id
        WHERE sl.created_by_id = $1 AND sl.is_active = TRUE
        ORDER BY sl.created_at DESC
        OFFSET $2 LIMIT $3`

	rows, err := r.db.QueryxContext(ctx, query, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list share links: %w", err)
	}
	defer rows.Close()

	var links []domain.LinkSummary
	for rows.Next() {
		var l domain.LinkSummary
		if err := rows.Scan(
			&l.ID, &l.Token, &l.FileID, &l.Filename,
			&l.ExpiresAt, &l.IsActive, &l.DownloadCount, &l.MaxDownloads,
			&l.HasPassword, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan share link: %w", err)
		}
		links = append(links, l)
	}

	return links, rows.Err()
}

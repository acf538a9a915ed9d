package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"filevault/internal/domain"
)

type PermissionRepository struct {
	db *sqlx.DB
}

func NewPermissionRepository(db *sqlx.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// Upsert создает или обновляет permission на файл для пользователя
func (r *PermissionRepository) Upsert(ctx context.Context, perm *domain.FilePermission) error {
	query := `
        INSERT INTO file_permissions (
            file_id, user_id, permission_level, can_download, can_share, granted_by_id
        ) VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (file_id, user_id) DO UPDATE SET
            permission_level = EXCLUDED.permission_level,
            can_download = EXCLUDED.can_download,
            can_share = EXCLUDED.can_share,
            granted_by_id = EXCLUDED.granted_by_id
        RETURNING id, created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		perm.FileID,
		perm.UserID,
		perm.PermissionLevel,
		perm.CanDownload,
		perm.CanShare,
		perm.GrantedByID,
	).Scan(&perm.ID, &perm.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}

	return nil
}

func (r *PermissionRepository) Get(ctx context.Context, fileID, userID int64) (*domain.FilePermission, error) {
	var perm domain.FilePermission
	query := `SELECT * FROM file_permissions WHERE file_id = $1 AND user_id = $2`

	err := r.db.GetContext(ctx, &perm, query, fileID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}

	return &perm, nil
}

func (r *PermissionRepository) ListByFile(ctx context.Context, fileID int64) ([]domain.FilePermission, error) {
	var perms []domain.FilePermission
	query := `SELECT * FROM file_permissions WHERE file_id = $1 ORDER BY created_at`

	if err := r.db.SelectContext(ctx, &perms, query, fileID); err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}

	return perms, nil
}

func (r *PermissionRepository) Delete(ctx context.Context, fileID, userID int64) error {
	query := `DELETE FROM file_permissions WHERE file_id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, fileID, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke permission: %w", err)
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

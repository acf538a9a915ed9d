package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"filevault/internal/domain"
)

type FileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, file *domain.File) error {
	query := `
        INSERT INTO files (
            filename, original_filename, content_type, size_bytes,
            s3_key, s3_bucket, description, owner_id
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		file.Filename,
		file.OriginalFilename,
		file.ContentType,
		file.SizeBytes,
		file.S3Key,
		file.S3Bucket,
		file.Description,
		file.OwnerID,
	).Scan(&file.ID, &file.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create file record: %w", err)
	}

	return nil
}

// GetByID возвращает файл, если он не удален
func (r *FileRepository) GetByID(ctx context.Context, id int64) (*domain.File, error) {
	var file domain.File
	query := `SELECT * FROM files WHERE id = $1 AND is_deleted = FALSE`

	err := r.db.GetContext(ctx, &file, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	return &file, nil
}

func (r *FileRepository) GetByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]domain.File, error) {
	var files []domain.File
	query := `
        SELECT * FROM files
        WHERE owner_id = $1 AND is_deleted = FALSE
        ORDER BY created_at DESC
        OFFSET $2 LIMIT $3`

	if err := r.db.SelectContext(ctx, &files, query, ownerID, offset, limit); err != nil {
		return nil, fmt.Errorf("failed to get user files: %w", err)
	}

	return files, nil
}

// GetSharedWith возвращает чужие файлы, на которые у пользователя есть permission
func (r *FileRepository) GetSharedWith(ctx context.Context, userID int64) ([]domain.File, error) {
	var files []domain.File
	query := `
        SELECT f.* FROM files f
        JOIN file_permissions fp ON fp.file_id = f.id
        WHERE fp.user_id = $1 AND f.is_deleted = FALSE AND f.owner_id != $1
        ORDER BY f.created_at DESC`

	if err := r.db.SelectContext(ctx, &files, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get shared files: %w", err)
	}

	return files, nil
}

// GetAll возвращает все файлы (только для администратора)
func (r *FileRepository) GetAll(ctx context.Context, offset, limit int) ([]domain.File, error) {
	var files []domain.File
	query := `
        SELECT * FROM files
        WHERE is_deleted = FALSE
        ORDER BY created_at DESC
        OFFSET $1 LIMIT $2`

	if err := r.db.SelectContext(ctx, &files, query, offset, limit); err != nil {
		return nil, fmt.Errorf("failed to get all files: %w", err)
	}

	return files, nil
}

func (r *FileRepository) GetStats(ctx context.Context, ownerID int64) (*domain.FileStats, error) {
	var stats domain.FileStats
	query := `
        SELECT COUNT(*) AS total_files, COALESCE(SUM(size_bytes), 0) AS total_bytes
        FROM files
        WHERE owner_id = $1 AND is_deleted = FALSE`

	if err := r.db.GetContext(ctx, &stats, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to get file stats: %w", err)
	}

	return &stats, nil
}

func (r *FileRepository) Update(ctx context.Context, file *domain.File) error {
	query := `
        UPDATE files
        SET filename = $1, description = $2, updated_at = CURRENT_TIMESTAMP
        WHERE id = $3 AND is_deleted = FALSE`

	result, err := r.db.ExecContext(ctx, query, file.Filename, file.Description, file.ID)
	if err != nil {
		return fmt.Errorf("failed to update file: %w", err)
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

// SoftDelete помечает файл удаленным, запись остается для аудита
func (r *FileRepository) SoftDelete(ctx context.Context, id int64) error {
	query := `
        UPDATE files
        SET is_deleted = TRUE, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1 AND is_deleted = FALSE`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
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

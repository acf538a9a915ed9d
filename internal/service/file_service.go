package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/google/uuid"

	"filevault/internal/domain"
	"filevault/internal/service/s3"
)

// FileStore — хранилище метаданных файлов
type FileStore interface {
	Create(ctx context.Context, file *domain.File) error
	GetByID(ctx context.Context, id int64) (*domain.File, error)
	GetByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]domain.File, error)
	GetSharedWith(ctx context.Context, userID int64) ([]domain.File, error)
	GetAll(ctx context.Context, offset, limit int) ([]domain.File, error)
	GetStats(ctx context.Context, ownerID int64) (*domain.FileStats, error)
	Update(ctx context.Context, file *domain.File) error
	SoftDelete(ctx context.Context, id int64) error
}

// PermissionStore — прямые права доступа к файлам
type PermissionStore interface {
	Upsert(ctx context.Context, perm *domain.FilePermission) error
	Get(ctx context.Context, fileID, userID int64) (*domain.FilePermission, error)
	ListByFile(ctx context.Context, fileID int64) ([]domain.FilePermission, error)
	Delete(ctx context.Context, fileID, userID int64) error
}

type FileService struct {
	files       FileStore
	perms       PermissionStore
	storage     s3.Storage
	audit       *AuditService
	bucket      string
	maxSizeByte int64
}

func NewFileService(files FileStore, perms PermissionStore, storage s3.Storage, audit *AuditService, bucket string, maxSizeMB int64) *FileService {
	return &FileService{
		files:       files,
		perms:       perms,
		storage:     storage,
		audit:       audit,
		bucket:      bucket,
		maxSizeByte: maxSizeMB * 1024 * 1024,
	}
}

// Upload загружает файл в S3 и создает запись метаданных
func (s *FileService) Upload(ctx context.Context, identity domain.Identity, upload *domain.FileUpload) (*domain.File, error) {
	if !identity.Role.Can(domain.PermissionFileUpload) {
		return nil, domain.ErrAccessDenied
	}
	if upload.Filename == "" {
		return nil, domain.NewValidationError("filename", "must not be empty")
	}
	if upload.SizeBytes <= 0 {
		return nil, domain.NewValidationError("file", "must not be empty")
	}
	if upload.SizeBytes > s.maxSizeByte {
		return nil, domain.NewValidationError("file",
			fmt.Sprintf("exceeds maximum size of %d bytes", s.maxSizeByte))
	}

	// Ключ в S3 не зависит от имени файла, коллизии исключены
	s3Key := fmt.Sprintf("files/%d/%s%s", identity.UserID, uuid.New().String(), filepath.Ext(upload.Filename))

	if err := s.storage.Upload(ctx, s3Key, upload.ContentType, bytes.NewReader(upload.Data)); err != nil {
		return nil, fmt.Errorf("failed to upload to storage: %w", err)
	}

	file := &domain.File{
		Filename:         filepath.Base(upload.Filename),
		OriginalFilename: upload.Filename,
		ContentType:      upload.ContentType,
		SizeBytes:        upload.SizeBytes,
		S3Key:            s3Key,
		S3Bucket:         s.bucket,
		Description:      upload.Description,
		OwnerID:          identity.UserID,
	}

	if err := s.files.Create(ctx, file); err != nil {
		// Запись не удалась, убираем объект из хранилища
		if delErr := s.storage.DeleteObject(ctx, s3Key); delErr != nil {
			log.Printf("[UploadFile] Failed to clean up object %s: %v", s3Key, delErr)
		}
		return nil, err
	}

	s.audit.Record(ctx, &domain.AuditLog{
		UserID:       &identity.UserID,
		UserEmail:    &identity.Email,
		Action:       domain.AuditFileUpload,
		ResourceType: strPtr("file"),
		ResourceID:   &file.ID,
		Details:      strPtr(fmt.Sprintf("filename=%s size=%d", file.OriginalFilename, file.SizeBytes)),
		Status:       domain.AuditStatusSuccess,
	})

	log.Printf("[UploadFile] User %d uploaded %s (%d bytes)", identity.UserID, file.OriginalFilename, file.SizeBytes)

	return file, nil
}

// canDownload — скачивать может владелец, администратор или пользователь
// с правом can_download
func (s *FileService) canDownload(ctx context.Context, file *domain.File, identity domain.Identity) (bool, error) {
	if file.OwnerID == identity.UserID {
		return true, nil
	}
	if identity.Role.Can(domain.PermissionFileReadAll) {
		return true, nil
	}

	perm, err := s.perms.Get(ctx, file.ID, identity.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return perm.CanDownload, nil
}

// Download отдает содержимое файла вместе с метаданными
func (s *FileService) Download(ctx context.Context, identity domain.Identity, fileID int64) (*domain.File, s3.Object, error) {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}

	allowed, err := s.canDownload(ctx, file, identity)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check download rights: %w", err)
	}
	if !allowed {
		return nil, nil, domain.ErrAccessDenied
	}

	obj, err := s.storage.GetObject(ctx, file.S3Key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get object: %w", err)
	}

	s.audit.Record(ctx, &domain.AuditLog{
		UserID:       &identity.UserID,
		UserEmail:    &identity.Email,
		Action:       domain.AuditFileDownload,
		ResourceType: strPtr("file"),
		ResourceID:   &file.ID,
		Status:       domain.AuditStatusSuccess,
	})

	return file, obj, nil
}

// DownloadRange отдает часть содержимого файла для докачки и стриминга.
// Границы включительные, выход за размер файла обрезается.
func (s *FileService) DownloadRange(ctx context.Context, identity domain.Identity, fileID, start, end int64) (*domain.File, s3.Object, error) {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}

	allowed, err := s.canDownload(ctx, file, identity)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check download rights: %w", err)
	}
	if !allowed {
		return nil, nil, domain.ErrAccessDenied
	}

	if start < 0 {
		start = 0
	}
	if end >= file.SizeBytes {
		end = file.SizeBytes - 1
	}
	if start > end {
		return nil, nil, domain.NewValidationError("range", fmt.Sprintf("invalid range %d-%d", start, end))
	}

	obj, err := s.storage.GetObjectRange(ctx, file.S3Key, start, end)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get object range: %w", err)
	}

	s.audit.Record(ctx, &domain.AuditLog{
		UserID:       &identity.UserID,
		UserEmail:    &identity.Email,
		Action:       domain.AuditFileDownload,
		ResourceType: strPtr("file"),
		ResourceID:   &file.ID,
		Details:      strPtr(fmt.Sprintf("range=%d-%d", start, end)),
		Status:       domain.AuditStatusSuccess,
	})

	return file, obj, nil
}

func (s *FileService) Get(ctx context.Context, identity domain.Identity, fileID int64) (*domain.File, error) {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.canDownload(ctx, file, identity)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, domain.ErrAccessDenied
	}

	return file, nil
}

func (s *FileService) ListOwn(ctx context.Context, identity domain.Identity, offset, limit int) ([]domain.File, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.files.GetByOwner(ctx, identity.UserID, offset, limit)
}

func (s *FileService) ListSharedWith(ctx context.Context, identity domain.Identity) ([]domain.File, error) {
	return s.files.GetSharedWith(ctx, identity.UserID)
}

// ListAll возвращает файлы всех пользователей. Только для администратора.
func (s *FileService) ListAll(ctx context.Context, identity domain.Identity, offset, limit int) ([]domain.File, error) {
	if !identity.Role.Can(domain.PermissionFileReadAll) {
		return nil, domain.ErrAccessDenied
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.files.GetAll(ctx, offset, limit)
}

func (s *FileService) Stats(ctx context.Context, identity domain.Identity) (*domain.FileStats, error) {
	return s.files.GetStats(ctx, identity.UserID)
}

// Update меняет имя и описание файла. Разрешено владельцу, администратору
// или пользователю с правом write.
func (s *FileService) Update(ctx context.Context, identity domain.Identity, fileID int64, filename *string, description *string) (*domain.File, error) {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if file.OwnerID != identity.UserID && !identity.Role.IsAdmin() {
		perm, err := s.perms.Get(ctx, fileID, identity.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.ErrAccessDenied
			}
			return nil, err
		}
		if perm.PermissionLevel != domain.PermissionLevelWrite && perm.PermissionLevel != domain.PermissionLevelAdmin {
			return nil, domain.ErrAccessDenied
		}
	}

	if filename != nil {
		if *filename == "" {
			return nil, domain.NewValidationError("filename", "must not be empty")
		}
		file.OriginalFilename = *filename
		file.Filename = filepath.Base(*filename)
	}
	if description != nil {
		file.Description = description
	}

	if err := s.files.Update(ctx, file); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &domain.AuditLog{
		UserID:       &identity.UserID,
		UserEmail:    &identity.Email,
		Action:       domain.AuditFileUpdate,
		ResourceType: strPtr("file"),
		ResourceID:   &file.ID,
		Status:       domain.AuditStatusSuccess,
	})

	return file, nil
}

// Delete помечает файл удаленным. Объект в S3 остается, запись можно
// восстановить вручную.
func (s *FileService) Delete(ctx context.Context, identity domain.Identity, fileID int64) error {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return err
	}

	if file.OwnerID != identity.UserID && !identity.Role.Can(domain.PermissionFileDelete) {
		return domain.ErrAccessDenied
	}

	if err := s.files.SoftDelete(ctx, fileID); err != nil {
		return err
	}

	s.audit.Record(ctx, &domain.AuditLog{
		UserID:       &identity.UserID,
		UserEmail:    &identity.Email,
		Action:       domain.AuditFileDelete,
		ResourceType: strPtr("file"),
		ResourceID:   &fileID,
		Status:       domain.AuditStatusSuccess,
	})

	log.Printf("[DeleteFile] File %d soft-deleted by user %d", fileID, identity.UserID)

	return nil
}

// GrantPermission выдает пользователю прямой доступ к файлу.
// Повторная выдача обновляет существующую запись.
func (s *FileService) GrantPermission(ctx context.Context, identity domain.Identity, perm *domain.FilePermission) error {
	file, err := s.files.GetByID(ctx, perm.FileID)
	if err != nil {
		return err
	}

	if file.OwnerID != identity.UserID && !identity.Role.IsAdmin() {
		return domain.ErrAccessDenied
	}
	if perm.UserID == file.OwnerID {
		return domain.NewValidationError("user_id", "owner already has full access")
	}

	grantedBy := identity.UserID
	perm.GrantedByID = &grantedBy

	if err := s.perms.Upsert(ctx, perm); err != nil {
		return err
	}

	s.audit.Record(ctx, &domain.AuditLog{
		UserID:       &identity.UserID,
		UserEmail:    &identity.Email,
		Action:       domain.AuditPermissionGrant,
		ResourceType: strPtr("file"),
		ResourceID:   &perm.FileID,
		Details:      strPtr(fmt.Sprintf("user=%d level=%s", perm.UserID, perm.PermissionLevel)),
		Status:       domain.AuditStatusSuccess,
	})

	return nil
}

func (s *FileService) RevokePermission(ctx context.Context, identity domain.Identity, fileID, userID int64) error {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return err
	}

	if file.OwnerID != identity.UserID && !identity.Role.IsAdmin() {
		return domain.ErrAccessDenied
	}

	if err := s.perms.Delete(ctx, fileID, userID); err != nil {
		return err
	}

	s.audit.Record(ctx, &domain.AuditLog{
		UserID:       &identity.UserID,
		UserEmail:    &identity.Email,
		Action:       domain.AuditPermissionRevoke,
		ResourceType: strPtr("file"),
		ResourceID:   &fileID,
		Details:      strPtr(fmt.Sprintf("user=%d", userID)),
		Status:       domain.AuditStatusSuccess,
	})

	return nil
}

func (s *FileService) ListPermissions(ctx context.Context, identity domain.Identity, fileID int64) ([]domain.FilePermission, error) {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if file.OwnerID != identity.UserID && !identity.Role.IsAdmin() {
		return nil, domain.ErrAccessDenied
	}

	return s.perms.ListByFile(ctx, fileID)
}

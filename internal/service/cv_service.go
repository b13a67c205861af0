package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"cvvault/internal/domain"
	"cvvault/internal/repository"
	"cvvault/internal/service/s3"
	"cvvault/internal/storagekey"
)

// Максимальный размер файла резюме
const maxFileSize = 20 * 1024 * 1024 // 20MB

// AuditLog фиксирует действия над записями резюме. Ошибки журнала не
// прерывают операцию.
type AuditLog interface {
	Record(ctx context.Context, entry *domain.AuditEntry) error
}

// CVService реализует жизненный цикл резюме сотрудника: загрузку,
// продвижение в текущие, перевод в исторические и логическое удаление.
// Инвариант "не более одной текущей записи на сотрудника" обеспечивает
// хранилище; сервис не меняет поля записей напрямую.
type CVService struct {
	store repository.CVStore
	blob  s3.Storage
	keys  *storagekey.Builder
	audit AuditLog
}

func NewCVService(store repository.CVStore, blob s3.Storage, keys *storagekey.Builder, audit AuditLog) *CVService {
	return &CVService{
		store: store,
		blob:  blob,
		keys:  keys,
		audit: audit,
	}
}

// UploadNew загружает новое резюме. Файл сначала пишется в хранилище
// байтов (вне транзакции метаданных), затем создается запись; при
// ошибке вставки загруженный объект удаляется. Запись создается
// нетекущей: если запрошено makeCurrent, продвижение выполняется
// отдельной атомарной операцией хранилища.
func (s *CVService) UploadNew(ctx context.Context, upload domain.CVUpload, actor domain.ActingUser) (*domain.CVRecord, error) {
	if err := validateUpload(&upload, actor); err != nil {
		return nil, err
	}

	cvID := uuid.New()
	key, _ := s.keys.BuildKey(upload.CollaboratorID, upload.FileName, time.Now(), keySuffix(cvID))

	if err := s.blob.UploadBytes(ctx, key, upload.Data, upload.ContentType); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}

	record := &domain.CVRecord{
		ID:             cvID,
		CollaboratorID: upload.CollaboratorID,
		FileName:       upload.FileName,
		StorageKey:     key,
		ContentType:    upload.ContentType,
		FileSizeBytes:  upload.SizeBytes,
		VersionLabel:   upload.VersionLabel,
		Note:           upload.Note,
		CreatedBy:      actor.ID,
	}

	if err := s.store.Create(ctx, record); err != nil {
		// При ошибке вставки убираем осиротевший объект из хранилища
		if deleteErr := s.blob.DeleteObject(ctx, key); deleteErr != nil {
			log.Printf("failed to delete blob %s after db error: %v", key, deleteErr)
		}
		return nil, err
	}

	if upload.MakeCurrent {
		if err := s.store.PromoteToCurrent(ctx, upload.CollaboratorID, cvID, actor.ID); err != nil {
			return nil, fmt.Errorf("failed to promote uploaded cv: %w", err)
		}

		refreshed, err := s.store.GetByID(ctx, cvID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload promoted cv: %w", err)
		}
		record = refreshed
	}

	s.recordAudit(ctx, record, domain.AuditActionUpload, actor, nil)

	return record, nil
}

// Replace загружает преемника существующего резюме. Это сахар над
// "загрузить новое + продвинуть": прежняя запись не удаляется, а
// переводится в исторические тем же атомарным продвижением, которым
// новая становится текущей.
func (s *CVService) Replace(ctx context.Context, existingCVID uuid.UUID, upload domain.CVUpload, actor domain.ActingUser) (*domain.CVRecord, error) {
	existing, err := s.store.GetByID(ctx, existingCVID)
	if err != nil {
		return nil, fmt.Errorf("existing cv not found: %w", err)
	}
	if existing.IsDeleted {
		return nil, fmt.Errorf("existing cv not found: %w", domain.ErrNotFound)
	}

	upload.CollaboratorID = existing.CollaboratorID
	upload.MakeCurrent = true

	record, err := s.UploadNew(ctx, upload, actor)
	if err != nil {
		return nil, err
	}

	details := fmt.Sprintf("replaces cv %s", existingCVID)
	s.recordAudit(ctx, record, domain.AuditActionReplace, actor, &details)

	return record, nil
}

// SetAsCurrent делает запись текущей, снимая флаг с прежней текущей
// записи сотрудника
func (s *CVService) SetAsCurrent(ctx context.Context, collaboratorID string, cvID uuid.UUID, actor domain.ActingUser) error {
	if collaboratorID == "" {
		return fmt.Errorf("%w: collaborator id is required", domain.ErrValidation)
	}
	if actor.ID == "" {
		return fmt.Errorf("%w: acting user id is required", domain.ErrValidation)
	}

	if err := s.store.PromoteToCurrent(ctx, collaboratorID, cvID, actor.ID); err != nil {
		return err
	}

	record, err := s.store.GetByID(ctx, cvID)
	if err == nil {
		s.recordAudit(ctx, record, domain.AuditActionSetCurrent, actor, nil)
	}

	return nil
}

// SoftDelete логически удаляет запись. Замена текущего резюме при этом
// не назначается: сотрудник может остаться без текущего резюме, это
// осознанное решение.
func (s *CVService) SoftDelete(ctx context.Context, cvID uuid.UUID, actor domain.ActingUser) error {
	if actor.ID == "" {
		return fmt.Errorf("%w: acting user id is required", domain.ErrValidation)
	}

	if err := s.store.SoftDelete(ctx, cvID, actor.ID); err != nil {
		return err
	}

	record, err := s.store.GetByID(ctx, cvID)
	if err == nil {
		s.recordAudit(ctx, record, domain.AuditActionSoftDelete, actor, nil)
	}

	return nil
}

// ListByCollaborator возвращает записи сотрудника, новые первыми
func (s *CVService) ListByCollaborator(ctx context.Context, collaboratorID string, includeDeleted, onlyCurrent bool) ([]domain.CVRecord, error) {
	if collaboratorID == "" {
		return nil, fmt.Errorf("%w: collaborator id is required", domain.ErrValidation)
	}

	return s.store.ListByFilter(ctx, collaboratorID, includeDeleted, onlyCurrent)
}

// GetByID возвращает запись по id
func (s *CVService) GetByID(ctx context.Context, cvID uuid.UUID) (*domain.CVRecord, error) {
	return s.store.GetByID(ctx, cvID)
}

// Download возвращает метаданные и содержимое резюме. Удаленные записи
// недоступны для скачивания.
func (s *CVService) Download(ctx context.Context, cvID uuid.UUID) (*domain.CVDownload, error) {
	record, err := s.store.GetByID(ctx, cvID)
	if err != nil {
		return nil, err
	}
	if record.IsDeleted {
		return nil, fmt.Errorf("%w: cv %s", domain.ErrNotFound, cvID)
	}

	body, err := s.blob.GetObject(ctx, record.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	defer body.Close()

	buffer := bytes.NewBuffer(make([]byte, 0, record.FileSizeBytes))
	if _, err := io.Copy(buffer, body); err != nil {
		return nil, fmt.Errorf("%w: error reading object: %v", domain.ErrStorage, err)
	}

	return &domain.CVDownload{
		Record: record,
		Data:   buffer.Bytes(),
	}, nil
}

// validateUpload проверяет входные данные загрузки
func validateUpload(upload *domain.CVUpload, actor domain.ActingUser) error {
	switch {
	case upload.CollaboratorID == "":
		return fmt.Errorf("%w: collaborator id is required", domain.ErrValidation)
	case upload.FileName == "":
		return fmt.Errorf("%w: file name is required", domain.ErrValidation)
	case upload.ContentType == "":
		return fmt.Errorf("%w: content type is required", domain.ErrValidation)
	case actor.ID == "":
		return fmt.Errorf("%w: acting user id is required", domain.ErrValidation)
	case upload.SizeBytes > maxFileSize:
		return fmt.Errorf("%w: file size exceeds %d bytes", domain.ErrValidation, maxFileSize)
	}
	return nil
}

// recordAudit пишет запись в журнал действий; ошибки журнала не
// прерывают операцию
func (s *CVService) recordAudit(ctx context.Context, record *domain.CVRecord, action string, actor domain.ActingUser, details *string) {
	if s.audit == nil {
		return
	}

	entry := &domain.AuditEntry{
		CVID:           record.ID,
		CollaboratorID: record.CollaboratorID,
		Action:         action,
		ActorID:        actor.ID,
		Details:        details,
	}

	if err := s.audit.Record(ctx, entry); err != nil {
		log.Printf("failed to record audit entry for cv %s: %v", record.ID, err)
	}
}

// keySuffix строит короткий уникальный суффикс ключа хранилища из id
// записи, чтобы две загрузки в одну секунду не столкнулись по ключу
func keySuffix(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}

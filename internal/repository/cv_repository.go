package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"cvvault/internal/domain"
)

// Максимальное время ожидания блокировок при продвижении записи.
// По истечении PostgreSQL возвращает lock_not_available, который
// транслируется в domain.ErrConflict.
const promoteLockTimeout = "5000ms"

// Код ошибки PostgreSQL lock_not_available
const pqLockNotAvailable = "55P03"

// CVRepository реализует CVStore поверх PostgreSQL
type CVRepository struct {
	db *sqlx.DB
}

func NewCVRepository(db *sqlx.DB) *CVRepository {
	return &CVRepository{db: db}
}

// Create вставляет новую запись о резюме. Запись всегда вставляется
// с is_current = FALSE: продвижение в текущие выполняется только через
// PromoteToCurrent, иначе возможен обход инварианта.
func (r *CVRepository) Create(ctx context.Context, record *domain.CVRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}

	query := `
        INSERT INTO collaborator_cvs (
            id, collaborator_id, file_name, storage_key, content_type,
            file_size_bytes, is_current, is_deleted, version_label, note, created_by
        )
        VALUES ($1, $2, $3, $4, $5, $6, FALSE, FALSE, $7, $8, $9)
        RETURNING created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		record.ID,
		record.CollaboratorID,
		record.FileName,
		record.StorageKey,
		record.ContentType,
		record.FileSizeBytes,
		record.VersionLabel,
		record.Note,
		record.CreatedBy,
	).Scan(&record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert cv record: %w", err)
	}

	record.IsCurrent = false
	record.IsDeleted = false

	return nil
}

// PromoteToCurrent атомарно делает запись текущей, снимая флаг с прежней
// текущей записи того же сотрудника. Блокировка строк сотрудника через
// SELECT ... FOR UPDATE сериализует конкурентные продвижения по одному
// сотруднику; продвижения разных сотрудников друг другу не мешают.
func (r *CVRepository) PromoteToCurrent(ctx context.Context, collaboratorID string, cvID uuid.UUID, actingUserID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%s'", promoteLockTimeout)); err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}

	// Блокируем все записи сотрудника на время транзакции
	lockQuery := `SELECT id FROM collaborator_cvs WHERE collaborator_id = $1 FOR UPDATE`
	if _, err := tx.ExecContext(ctx, lockQuery, collaboratorID); err != nil {
		return wrapLockError(err, "failed to lock collaborator cvs")
	}

	// Снимаем флаг текущей со всех записей сотрудника
	demoteQuery := `
        UPDATE collaborator_cvs
        SET is_current = FALSE,
            updated_by = $2,
            updated_at = CURRENT_TIMESTAMP
        WHERE collaborator_id = $1 AND is_current = TRUE`

	if _, err := tx.ExecContext(ctx, demoteQuery, collaboratorID, actingUserID); err != nil {
		return fmt.Errorf("failed to demote current cv: %w", err)
	}

	// Продвигаем целевую запись. Ноль затронутых строк означает, что
	// записи нет, она чужая или удалена — откатываем всю транзакцию,
	// частичное применение (demote без promote) невозможно.
	promoteQuery := `
        UPDATE collaborator_cvs
        SET is_current = TRUE,
            updated_by = $3,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1 AND collaborator_id = $2 AND is_deleted = FALSE`

	result, err := tx.ExecContext(ctx, promoteQuery, cvID, collaboratorID, actingUserID)
	if err != nil {
		return fmt.Errorf("failed to promote cv: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: cv %s for collaborator %s", domain.ErrNotFound, cvID, collaboratorID)
	}

	return tx.Commit()
}

// SoftDelete помечает запись удаленной. Затрагивается только сама
// запись: флаг is_current снимается принудительно, замена не назначается.
func (r *CVRepository) SoftDelete(ctx context.Context, cvID uuid.UUID, actingUserID string) error {
	query := `
        UPDATE collaborator_cvs
        SET is_deleted = TRUE,
            is_current = FALSE,
            deleted_by = $2,
            deleted_at = CURRENT_TIMESTAMP,
            updated_by = $2,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1 AND is_deleted = FALSE`

	result, err := r.db.ExecContext(ctx, query, cvID, actingUserID)
	if err != nil {
		return fmt.Errorf("failed to soft delete cv: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: cv %s", domain.ErrNotFound, cvID)
	}

	return nil
}

// ListByFilter возвращает записи сотрудника, отсортированные по дате
// создания (новые первыми)
func (r *CVRepository) ListByFilter(ctx context.Context, collaboratorID string, includeDeleted, onlyCurrent bool) ([]domain.CVRecord, error) {
	conditions := []string{"collaborator_id = $1"}
	if !includeDeleted {
		conditions = append(conditions, "is_deleted = FALSE")
	}
	if onlyCurrent {
		conditions = append(conditions, "is_current = TRUE")
	}

	query := fmt.Sprintf(
		`SELECT * FROM collaborator_cvs WHERE %s ORDER BY created_at DESC`,
		strings.Join(conditions, " AND "),
	)

	records := []domain.CVRecord{}
	if err := r.db.SelectContext(ctx, &records, query, collaboratorID); err != nil {
		return nil, fmt.Errorf("failed to list cvs: %w", err)
	}

	return records, nil
}

// GetByID возвращает запись по id, включая удаленные
func (r *CVRepository) GetByID(ctx context.Context, cvID uuid.UUID) (*domain.CVRecord, error) {
	var record domain.CVRecord
	query := `SELECT * FROM collaborator_cvs WHERE id = $1`

	err := r.db.GetContext(ctx, &record, query, cvID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: cv %s", domain.ErrNotFound, cvID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cv: %w", err)
	}

	return &record, nil
}

// validateRecord проверяет обязательные поля перед вставкой
func validateRecord(record *domain.CVRecord) error {
	switch {
	case record.CollaboratorID == "":
		return fmt.Errorf("%w: collaborator id is required", domain.ErrValidation)
	case record.FileName == "":
		return fmt.Errorf("%w: file name is required", domain.ErrValidation)
	case record.StorageKey == "":
		return fmt.Errorf("%w: storage key is required", domain.ErrValidation)
	case record.ContentType == "":
		return fmt.Errorf("%w: content type is required", domain.ErrValidation)
	case record.CreatedBy == "":
		return fmt.Errorf("%w: created by is required", domain.ErrValidation)
	}
	return nil
}

// wrapLockError транслирует lock_not_available в domain.ErrConflict
func wrapLockError(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqLockNotAvailable {
		return fmt.Errorf("%w: %s: %v", domain.ErrConflict, msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

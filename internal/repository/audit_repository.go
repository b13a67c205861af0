package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"cvvault/internal/domain"
)

// AuditRepository сохраняет журнал действий над записями резюме
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record добавляет запись в журнал действий
func (r *AuditRepository) Record(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
        INSERT INTO cv_audit_log (cv_id, collaborator_id, action, actor_id, details)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, occurred_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		entry.CVID,
		entry.CollaboratorID,
		entry.Action,
		entry.ActorID,
		entry.Details,
	).Scan(&entry.ID, &entry.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return nil
}

// ListByCV возвращает журнал действий по записи, новые первыми
func (r *AuditRepository) ListByCV(ctx context.Context, cvID string) ([]domain.AuditEntry, error) {
	entries := []domain.AuditEntry{}
	query := `SELECT * FROM cv_audit_log WHERE cv_id = $1 ORDER BY occurred_at DESC`

	if err := r.db.SelectContext(ctx, &entries, query, cvID); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	return entries, nil
}

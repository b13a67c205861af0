package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"cvvault/internal/domain"
)

// MemoryCVStore — реализация CVStore в памяти для тестов и демо.
// Создается на время жизни теста, никогда не используется как
// процессное состояние в боевом коде.
type MemoryCVStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*domain.CVRecord
}

func NewMemoryCVStore() *MemoryCVStore {
	return &MemoryCVStore{
		records: make(map[uuid.UUID]*domain.CVRecord),
	}
}

// Create вставляет новую запись. Как и в PostgreSQL-реализации, запись
// никогда не вставляется текущей.
func (m *MemoryCVStore) Create(ctx context.Context, record *domain.CVRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.IsCurrent = false
	record.IsDeleted = false

	stored := *record
	m.records[record.ID] = &stored

	return nil
}

// PromoteToCurrent выполняет demote+promote под одной блокировкой,
// что дает ту же атомарность, что транзакция в PostgreSQL.
func (m *MemoryCVStore) PromoteToCurrent(ctx context.Context, collaboratorID string, cvID uuid.UUID, actingUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.records[cvID]
	if !ok || target.CollaboratorID != collaboratorID || target.IsDeleted {
		return fmt.Errorf("%w: cv %s for collaborator %s", domain.ErrNotFound, cvID, collaboratorID)
	}

	now := time.Now().UTC()
	actor := actingUserID

	for _, rec := range m.records {
		if rec.CollaboratorID == collaboratorID && rec.IsCurrent {
			rec.IsCurrent = false
			rec.UpdatedBy = &actor
			rec.UpdatedAt = &now
		}
	}

	target.IsCurrent = true
	target.UpdatedBy = &actor
	target.UpdatedAt = &now

	return nil
}

// SoftDelete помечает запись удаленной; повторное удаление дает ErrNotFound
func (m *MemoryCVStore) SoftDelete(ctx context.Context, cvID uuid.UUID, actingUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[cvID]
	if !ok || rec.IsDeleted {
		return fmt.Errorf("%w: cv %s", domain.ErrNotFound, cvID)
	}

	now := time.Now().UTC()
	actor := actingUserID

	rec.IsDeleted = true
	rec.IsCurrent = false
	rec.DeletedBy = &actor
	rec.DeletedAt = &now
	rec.UpdatedBy = &actor
	rec.UpdatedAt = &now

	return nil
}

// ListByFilter возвращает копии записей сотрудника, новые первыми
func (m *MemoryCVStore) ListByFilter(ctx context.Context, collaboratorID string, includeDeleted, onlyCurrent bool) ([]domain.CVRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []domain.CVRecord{}
	for _, rec := range m.records {
		if rec.CollaboratorID != collaboratorID {
			continue
		}
		if rec.IsDeleted && !includeDeleted {
			continue
		}
		if onlyCurrent && !rec.IsCurrent {
			continue
		}
		result = append(result, *rec)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// GetByID возвращает копию записи, включая удаленные
func (m *MemoryCVStore) GetByID(ctx context.Context, cvID uuid.UUID) (*domain.CVRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[cvID]
	if !ok {
		return nil, fmt.Errorf("%w: cv %s", domain.ErrNotFound, cvID)
	}

	stored := *rec
	return &stored, nil
}

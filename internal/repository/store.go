package repository

import (
	"context"

	"github.com/google/uuid"

	"cvvault/internal/domain"
)

// CVStore определяет интерфейс хранилища записей резюме. Хранилище —
// единственный писатель полей is_current/is_deleted и единственный
// гарант инварианта "не более одной текущей неудаленной записи на
// сотрудника". Реализации: CVRepository (PostgreSQL) и MemoryCVStore
// (для тестов и демо), выбираются при сборке зависимостей.
type CVStore interface {
	// Create вставляет новую запись. Запись никогда не вставляется
	// текущей — продвижение выполняется отдельно через PromoteToCurrent.
	Create(ctx context.Context, record *domain.CVRecord) error

	// PromoteToCurrent в одной атомарной транзакции снимает флаг
	// is_current со всех записей сотрудника и ставит его целевой записи.
	// Если целевая запись отсутствует, принадлежит другому сотруднику
	// или удалена, вся транзакция откатывается с domain.ErrNotFound.
	PromoteToCurrent(ctx context.Context, collaboratorID string, cvID uuid.UUID, actingUserID string) error

	// SoftDelete помечает запись удаленной и принудительно снимает
	// is_current. Уже удаленная запись дает domain.ErrNotFound.
	// Другие записи не затрагиваются: автоматического продвижения
	// замены при удалении нет.
	SoftDelete(ctx context.Context, cvID uuid.UUID, actingUserID string) error

	// ListByFilter возвращает записи сотрудника, новые первыми.
	ListByFilter(ctx context.Context, collaboratorID string, includeDeleted, onlyCurrent bool) ([]domain.CVRecord, error)

	// GetByID возвращает запись по id или domain.ErrNotFound.
	GetByID(ctx context.Context, cvID uuid.UUID) (*domain.CVRecord, error)
}

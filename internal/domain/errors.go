package domain

import "errors"

// Базовые ошибки доменного слоя. Репозиторий и сервис оборачивают их
// через fmt.Errorf с %w, обработчики сопоставляют через errors.Is.
var (
	// ErrValidation — отсутствует или некорректно обязательное поле
	ErrValidation = errors.New("validation failed")
	// ErrNotFound — запись не существует, принадлежит другому сотруднику
	// или уже удалена
	ErrNotFound = errors.New("cv not found")
	// ErrConflict — транзакция продвижения не смогла получить блокировку
	// за отведенное время, вызов можно повторить
	ErrConflict = errors.New("promotion conflict")
	// ErrStorage — ошибка внешнего файлового хранилища
	ErrStorage = errors.New("storage operation failed")
)

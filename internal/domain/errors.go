package domain

import (
	"errors"
	"fmt"
)

// Категории ошибок. Конкретные ошибки оборачивают одну из них, транспорт
// выбирает код ответа через errors.Is.
var (
	// ErrValidation - некорректное тело запроса или нарушение формата данных.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound - заказ, товар или контрагент отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrConflict - операция недопустима в текущем состоянии заказа.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientStock - списание увело бы остаток товара в минус.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrTransaction - сбой begin/commit/rollback или получения соединения.
	ErrTransaction = errors.New("transaction failed")
)

var (
	ErrOrderNotFound         = fmt.Errorf("order %w", ErrNotFound)
	ErrProductNotFound       = fmt.Errorf("product %w", ErrNotFound)
	ErrCustomerStoreNotFound = fmt.Errorf("customer store %w", ErrNotFound)
	ErrSupplierNotFound      = fmt.Errorf("supplier %w", ErrNotFound)

	ErrItemsRequired        = fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	ErrItemQtyInvalid       = fmt.Errorf("%w: item quantity must be greater than zero", ErrValidation)
	ErrItemProductRequired  = fmt.Errorf("%w: item product_id is required", ErrValidation)
	ErrAmountNegative       = fmt.Errorf("%w: monetary amounts must be non-negative", ErrValidation)
	ErrCounterpartyRequired = fmt.Errorf("%w: counterparty id is required", ErrValidation)
	ErrZeroDelta            = fmt.Errorf("%w: stock delta must not be zero", ErrValidation)
	ErrUnknownSituation     = fmt.Errorf("%w: unknown situation", ErrValidation)
	ErrInitialSituation     = fmt.Errorf("%w: new orders must start in process", ErrValidation)

	// ErrOrderNotInProcess возвращается при изменении позиций заказа вне статуса process.
	ErrOrderNotInProcess = fmt.Errorf("%w: order situation is not process", ErrConflict)
	// ErrTransitionNotAllowed - переход отсутствует в таблице переходов.
	ErrTransitionNotAllowed = fmt.Errorf("%w: situation transition is not allowed", ErrConflict)
	// ErrOrderNotDeleted - физическое удаление разрешено только после мягкого.
	ErrOrderNotDeleted = fmt.Errorf("%w: order must be soft-deleted first", ErrConflict)
	// ErrOrderNumberTaken - номер занят конкурентной вставкой между проверкой и INSERT.
	// Это гонка на стороне сервера, клиент получает внутреннюю ошибку и может повторить запрос.
	ErrOrderNumberTaken = fmt.Errorf("%w: order number is already taken", ErrTransaction)

	// ErrOrderNumberExhausted - генератор исчерпал попытки подобрать свободный номер.
	ErrOrderNumberExhausted = errors.New("order number generation exhausted")
	// ErrOutboxPublish - ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// InsufficientStockError описывает отказ в списании конкретного товара.
type InsufficientStockError struct {
	ProductID int64
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// IsNotFound проверяет, относится ли ошибка к категории NotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict проверяет, относится ли ошибка к категории Conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// ErrorCategory возвращает метку категории ошибки для логов и метрик.
// Для nil возвращается пустая строка.
func ErrorCategory(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrTransaction):
		return "transaction"
	default:
		return "internal"
	}
}

package domain

import (
	"context"
	"time"
)

// OrderRepository хранит заголовки и позиции заказов обоих видов.
// Все методы работают в рамках транзакции, из которой получен репозиторий.
type OrderRepository interface {
	// OrderNumberExists ищет номер среди неудалённых заказов вида kind.
	OrderNumberExists(ctx context.Context, kind OrderKind, number string) (bool, error)
	// Insert сохраняет заголовок и проставляет order.ID.
	Insert(ctx context.Context, order *Order) error
	// Get возвращает заказ с позициями (включая мягко удалённые).
	Get(ctx context.Context, kind OrderKind, id int64) (Order, error)
	// Lock делает то же, что Get, но блокирует строку заголовка до конца транзакции.
	Lock(ctx context.Context, kind OrderKind, id int64) (Order, error)
	UpdateHeader(ctx context.Context, order *Order) error
	InsertItem(ctx context.Context, kind OrderKind, item *OrderItem) error
	UpdateItem(ctx context.Context, kind OrderKind, item *OrderItem) error
	// FindItem ищет позицию по паре (заказ, товар).
	FindItem(ctx context.Context, kind OrderKind, orderID, productID int64) (OrderItem, bool, error)
	SoftDelete(ctx context.Context, kind OrderKind, id, actor int64, at time.Time) error
	HardDelete(ctx context.Context, kind OrderKind, id int64) error
}

// ProductRepository - узкий доступ к остатку товара.
type ProductRepository interface {
	// Lock читает товар с блокировкой строки до конца транзакции.
	Lock(ctx context.Context, id int64) (Product, error)
	// Exists проверяет наличие товара без блокировки.
	Exists(ctx context.Context, id int64) (bool, error)
	UpdateStock(ctx context.Context, id, stock int64) error
}

// CounterpartyRepository проверяет существование магазинов клиентов и поставщиков.
type CounterpartyRepository interface {
	Exists(ctx context.Context, kind OrderKind, id int64) (bool, error)
}

// StockLogRepository - append-only журнал остатков.
type StockLogRepository interface {
	Append(ctx context.Context, entry *StockLogEntry) error
	ListByProduct(ctx context.Context, productID int64, limit int) ([]StockLogEntry, error)
	ListByOrder(ctx context.Context, ref OrderRef) ([]StockLogEntry, error)
}

// OutboxWriter ставит событие в transactional outbox той же транзакции.
type OutboxWriter interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
}

// Tx - набор репозиториев, привязанных к одной транзакции.
type Tx interface {
	Orders() OrderRepository
	Products() ProductRepository
	Counterparties() CounterpartyRepository
	StockLog() StockLogRepository
	Outbox() OutboxWriter
}

// TxManager владеет соединением и границами транзакции.
// fn выполняется в транзакции: nil - commit, ошибка или panic - rollback.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// OutboxRepository обслуживает публикацию outbox вне бизнес-транзакций.
type OutboxRepository interface {
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

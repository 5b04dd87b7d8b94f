package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Складские события
	EventTypeStockChanged EventType = "stock.changed"

	// События заказов
	EventTypeOrderCreated          EventType = "order.created"
	EventTypeOrderUpdated          EventType = "order.updated"
	EventTypeOrderSituationChanged EventType = "order.situation_changed"
	EventTypeOrderDeleted          EventType = "order.deleted"
)

// Topics для Kafka
const (
	TopicBackofficeEvents = "backoffice.events"
)

// Kafka headers, которые проставляет outbox-паблишер
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
	HeaderOutboxID      = "x-outbox-id"
)

// Типы агрегатов в outbox
const (
	AggregateProduct       = "product"
	AggregateCustomerOrder = "customer_order"
	AggregateSupplierOrder = "supplier_order"
)

// StockChangedEvent описывает одну запись журнала остатков.
type StockChangedEvent struct {
	EventType    EventType `json:"event_type"`
	StockLogID   int64     `json:"stock_log_id"`
	ProductID    int64     `json:"product_id"`
	Quantity     int64     `json:"quantity"`
	CurrentStock int64     `json:"current_stock"`
	Reason       string    `json:"reason"`
	OrderKind    string    `json:"order_kind,omitempty"`
	OrderID      int64     `json:"order_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType         EventType              `json:"event_type"`
	OrderKind         string                 `json:"order_kind"`
	OrderID           int64                  `json:"order_id"`
	OrderNumber       string                 `json:"order_number"`
	CounterpartyID    int64                  `json:"counterparty_id"`
	Situation         string                 `json:"situation"`
	PreviousSituation string                 `json:"previous_situation,omitempty"`
	ActorID           int64                  `json:"actor_id"`
	Timestamp         time.Time              `json:"timestamp"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// NewStockChangedEvent создает событие движения склада
func NewStockChangedEvent(stockLogID, productID, quantity, currentStock int64, reason string) *StockChangedEvent {
	return &StockChangedEvent{
		EventType:    EventTypeStockChanged,
		StockLogID:   stockLogID,
		ProductID:    productID,
		Quantity:     quantity,
		CurrentStock: currentStock,
		Reason:       reason,
		Timestamp:    time.Now().UTC(),
	}
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, kind string, orderID int64, orderNumber, situation string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:   eventType,
		OrderKind:   kind,
		OrderID:     orderID,
		OrderNumber: orderNumber,
		Situation:   situation,
		Timestamp:   time.Now().UTC(),
		Metadata:    metadata,
	}
}

// OrderAggregateType возвращает тип агрегата outbox для вида заказа.
func OrderAggregateType(kind string) string {
	if kind == "supplier" {
		return AggregateSupplierOrder
	}
	return AggregateCustomerOrder
}

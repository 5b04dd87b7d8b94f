package domain

import "time"

// StockReason - категория движения склада в журнале.
type StockReason string

const (
	StockReasonCustomerOrder         StockReason = "customer_order"
	StockReasonCustomerUpdateReverse StockReason = "customer_order_update_reversal"
	StockReasonCustomerUpdate        StockReason = "customer_order_update"
	StockReasonCustomerOrderCancel   StockReason = "customer_order_cancel"
	StockReasonSupplierDelivery      StockReason = "supplier_delivery"
)

// Product - внешняя сущность; ядро читает и меняет только остаток.
type Product struct {
	ID    int64
	Name  string
	Stock int64
}

// OrderRef связывает запись журнала с заказом.
type OrderRef struct {
	Kind OrderKind
	ID   int64
}

// StockLogEntry - неизменяемая запись журнала остатков.
type StockLogEntry struct {
	ID        int64
	ProductID int64
	Order     *OrderRef
	// Quantity - знаковая дельта: отрицательная для списания.
	Quantity int64
	// CurrentStock - остаток товара сразу после применения дельты.
	CurrentStock int64
	Reason       StockReason
	Note         string
	CreatedBy    int64
	CreatedAt    time.Time
}

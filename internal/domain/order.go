package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderKind различает две параллельные ветки заказов.
type OrderKind string

const (
	// OrderKindCustomer - заказ покупателя (магазина клиента), списывает склад при создании.
	OrderKindCustomer OrderKind = "customer"
	// OrderKindSupplier - закупка у поставщика, пополняет склад при доставке.
	OrderKindSupplier OrderKind = "supplier"
)

// Valid проверяет, что вид заказа известен.
func (k OrderKind) Valid() bool {
	return k == OrderKindCustomer || k == OrderKindSupplier
}

// OrderNumberPrefix возвращает префикс человекочитаемого номера заказа.
func (k OrderKind) OrderNumberPrefix() string {
	if k == OrderKindSupplier {
		return "SO"
	}
	return "CO"
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int64
	// Price и Tax - значения за единицу товара.
	Price      decimal.Decimal
	Tax        decimal.Decimal
	TotalPrice decimal.Decimal
	TotalTax   decimal.Decimal
	Status     Situation
	// StockLogID ссылается на запись журнала последнего списания (только заказы покупателей).
	StockLogID *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RecalculateTotals пересчитывает суммы позиции по цене и количеству.
func (i *OrderItem) RecalculateTotals() {
	qty := decimal.NewFromInt(i.Quantity)
	i.TotalPrice = i.Price.Mul(qty)
	i.TotalTax = i.Tax.Mul(qty)
}

// Order - заголовок заказа вместе с позициями.
type Order struct {
	ID          int64
	Kind        OrderKind
	OrderNumber string
	// CounterpartyID - customer_store_id для заказов покупателей и supplier_id для закупок.
	CounterpartyID int64
	Price          decimal.Decimal
	Tax            decimal.Decimal
	ShippingFee    decimal.Decimal
	Situation      Situation
	DeliveredAt    *time.Time
	CanceledAt     *time.Time
	Note           string
	CreatedBy      int64
	UpdatedBy      *int64
	DeletedBy      *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
	Items          []OrderItem
}

// Deleted сообщает, помечен ли заказ удалённым.
func (o *Order) Deleted() bool {
	return o.DeletedAt != nil
}

// OrderHeader - изменяемые поля заголовка, приходящие от клиента.
type OrderHeader struct {
	CounterpartyID int64
	Price          decimal.Decimal
	Tax            decimal.Decimal
	ShippingFee    decimal.Decimal
	Note           string
}

// ItemInput - позиция из запроса на создание или изменение заказа.
type ItemInput struct {
	ProductID int64
	Quantity  int64
	Price     decimal.Decimal
	Tax       decimal.Decimal
}

// ValidateHeader проверяет структурные инварианты заголовка.
func ValidateHeader(h OrderHeader) []error {
	var errs []error
	if h.CounterpartyID <= 0 {
		errs = append(errs, ErrCounterpartyRequired)
	}
	if h.Price.IsNegative() || h.Tax.IsNegative() || h.ShippingFee.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}
	return errs
}

// ValidateItems проверяет список позиций до открытия транзакции.
func ValidateItems(items []ItemInput) []error {
	if len(items) == 0 {
		return []error{ErrItemsRequired}
	}

	var errs []error
	for _, item := range items {
		if item.ProductID <= 0 {
			errs = append(errs, ErrItemProductRequired)
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.Price.IsNegative() || item.Tax.IsNegative() {
			errs = append(errs, ErrAmountNegative)
		}
	}
	return errs
}

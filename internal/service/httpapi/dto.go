package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

type itemRequest struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Tax       decimal.Decimal `json:"tax"`
}

// orderRequest - тело POST и PUT для обоих видов заказов. Items хранится сырым,
// чтобы отличить массив от одиночного объекта.
type orderRequest struct {
	CustomerStoreID int64           `json:"customer_store_id"`
	SupplierID      int64           `json:"supplier_id"`
	Price           decimal.Decimal `json:"price"`
	Tax             decimal.Decimal `json:"tax"`
	ShippingFee     decimal.Decimal `json:"shipping_fee"`
	Situation       string          `json:"situation"`
	Note            string          `json:"note"`
	Items           json.RawMessage `json:"items"`
}

type situationRequest struct {
	Situation string `json:"situation"`
}

func (req orderRequest) header(kind domain.OrderKind) domain.OrderHeader {
	h := domain.OrderHeader{
		CounterpartyID: req.CustomerStoreID,
		Price:          req.Price,
		Tax:            req.Tax,
		Note:           req.Note,
	}
	if kind == domain.OrderKindSupplier {
		h.CounterpartyID = req.SupplierID
		h.ShippingFee = req.ShippingFee
	}
	return h
}

func (req orderRequest) items() ([]domain.ItemInput, error) {
	raw := bytes.TrimSpace(req.Items)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, domain.ErrItemsRequired
	}
	if raw[0] != '[' {
		return nil, fmt.Errorf("%w: items must be a JSON array", domain.ErrValidation)
	}

	var items []itemRequest
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: invalid items: %v", domain.ErrValidation, err)
	}

	result := make([]domain.ItemInput, 0, len(items))
	for _, item := range items {
		result = append(result, domain.ItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Tax:       item.Tax,
		})
	}
	return result, nil
}

type itemResponse struct {
	ID         int64           `json:"id"`
	OrderID    int64           `json:"order_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Tax        decimal.Decimal `json:"tax"`
	TotalPrice decimal.Decimal `json:"total_price"`
	TotalTax   decimal.Decimal `json:"total_tax"`
	Status     string          `json:"status"`
	StockLogID *int64          `json:"stock_log_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type orderResponse struct {
	ID              int64            `json:"id"`
	OrderNumber     string           `json:"order_number"`
	CustomerStoreID *int64           `json:"customer_store_id,omitempty"`
	SupplierID      *int64           `json:"supplier_id,omitempty"`
	Price           decimal.Decimal  `json:"price"`
	Tax             decimal.Decimal  `json:"tax"`
	ShippingFee     *decimal.Decimal `json:"shipping_fee,omitempty"`
	Situation       string           `json:"situation"`
	DeliveredDate   *time.Time       `json:"delivered_date,omitempty"`
	CanceledDate    *time.Time       `json:"canceled_date,omitempty"`
	Note            string           `json:"note"`
	CreatedBy       int64            `json:"created_by"`
	UpdatedBy       *int64           `json:"updated_by,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Items           []itemResponse   `json:"items"`
}

func newOrderResponse(order domain.Order) orderResponse {
	resp := orderResponse{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		Price:         order.Price,
		Tax:           order.Tax,
		Situation:     string(order.Situation),
		DeliveredDate: order.DeliveredAt,
		CanceledDate:  order.CanceledAt,
		Note:          order.Note,
		CreatedBy:     order.CreatedBy,
		UpdatedBy:     order.UpdatedBy,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
		Items:         make([]itemResponse, 0, len(order.Items)),
	}

	counterparty := order.CounterpartyID
	if order.Kind == domain.OrderKindSupplier {
		fee := order.ShippingFee
		resp.SupplierID = &counterparty
		resp.ShippingFee = &fee
	} else {
		resp.CustomerStoreID = &counterparty
	}

	for _, item := range order.Items {
		resp.Items = append(resp.Items, itemResponse{
			ID:         item.ID,
			OrderID:    item.OrderID,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			Price:      item.Price,
			Tax:        item.Tax,
			TotalPrice: item.TotalPrice,
			TotalTax:   item.TotalTax,
			Status:     string(item.Status),
			StockLogID: item.StockLogID,
			CreatedAt:  item.CreatedAt,
			UpdatedAt:  item.UpdatedAt,
		})
	}
	return resp
}

type stockLogResponse struct {
	ID           int64     `json:"id"`
	ProductID    int64     `json:"product_id"`
	OrderKind    string    `json:"order_kind,omitempty"`
	OrderID      *int64    `json:"order_id,omitempty"`
	Quantity     int64     `json:"quantity"`
	CurrentStock int64     `json:"current_stock"`
	Reason       string    `json:"reason"`
	Note         string    `json:"note"`
	CreatedBy    int64     `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

func newStockLogResponses(entries []domain.StockLogEntry) []stockLogResponse {
	result := make([]stockLogResponse, 0, len(entries))
	for _, entry := range entries {
		resp := stockLogResponse{
			ID:           entry.ID,
			ProductID:    entry.ProductID,
			Quantity:     entry.Quantity,
			CurrentStock: entry.CurrentStock,
			Reason:       string(entry.Reason),
			Note:         entry.Note,
			CreatedBy:    entry.CreatedBy,
			CreatedAt:    entry.CreatedAt,
		}
		if entry.Order != nil {
			orderID := entry.Order.ID
			resp.OrderKind = string(entry.Order.Kind)
			resp.OrderID = &orderID
		}
		result = append(result, resp)
	}
	return result
}

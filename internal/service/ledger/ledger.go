// Package ledger применяет движения склада: меняет остаток товара и пишет
// неизменяемую запись журнала в транзакции вызывающего.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/backoffice/internal/metrics"
)

// Delta - одно знаковое изменение остатка товара.
type Delta struct {
	ProductID int64
	// Quantity отрицателен для списания и положителен для поступления.
	Quantity int64
	Reason   domain.StockReason
	Note     string
	Actor    int64
	Order    *domain.OrderRef
}

// Ledger - единственная точка изменения остатков.
type Ledger struct {
	logger  *log.Entry
	metrics *metrics.OrderMetrics
	now     func() time.Time
}

// Option настраивает Ledger.
type Option func(*Ledger)

// WithMetrics подключает prometheus-метрики.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New создаёт Ledger.
func New(logger *log.Entry, opts ...Option) *Ledger {
	if logger == nil {
		logger = log.New().WithField("component", "ledger")
	}
	l := &Ledger{
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Apply блокирует товар, проверяет, что остаток не уйдёт в минус, сохраняет
// новый остаток и добавляет запись журнала. При ошибке ничего не пишется:
// проверка выполняется до первой записи, а откат остального делает транзакция.
func (l *Ledger) Apply(ctx context.Context, tx domain.Tx, d Delta) (domain.StockLogEntry, error) {
	if d.Quantity == 0 {
		return domain.StockLogEntry{}, domain.ErrZeroDelta
	}

	product, err := tx.Products().Lock(ctx, d.ProductID)
	if err != nil {
		return domain.StockLogEntry{}, err
	}

	next := product.Stock + d.Quantity
	if next < 0 {
		l.metrics.RecordInsufficientStock()
		l.logger.WithFields(log.Fields{
			"product_id": d.ProductID,
			"available":  product.Stock,
			"requested":  -d.Quantity,
		}).Debug("stock debit rejected")
		return domain.StockLogEntry{}, &domain.InsufficientStockError{
			ProductID: d.ProductID,
			Available: product.Stock,
			Requested: -d.Quantity,
		}
	}

	if err := tx.Products().UpdateStock(ctx, d.ProductID, next); err != nil {
		return domain.StockLogEntry{}, err
	}

	entry := domain.StockLogEntry{
		ProductID:    d.ProductID,
		Order:        d.Order,
		Quantity:     d.Quantity,
		CurrentStock: next,
		Reason:       d.Reason,
		Note:         d.Note,
		CreatedBy:    d.Actor,
		CreatedAt:    l.now(),
	}
	if err := tx.StockLog().Append(ctx, &entry); err != nil {
		return domain.StockLogEntry{}, err
	}

	if err := l.enqueue(ctx, tx, entry); err != nil {
		return domain.StockLogEntry{}, err
	}

	l.metrics.RecordStockMovement(string(d.Reason))
	return entry, nil
}

func (l *Ledger) enqueue(ctx context.Context, tx domain.Tx, entry domain.StockLogEntry) error {
	event := kafka.NewStockChangedEvent(entry.ID, entry.ProductID, entry.Quantity, entry.CurrentStock, string(entry.Reason))
	event.Timestamp = entry.CreatedAt
	if entry.Order != nil {
		event.OrderKind = string(entry.Order.Kind)
		event.OrderID = entry.Order.ID
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal stock event: %w", err)
	}

	if _, err := tx.Outbox().Enqueue(ctx, domain.OutboxMessage{
		AggregateType: kafka.AggregateProduct,
		AggregateID:   strconv.FormatInt(entry.ProductID, 10),
		EventType:     string(kafka.EventTypeStockChanged),
		Payload:       payload,
		CreatedAt:     entry.CreatedAt,
	}); err != nil {
		return err
	}
	l.metrics.RecordOutboxEnqueued(string(kafka.EventTypeStockChanged))
	return nil
}

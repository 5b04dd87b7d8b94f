// Package orders реализует запись агрегата заказа: создание, изменение,
// смену статуса и удаление заказов покупателей и поставщиков. Каждая операция
// выполняется в одной транзакции вместе с движениями склада и событиями outbox.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/backoffice/internal/metrics"
	"github.com/vladislavdragonenkov/backoffice/internal/service/ledger"
	"github.com/vladislavdragonenkov/backoffice/internal/service/ordernumber"
)

// NumberGenerator выдаёт свободный номер заказа в рамках транзакции.
type NumberGenerator interface {
	Next(ctx context.Context, tx domain.Tx, kind domain.OrderKind) (string, error)
}

// StockLedger применяет движение склада в рамках транзакции.
type StockLedger interface {
	Apply(ctx context.Context, tx domain.Tx, d ledger.Delta) (domain.StockLogEntry, error)
}

// Service - координатор операций с заказами.
type Service struct {
	txm     domain.TxManager
	ledger  StockLedger
	numbers NumberGenerator
	logger  *log.Entry
	metrics *metrics.OrderMetrics
	now     func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithMetrics подключает prometheus-метрики.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock подменяет источник времени для аудита.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLedger заменяет журнал остатков.
func WithLedger(l StockLedger) Option {
	return func(s *Service) {
		if l != nil {
			s.ledger = l
		}
	}
}

// WithNumberGenerator заменяет генератор номеров.
func WithNumberGenerator(g NumberGenerator) Option {
	return func(s *Service) {
		if g != nil {
			s.numbers = g
		}
	}
}

// New создаёт сервис заказов поверх менеджера транзакций.
func New(txm domain.TxManager, logger *log.Entry, opts ...Option) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	s := &Service{
		txm:    txm,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ledger == nil {
		s.ledger = ledger.New(logger.WithField("component", "ledger"), ledger.WithMetrics(s.metrics))
	}
	if s.numbers == nil {
		s.numbers = ordernumber.New(logger.WithField("component", "order-number"), ordernumber.WithMetrics(s.metrics))
	}
	return s
}

// run выполняет fn в транзакции и снимает метрики операции.
func (s *Service) run(ctx context.Context, op string, fields log.Fields, fn func(ctx context.Context, tx domain.Tx) error) error {
	start := time.Now()
	s.metrics.OperationStarted()
	defer s.metrics.OperationFinished()

	err := s.txm.WithinTx(ctx, fn)

	category := domain.ErrorCategory(err)
	s.metrics.ObserveOperation(op, category, time.Since(start))

	entry := s.logger.WithFields(fields).WithField("operation", op)
	switch category {
	case "":
		entry.Debug("order operation committed")
	case "internal", "transaction":
		entry.WithError(err).Error("order operation failed")
	default:
		entry.WithError(err).WithField("category", category).Info("order operation rejected")
	}
	return err
}

func (s *Service) enqueueOrderEvent(ctx context.Context, tx domain.Tx, eventType kafka.EventType, order domain.Order, actor int64, previous domain.Situation, metadata map[string]interface{}) error {
	event := kafka.NewOrderEvent(eventType, string(order.Kind), order.ID, order.OrderNumber, string(order.Situation), metadata)
	event.CounterpartyID = order.CounterpartyID
	event.PreviousSituation = string(previous)
	event.ActorID = actor
	event.Timestamp = order.UpdatedAt

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	if _, err := tx.Outbox().Enqueue(ctx, domain.OutboxMessage{
		AggregateType: kafka.OrderAggregateType(string(order.Kind)),
		AggregateID:   strconv.FormatInt(order.ID, 10),
		EventType:     string(eventType),
		Payload:       payload,
	}); err != nil {
		return err
	}
	s.metrics.RecordOutboxEnqueued(string(eventType))
	return nil
}

func counterpartyNotFound(kind domain.OrderKind) error {
	if kind == domain.OrderKindSupplier {
		return domain.ErrSupplierNotFound
	}
	return domain.ErrCustomerStoreNotFound
}

func (s *Service) ensureCounterparty(ctx context.Context, tx domain.Tx, kind domain.OrderKind, id int64) error {
	ok, err := tx.Counterparties().Exists(ctx, kind, id)
	if err != nil {
		return err
	}
	if !ok {
		return counterpartyNotFound(kind)
	}
	return nil
}

func ensureKind(kind domain.OrderKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown order kind %q", domain.ErrValidation, kind)
	}
	return nil
}

func orderRef(order domain.Order) *domain.OrderRef {
	return &domain.OrderRef{Kind: order.Kind, ID: order.ID}
}

func operationName(action string, kind domain.OrderKind) string {
	return action + "_" + string(kind) + "_order"
}

func itemsMetadata(order domain.Order) map[string]interface{} {
	return map[string]interface{}{"items": len(order.Items)}
}

// lockProducts блокирует строки товаров по возрастанию id. Повторная блокировка
// строки в той же транзакции не ждёт, поэтому позиции затем обрабатываются в
// исходном порядке. Отсутствующий товар пропускается: ошибку вернёт обработка
// его позиции.
func lockProducts(ctx context.Context, tx domain.Tx, ids []int64) error {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	for _, id := range slices.Compact(sorted) {
		if _, err := tx.Products().Lock(ctx, id); err != nil && !errors.Is(err, domain.ErrProductNotFound) {
			return err
		}
	}
	return nil
}

func inputProductIDs(items []domain.ItemInput) []int64 {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

func orderProductIDs(items []domain.OrderItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

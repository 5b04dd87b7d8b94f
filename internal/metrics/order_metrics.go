package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики операций с заказами и складом.
// Все методы безопасны для nil-получателя.
type OrderMetrics struct {
	ordersCreated    *prometheus.CounterVec
	ordersUpdated    *prometheus.CounterVec
	situationChanges *prometheus.CounterVec
	ordersDeleted    *prometheus.CounterVec
	operationErrors  *prometheus.CounterVec

	operationDuration *prometheus.HistogramVec

	stockMovements    *prometheus.CounterVec
	insufficientStock prometheus.Counter

	orderNumberAttempts  prometheus.Histogram
	orderNumberExhausted prometheus.Counter

	outboxEnqueued *prometheus.CounterVec

	inFlight prometheus.Gauge
}

// NewOrderMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном registerer.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "backoffice_orders_created_total",
			Help: "Total number of orders created",
		}, []string{"kind"}),
		ordersUpdated: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "backoffice_orders_updated_total",
			Help: "Total number of order updates committed",
		}, []string{"kind"}),
		situationChanges: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "backoffice_order_situation_changes_total",
			Help: "Total number of committed order situation transitions",
		}, []string{"kind", "to"}),
		ordersDeleted: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "backoffice_orders_deleted_total",
			Help: "Total number of deleted orders",
		}, []string{"kind", "mode"}),
		operationErrors: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "backoffice_order_operation_errors_total",
			Help: "Total number of failed order operations by error category",
		}, []string{"operation", "category"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "backoffice_order_operation_duration_seconds",
			Help:    "Duration of order operations including the transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		stockMovements: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "backoffice_stock_movements_total",
			Help: "Total number of stock ledger entries written",
		}, []string{"reason"}),
		insufficientStock: registerCounter(registerer, prometheus.CounterOpts{
			Name: "backoffice_stock_insufficient_total",
			Help: "Total number of rejected debits because of insufficient stock",
		}),
		orderNumberAttempts: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "backoffice_order_number_attempts",
			Help:    "Number of candidates tried before a free order number was found",
			Buckets: []float64{1, 2, 3, 5, 8, 10},
		}),
		orderNumberExhausted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "backoffice_order_number_exhausted_total",
			Help: "Total number of order number generations that ran out of attempts",
		}),
		outboxEnqueued: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "backoffice_outbox_enqueued_total",
			Help: "Total number of events written to the transactional outbox",
		}, []string{"event_type"}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "backoffice_order_operations_in_flight",
			Help: "Number of order operations currently holding a transaction",
		}),
	}
}

// ObserveOperation фиксирует длительность операции и, при ошибке, её категорию.
// Пустая category означает успешное выполнение.
func (m *OrderMetrics) ObserveOperation(operation, category string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if category != "" {
		m.operationErrors.WithLabelValues(operation, category).Inc()
	}
}

// OperationStarted увеличивает число операций в работе.
func (m *OrderMetrics) OperationStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// OperationFinished уменьшает число операций в работе.
func (m *OrderMetrics) OperationFinished() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}

func (m *OrderMetrics) RecordOrderCreated(kind string) {
	if m == nil {
		return
	}
	m.ordersCreated.WithLabelValues(kind).Inc()
}

func (m *OrderMetrics) RecordOrderUpdated(kind string) {
	if m == nil {
		return
	}
	m.ordersUpdated.WithLabelValues(kind).Inc()
}

func (m *OrderMetrics) RecordSituationChange(kind, to string) {
	if m == nil {
		return
	}
	m.situationChanges.WithLabelValues(kind, to).Inc()
}

// RecordOrderDeleted считает удаления; mode - soft или hard.
func (m *OrderMetrics) RecordOrderDeleted(kind, mode string) {
	if m == nil {
		return
	}
	m.ordersDeleted.WithLabelValues(kind, mode).Inc()
}

func (m *OrderMetrics) RecordStockMovement(reason string) {
	if m == nil {
		return
	}
	m.stockMovements.WithLabelValues(reason).Inc()
}

func (m *OrderMetrics) RecordInsufficientStock() {
	if m == nil {
		return
	}
	m.insufficientStock.Inc()
}

// RecordOrderNumberAttempts записывает число опробованных кандидатов.
func (m *OrderMetrics) RecordOrderNumberAttempts(attempts int) {
	if m == nil {
		return
	}
	m.orderNumberAttempts.Observe(float64(attempts))
}

func (m *OrderMetrics) RecordOrderNumberExhausted() {
	if m == nil {
		return
	}
	m.orderNumberExhausted.Inc()
}

func (m *OrderMetrics) RecordOutboxEnqueued(eventType string) {
	if m == nil {
		return
	}
	m.outboxEnqueued.WithLabelValues(eventType).Inc()
}

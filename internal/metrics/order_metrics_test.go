package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func TestNewOrderMetricsWithRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetricsWithRegisterer(reg)

	if m.ordersCreated == nil || m.operationDuration == nil || m.inFlight == nil {
		t.Fatal("collectors should be initialized")
	}

	m.RecordOrderCreated("customer")
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := false
	for _, family := range families {
		if family.GetName() == "backoffice_orders_created_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected backoffice_orders_created_total to be registered")
	}
}

func TestNewOrderMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewOrderMetricsWithRegisterer(reg)
	second := NewOrderMetricsWithRegisterer(reg)

	first.RecordInsufficientStock()
	second.RecordInsufficientStock()

	if got := counterValue(t, first.insufficientStock); got != 2.0 {
		t.Errorf("expected shared counter value 2.0, got %f", got)
	}
}

func TestObserveOperation(t *testing.T) {
	m := NewOrderMetricsWithRegisterer(prometheus.NewRegistry())

	m.ObserveOperation("create_customer_order", "", 10*time.Millisecond)
	m.ObserveOperation("create_customer_order", "insufficient_stock", 20*time.Millisecond)

	metric := &dto.Metric{}
	observer := m.operationDuration.WithLabelValues("create_customer_order")
	if err := observer.(prometheus.Histogram).Write(metric); err != nil {
		t.Fatalf("failed to write histogram: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 2 {
		t.Errorf("expected 2 samples, got %d", metric.Histogram.GetSampleCount())
	}

	errorsCounter := m.operationErrors.WithLabelValues("create_customer_order", "insufficient_stock")
	if got := counterValue(t, errorsCounter); got != 1.0 {
		t.Errorf("expected 1 error, got %f", got)
	}
}

func TestInFlightGauge(t *testing.T) {
	m := NewOrderMetricsWithRegisterer(prometheus.NewRegistry())

	m.OperationStarted()
	m.OperationStarted()
	m.OperationFinished()

	metric := &dto.Metric{}
	if err := m.inFlight.Write(metric); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}
	if metric.Gauge.GetValue() != 1.0 {
		t.Errorf("expected 1 operation in flight, got %f", metric.Gauge.GetValue())
	}
}

func TestLabeledCounters(t *testing.T) {
	m := NewOrderMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordStockMovement("customer_order")
	m.RecordStockMovement("customer_order")
	m.RecordSituationChange("supplier", "delivered")
	m.RecordOrderDeleted("customer", "soft")
	m.RecordOutboxEnqueued("stock.changed")
	m.RecordOrderUpdated("supplier")

	if got := counterValue(t, m.stockMovements.WithLabelValues("customer_order")); got != 2.0 {
		t.Errorf("expected 2 stock movements, got %f", got)
	}
	if got := counterValue(t, m.situationChanges.WithLabelValues("supplier", "delivered")); got != 1.0 {
		t.Errorf("expected 1 situation change, got %f", got)
	}
	if got := counterValue(t, m.ordersDeleted.WithLabelValues("customer", "soft")); got != 1.0 {
		t.Errorf("expected 1 soft delete, got %f", got)
	}
	if got := counterValue(t, m.outboxEnqueued.WithLabelValues("stock.changed")); got != 1.0 {
		t.Errorf("expected 1 outbox event, got %f", got)
	}
	if got := counterValue(t, m.ordersUpdated.WithLabelValues("supplier")); got != 1.0 {
		t.Errorf("expected 1 update, got %f", got)
	}
}

func TestOrderNumberMetrics(t *testing.T) {
	m := NewOrderMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordOrderNumberAttempts(1)
	m.RecordOrderNumberAttempts(3)
	m.RecordOrderNumberExhausted()

	metric := &dto.Metric{}
	if err := m.orderNumberAttempts.Write(metric); err != nil {
		t.Fatalf("failed to write histogram: %v", err)
	}
	if metric.Histogram.GetSampleSum() != 4 {
		t.Errorf("expected attempts sum 4, got %f", metric.Histogram.GetSampleSum())
	}
	if got := counterValue(t, m.orderNumberExhausted); got != 1.0 {
		t.Errorf("expected 1 exhaustion, got %f", got)
	}
}

func TestNilOrderMetrics(t *testing.T) {
	var m *OrderMetrics

	m.ObserveOperation("op", "validation", time.Millisecond)
	m.OperationStarted()
	m.OperationFinished()
	m.RecordOrderCreated("customer")
	m.RecordOrderUpdated("customer")
	m.RecordSituationChange("customer", "canceled")
	m.RecordOrderDeleted("customer", "hard")
	m.RecordStockMovement("customer_order")
	m.RecordInsufficientStock()
	m.RecordOrderNumberAttempts(1)
	m.RecordOrderNumberExhausted()
	m.RecordOutboxEnqueued("order.created")
}

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestProducer_Send(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerWithSyncProducer(mockProducer, log.WithField("component", "kafka-producer-test"))

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		require.Equal(t, TopicBackofficeEvents, msg.Topic)
		key, err := msg.Key.Encode()
		require.NoError(t, err)
		require.Equal(t, "product:42", string(key))
		require.Len(t, msg.Headers, 1)
		require.Equal(t, HeaderEventType, string(msg.Headers[0].Key))
		return nil
	})

	err := producer.Send(context.Background(), Message{
		Topic:   TopicBackofficeEvents,
		Key:     "product:42",
		Value:   []byte(`{"quantity":-3}`),
		Headers: map[string]string{HeaderEventType: string(EventTypeStockChanged)},
	})
	require.NoError(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestProducer_SendErrors(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerWithSyncProducer(mockProducer, nil)

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	err := producer.Send(context.Background(), Message{Topic: TopicBackofficeEvents, Key: "customer_order:1"})
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	require.ErrorContains(t, producer.Send(context.Background(), Message{Key: "k"}), "topic is empty")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, producer.Send(ctx, Message{Topic: TopicBackofficeEvents}), context.Canceled)

	require.NoError(t, mockProducer.Close())
}

func TestNewSaramaConfig(t *testing.T) {
	config := newSaramaConfig(ProducerConfig{Timeout: 3 * time.Second})
	require.Equal(t, defaultClientID, config.ClientID)
	require.Equal(t, sarama.WaitForAll, config.Producer.RequiredAcks)
	require.True(t, config.Producer.Idempotent)
	require.True(t, config.Producer.Return.Successes)
	require.Equal(t, 3*time.Second, config.Producer.Timeout)
	require.NoError(t, config.Validate())

	config = newSaramaConfig(ProducerConfig{ClientID: "backoffice-test"})
	require.Equal(t, "backoffice-test", config.ClientID)
}

func TestNewProducerWithoutBrokers(t *testing.T) {
	_, err := NewProducer(ProducerConfig{})
	require.Error(t, err)
}

func TestNewStockChangedEvent(t *testing.T) {
	event := NewStockChangedEvent(10, 42, -3, 7, "customer_order")

	if event.EventType != EventTypeStockChanged {
		t.Errorf("expected event type %s, got %s", EventTypeStockChanged, event.EventType)
	}
	if event.ProductID != 42 || event.Quantity != -3 || event.CurrentStock != 7 {
		t.Errorf("unexpected event: %+v", event)
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}

	raw, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["order_id"]; ok {
		t.Error("order_id should be omitted for manual adjustments")
	}
}

func TestNewOrderEvent(t *testing.T) {
	metadata := map[string]interface{}{"items": 2}

	event := NewOrderEvent(EventTypeOrderSituationChanged, "supplier", 5, "SO-20260101-ABCDEF01", "delivered", metadata)

	if event.EventType != EventTypeOrderSituationChanged {
		t.Errorf("expected event type %s, got %s", EventTypeOrderSituationChanged, event.EventType)
	}
	if event.OrderKind != "supplier" || event.OrderID != 5 {
		t.Errorf("unexpected order reference: %+v", event)
	}
	if event.Situation != "delivered" {
		t.Errorf("expected situation delivered, got %s", event.Situation)
	}
	if event.Metadata["items"] != 2 {
		t.Error("metadata not set correctly")
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}
}

func TestOrderAggregateType(t *testing.T) {
	if got := OrderAggregateType("supplier"); got != AggregateSupplierOrder {
		t.Errorf("expected %s, got %s", AggregateSupplierOrder, got)
	}
	if got := OrderAggregateType("customer"); got != AggregateCustomerOrder {
		t.Errorf("expected %s, got %s", AggregateCustomerOrder, got)
	}
}

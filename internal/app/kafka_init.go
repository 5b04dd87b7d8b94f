package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/messaging/kafka"
)

// initKafkaProducer инициализирует Kafka producer если brokers не пустой.
// Возвращает nil, nil если brokers пустой.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	brokerList := splitBrokers(brokers)
	if len(brokerList) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: brokerList, ClientID: "backoffice"})
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// outboxPublishers выбирает, куда worker отправляет события: в Kafka или,
// если producer не создан, в лог.
func outboxPublishers(producer *kafka.Producer, cfg Config, logger *log.Entry) (publisher, dlq domain.OutboxPublisher) {
	if producer == nil {
		logger.Info("kafka is not configured, outbox events will be logged")
		return kafka.NewLogPublisher(logger.WithField("component", "outbox-log-publisher")), nil
	}

	publisher = kafka.NewOutboxPublisher(producer, cfg.KafkaTopic)
	if cfg.KafkaDLQTopic != "" {
		dlq = kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic)
	}
	return publisher, dlq
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

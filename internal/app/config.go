package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	PostgresMaxConns    int
	// MemorySeedDemo заполняет in-memory каталог демонстрационными магазином, поставщиком и товарами.
	MemorySeedDemo bool

	RedisAddr                 string
	OrderNumberReservationTTL time.Duration
	OrderNumberMaxAttempts    int

	KafkaBrokers  string
	KafkaTopic    string
	KafkaDLQTopic string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	APITokens      string
	RequestTimeout time.Duration
	LogLevel       string
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		PostgresMaxConns:    25,

		OrderNumberReservationTTL: 5 * time.Minute,
		OrderNumberMaxAttempts:    10,

		KafkaTopic:    "backoffice.events",
		KafkaDLQTopic: "backoffice.events.dlq",

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,

		RequestTimeout: 15 * time.Second,
		LogLevel:       "info",
	}
}

// LoadConfig читает переменные окружения поверх DefaultConfig.
// Перед этим подгружаются envFiles (по умолчанию .env); отсутствующие файлы пропускаются,
// а уже заданные переменные окружения не перезаписываются.
func LoadConfig(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg := DefaultConfig()
	var errs []error

	setString(&cfg.HTTPAddr, "BACKOFFICE_HTTP_ADDR")
	setString(&cfg.GRPCAddr, "BACKOFFICE_GRPC_ADDR")
	setString(&cfg.MetricsAddr, "BACKOFFICE_METRICS_ADDR")
	setString(&cfg.StorageDriver, "BACKOFFICE_STORAGE_DRIVER")
	setString(&cfg.PostgresDSN, "BACKOFFICE_POSTGRES_DSN")
	setString(&cfg.RedisAddr, "BACKOFFICE_REDIS_ADDR")
	setString(&cfg.KafkaBrokers, "KAFKA_BROKERS")
	setString(&cfg.KafkaTopic, "BACKOFFICE_KAFKA_TOPIC")
	setString(&cfg.KafkaDLQTopic, "BACKOFFICE_KAFKA_DLQ_TOPIC")
	setString(&cfg.APITokens, "BACKOFFICE_API_TOKENS")
	setString(&cfg.LogLevel, "BACKOFFICE_LOG_LEVEL")

	errs = append(errs,
		setBool(&cfg.PostgresAutoMigrate, "BACKOFFICE_POSTGRES_AUTO_MIGRATE"),
		setBool(&cfg.MemorySeedDemo, "BACKOFFICE_MEMORY_SEED_DEMO"),
		setDuration(&cfg.OrderNumberReservationTTL, "BACKOFFICE_ORDER_NUMBER_RESERVATION_TTL"),
		setInt(&cfg.PostgresMaxConns, "BACKOFFICE_POSTGRES_MAX_CONNS"),
		setInt(&cfg.OrderNumberMaxAttempts, "BACKOFFICE_ORDER_NUMBER_MAX_ATTEMPTS"),
		setDuration(&cfg.OutboxPollInterval, "BACKOFFICE_OUTBOX_POLL_INTERVAL"),
		setInt(&cfg.OutboxBatchSize, "BACKOFFICE_OUTBOX_BATCH_SIZE"),
		setInt(&cfg.OutboxMaxAttempts, "BACKOFFICE_OUTBOX_MAX_ATTEMPTS"),
		setDuration(&cfg.OutboxRetryDelay, "BACKOFFICE_OUTBOX_RETRY_DELAY"),
		setDuration(&cfg.RequestTimeout, "BACKOFFICE_REQUEST_TIMEOUT"),
	)

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("BACKOFFICE_POSTGRES_DSN is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	if c.OrderNumberMaxAttempts <= 0 {
		errs = append(errs, errors.New("order number max attempts must be positive"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level: %w", err))
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

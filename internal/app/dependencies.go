package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/health"
	"github.com/vladislavdragonenkov/backoffice/internal/storage/memory"
	"github.com/vladislavdragonenkov/backoffice/internal/storage/postgres"
)

const redisPingTimeout = 2 * time.Second

// runtimeDependencies содержит хранилище, выбранное конфигурацией.
type runtimeDependencies struct {
	txm        domain.TxManager
	outboxRepo domain.OutboxRepository
	storage    health.Pinger
	closeFn    func() error
}

type storageBackend interface {
	domain.TxManager
	domain.OutboxRepository
	health.Pinger
}

// initRuntimeDependencies открывает хранилище и при необходимости применяет миграции.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	var (
		backend storageBackend
		closeFn func() error
	)

	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		store := memory.NewStore()
		if cfg.MemorySeedDemo {
			seedDemoCatalog(store)
			logger.Info("memory storage seeded with demo catalog")
		}
		backend = store
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres dsn is required for postgres storage driver")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN,
			postgres.WithMaxConns(cfg.PostgresMaxConns),
			postgres.WithLogger(logger.WithField("component", "postgres")),
		)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
			state, err := store.MigrationStatus(ctx)
			if err == nil {
				logger.WithFields(log.Fields{"version": state.Current, "applied": state.Applied}).Info("postgres migrations are up to date")
			}
		} else if state, err := store.MigrationStatus(ctx); err == nil && !state.UpToDate() {
			logger.WithField("pending", state.Pending).Warn("postgres schema has pending migrations, run cmd/migrate")
		}
		backend = store
		closeFn = store.Close
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	logger.WithField("driver", cfg.StorageDriver).Info("storage initialized")
	return &runtimeDependencies{
		txm:        backend,
		outboxRepo: backend,
		storage:    backend,
		closeFn:    closeFn,
	}, nil
}

func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil || d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}

func seedDemoCatalog(store *memory.Store) {
	store.SeedCustomerStore(1)
	store.SeedSupplier(1)
	for id, name := range map[int64]string{1: "demo product A", 2: "demo product B", 3: "demo product C"} {
		store.SeedProduct(domain.Product{ID: id, Name: name, Stock: 100})
	}
}

// redisPinger адаптирует клиент Redis к health.Pinger.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// initRedis подключает Redis для резервирования номеров заказов.
// Недоступный Redis не мешает запуску: номера проверяются только по базе.
func initRedis(ctx context.Context, addr string, logger *log.Entry) *redis.Client {
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.WithError(err).WithField("addr", addr).Warn("redis is unavailable, order number reservation is degraded")
	} else {
		logger.WithField("addr", addr).Info("redis connected")
	}
	return client
}

func closeRedis(client *redis.Client, logger *log.Entry) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		logger.WithError(err).Warn("failed to close redis client")
	}
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
)

// opTimeout ограничивает запросы вне бизнес-транзакций (outbox, health, миграции).
const opTimeout = 5 * time.Second

// PoolConfig задаёт лимиты пула database/sql.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func defaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    25,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// Option настраивает Store при открытии.
type Option func(*storeOptions)

type storeOptions struct {
	pool   PoolConfig
	logger *log.Entry
}

// WithMaxConns ограничивает число открытых соединений; idle-лимит не превышает его.
// Каждая бизнес-транзакция держит одно соединение до commit.
func WithMaxConns(n int) Option {
	return func(o *storeOptions) {
		if n <= 0 {
			return
		}
		o.pool.MaxOpenConns = n
		if o.pool.MaxIdleConns > n {
			o.pool.MaxIdleConns = n
		}
	}
}

// WithLogger задаёт логгер для миграций и фоновых операций хранилища.
func WithLogger(logger *log.Entry) Option {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Store владеет пулом соединений PostgreSQL и реализует domain.TxManager.
type Store struct {
	db     *sql.DB
	pool   PoolConfig
	logger *log.Entry
}

// Open открывает пул через pgx stdlib и проверяет доступность базы.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	o := storeOptions{
		pool:   defaultPoolConfig(),
		logger: log.WithField("component", "postgres"),
	}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(o.pool.MaxOpenConns)
	db.SetMaxIdleConns(o.pool.MaxIdleConns)
	db.SetConnMaxLifetime(o.pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(o.pool.ConnMaxIdleTime)

	store := &Store{db: db, pool: o.pool, logger: o.logger}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	o.logger.WithField("max_open_conns", o.pool.MaxOpenConns).Debug("postgres pool opened")
	return store, nil
}

// DB возвращает пул для тестов и низкоуровневых операций.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Pool возвращает применённые лимиты пула.
func (s *Store) Pool() PoolConfig {
	return s.pool
}

// Ping проверяет доступность базы; используется readiness-проверкой.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

package ordernumber

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

const (
	defaultReservationTTL = 5 * time.Minute
	reservationKeyPrefix  = "backoffice:order-number"
)

type setNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisReserver резервирует номера через SETNX с TTL: два процесса не могут
// одновременно выдать один и тот же кандидат.
type RedisReserver struct {
	rdb setNXer
	ttl time.Duration
}

// NewRedisReserver создаёт резерватор; ttl <= 0 заменяется значением по умолчанию.
func NewRedisReserver(rdb *redis.Client, ttl time.Duration) *RedisReserver {
	return newRedisReserver(rdb, ttl)
}

func newRedisReserver(rdb setNXer, ttl time.Duration) *RedisReserver {
	if ttl <= 0 {
		ttl = defaultReservationTTL
	}
	return &RedisReserver{rdb: rdb, ttl: ttl}
}

// Key возвращает ключ резервирования номера.
func (r *RedisReserver) Key(kind domain.OrderKind, number string) string {
	return fmt.Sprintf("%s:%s:%s", reservationKeyPrefix, kind, number)
}

func (r *RedisReserver) Reserve(ctx context.Context, kind domain.OrderKind, number string) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, r.Key(kind, number), "1", r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve order number: %w", err)
	}
	return ok, nil
}

var _ Reserver = (*RedisReserver)(nil)

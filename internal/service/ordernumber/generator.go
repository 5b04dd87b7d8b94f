// Package ordernumber подбирает человекочитаемые номера заказов.
package ordernumber

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/metrics"
)

// DefaultMaxAttempts ограничивает число кандидатов на один заказ.
const DefaultMaxAttempts = 10

// Reserver закрепляет кандидат за процессом до вставки заказа.
// false без ошибки означает, что номер уже занят кем-то другим.
type Reserver interface {
	Reserve(ctx context.Context, kind domain.OrderKind, number string) (bool, error)
}

// Generator формирует номера вида CO-20260102-1A2B3C4D и проверяет их
// уникальность среди неудалённых заказов в текущей транзакции.
type Generator struct {
	maxAttempts int
	now         func() time.Time
	suffix      func() string
	reserver    Reserver
	metrics     *metrics.OrderMetrics
	logger      *log.Entry
}

// Option настраивает Generator.
type Option func(*Generator)

// WithMaxAttempts задаёт предел попыток; значения <= 0 игнорируются.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithClock подменяет источник даты в номере.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithSuffixSource подменяет генератор случайной части номера.
func WithSuffixSource(suffix func() string) Option {
	return func(g *Generator) {
		if suffix != nil {
			g.suffix = suffix
		}
	}
}

// WithReserver подключает межпроцессное резервирование номеров.
func WithReserver(r Reserver) Option {
	return func(g *Generator) {
		g.reserver = r
	}
}

// WithMetrics подключает метрики попыток.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

// New создаёт генератор номеров.
func New(logger *log.Entry, opts ...Option) *Generator {
	if logger == nil {
		logger = log.New().WithField("component", "order-number")
	}
	g := &Generator{
		maxAttempts: DefaultMaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
		suffix:      randomSuffix,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next возвращает свободный номер или ErrOrderNumberExhausted после maxAttempts коллизий.
func (g *Generator) Next(ctx context.Context, tx domain.Tx, kind domain.OrderKind) (string, error) {
	date := g.now().Format("20060102")

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate := fmt.Sprintf("%s-%s-%s", kind.OrderNumberPrefix(), date, g.suffix())

		exists, err := tx.Orders().OrderNumberExists(ctx, kind, candidate)
		if err != nil {
			return "", err
		}
		if exists {
			g.logger.WithFields(log.Fields{"candidate": candidate, "attempt": attempt}).Debug("order number collision")
			continue
		}

		if g.reserver != nil {
			reserved, err := g.reserver.Reserve(ctx, kind, candidate)
			if err != nil {
				// Уникальный индекс в БД остаётся последней защитой.
				g.logger.WithError(err).Warn("order number reservation unavailable")
			} else if !reserved {
				continue
			}
		}

		g.metrics.RecordOrderNumberAttempts(attempt)
		return candidate, nil
	}

	g.metrics.RecordOrderNumberExhausted()
	return "", fmt.Errorf("%w: %d attempts for %s order", domain.ErrOrderNumberExhausted, g.maxAttempts, kind)
}

func randomSuffix() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:8])
}

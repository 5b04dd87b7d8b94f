package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// WithinTx открывает транзакцию READ COMMITTED, передаёт её в fn и фиксирует,
// если fn вернула nil. Строки, которые меняются конкурентно (товары, заголовки
// заказов), репозитории читают через SELECT ... FOR UPDATE.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) (err error) {
	if s == nil || s.db == nil {
		return fmt.Errorf("%w: postgres store is not initialized", domain.ErrTransaction)
	}

	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin: %w", domain.ErrTransaction, err)
	}

	defer func() {
		if r := recover(); r != nil {
			if rbErr := rollback(sqlTx); rbErr != nil {
				logrus.WithError(rbErr).Error("postgres rollback failed after panic")
			}
			panic(r)
		}
		if err == nil {
			return
		}
		if rbErr := rollback(sqlTx); rbErr != nil {
			logrus.WithError(rbErr).WithField("cause", err.Error()).Error("postgres rollback failed")
			// Исходная ошибка теряет категорию: клиент получает внутреннюю ошибку.
			err = fmt.Errorf("%w: rollback: %v (cause: %v)", domain.ErrTransaction, rbErr, err)
		}
	}()

	if err = fn(ctx, &pgTx{tx: sqlTx}); err != nil {
		return err
	}

	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", domain.ErrTransaction, err)
	}
	return nil
}

// rollback откатывает транзакцию; уже завершённая транзакция ошибкой не считается.
func rollback(tx *sql.Tx) error {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) Orders() domain.OrderRepository {
	return &orderRepository{tx: t.tx}
}

func (t *pgTx) Products() domain.ProductRepository {
	return &productRepository{tx: t.tx}
}

func (t *pgTx) Counterparties() domain.CounterpartyRepository {
	return &counterpartyRepository{tx: t.tx}
}

func (t *pgTx) StockLog() domain.StockLogRepository {
	return &stockLogRepository{tx: t.tx}
}

func (t *pgTx) Outbox() domain.OutboxWriter {
	return &outboxWriter{tx: t.tx}
}

var (
	_ domain.TxManager = (*Store)(nil)
	_ domain.Tx        = (*pgTx)(nil)
)

package orders

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// DefaultStockLogLimit - размер выборки журнала, если клиент не указал limit.
const DefaultStockLogLimit = 50

// MaxStockLogLimit ограничивает выборку журнала сверху.
const MaxStockLogLimit = 500

// GetOrder возвращает заказ с позициями. Мягко удалённые заказы не видны.
func (s *Service) GetOrder(ctx context.Context, kind domain.OrderKind, id int64) (domain.Order, error) {
	if err := ensureKind(kind); err != nil {
		return domain.Order{}, err
	}

	var order domain.Order
	err := s.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		order, err = tx.Orders().Get(ctx, kind, id)
		if err != nil {
			return err
		}
		if order.Deleted() {
			return domain.ErrOrderNotFound
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// ListProductStockLogs возвращает последние записи журнала товара, новые первыми.
func (s *Service) ListProductStockLogs(ctx context.Context, productID int64, limit int) ([]domain.StockLogEntry, error) {
	switch {
	case limit <= 0:
		limit = DefaultStockLogLimit
	case limit > MaxStockLogLimit:
		limit = MaxStockLogLimit
	}

	var entries []domain.StockLogEntry
	err := s.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		exists, err := tx.Products().Exists(ctx, productID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrProductNotFound
		}
		entries, err = tx.StockLog().ListByProduct(ctx, productID, limit)
		return err
	})
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{"product_id": productID}).Debug("list stock logs failed")
		return nil, err
	}
	return entries, nil
}

// ListOrderStockLogs возвращает все записи журнала, созданные заказом, в порядке записи.
func (s *Service) ListOrderStockLogs(ctx context.Context, kind domain.OrderKind, id int64) ([]domain.StockLogEntry, error) {
	if err := ensureKind(kind); err != nil {
		return nil, err
	}

	var entries []domain.StockLogEntry
	err := s.txm.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		order, err := tx.Orders().Get(ctx, kind, id)
		if err != nil {
			return err
		}
		if order.Deleted() {
			return domain.ErrOrderNotFound
		}
		entries, err = tx.StockLog().ListByOrder(ctx, domain.OrderRef{Kind: kind, ID: id})
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

package orders

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/backoffice/internal/service/ledger"
)

// UpdateInput - новые значения заголовка и позиции, которые нужно обновить или добавить.
// Позиции, не упомянутые в Items, остаются без изменений.
type UpdateInput struct {
	ID     int64
	Header domain.OrderHeader
	Items  []domain.ItemInput
	Actor  int64
}

// UpdateCustomerOrder пересчитывает позиции заказа покупателя: для существующей
// позиции сначала возвращает прежнее количество на склад, затем списывает новое.
func (s *Service) UpdateCustomerOrder(ctx context.Context, in UpdateInput) (domain.Order, error) {
	return s.update(ctx, domain.OrderKindCustomer, in)
}

// UpdateSupplierOrder обновляет закупку без движения склада.
func (s *Service) UpdateSupplierOrder(ctx context.Context, in UpdateInput) (domain.Order, error) {
	return s.update(ctx, domain.OrderKindSupplier, in)
}

func (s *Service) update(ctx context.Context, kind domain.OrderKind, in UpdateInput) (domain.Order, error) {
	if err := validateInput(in.Header, in.Items); err != nil {
		return domain.Order{}, err
	}

	var updated domain.Order
	fields := log.Fields{"kind": kind, "order_id": in.ID, "actor_id": in.Actor, "items": len(in.Items)}

	err := s.run(ctx, operationName("update", kind), fields, func(ctx context.Context, tx domain.Tx) error {
		order, err := tx.Orders().Lock(ctx, kind, in.ID)
		if err != nil {
			return err
		}
		if order.Deleted() {
			return domain.ErrOrderNotFound
		}
		if order.Situation != domain.SituationProcess {
			return domain.ErrOrderNotInProcess
		}
		if err := lockProducts(ctx, tx, inputProductIDs(in.Items)); err != nil {
			return err
		}

		if err := s.ensureCounterparty(ctx, tx, kind, in.Header.CounterpartyID); err != nil {
			return err
		}

		now := s.now()
		for _, input := range in.Items {
			if err := s.upsertItem(ctx, tx, order, input, in.Actor, now); err != nil {
				return err
			}
		}

		order.CounterpartyID = in.Header.CounterpartyID
		order.Price = in.Header.Price
		order.Tax = in.Header.Tax
		order.ShippingFee = in.Header.ShippingFee
		order.Note = in.Header.Note
		order.UpdatedBy = &in.Actor
		order.UpdatedAt = now
		if err := tx.Orders().UpdateHeader(ctx, &order); err != nil {
			return err
		}

		fresh, err := tx.Orders().Get(ctx, kind, order.ID)
		if err != nil {
			return err
		}

		if err := s.enqueueOrderEvent(ctx, tx, kafka.EventTypeOrderUpdated, fresh, in.Actor, "", itemsMetadata(fresh)); err != nil {
			return err
		}

		updated = fresh
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.metrics.RecordOrderUpdated(string(kind))
	return updated, nil
}

// upsertItem обновляет первую позицию с тем же товаром или добавляет новую.
func (s *Service) upsertItem(ctx context.Context, tx domain.Tx, order domain.Order, input domain.ItemInput, actor int64, now time.Time) error {
	existing, found, err := tx.Orders().FindItem(ctx, order.Kind, order.ID, input.ProductID)
	if err != nil {
		return err
	}
	if !found {
		_, err := s.addItem(ctx, tx, order, input, domain.StockReasonCustomerUpdate, actor, now)
		return err
	}

	if order.Kind == domain.OrderKindCustomer {
		if _, err := s.ledger.Apply(ctx, tx, ledger.Delta{
			ProductID: existing.ProductID,
			Quantity:  existing.Quantity,
			Reason:    domain.StockReasonCustomerUpdateReverse,
			Note:      order.OrderNumber,
			Actor:     actor,
			Order:     orderRef(order),
		}); err != nil {
			return err
		}
		entry, err := s.ledger.Apply(ctx, tx, ledger.Delta{
			ProductID: input.ProductID,
			Quantity:  -input.Quantity,
			Reason:    domain.StockReasonCustomerUpdate,
			Note:      order.OrderNumber,
			Actor:     actor,
			Order:     orderRef(order),
		})
		if err != nil {
			return err
		}
		existing.StockLogID = &entry.ID
	} else if _, err := tx.Products().Lock(ctx, input.ProductID); err != nil {
		return err
	}

	existing.Quantity = input.Quantity
	existing.Price = input.Price
	existing.Tax = input.Tax
	existing.RecalculateTotals()
	existing.UpdatedAt = now
	return tx.Orders().UpdateItem(ctx, order.Kind, &existing)
}

package orders

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/backoffice/internal/service/ledger"
)

// ChangeSituationInput - запрос на смену статуса заказа.
type ChangeSituationInput struct {
	Kind      domain.OrderKind
	ID        int64
	Situation domain.Situation
	Actor     int64
}

// ChangeSituation применяет переход из таблицы переходов вместе с его
// складскими эффектами. Заголовок заказа заблокирован до конца транзакции,
// поэтому доставка зачисляет остаток ровно один раз.
func (s *Service) ChangeSituation(ctx context.Context, in ChangeSituationInput) (domain.Order, error) {
	if err := ensureKind(in.Kind); err != nil {
		return domain.Order{}, err
	}
	if _, err := domain.ParseSituation(string(in.Situation)); err != nil {
		return domain.Order{}, err
	}

	var changed domain.Order
	fields := log.Fields{"kind": in.Kind, "order_id": in.ID, "actor_id": in.Actor, "situation": in.Situation}

	err := s.run(ctx, operationName("change_situation", in.Kind), fields, func(ctx context.Context, tx domain.Tx) error {
		order, err := tx.Orders().Lock(ctx, in.Kind, in.ID)
		if err != nil {
			return err
		}
		if order.Deleted() {
			return domain.ErrOrderNotFound
		}

		transition, err := domain.LookupTransition(in.Kind, order.Situation, in.Situation)
		if err != nil {
			return err
		}

		if transition.MovesStock() {
			if err := lockProducts(ctx, tx, orderProductIDs(order.Items)); err != nil {
				return err
			}
			for _, item := range order.Items {
				if _, err := s.ledger.Apply(ctx, tx, ledger.Delta{
					ProductID: item.ProductID,
					Quantity:  item.Quantity,
					Reason:    transition.StockReason,
					Note:      order.OrderNumber,
					Actor:     in.Actor,
					Order:     orderRef(order),
				}); err != nil {
					return err
				}
			}
		}

		now := s.now()
		previous := order.Situation
		order.Situation = transition.To
		if transition.SetDeliveredAt {
			order.DeliveredAt = &now
		}
		if transition.SetCanceledAt {
			order.CanceledAt = &now
		}
		order.UpdatedBy = &in.Actor
		order.UpdatedAt = now

		for i := range order.Items {
			order.Items[i].Status = transition.To
			order.Items[i].UpdatedAt = now
			if err := tx.Orders().UpdateItem(ctx, order.Kind, &order.Items[i]); err != nil {
				return err
			}
		}

		if err := tx.Orders().UpdateHeader(ctx, &order); err != nil {
			return err
		}

		if err := s.enqueueOrderEvent(ctx, tx, kafka.EventTypeOrderSituationChanged, order, in.Actor, previous, map[string]interface{}{
			"stock_moved": transition.MovesStock(),
		}); err != nil {
			return err
		}

		changed = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.metrics.RecordSituationChange(string(in.Kind), string(in.Situation))
	return changed, nil
}

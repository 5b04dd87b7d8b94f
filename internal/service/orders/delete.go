package orders

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/messaging/kafka"
)

// SoftDelete помечает заказ удалённым. Журнал остатков не меняется.
func (s *Service) SoftDelete(ctx context.Context, kind domain.OrderKind, id, actor int64) error {
	if err := ensureKind(kind); err != nil {
		return err
	}

	fields := log.Fields{"kind": kind, "order_id": id, "actor_id": actor}
	err := s.run(ctx, operationName("soft_delete", kind), fields, func(ctx context.Context, tx domain.Tx) error {
		order, err := tx.Orders().Lock(ctx, kind, id)
		if err != nil {
			return err
		}
		if order.Deleted() {
			return domain.ErrOrderNotFound
		}

		now := s.now()
		if err := tx.Orders().SoftDelete(ctx, kind, id, actor, now); err != nil {
			return err
		}
		order.DeletedAt = &now
		order.DeletedBy = &actor
		order.UpdatedAt = now

		return s.enqueueOrderEvent(ctx, tx, kafka.EventTypeOrderDeleted, order, actor, "", map[string]interface{}{"mode": "soft"})
	})
	if err != nil {
		return err
	}

	s.metrics.RecordOrderDeleted(string(kind), "soft")
	return nil
}

// HardDelete физически удаляет заказ, который уже мягко удалён.
func (s *Service) HardDelete(ctx context.Context, kind domain.OrderKind, id, actor int64) error {
	if err := ensureKind(kind); err != nil {
		return err
	}

	fields := log.Fields{"kind": kind, "order_id": id, "actor_id": actor}
	err := s.run(ctx, operationName("hard_delete", kind), fields, func(ctx context.Context, tx domain.Tx) error {
		order, err := tx.Orders().Lock(ctx, kind, id)
		if err != nil {
			return err
		}
		if err := tx.Orders().HardDelete(ctx, kind, id); err != nil {
			return err
		}
		order.UpdatedAt = s.now()

		return s.enqueueOrderEvent(ctx, tx, kafka.EventTypeOrderDeleted, order, actor, "", map[string]interface{}{"mode": "hard"})
	})
	if err != nil {
		return err
	}

	s.metrics.RecordOrderDeleted(string(kind), "hard")
	return nil
}

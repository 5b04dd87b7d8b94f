package orders

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/backoffice/internal/service/ledger"
)

// CreateInput - данные для создания заказа.
type CreateInput struct {
	Header domain.OrderHeader
	// Situation учитывается только для заказов поставщиков; пустое значение означает process.
	Situation domain.Situation
	Items     []domain.ItemInput
	Actor     int64
}

// CreateCustomerOrder создаёт заказ покупателя и списывает остаток по каждой позиции.
func (s *Service) CreateCustomerOrder(ctx context.Context, in CreateInput) (domain.Order, error) {
	in.Situation = domain.SituationProcess
	return s.create(ctx, domain.OrderKindCustomer, in)
}

// CreateSupplierOrder создаёт закупку без движения склада: остаток пополняется при доставке.
func (s *Service) CreateSupplierOrder(ctx context.Context, in CreateInput) (domain.Order, error) {
	return s.create(ctx, domain.OrderKindSupplier, in)
}

func (s *Service) create(ctx context.Context, kind domain.OrderKind, in CreateInput) (domain.Order, error) {
	if err := validateInput(in.Header, in.Items); err != nil {
		return domain.Order{}, err
	}

	situation := in.Situation
	if situation == "" {
		situation = domain.SituationProcess
	}
	if _, err := domain.ParseSituation(string(situation)); err != nil {
		return domain.Order{}, err
	}
	if situation != domain.SituationProcess {
		return domain.Order{}, domain.ErrInitialSituation
	}

	var created domain.Order
	fields := log.Fields{"kind": kind, "actor_id": in.Actor, "items": len(in.Items)}

	err := s.run(ctx, operationName("create", kind), fields, func(ctx context.Context, tx domain.Tx) error {
		if err := lockProducts(ctx, tx, inputProductIDs(in.Items)); err != nil {
			return err
		}
		if err := s.ensureCounterparty(ctx, tx, kind, in.Header.CounterpartyID); err != nil {
			return err
		}

		number, err := s.numbers.Next(ctx, tx, kind)
		if err != nil {
			return err
		}

		now := s.now()
		order := domain.Order{
			Kind:           kind,
			OrderNumber:    number,
			CounterpartyID: in.Header.CounterpartyID,
			Price:          in.Header.Price,
			Tax:            in.Header.Tax,
			ShippingFee:    in.Header.ShippingFee,
			Situation:      situation,
			Note:           in.Header.Note,
			CreatedBy:      in.Actor,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Orders().Insert(ctx, &order); err != nil {
			return err
		}

		order.Items = make([]domain.OrderItem, 0, len(in.Items))
		for _, input := range in.Items {
			item, err := s.addItem(ctx, tx, order, input, domain.StockReasonCustomerOrder, in.Actor, now)
			if err != nil {
				return err
			}
			order.Items = append(order.Items, item)
		}

		if err := s.enqueueOrderEvent(ctx, tx, kafka.EventTypeOrderCreated, order, in.Actor, "", itemsMetadata(order)); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.metrics.RecordOrderCreated(string(kind))
	return created, nil
}

// addItem вставляет новую позицию. Для заказа покупателя сначала списывает
// остаток и связывает позицию с записью журнала; для закупки только проверяет,
// что товар существует.
func (s *Service) addItem(ctx context.Context, tx domain.Tx, order domain.Order, input domain.ItemInput, reason domain.StockReason, actor int64, now time.Time) (domain.OrderItem, error) {
	item := domain.OrderItem{
		OrderID:   order.ID,
		ProductID: input.ProductID,
		Quantity:  input.Quantity,
		Price:     input.Price,
		Tax:       input.Tax,
		Status:    order.Situation,
		CreatedAt: now,
		UpdatedAt: now,
	}
	item.RecalculateTotals()

	if order.Kind == domain.OrderKindCustomer {
		entry, err := s.ledger.Apply(ctx, tx, ledger.Delta{
			ProductID: input.ProductID,
			Quantity:  -input.Quantity,
			Reason:    reason,
			Note:      order.OrderNumber,
			Actor:     actor,
			Order:     orderRef(order),
		})
		if err != nil {
			return domain.OrderItem{}, err
		}
		item.StockLogID = &entry.ID
	} else if _, err := tx.Products().Lock(ctx, input.ProductID); err != nil {
		return domain.OrderItem{}, err
	}

	if err := tx.Orders().InsertItem(ctx, order.Kind, &item); err != nil {
		return domain.OrderItem{}, err
	}
	return item, nil
}

func validateInput(header domain.OrderHeader, items []domain.ItemInput) error {
	errs := append(domain.ValidateHeader(header), domain.ValidateItems(items)...)
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}

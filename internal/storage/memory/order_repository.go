package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// orderRepository работает с заказами внутри транзакции memTx.
type orderRepository struct {
	st *state
}

// OrderNumberExists ищет номер среди неудалённых заказов вида kind.
func (r orderRepository) OrderNumberExists(_ context.Context, kind domain.OrderKind, number string) (bool, error) {
	for _, order := range r.st.orders[kind] {
		if order.DeletedAt == nil && order.OrderNumber == number {
			return true, nil
		}
	}
	return false, nil
}

// Insert сохраняет заголовок; позиции добавляются отдельно через InsertItem.
func (r orderRepository) Insert(ctx context.Context, order *domain.Order) error {
	exists, err := r.OrderNumberExists(ctx, order.Kind, order.OrderNumber)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrOrderNumberTaken
	}

	r.st.nextOrderID[order.Kind]++
	order.ID = r.st.nextOrderID[order.Kind]

	stored := *order
	stored.Items = nil
	r.st.orders[order.Kind][order.ID] = stored
	return nil
}

// Get возвращает копию заказа, чтобы вызывающий не менял состояние в обход транзакции.
func (r orderRepository) Get(_ context.Context, kind domain.OrderKind, id int64) (domain.Order, error) {
	order, ok := r.st.orders[kind][id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// Lock эквивалентен Get: транзакции и так сериализованы мьютексом Store.
func (r orderRepository) Lock(ctx context.Context, kind domain.OrderKind, id int64) (domain.Order, error) {
	return r.Get(ctx, kind, id)
}

func (r orderRepository) UpdateHeader(_ context.Context, order *domain.Order) error {
	current, ok := r.st.orders[order.Kind][order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}

	updated := *order
	updated.Items = current.Items
	// Номер и аудит создания неизменяемы.
	updated.OrderNumber = current.OrderNumber
	updated.CreatedBy = current.CreatedBy
	updated.CreatedAt = current.CreatedAt
	r.st.orders[order.Kind][order.ID] = updated
	return nil
}

func (r orderRepository) InsertItem(_ context.Context, kind domain.OrderKind, item *domain.OrderItem) error {
	order, ok := r.st.orders[kind][item.OrderID]
	if !ok {
		return domain.ErrOrderNotFound
	}

	r.st.nextItemID[kind]++
	item.ID = r.st.nextItemID[kind]
	order.Items = append(order.Items, *item)
	r.st.orders[kind][order.ID] = order
	return nil
}

func (r orderRepository) UpdateItem(_ context.Context, kind domain.OrderKind, item *domain.OrderItem) error {
	order, ok := r.st.orders[kind][item.OrderID]
	if !ok {
		return domain.ErrOrderNotFound
	}

	for i := range order.Items {
		if order.Items[i].ID == item.ID {
			order.Items[i] = *item
			r.st.orders[kind][order.ID] = order
			return nil
		}
	}
	return domain.ErrOrderNotFound
}

// FindItem возвращает первую (самую раннюю) позицию с товаром productID.
func (r orderRepository) FindItem(_ context.Context, kind domain.OrderKind, orderID, productID int64) (domain.OrderItem, bool, error) {
	order, ok := r.st.orders[kind][orderID]
	if !ok {
		return domain.OrderItem{}, false, nil
	}
	for _, item := range order.Items {
		if item.ProductID == productID {
			return item, true, nil
		}
	}
	return domain.OrderItem{}, false, nil
}

func (r orderRepository) SoftDelete(_ context.Context, kind domain.OrderKind, id, actor int64, at time.Time) error {
	order, ok := r.st.orders[kind][id]
	if !ok || order.DeletedAt != nil {
		return domain.ErrOrderNotFound
	}
	order.DeletedAt = &at
	order.DeletedBy = &actor
	r.st.orders[kind][id] = order
	return nil
}

func (r orderRepository) HardDelete(_ context.Context, kind domain.OrderKind, id int64) error {
	order, ok := r.st.orders[kind][id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if order.DeletedAt == nil {
		return domain.ErrOrderNotDeleted
	}
	delete(r.st.orders[kind], id)
	return nil
}

var _ domain.OrderRepository = orderRepository{}

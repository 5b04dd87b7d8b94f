package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// state - полное содержимое хранилища. Транзакция работает с живым state,
// а rollback возвращает снимок, сделанный перед её началом.
type state struct {
	orders    map[domain.OrderKind]map[int64]domain.Order
	products  map[int64]domain.Product
	stores    map[int64]struct{}
	suppliers map[int64]struct{}
	stockLog  []domain.StockLogEntry
	outbox    []outboxRecord

	nextOrderID map[domain.OrderKind]int64
	nextItemID  map[domain.OrderKind]int64
	nextLogID   int64
}

func newState() *state {
	return &state{
		orders: map[domain.OrderKind]map[int64]domain.Order{
			domain.OrderKindCustomer: {},
			domain.OrderKindSupplier: {},
		},
		products:    make(map[int64]domain.Product),
		stores:      make(map[int64]struct{}),
		suppliers:   make(map[int64]struct{}),
		nextOrderID: make(map[domain.OrderKind]int64),
		nextItemID:  make(map[domain.OrderKind]int64),
	}
}

func (s *state) clone() *state {
	c := &state{
		orders:      make(map[domain.OrderKind]map[int64]domain.Order, len(s.orders)),
		products:    make(map[int64]domain.Product, len(s.products)),
		stores:      make(map[int64]struct{}, len(s.stores)),
		suppliers:   make(map[int64]struct{}, len(s.suppliers)),
		stockLog:    append([]domain.StockLogEntry(nil), s.stockLog...),
		outbox:      append([]outboxRecord(nil), s.outbox...),
		nextOrderID: make(map[domain.OrderKind]int64, len(s.nextOrderID)),
		nextItemID:  make(map[domain.OrderKind]int64, len(s.nextItemID)),
		nextLogID:   s.nextLogID,
	}
	for kind, orders := range s.orders {
		copied := make(map[int64]domain.Order, len(orders))
		for id, order := range orders {
			copied[id] = cloneOrder(order)
		}
		c.orders[kind] = copied
	}
	for id, p := range s.products {
		c.products[id] = p
	}
	for id := range s.stores {
		c.stores[id] = struct{}{}
	}
	for id := range s.suppliers {
		c.suppliers[id] = struct{}{}
	}
	for kind, id := range s.nextOrderID {
		c.nextOrderID[kind] = id
	}
	for kind, id := range s.nextItemID {
		c.nextItemID[kind] = id
	}
	return c
}

func cloneOrder(order domain.Order) domain.Order {
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	return order
}

// Store - in-memory реализация TxManager для локальной разработки и тестов.
// Транзакции сериализуются мьютексом, поэтому конкурентные списания не теряются.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{st: newState()}
}

// WithinTx выполняет fn атомарно: при ошибке или panic состояние откатывается.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if r := recover(); r != nil {
			s.st = snapshot
			panic(r)
		}
		if err != nil {
			s.st = snapshot
		}
	}()

	return fn(ctx, &memTx{st: s.st})
}

// Ping всегда успешен; нужен для health-проверок наравне с PostgreSQL.
func (s *Store) Ping(context.Context) error {
	return nil
}

// SeedProduct добавляет или заменяет товар (товары ведёт внешний CRUD).
func (s *Store) SeedProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = p
}

// SeedCustomerStore регистрирует магазин клиента.
func (s *Store) SeedCustomerStore(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.stores[id] = struct{}{}
}

// SeedSupplier регистрирует поставщика.
func (s *Store) SeedSupplier(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.suppliers[id] = struct{}{}
}

// Product возвращает текущее состояние товара.
func (s *Store) Product(id int64) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[id]
	return p, ok
}

// StockLogEntries возвращает копию всего журнала остатков.
func (s *Store) StockLogEntries() []domain.StockLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.StockLogEntry(nil), s.st.stockLog...)
}

// OrderCount возвращает число заказов вида kind, включая мягко удалённые.
func (s *Store) OrderCount(kind domain.OrderKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders[kind])
}

type memTx struct {
	st *state
}

func (t *memTx) Orders() domain.OrderRepository {
	return orderRepository{st: t.st}
}

func (t *memTx) Products() domain.ProductRepository {
	return productRepository{st: t.st}
}

func (t *memTx) Counterparties() domain.CounterpartyRepository {
	return counterpartyRepository{st: t.st}
}

func (t *memTx) StockLog() domain.StockLogRepository {
	return stockLogRepository{st: t.st}
}

func (t *memTx) Outbox() domain.OutboxWriter {
	return outboxWriter{st: t.st}
}

var (
	_ domain.TxManager = (*Store)(nil)
	_ domain.Tx        = (*memTx)(nil)
)

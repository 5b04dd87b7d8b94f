package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

type productRepository struct {
	st *state
}

func (r productRepository) Lock(_ context.Context, id int64) (domain.Product, error) {
	p, ok := r.st.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (r productRepository) Exists(_ context.Context, id int64) (bool, error) {
	_, ok := r.st.products[id]
	return ok, nil
}

func (r productRepository) UpdateStock(_ context.Context, id, stock int64) error {
	p, ok := r.st.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Stock = stock
	r.st.products[id] = p
	return nil
}

type counterpartyRepository struct {
	st *state
}

func (r counterpartyRepository) Exists(_ context.Context, kind domain.OrderKind, id int64) (bool, error) {
	var ok bool
	switch kind {
	case domain.OrderKindCustomer:
		_, ok = r.st.stores[id]
	case domain.OrderKindSupplier:
		_, ok = r.st.suppliers[id]
	}
	return ok, nil
}

// stockLogRepository - append-only: методов изменения записей нет.
type stockLogRepository struct {
	st *state
}

func (r stockLogRepository) Append(_ context.Context, entry *domain.StockLogEntry) error {
	r.st.nextLogID++
	entry.ID = r.st.nextLogID
	stored := *entry
	if entry.Order != nil {
		ref := *entry.Order
		stored.Order = &ref
	}
	r.st.stockLog = append(r.st.stockLog, stored)
	return nil
}

// ListByProduct возвращает записи товара, новые первыми.
func (r stockLogRepository) ListByProduct(_ context.Context, productID int64, limit int) ([]domain.StockLogEntry, error) {
	result := make([]domain.StockLogEntry, 0)
	for _, entry := range r.st.stockLog {
		if entry.ProductID == productID {
			result = append(result, entry)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListByOrder возвращает записи заказа в порядке добавления.
func (r stockLogRepository) ListByOrder(_ context.Context, ref domain.OrderRef) ([]domain.StockLogEntry, error) {
	result := make([]domain.StockLogEntry, 0)
	for _, entry := range r.st.stockLog {
		if entry.Order != nil && *entry.Order == ref {
			result = append(result, entry)
		}
	}
	return result, nil
}

var (
	_ domain.ProductRepository      = productRepository{}
	_ domain.CounterpartyRepository = counterpartyRepository{}
	_ domain.StockLogRepository     = stockLogRepository{}
)

package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/storage/memory"
)

func newOrder(number string) domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		Kind:           domain.OrderKindCustomer,
		OrderNumber:    number,
		CounterpartyID: 1,
		Price:          decimal.NewFromInt(500),
		Situation:      domain.SituationProcess,
		CreatedBy:      9,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func insertOrder(t *testing.T, store *memory.Store, order domain.Order) domain.Order {
	t.Helper()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Orders().Insert(ctx, &order); err != nil {
			return err
		}
		item := domain.OrderItem{OrderID: order.ID, ProductID: 5, Quantity: 2, Status: domain.SituationProcess}
		return tx.Orders().InsertItem(ctx, order.Kind, &item)
	})
	if err != nil {
		t.Fatalf("insert order: %v", err)
	}
	return order
}

func TestOrderRepository_InsertGet(t *testing.T) {
	store := memory.NewStore()
	order := insertOrder(t, store, newOrder("CO-1"))

	if order.ID == 0 {
		t.Fatal("expected generated id")
	}

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		stored, err := tx.Orders().Get(ctx, domain.OrderKindCustomer, order.ID)
		if err != nil {
			return err
		}
		if stored.OrderNumber != "CO-1" || len(stored.Items) != 1 {
			t.Errorf("unexpected stored order: %+v", stored)
		}
		if _, err := tx.Orders().Get(ctx, domain.OrderKindSupplier, order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
			t.Errorf("order kinds must be isolated, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx failed: %v", err)
	}
}

func TestOrderRepository_OrderNumberUniqueAmongLive(t *testing.T) {
	store := memory.NewStore()
	order := insertOrder(t, store, newOrder("CO-dup"))

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		dup := newOrder("CO-dup")
		return tx.Orders().Insert(ctx, &dup)
	})
	if !errors.Is(err, domain.ErrOrderNumberTaken) {
		t.Fatalf("expected ErrOrderNumberTaken, got %v", err)
	}

	err = store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Orders().SoftDelete(ctx, domain.OrderKindCustomer, order.ID, 1, time.Now().UTC()); err != nil {
			return err
		}
		exists, err := tx.Orders().OrderNumberExists(ctx, domain.OrderKindCustomer, "CO-dup")
		if err != nil {
			return err
		}
		if exists {
			t.Error("soft-deleted order must not reserve its number")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx failed: %v", err)
	}
}

func TestOrderRepository_FindAndUpdateItem(t *testing.T) {
	store := memory.NewStore()
	order := insertOrder(t, store, newOrder("CO-2"))

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		item, found, err := tx.Orders().FindItem(ctx, domain.OrderKindCustomer, order.ID, 5)
		if err != nil || !found {
			t.Fatalf("expected item, found=%v err=%v", found, err)
		}
		item.Quantity = 7
		if err := tx.Orders().UpdateItem(ctx, domain.OrderKindCustomer, &item); err != nil {
			return err
		}

		_, found, err = tx.Orders().FindItem(ctx, domain.OrderKindCustomer, order.ID, 6)
		if err != nil || found {
			t.Errorf("unexpected match for missing product: found=%v err=%v", found, err)
		}

		stored, err := tx.Orders().Get(ctx, domain.OrderKindCustomer, order.ID)
		if err != nil {
			return err
		}
		if stored.Items[0].Quantity != 7 {
			t.Errorf("expected quantity 7, got %d", stored.Items[0].Quantity)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx failed: %v", err)
	}
}

func TestOrderRepository_HardDeleteRequiresSoftDelete(t *testing.T) {
	store := memory.NewStore()
	order := insertOrder(t, store, newOrder("CO-3"))

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		return tx.Orders().HardDelete(ctx, domain.OrderKindCustomer, order.ID)
	})
	if !errors.Is(err, domain.ErrOrderNotDeleted) {
		t.Fatalf("expected ErrOrderNotDeleted, got %v", err)
	}

	err = store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Orders().SoftDelete(ctx, domain.OrderKindCustomer, order.ID, 1, time.Now().UTC()); err != nil {
			return err
		}
		return tx.Orders().HardDelete(ctx, domain.OrderKindCustomer, order.ID)
	})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if got := store.OrderCount(domain.OrderKindCustomer); got != 0 {
		t.Fatalf("expected no orders, got %d", got)
	}
}

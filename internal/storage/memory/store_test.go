package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/storage/memory"
)

func TestStore_WithinTxRollbackOnError(t *testing.T) {
	store := memory.NewStore()
	store.SeedProduct(domain.Product{ID: 1, Stock: 10})

	boom := errors.New("boom")
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Products().UpdateStock(ctx, 1, 3); err != nil {
			return err
		}
		entry := domain.StockLogEntry{ProductID: 1, Quantity: -7, CurrentStock: 3}
		if err := tx.StockLog().Append(ctx, &entry); err != nil {
			return err
		}
		if _, err := tx.Outbox().Enqueue(ctx, domain.OutboxMessage{EventType: "stock.changed"}); err != nil {
			return err
		}
		order := newOrder("CO-rollback")
		if err := tx.Orders().Insert(ctx, &order); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	product, _ := store.Product(1)
	if product.Stock != 10 {
		t.Fatalf("expected stock restored to 10, got %d", product.Stock)
	}
	if got := len(store.StockLogEntries()); got != 0 {
		t.Fatalf("expected empty stock log, got %d", got)
	}
	if got := len(store.AllPending()); got != 0 {
		t.Fatalf("expected empty outbox, got %d", got)
	}
	if got := store.OrderCount(domain.OrderKindCustomer); got != 0 {
		t.Fatalf("expected no orders, got %d", got)
	}
}

func TestStore_WithinTxRollbackOnPanic(t *testing.T) {
	store := memory.NewStore()
	store.SeedProduct(domain.Product{ID: 1, Stock: 10})

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
			_ = tx.Products().UpdateStock(ctx, 1, 0)
			panic("unexpected")
		})
	}()

	product, _ := store.Product(1)
	if product.Stock != 10 {
		t.Fatalf("expected stock restored after panic, got %d", product.Stock)
	}
}

func TestStore_WithinTxCanceledContext(t *testing.T) {
	store := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.WithinTx(ctx, func(context.Context, domain.Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Fatal("fn must not run with canceled context")
	}
}

func TestStore_Counterparties(t *testing.T) {
	store := memory.NewStore()
	store.SeedCustomerStore(4)
	store.SeedSupplier(8)

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		cases := []struct {
			kind domain.OrderKind
			id   int64
			want bool
		}{
			{domain.OrderKindCustomer, 4, true},
			{domain.OrderKindCustomer, 8, false},
			{domain.OrderKindSupplier, 8, true},
			{domain.OrderKindSupplier, 4, false},
		}
		for _, tc := range cases {
			got, err := tx.Counterparties().Exists(ctx, tc.kind, tc.id)
			if err != nil {
				return err
			}
			if got != tc.want {
				t.Errorf("Exists(%s, %d) = %v, want %v", tc.kind, tc.id, got, tc.want)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx failed: %v", err)
	}
}

func TestStockLogRepository_List(t *testing.T) {
	store := memory.NewStore()
	ref := domain.OrderRef{Kind: domain.OrderKindSupplier, ID: 3}

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		for i := int64(1); i <= 3; i++ {
			entry := domain.StockLogEntry{ProductID: 1, Quantity: i, CurrentStock: i, Order: &ref}
			if err := tx.StockLog().Append(ctx, &entry); err != nil {
				return err
			}
		}
		other := domain.StockLogEntry{ProductID: 2, Quantity: 1, CurrentStock: 1}
		return tx.StockLog().Append(ctx, &other)
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	err = store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		byProduct, err := tx.StockLog().ListByProduct(ctx, 1, 2)
		if err != nil {
			return err
		}
		if len(byProduct) != 2 || byProduct[0].Quantity != 3 {
			t.Errorf("expected newest first with limit, got %+v", byProduct)
		}

		byOrder, err := tx.StockLog().ListByOrder(ctx, ref)
		if err != nil {
			return err
		}
		if len(byOrder) != 3 || byOrder[0].Quantity != 1 {
			t.Errorf("expected 3 entries in insertion order, got %+v", byOrder)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
}

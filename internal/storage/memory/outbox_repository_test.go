package memory

import (
	"context"
	"testing"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

func TestOutbox_EnqueueAndPull(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	var saved domain.OutboxMessage
	err := store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		saved, err = tx.Outbox().Enqueue(ctx, domain.OutboxMessage{
			AggregateType: "product",
			AggregateID:   "1",
			EventType:     "stock.changed",
			Payload:       []byte(`{"quantity":-2}`),
		})
		return err
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected generated id")
	}

	pending, err := store.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != saved.ID {
		t.Fatalf("unexpected pending messages: %+v", pending)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 1 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestOutbox_MarkSentAndFailed(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	var saved domain.OutboxMessage
	_ = store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		saved, err = tx.Outbox().Enqueue(ctx, domain.OutboxMessage{AggregateType: "order"})
		return err
	})

	if err := store.MarkSent(ctx, saved.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if err := store.MarkFailed(ctx, saved.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.MarkFailed(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing record")
	}
	if got := len(store.AllPending()); got != 0 {
		t.Fatalf("expected no pending after marks, got %d", got)
	}
	if store.st.outbox[0].attemptCnt != 2 {
		t.Fatalf("expected 2 attempts recorded, got %d", store.st.outbox[0].attemptCnt)
	}
}

package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/iho/gobank/internal/adapter/idgen"
	"github.com/iho/gobank/internal/domain"
)

func newTestLedger() *Ledger {
	return NewLedger(idgen.NewMonotonicGenerator())
}

func TestLedger_Append(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	txn, err := ledger.Append(ctx, "acc-1", domain.TransactionDeposit, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if txn.ID == "" {
		t.Error("expected assigned ID")
	}
	if txn.Timestamp.IsZero() {
		t.Error("expected assigned timestamp")
	}
	if txn.AccountID != "acc-1" || txn.Amount != 100 {
		t.Errorf("unexpected record: %+v", txn)
	}

	t.Run("non-positive amount rejected", func(t *testing.T) {
		if _, err := ledger.Append(ctx, "acc-1", domain.TransactionDeposit, 0); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		if _, err := ledger.Append(ctx, "acc-1", domain.TransactionType("refund"), 100); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})
}

func TestLedger_AppendOrdering(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	var ids []string
	for range 50 {
		txn, err := ledger.Append(ctx, "acc-1", domain.TransactionDeposit, 10)
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
		ids = append(ids, txn.ID)
	}

	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("IDs not strictly increasing: %s then %s", ids[i-1], ids[i])
		}
	}

	var last *domain.Transaction
	for txn, err := range ledger.HistoryFor(ctx, "acc-1") {
		if err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if last != nil && txn.Timestamp.After(last.Timestamp) {
			t.Fatal("history timestamps not descending")
		}
		last = txn
	}
}

func TestLedger_AppendTransfer(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	out, in, err := ledger.AppendTransfer(ctx, "acc-1", "acc-2", 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.Type != domain.TransactionTransferOut || out.AccountID != "acc-1" {
		t.Errorf("unexpected out leg: %+v", out)
	}
	if in.Type != domain.TransactionTransferIn || in.AccountID != "acc-2" {
		t.Errorf("unexpected in leg: %+v", in)
	}
	if out.Amount != in.Amount {
		t.Errorf("legs disagree on amount: %d vs %d", out.Amount, in.Amount)
	}

	t.Run("failed pair leaves nothing behind", func(t *testing.T) {
		before := countRecords(t, ledger, "acc-1")

		// An invalid amount fails validation on the first leg.
		if _, _, err := ledger.AppendTransfer(ctx, "acc-1", "acc-2", -5); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}

		if got := countRecords(t, ledger, "acc-1"); got != before {
			t.Errorf("expected %d records, got %d", before, got)
		}
	})
}

func TestLedger_HistoryForIsRestartable(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	for range 5 {
		if _, err := ledger.Append(ctx, "acc-1", domain.TransactionDeposit, 10); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	seq := ledger.HistoryFor(ctx, "acc-1")

	first := 0
	for _, err := range seq {
		if err != nil {
			t.Fatalf("history failed: %v", err)
		}
		first++
		if first == 2 {
			break // early termination must not poison the sequence
		}
	}

	second := 0
	for _, err := range seq {
		if err != nil {
			t.Fatalf("history failed: %v", err)
		}
		second++
	}

	if second != 5 {
		t.Errorf("expected restarted iteration to yield 5 records, got %d", second)
	}
}

func TestLedger_HistoryForUnknownAccount(t *testing.T) {
	ledger := newTestLedger()

	count := countRecords(t, ledger, "acc-404")
	if count != 0 {
		t.Errorf("expected empty history, got %d records", count)
	}
}

func countRecords(t *testing.T, ledger *Ledger, accountID string) int {
	t.Helper()

	count := 0
	for _, err := range ledger.HistoryFor(context.Background(), accountID) {
		if err != nil {
			t.Fatalf("history failed: %v", err)
		}
		count++
	}

	return count
}

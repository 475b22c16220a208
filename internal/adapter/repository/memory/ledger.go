package memory

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/iho/gobank/internal/domain"
	"github.com/iho/gobank/internal/usecase"
)

// Ledger implements usecase.TransactionLedger backed by per-account
// slices. Records are append-only.
type Ledger struct {
	mu        sync.RWMutex
	byAccount map[string][]*domain.Transaction
	lastTime  map[string]time.Time
	idGen     usecase.IDGenerator
}

// NewLedger creates an empty Ledger. idGen must yield strictly
// increasing IDs; see idgen.MonotonicGenerator.
func NewLedger(idGen usecase.IDGenerator) *Ledger {
	return &Ledger{
		byAccount: make(map[string][]*domain.Transaction),
		lastTime:  make(map[string]time.Time),
		idGen:     idGen,
	}
}

// Append adds one record for the account and returns it with its
// assigned ID and timestamp.
func (l *Ledger) Append(_ context.Context, accountID string, typ domain.TransactionType, amount domain.Amount) (*domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	txn, err := l.append(accountID, typ, amount)
	if err != nil {
		return nil, err
	}

	return txn, nil
}

// AppendTransfer adds the linked transfer_out/transfer_in pair in one
// critical section: either both records exist or neither does.
func (l *Ledger) AppendTransfer(_ context.Context, fromAccountID, toAccountID string, amount domain.Amount) (*domain.Transaction, *domain.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out, err := l.append(fromAccountID, domain.TransactionTransferOut, amount)
	if err != nil {
		return nil, nil, err
	}

	in, err := l.append(toAccountID, domain.TransactionTransferIn, amount)
	if err != nil {
		// Undo the first leg; nothing of a failed pair may remain.
		records := l.byAccount[fromAccountID]
		l.byAccount[fromAccountID] = records[:len(records)-1]

		return nil, nil, err
	}

	return out, in, nil
}

// append must be called with l.mu held.
func (l *Ledger) append(accountID string, typ domain.TransactionType, amount domain.Amount) (*domain.Transaction, error) {
	now := time.Now().UTC()
	// Timestamps are non-decreasing per account even if the wall clock
	// steps backwards.
	if last := l.lastTime[accountID]; now.Before(last) {
		now = last
	}

	txn := &domain.Transaction{
		ID:        l.idGen.Generate(),
		AccountID: accountID,
		Type:      typ,
		Amount:    amount,
		Timestamp: now,
	}

	if err := txn.Validate(); err != nil {
		return nil, err
	}

	l.byAccount[accountID] = append(l.byAccount[accountID], txn)
	l.lastTime[accountID] = now

	return txn, nil
}

// HistoryFor yields the account's records newest first. Each range over
// the sequence observes a fresh snapshot.
func (l *Ledger) HistoryFor(_ context.Context, accountID string) iter.Seq2[*domain.Transaction, error] {
	return func(yield func(*domain.Transaction, error) bool) {
		l.mu.RLock()
		records := l.byAccount[accountID]
		snapshot := make([]*domain.Transaction, len(records))
		copy(snapshot, records)
		l.mu.RUnlock()

		for i := len(snapshot) - 1; i >= 0; i-- {
			cp := *snapshot[i]
			if !yield(&cp, nil) {
				return
			}
		}
	}
}

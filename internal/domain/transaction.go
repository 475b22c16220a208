package domain

import (
	"time"
)

// TransactionType enumerates the kinds of ledger records.
type TransactionType string

const (
	TransactionDeposit     TransactionType = "deposit"
	TransactionWithdraw    TransactionType = "withdraw"
	TransactionTransferOut TransactionType = "transfer_out"
	TransactionTransferIn  TransactionType = "transfer_in"
)

var validTransactionTypes = map[TransactionType]bool{
	TransactionDeposit:     true,
	TransactionWithdraw:    true,
	TransactionTransferOut: true,
	TransactionTransferIn:  true,
}

// IsValid checks if the type is a known transaction type.
func (t TransactionType) IsValid() bool {
	return validTransactionTypes[t]
}

// Transaction is a single immutable ledger record. Records are
// append-only: once written they are never edited or removed.
type Transaction struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Type      TransactionType `json:"type"`
	Amount    Amount          `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// Validate checks a record before it is appended.
func (t *Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}

	if !t.Type.IsValid() {
		return ErrInvalidAmount
	}

	return nil
}

package usecase

import (
	"context"
	"iter"
	"time"

	"github.com/iho/gobank/internal/domain"
)

// AccountStore defines data access for accounts. Implementations must
// be linearizable; TransferBalance is the only cross-account mutation
// and must be atomic with respect to every reader.
type AccountStore interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// AdjustBalance applies balance += delta only if the result is
	// non-negative, returning domain.ErrInsufficientFunds otherwise and
	// leaving the balance unchanged.
	AdjustBalance(ctx context.Context, id string, delta domain.Amount) (domain.Amount, error)
	// TransferBalance atomically debits fromID and credits toID. No
	// reader may ever observe the debit without the credit: both changes
	// commit together or not at all.
	TransferBalance(ctx context.Context, fromID, toID string, amount domain.Amount) error
	// TotalBalance returns the sum of all account balances.
	TotalBalance(ctx context.Context) (domain.Amount, error)
}

// TransactionLedger defines the append-only record of monetary events.
// There are no mutation or deletion operations.
type TransactionLedger interface {
	Append(ctx context.Context, accountID string, typ domain.TransactionType, amount domain.Amount) (*domain.Transaction, error)
	// AppendTransfer appends the linked transfer_out/transfer_in pair as a
	// single settlement event: either both records exist or neither does.
	AppendTransfer(ctx context.Context, fromAccountID, toAccountID string, amount domain.Amount) (*domain.Transaction, *domain.Transaction, error)
	// HistoryFor yields an account's records newest first. The sequence is
	// lazy and restartable; a non-nil error terminates iteration.
	HistoryFor(ctx context.Context, accountID string) iter.Seq2[*domain.Transaction, error]
}

// PasswordHasher derives and verifies credential digests.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// TokenIssuer mints session tokens for authenticated accounts.
type TokenIssuer interface {
	Issue(account *domain.Account) (string, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets a placeholder if
	// not. Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Delete removes a key so a failed invocation can be retried.
	Delete(ctx context.Context, key string) error
}

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"time"

	"github.com/iho/gobank/internal/domain"
)

const (
	// DefaultLockTimeout bounds the wait for account locks. An operation
	// that cannot lock its accounts in time fails with domain.ErrBusy
	// before any state is touched.
	DefaultLockTimeout = 5 * time.Second

	// DefaultIdempotencyTTL is how long idempotency keys are cached.
	DefaultIdempotencyTTL = 24 * time.Hour
)

// MetricsRecorder receives operation outcomes. Implementations must be
// safe for concurrent use.
type MetricsRecorder interface {
	Observe(operation string, duration time.Duration, err error)
}

// TransferEngine orchestrates deposit, withdraw and transfer as atomic
// operations spanning the account store and the transaction ledger.
type TransferEngine struct {
	accounts AccountStore
	ledger   TransactionLedger
	hasher   PasswordHasher
	idGen    IDGenerator
	locks    *LockManager

	tokens         TokenIssuer      // optional
	idempotency    IdempotencyStore // optional
	metrics        MetricsRecorder  // optional
	lockTimeout    time.Duration
	idempotencyTTL time.Duration
}

// Config for TransferEngine. Accounts, Ledger, Hasher and IDGen are
// required; the rest is optional.
type Config struct {
	Accounts       AccountStore
	Ledger         TransactionLedger
	Hasher         PasswordHasher
	IDGen          IDGenerator
	Tokens         TokenIssuer
	Idempotency    IdempotencyStore
	Metrics        MetricsRecorder
	LockTimeout    time.Duration
	IdempotencyTTL time.Duration
}

// NewTransferEngine creates a new TransferEngine.
func NewTransferEngine(cfg Config) *TransferEngine {
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	if cfg.IdempotencyTTL == 0 {
		cfg.IdempotencyTTL = DefaultIdempotencyTTL
	}

	return &TransferEngine{
		accounts:       cfg.Accounts,
		ledger:         cfg.Ledger,
		hasher:         cfg.Hasher,
		idGen:          cfg.IDGen,
		locks:          NewLockManager(),
		tokens:         cfg.Tokens,
		idempotency:    cfg.Idempotency,
		metrics:        cfg.Metrics,
		lockTimeout:    cfg.LockTimeout,
		idempotencyTTL: cfg.IdempotencyTTL,
	}
}

// RegisterInput represents input for registering an account.
type RegisterInput struct {
	Username       string
	Password       string
	InitialBalance domain.Amount
}

// Register creates a new account with a hashed credential.
func (e *TransferEngine) Register(ctx context.Context, input RegisterInput) (account *domain.Account, err error) {
	defer e.observe("register", time.Now(), &err)

	if input.Username == "" || input.Password == "" {
		return nil, domain.ErrEmptyField
	}

	if input.InitialBalance.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}

	hash, err := e.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	account = &domain.Account{
		ID:           e.idGen.Generate(),
		Username:     input.Username,
		PasswordHash: hash,
		Balance:      input.InitialBalance,
		CreatedAt:    time.Now().UTC(),
	}

	if err := account.ValidateNew(); err != nil {
		return nil, err
	}

	if err := e.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	// Don't return the credential digest.
	account.PasswordHash = ""

	return account, nil
}

// LoginInput represents input for authenticating.
type LoginInput struct {
	Username string
	Password string
}

// LoginResult is a successfully authenticated account with an optional
// session token.
type LoginResult struct {
	Account *domain.Account
	Token   string
}

// Login verifies a credential. A missing account and a wrong password
// both fail with domain.ErrAuthFailed so usernames cannot be probed.
func (e *TransferEngine) Login(ctx context.Context, input LoginInput) (result *LoginResult, err error) {
	defer e.observe("login", time.Now(), &err)

	if input.Username == "" || input.Password == "" {
		return nil, domain.ErrEmptyField
	}

	account, err := e.accounts.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrAuthFailed
		}

		return nil, err
	}

	if !e.hasher.Verify(input.Password, account.PasswordHash) {
		return nil, domain.ErrAuthFailed
	}

	result = &LoginResult{Account: account}

	if e.tokens != nil {
		token, err := e.tokens.Issue(account)
		if err != nil {
			return nil, err
		}
		result.Token = token
	}

	account.PasswordHash = ""

	return result, nil
}

// DepositInput represents input for a deposit or a withdrawal.
type DepositInput struct {
	Username       string
	Amount         domain.Amount
	IdempotencyKey string
}

// Deposit credits an account and appends a deposit record.
func (e *TransferEngine) Deposit(ctx context.Context, input DepositInput) (txn *domain.Transaction, err error) {
	defer e.observe("deposit", time.Now(), &err)
	return e.applyBalanceChange(ctx, input, domain.TransactionDeposit)
}

// Withdraw debits an account and appends a withdraw record. Fails with
// domain.ErrInsufficientFunds if the balance would go negative.
func (e *TransferEngine) Withdraw(ctx context.Context, input DepositInput) (txn *domain.Transaction, err error) {
	defer e.observe("withdraw", time.Now(), &err)
	return e.applyBalanceChange(ctx, input, domain.TransactionWithdraw)
}

func (e *TransferEngine) applyBalanceChange(ctx context.Context, input DepositInput, typ domain.TransactionType) (*domain.Transaction, error) {
	if input.Username == "" {
		return nil, domain.ErrEmptyField
	}

	if !input.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	account, err := e.accounts.GetByUsername(ctx, input.Username)
	if err != nil {
		return nil, err
	}

	txns, err := e.withIdempotency(ctx, input.IdempotencyKey, func() ([]*domain.Transaction, error) {
		lockCtx, cancel := context.WithTimeout(ctx, e.lockTimeout)
		defer cancel()

		release, err := e.locks.Acquire(lockCtx, account.ID)
		if err != nil {
			return nil, err
		}
		defer release()

		delta := input.Amount
		if typ == domain.TransactionWithdraw {
			delta = -delta
		}

		if _, err := e.accounts.AdjustBalance(ctx, account.ID, delta); err != nil {
			return nil, err
		}

		txn, err := e.ledger.Append(ctx, account.ID, typ, input.Amount)
		if err != nil {
			// Compensate: the balance change must not survive a failed append.
			if _, undoErr := e.accounts.AdjustBalance(ctx, account.ID, -delta); undoErr != nil {
				return nil, errors.Join(err, undoErr)
			}

			return nil, err
		}

		return []*domain.Transaction{txn}, nil
	})
	if err != nil {
		return nil, err
	}

	return txns[0], nil
}

// TransferInput represents input for a transfer between two accounts.
type TransferInput struct {
	Sender         string
	Recipient      string
	Amount         domain.Amount
	IdempotencyKey string
}

// TransferResult holds the two linked records of a committed transfer.
type TransferResult struct {
	Out *domain.Transaction
	In  *domain.Transaction
}

// Transfer atomically moves amount from sender to recipient. It is
// observable exactly when both balance changes and both ledger records
// exist, or none of the four do.
func (e *TransferEngine) Transfer(ctx context.Context, input TransferInput) (result *TransferResult, err error) {
	defer e.observe("transfer", time.Now(), &err)

	if input.Sender == "" || input.Recipient == "" {
		return nil, domain.ErrEmptyField
	}

	if !input.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	if input.Sender == input.Recipient {
		return nil, domain.ErrSameAccount
	}

	sender, err := e.accounts.GetByUsername(ctx, input.Sender)
	if err != nil {
		return nil, err
	}

	recipient, err := e.accounts.GetByUsername(ctx, input.Recipient)
	if err != nil {
		return nil, err
	}

	txns, err := e.withIdempotency(ctx, input.IdempotencyKey, func() ([]*domain.Transaction, error) {
		lockCtx, cancel := context.WithTimeout(ctx, e.lockTimeout)
		defer cancel()

		release, err := e.locks.Acquire(lockCtx, sender.ID, recipient.ID)
		if err != nil {
			return nil, err
		}
		defer release()

		// Debit and credit commit together at the store, so no reader
		// ever sees the sender debited without the recipient credited.
		if err := e.accounts.TransferBalance(ctx, sender.ID, recipient.ID, input.Amount); err != nil {
			return nil, err
		}

		out, in, err := e.ledger.AppendTransfer(ctx, sender.ID, recipient.ID, input.Amount)
		if err != nil {
			// Compensate with the reverse transfer, which is just as atomic.
			if undoErr := e.accounts.TransferBalance(ctx, recipient.ID, sender.ID, input.Amount); undoErr != nil {
				return nil, errors.Join(err, undoErr)
			}

			return nil, err
		}

		return []*domain.Transaction{out, in}, nil
	})
	if err != nil {
		return nil, err
	}

	return &TransferResult{Out: txns[0], In: txns[1]}, nil
}

// History yields an account's ledger records, newest first.
func (e *TransferEngine) History(ctx context.Context, username string) (iter.Seq2[*domain.Transaction, error], error) {
	if username == "" {
		return nil, domain.ErrEmptyField
	}

	account, err := e.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	return e.ledger.HistoryFor(ctx, account.ID), nil
}

// withIdempotency runs op at most once per key. A replayed key returns
// the originally committed records; a key whose first invocation is
// still in flight fails with domain.ErrBusy. A failed op releases the
// key so the caller can retry. With no store or key configured, op runs
// unconditionally.
func (e *TransferEngine) withIdempotency(ctx context.Context, key string, op func() ([]*domain.Transaction, error)) ([]*domain.Transaction, error) {
	if e.idempotency == nil || key == "" {
		return op()
	}

	exists, existing, err := e.idempotency.CheckAndSet(ctx, key, nil, e.idempotencyTTL)
	if err != nil {
		return nil, err
	}

	if exists {
		var txns []*domain.Transaction
		if jsonErr := json.Unmarshal(existing, &txns); jsonErr != nil || len(txns) == 0 {
			// Placeholder value: the original invocation has not committed yet.
			return nil, domain.ErrBusy
		}

		return txns, nil
	}

	txns, err := op()
	if err != nil {
		// Release the key; the failure left no state behind, so a retry
		// with the same key must be allowed to run.
		if delErr := e.idempotency.Delete(ctx, key); delErr != nil {
			return nil, errors.Join(err, delErr)
		}

		return nil, err
	}

	payload, marshalErr := json.Marshal(txns)
	if marshalErr == nil {
		// A cache write failure does not undo a committed operation.
		_ = e.idempotency.Update(ctx, key, payload, e.idempotencyTTL)
	}

	return txns, nil
}

func (e *TransferEngine) observe(operation string, start time.Time, err *error) {
	if e.metrics == nil {
		return
	}

	e.metrics.Observe(operation, time.Since(start), *err)
}

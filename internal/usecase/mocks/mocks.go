// Package mocks provides hand-written fakes for the usecase interfaces.
// Each fake delegates to an optional Inner implementation unless a Func
// field overrides the call, which is how tests inject failures into an
// otherwise working store.
package mocks

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/iho/gobank/internal/domain"
	"github.com/iho/gobank/internal/usecase"
)

// ErrNotConfigured is returned when neither Inner nor a Func is set.
var ErrNotConfigured = errors.New("mock call not configured")

// MockAccountStore is a fake usecase.AccountStore.
type MockAccountStore struct {
	Inner usecase.AccountStore

	CreateFunc        func(ctx context.Context, account *domain.Account) error
	GetByUsernameFunc func(ctx context.Context, username string) (*domain.Account, error)
	GetByIDFunc       func(ctx context.Context, id string) (*domain.Account, error)
	AdjustBalanceFunc   func(ctx context.Context, id string, delta domain.Amount) (domain.Amount, error)
	TransferBalanceFunc func(ctx context.Context, fromID, toID string, amount domain.Amount) error
	TotalBalanceFunc    func(ctx context.Context) (domain.Amount, error)
}

func (m *MockAccountStore) Create(ctx context.Context, account *domain.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	if m.Inner != nil {
		return m.Inner.Create(ctx, account)
	}
	return ErrNotConfigured
}

func (m *MockAccountStore) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	if m.Inner != nil {
		return m.Inner.GetByUsername(ctx, username)
	}
	return nil, ErrNotConfigured
}

func (m *MockAccountStore) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	if m.Inner != nil {
		return m.Inner.GetByID(ctx, id)
	}
	return nil, ErrNotConfigured
}

func (m *MockAccountStore) AdjustBalance(ctx context.Context, id string, delta domain.Amount) (domain.Amount, error) {
	if m.AdjustBalanceFunc != nil {
		return m.AdjustBalanceFunc(ctx, id, delta)
	}
	if m.Inner != nil {
		return m.Inner.AdjustBalance(ctx, id, delta)
	}
	return 0, ErrNotConfigured
}

func (m *MockAccountStore) TransferBalance(ctx context.Context, fromID, toID string, amount domain.Amount) error {
	if m.TransferBalanceFunc != nil {
		return m.TransferBalanceFunc(ctx, fromID, toID, amount)
	}
	if m.Inner != nil {
		return m.Inner.TransferBalance(ctx, fromID, toID, amount)
	}
	return ErrNotConfigured
}

func (m *MockAccountStore) TotalBalance(ctx context.Context) (domain.Amount, error) {
	if m.TotalBalanceFunc != nil {
		return m.TotalBalanceFunc(ctx)
	}
	if m.Inner != nil {
		return m.Inner.TotalBalance(ctx)
	}
	return 0, ErrNotConfigured
}

// MockLedger is a fake usecase.TransactionLedger.
type MockLedger struct {
	Inner usecase.TransactionLedger

	AppendFunc         func(ctx context.Context, accountID string, typ domain.TransactionType, amount domain.Amount) (*domain.Transaction, error)
	AppendTransferFunc func(ctx context.Context, fromAccountID, toAccountID string, amount domain.Amount) (*domain.Transaction, *domain.Transaction, error)
	HistoryForFunc     func(ctx context.Context, accountID string) iter.Seq2[*domain.Transaction, error]
}

func (m *MockLedger) Append(ctx context.Context, accountID string, typ domain.TransactionType, amount domain.Amount) (*domain.Transaction, error) {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, accountID, typ, amount)
	}
	if m.Inner != nil {
		return m.Inner.Append(ctx, accountID, typ, amount)
	}
	return nil, ErrNotConfigured
}

func (m *MockLedger) AppendTransfer(ctx context.Context, fromAccountID, toAccountID string, amount domain.Amount) (*domain.Transaction, *domain.Transaction, error) {
	if m.AppendTransferFunc != nil {
		return m.AppendTransferFunc(ctx, fromAccountID, toAccountID, amount)
	}
	if m.Inner != nil {
		return m.Inner.AppendTransfer(ctx, fromAccountID, toAccountID, amount)
	}
	return nil, nil, ErrNotConfigured
}

func (m *MockLedger) HistoryFor(ctx context.Context, accountID string) iter.Seq2[*domain.Transaction, error] {
	if m.HistoryForFunc != nil {
		return m.HistoryForFunc(ctx, accountID)
	}
	if m.Inner != nil {
		return m.Inner.HistoryFor(ctx, accountID)
	}
	return func(yield func(*domain.Transaction, error) bool) {
		yield(nil, ErrNotConfigured)
	}
}

// MockIdempotencyStore is an in-memory usecase.IdempotencyStore.
type MockIdempotencyStore struct {
	mu     sync.Mutex
	values map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
	DeleteFunc      func(ctx context.Context, key string) error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{values: make(map[string][]byte)}
}

func (m *MockIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.values[key]; ok {
		return true, existing, nil
	}

	if response == nil {
		response = []byte("processing")
	}
	m.values[key] = response

	return false, nil, nil
}

func (m *MockIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = response

	return nil
}

func (m *MockIdempotencyStore) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)

	return nil
}

// MockTokenIssuer is a fake usecase.TokenIssuer.
type MockTokenIssuer struct {
	IssueFunc func(account *domain.Account) (string, error)
}

func (m *MockTokenIssuer) Issue(account *domain.Account) (string, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(account)
	}
	return "token-" + account.ID, nil
}

// PlainHasher is a trivial usecase.PasswordHasher for tests. Not a real
// digest; unit tests only care about the call contract.
type PlainHasher struct{}

func (PlainHasher) Hash(plaintext string) (string, error) {
	return "hashed:" + plaintext, nil
}

func (PlainHasher) Verify(plaintext, digest string) bool {
	return digest == "hashed:"+plaintext
}

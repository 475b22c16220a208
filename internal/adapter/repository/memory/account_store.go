// Package memory provides in-process implementations of the account
// store and the transaction ledger. All state lives behind mutexes;
// every operation is linearizable, and the two-account TransferBalance
// commits both sides in one critical section.
package memory

import (
	"context"
	"sync"

	"github.com/iho/gobank/internal/domain"
)

// AccountStore implements usecase.AccountStore backed by maps.
type AccountStore struct {
	mu         sync.RWMutex
	byID       map[string]*domain.Account
	byUsername map[string]*domain.Account
}

// NewAccountStore creates an empty AccountStore.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		byID:       make(map[string]*domain.Account),
		byUsername: make(map[string]*domain.Account),
	}
}

// Create stores a new account. Usernames are unique.
func (s *AccountStore) Create(_ context.Context, account *domain.Account) error {
	if err := account.ValidateNew(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[account.Username]; ok {
		return domain.ErrDuplicateUsername
	}

	cp := *account
	s.byID[cp.ID] = &cp
	s.byUsername[cp.Username] = &cp

	return nil
}

// GetByUsername returns a snapshot of the account with that username.
func (s *AccountStore) GetByUsername(_ context.Context, username string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byUsername[username]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	cp := *account

	return &cp, nil
}

// GetByID returns a snapshot of the account with that ID.
func (s *AccountStore) GetByID(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	cp := *account

	return &cp, nil
}

// AdjustBalance applies balance += delta if the result stays
// non-negative, and returns the new balance. The check and the write
// happen in one critical section.
func (s *AccountStore) AdjustBalance(_ context.Context, id string, delta domain.Amount) (domain.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[id]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}

	next := account.Balance + delta
	if next.IsNegative() {
		return 0, domain.ErrInsufficientFunds
	}

	account.Balance = next

	return next, nil
}

// TransferBalance debits from and credits to in one critical section,
// so no reader ever observes the debit without the credit. A transfer
// that would overdraw the sender changes nothing.
func (s *AccountStore) TransferBalance(_ context.Context, fromID, toID string, amount domain.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.byID[fromID]
	if !ok {
		return domain.ErrAccountNotFound
	}

	to, ok := s.byID[toID]
	if !ok {
		return domain.ErrAccountNotFound
	}

	next := from.Balance - amount
	if next.IsNegative() {
		return domain.ErrInsufficientFunds
	}

	from.Balance = next
	to.Balance += amount

	return nil
}

// TotalBalance returns the sum of all balances.
func (s *AccountStore) TotalBalance(_ context.Context) (domain.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total domain.Amount
	for _, account := range s.byID {
		total += account.Balance
	}

	return total, nil
}

package domain

import (
	"time"
)

// Account represents a bank account owned by a single user.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Balance      Amount    `json:"balance"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValidateDebit checks whether the account can be debited by amount
// without its balance going negative.
func (a *Account) ValidateDebit(amount Amount) error {
	if a.Balance-amount < 0 {
		return ErrInsufficientFunds
	}

	return nil
}

// ValidateNew checks the fields required at registration.
func (a *Account) ValidateNew() error {
	if a.Username == "" || a.PasswordHash == "" {
		return ErrEmptyField
	}

	if a.Balance.IsNegative() {
		return ErrInvalidAmount
	}

	return nil
}

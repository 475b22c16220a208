package domain

import "errors"

var (
	// Validation errors
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrEmptyField    = errors.New("required field is empty")

	// Account errors
	ErrDuplicateUsername = errors.New("username already exists")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// Transfer errors
	ErrSameAccount = errors.New("cannot transfer to same account")

	// Authentication errors
	ErrAuthFailed   = errors.New("authentication failed")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")

	// ErrBusy is returned when account locks cannot be acquired within
	// the configured wait. No state has been mutated at that point.
	ErrBusy = errors.New("account busy, try again")
)

// IsBusinessError reports whether err is an expected outcome returned to
// the caller rather than a storage or internal fault.
func IsBusinessError(err error) bool {
	for _, e := range []error{
		ErrInvalidAmount,
		ErrEmptyField,
		ErrDuplicateUsername,
		ErrAccountNotFound,
		ErrInsufficientFunds,
		ErrSameAccount,
		ErrAuthFailed,
		ErrBusy,
	} {
		if errors.Is(err, e) {
			return true
		}
	}

	return false
}

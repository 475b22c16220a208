package domain

import (
	"github.com/shopspring/decimal"
)

// minorUnitExponent is the number of decimal places carried by Amount.
// All balances are denominated in a single currency with cent precision.
const minorUnitExponent = 2

// Amount is a monetary amount in minor units (cents). Integer arithmetic
// only; decimal strings are converted at the edges.
type Amount int64

// ParseAmount converts a decimal string such as "12.34" into minor units.
// Sub-cent precision is rejected.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}

	shifted := d.Shift(minorUnitExponent)
	if !shifted.IsInteger() {
		return 0, ErrInvalidAmount
	}

	if !shifted.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}

	return Amount(shifted.IntPart()), nil
}

// String renders the amount as a fixed two-decimal string.
func (a Amount) String() string {
	return decimal.New(int64(a), -minorUnitExponent).StringFixed(minorUnitExponent)
}

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool {
	return a > 0
}

// IsNegative reports whether the amount is strictly less than zero.
func (a Amount) IsNegative() bool {
	return a < 0
}

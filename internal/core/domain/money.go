package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits stored for every amount.
const MoneyScale = 2

// MaxBalance is the largest value a NUMERIC(12,2) column can hold.
var MaxBalance = decimal.RequireFromString("9999999999.99")

var (
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	ErrAmountScale       = fmt.Errorf("amount must have at most %d decimal places", MoneyScale)
	ErrAmountTooLarge    = fmt.Errorf("amount must not exceed %s", MaxBalance.StringFixed(MoneyScale))
)

// CanonicalAmount renders d with exactly two fractional digits. Integrity
// hashes are computed over this form.
func CanonicalAmount(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

// ParseAmount parses a positive decimal amount with at most two fractional
// digits.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount checks sign and scale of an already-parsed amount.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrAmountNotPositive
	}
	if !d.Equal(d.Round(MoneyScale)) {
		return ErrAmountScale
	}
	if d.GreaterThan(MaxBalance) {
		return ErrAmountTooLarge
	}
	return nil
}

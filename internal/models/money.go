package models

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

const (
	// Currency is the only settlement currency of the wallet.
	Currency = "INR"

	// MinorDigits is the number of minor-unit digits (paise per rupee = 10^2).
	MinorDigits = 2
)

// ToMinor converts a currency amount to integer minor units. Amounts carrying
// more precision than the currency supports, or too large for int64 minor
// units, are rejected rather than rounded or wrapped.
func ToMinor(amount decimal.Decimal) (int64, error) {
	shifted := amount.Shift(MinorDigits)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, &ValidationError{Field: "amount", Message: fmt.Sprintf("%s has more than %d decimal places", amount.String(), MinorDigits)}
	}
	if shifted.GreaterThan(maxMinor) || shifted.LessThan(minMinor) {
		return 0, &ValidationError{Field: "amount", Message: fmt.Sprintf("%s is out of range", amount.String())}
	}
	return shifted.IntPart(), nil
}

// FromMinor converts integer minor units back to a currency amount.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorDigits)
}

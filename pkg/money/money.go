// Package money converts between minor-unit integers and decimal amounts.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Stored amounts are integers in hundredths of the currency unit.
const centsExponent = -2

// Commission applies rate to total and rounds half-up to a whole minor unit.
// The result is clamped to [0, total].
func Commission(totalCents int64, rate decimal.Decimal) int64 {
	if totalCents <= 0 || rate.Sign() <= 0 {
		return 0
	}
	amount := decimal.NewFromInt(totalCents).Mul(rate).Round(0).IntPart()
	if amount > totalCents {
		return totalCents
	}
	return amount
}

// ToDecimal converts minor units to a major-unit decimal (12345 -> 123.45).
func ToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, centsExponent)
}

// Format renders cents for humans, e.g. Format(900050, "USD") == "9000.50 USD".
func Format(cents int64, currency string) string {
	if currency == "" {
		return ToDecimal(cents).StringFixed(2)
	}
	return fmt.Sprintf("%s %s", ToDecimal(cents).StringFixed(2), currency)
}

// ParseCents parses a major-unit amount ("12.5") into minor units, rejecting
// sub-cent precision.
func ParseCents(value string) (int64, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("parse amount: %w", err)
	}
	scaled := amount.Shift(-centsExponent)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than two decimal places", value)
	}
	return scaled.IntPart(), nil
}

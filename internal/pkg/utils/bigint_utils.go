package utils

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// FromSmallestUnit converts an integer amount in the smallest unit to a decimal value.
// Example: amount=1234500000000000000, decimals=18 => 1.2345
func FromSmallestUnit(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// ToSmallestUnit converts a decimal value to its integer representation in the smallest unit.
// It fails when the value has more fractional digits than decimals allows.
func ToSmallestUnit(value decimal.Decimal, decimals uint8) (*big.Int, error) {
	scaled := value.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("value %s has more than %d fractional digits", value.String(), decimals)
	}
	return scaled.BigInt(), nil
}

// FormatBigInt converts a big.Int value to a human-readable string,
// considering the given number of decimals. Trailing zeros are trimmed.
func FormatBigInt(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	if decimals == 0 {
		return amount.String()
	}
	return FromSmallestUnit(amount, decimals).String()
}

package core

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// AmountDecimals is the number of decimal places between a display amount and
// the base units every record stores (1 unit = 10^9 base units).
const AmountDecimals int32 = 9

// FormatAmount renders base units as a decimal display amount, e.g.
// 1500000000 -> "1.5".
func FormatAmount(baseUnits uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(baseUnits), -AmountDecimals).String()
}

// ParseAmount converts a decimal display amount into base units. Uses decimal
// arithmetic so inputs like "0.1" convert exactly.
func ParseAmount(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount %q must not be negative", s)
	}

	scaled := d.Shift(AmountDecimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, AmountDecimals)
	}

	units := scaled.BigInt()
	if !units.IsUint64() {
		return 0, ErrMathOverflow
	}
	return units.Uint64(), nil
}

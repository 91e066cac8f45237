package payto

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	maxAmountLen   = 64
	maxAmountExp   = 40
	maxExtraDigits = 18
)

// ParseAmount reads a human amount such as "12.5" for a token with the
// given decimals. The amount must be positive and must not carry more
// fractional digits than the token has.
func ParseAmount(s string, decimals int32) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if len(s) > maxAmountLen {
		return decimal.Decimal{}, fmt.Errorf("%w: too long", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	// Truncate and Shift expand the coefficient, so the exponent is bounded
	// before either runs.
	if exp := d.Exponent(); exp < -decimals-maxExtraDigits || exp > maxAmountExp {
		return decimal.Decimal{}, fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if !d.Equal(d.Truncate(decimals)) {
		return decimal.Decimal{}, fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, decimals)
	}
	return d, nil
}

// BaseUnits converts a human amount to the token's smallest unit.
func BaseUnits(d decimal.Decimal, decimals int32) *big.Int {
	return d.Shift(decimals).BigInt()
}

// FromBaseUnits is the inverse of BaseUnits.
func FromBaseUnits(n *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(n, -decimals)
}

func FormatAmount(d decimal.Decimal, symbol string) string {
	return d.String() + " " + symbol
}

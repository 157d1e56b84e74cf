// Package kwh handles fixed-point kWh quantities: 4 decimal places,
// truncated rather than rounded, comma or point accepted as separator.
package kwh

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places kept on every quantity.
const Places = 4

var (
	// ErrInvalidQuantity reports input that does not parse as a number.
	ErrInvalidQuantity = errors.New("invalid kwh quantity")
	// ErrNonPositive reports a quantity that truncates to zero or below.
	ErrNonPositive = errors.New("kwh quantity must be > 0")
	// ErrZeroDelta reports a balance delta that truncates to zero.
	ErrZeroDelta = errors.New("kwh delta must not be zero")
)

// Truncate cuts d to 4 decimal places, always toward zero.
func Truncate(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(Places)
}

func parse(raw string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if s == "" {
		return decimal.Zero, ErrInvalidQuantity
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidQuantity
	}
	return Truncate(d), nil
}

// ParseQuantity parses a user-entered recharge quantity.
// The result is truncated to 4 decimals and must be strictly positive.
func ParseQuantity(raw string) (decimal.Decimal, error) {
	d, err := parse(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if d.Sign() <= 0 {
		return decimal.Zero, ErrNonPositive
	}
	return d, nil
}

// ParseDelta parses an admin-entered balance delta. Negative values are
// allowed; a delta that truncates to zero is rejected.
func ParseDelta(raw string) (decimal.Decimal, error) {
	d, err := parse(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsZero() {
		return decimal.Zero, ErrZeroDelta
	}
	return d, nil
}

// Format renders a quantity without trailing zeros ("4.5000" -> "4.5").
func Format(d decimal.Decimal) string {
	s := Truncate(d).StringFixed(Places)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

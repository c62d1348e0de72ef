package types

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units (cents). It encodes to JSON as a
// major-unit decimal number, e.g. 4748 <-> 47.48.
type Money int64

// MoneyFromDecimal converts a major-unit amount to cents, rounding half away from zero.
func MoneyFromDecimal(amount decimal.Decimal) Money {
	return Money(amount.Shift(2).Round(0).IntPart())
}

// Cents returns the raw minor-unit amount.
func (m Money) Cents() int64 {
	return int64(m)
}

// Decimal returns the major-unit amount.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Percent returns p percent of m, rounded to the nearest cent.
func (m Money) Percent(p decimal.Decimal) Money {
	return MoneyFromDecimal(m.Decimal().Mul(p).Div(decimal.NewFromInt(100)))
}

// Abs returns the absolute value.
func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().StringFixed(2)), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*m = 0
		return nil
	}
	var amount decimal.Decimal
	if err := amount.UnmarshalJSON(trimmed); err != nil {
		return fmt.Errorf("money: %w", err)
	}
	*m = MoneyFromDecimal(amount)
	return nil
}

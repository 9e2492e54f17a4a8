// Package money holds exact monetary amounts. Amounts are decimal, never
// float, and every arithmetic operation checks currencies match.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var ErrCurrencyMismatch = errors.New("money: currency mismatch")

type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

// New builds an amount rounded to two decimal places.
func New(amount decimal.Decimal, unit currency.Unit) Money {
	return Money{Amount: amount.Round(2), Currency: unit}
}

// FromMinorUnits builds an amount from an integer count of cents.
func FromMinorUnits(minor int64, unit currency.Unit) Money {
	return Money{Amount: decimal.New(minor, -2), Currency: unit}
}

func Zero(unit currency.Unit) Money {
	return Money{Amount: decimal.Zero, Currency: unit}
}

func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

func (m Money) MulQuantity(qty int) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(int64(qty))), Currency: m.Currency}
}

// MinorUnits converts the amount to cents, rounding half up.
func (m Money) MinorUnits() int64 {
	return m.Amount.Shift(2).Round(0).IntPart()
}

func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency.String()
}

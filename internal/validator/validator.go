// Package validator implements the Order Validator: balance-aware
// quantity/price sanity checks with no side effects.
package validator

import (
	apperrors "github.com/opensqt/gridbot/pkg/errors"

	"github.com/shopspring/decimal"
)

// Rules is the exchange's quantity/price precision and minimum notional,
// the inputs the validator adjusts an order against.
type Rules struct {
	PriceDecimals    int32
	QuantityDecimals int32
	MinNotional      decimal.Decimal
}

// Validator applies Rules against a proposed order.
type Validator struct {
	rules Rules
}

// New returns a Validator bound to rules.
func New(rules Rules) *Validator {
	return &Validator{rules: rules}
}

// ValidateBuy checks a proposed buy of quantity at price against the
// available quote balance, returning the quantity rounded down to the
// exchange's step and floored at the minimum notional. It
// fails with ErrInsufficientBalance if quantity*price exceeds balance.
func (v *Validator) ValidateBuy(balance, quantity, price decimal.Decimal) (decimal.Decimal, error) {
	if quantity.Mul(price).GreaterThan(balance) {
		return decimal.Zero, apperrors.ErrInsufficientBalance
	}
	return v.adjust(quantity, price), nil
}

// ValidateSell checks a proposed sell of quantity against the available
// base balance. It fails with ErrInsufficientCryptoBalance if quantity
// exceeds baseBalance.
func (v *Validator) ValidateSell(baseBalance, quantity decimal.Decimal) (decimal.Decimal, error) {
	if quantity.GreaterThan(baseBalance) {
		return decimal.Zero, apperrors.ErrInsufficientCryptoBalance
	}
	return v.adjust(quantity, decimal.Zero), nil
}

// adjust rounds quantity down to the exchange's quantity step and, if
// price is known (buys), ensures the resulting notional isn't below
// MinNotional by adding one quantity step at a time until it is not.
func (v *Validator) adjust(quantity, price decimal.Decimal) decimal.Decimal {
	step := decimal.New(1, -v.rules.QuantityDecimals)
	rounded := quantity.RoundFloor(v.rules.QuantityDecimals)
	if rounded.IsNegative() {
		rounded = decimal.Zero
	}

	if !price.IsZero() && v.rules.MinNotional.GreaterThan(decimal.Zero) {
		for rounded.Mul(price).LessThan(v.rules.MinNotional) && rounded.GreaterThan(decimal.Zero) {
			rounded = rounded.Add(step)
		}
	}
	return rounded
}

package ordermanager

import "github.com/shopspring/decimal"

// SizingPolicy computes order sizes in base currency units. Spot and
// perpetual trading use distinct formulas; factoring the
// difference out here is what lets a single OrderManager serve both
// instead of duplicating near-identical managers.
type SizingPolicy interface {
	// LevelSize returns the base-currency quantity for one grid level
	// given the account's total balance expressed in quote currency.
	LevelSize(totalBalanceQuote, currentPrice decimal.Decimal, numLevels int) decimal.Decimal

	// InitialPurchaseQuantity returns the quote-currency amount to spend
	// bringing the base position from currentBase to targetBase. A
	// zero-or-negative result means no initial purchase is needed.
	InitialPurchaseQuantity(targetBase, currentBase, currentPrice decimal.Decimal) decimal.Decimal
}

// ValidationPolicy adjusts a proposed order against balance and
// exchange-step constraints with no side effects.
// *validator.Validator satisfies this without either package importing
// the other.
type ValidationPolicy interface {
	ValidateBuy(balance, quantity, price decimal.Decimal) (decimal.Decimal, error)
	ValidateSell(baseBalance, quantity decimal.Decimal) (decimal.Decimal, error)
}

// SpotSizing implements SizingPolicy for ordinary spot trading: the
// account's value is split evenly across levels.
type SpotSizing struct{}

// LevelSize divides total balance evenly across every level and converts
// to base-currency units at currentPrice.
func (SpotSizing) LevelSize(totalBalanceQuote, currentPrice decimal.Decimal, numLevels int) decimal.Decimal {
	if numLevels <= 0 || currentPrice.IsZero() {
		return decimal.Zero
	}
	return totalBalanceQuote.Div(decimal.NewFromInt(int64(numLevels))).Div(currentPrice)
}

// InitialPurchaseQuantity returns the quote amount needed to buy
// (targetBase - currentBase) base units at currentPrice.
func (SpotSizing) InitialPurchaseQuantity(targetBase, currentBase, currentPrice decimal.Decimal) decimal.Decimal {
	delta := targetBase.Sub(currentBase)
	if delta.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return delta.Mul(currentPrice)
}

// PerpetualSizing implements SizingPolicy for leveraged perpetual
// trading: size is bounded by margin
// headroom rather than a flat balance split.
type PerpetualSizing struct {
	Leverage          decimal.Decimal
	MaintenanceMargin decimal.Decimal
}

// LevelSize computes the maximum position size a single level's margin
// allocation can support at the configured leverage, net of the
// maintenance margin reserve.
func (p PerpetualSizing) LevelSize(totalMarginQuote, currentPrice decimal.Decimal, numLevels int) decimal.Decimal {
	if numLevels <= 0 || currentPrice.IsZero() {
		return decimal.Zero
	}
	marginPerGrid := totalMarginQuote.Div(decimal.NewFromInt(int64(numLevels)))
	headroom := decimal.NewFromInt(1).Sub(p.MaintenanceMargin)
	return marginPerGrid.Mul(p.Leverage).Div(currentPrice).Mul(headroom)
}

// InitialPurchaseQuantity mirrors SpotSizing.InitialPurchaseQuantity:
// the perpetual variant still opens its initial position the same way,
// sized in notional quote terms; leverage does not enter the amount.
func (p PerpetualSizing) InitialPurchaseQuantity(targetBase, currentBase, currentPrice decimal.Decimal) decimal.Decimal {
	delta := targetBase.Sub(currentBase)
	if delta.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return delta.Mul(currentPrice)
}

var (
	_ SizingPolicy = SpotSizing{}
	_ SizingPolicy = PerpetualSizing{}
)

// Package tradingutils holds small decimal helpers: price and quantity
// rounding, pairing net profit (logged by the order manager), and
// arithmetic grid alignment.
package tradingutils

import (
	"github.com/shopspring/decimal"
)

// RoundPrice rounds a price to the exchange's price precision.
func RoundPrice(price decimal.Decimal, priceDecimals int) decimal.Decimal {
	return price.Round(int32(priceDecimals))
}

// RoundQuantity rounds a quantity to the exchange's amount precision.
func RoundQuantity(qty decimal.Decimal, qtyDecimals int) decimal.Decimal {
	return qty.Round(int32(qtyDecimals))
}

// CalculateNetProfit returns the per-unit profit of a buy/sell pairing after
// both legs' trading fees.
func CalculateNetProfit(buyPrice, sellPrice, buyFeeRate, sellFeeRate decimal.Decimal) decimal.Decimal {
	grossProfit := sellPrice.Sub(buyPrice)
	buyFee := buyPrice.Mul(buyFeeRate)
	sellFee := sellPrice.Mul(sellFeeRate)
	return grossProfit.Sub(buyFee).Sub(sellFee)
}

// FindNearestGridPrice aligns a price to the nearest level of an arithmetic
// ladder anchored at anchorPrice with the given spacing.
func FindNearestGridPrice(currentPrice, anchorPrice, interval decimal.Decimal) decimal.Decimal {
	if interval.IsZero() {
		return currentPrice
	}
	offset := currentPrice.Sub(anchorPrice)
	intervals := offset.Div(interval).Round(0)
	return anchorPrice.Add(intervals.Mul(interval))
}

package grid

import (
	"math"

	"github.com/opensqt/gridbot/internal/core"
	apperrors "github.com/opensqt/gridbot/pkg/errors"

	"github.com/shopspring/decimal"
)

// BuildLadder computes the sequence of numGrids prices between bottom and
// top and the ladder's central price. It is pure: callers
// turn the result into Levels.
func BuildLadder(bottom, top decimal.Decimal, numGrids int, spacing core.SpacingType) ([]decimal.Decimal, decimal.Decimal, error) {
	if bottom.LessThanOrEqual(decimal.Zero) {
		return nil, decimal.Zero, apperrors.NewConfigError("bottom", "must be greater than zero")
	}
	if top.LessThanOrEqual(bottom) {
		return nil, decimal.Zero, apperrors.NewConfigError("top", "must be greater than bottom")
	}
	if numGrids < 2 {
		return nil, decimal.Zero, apperrors.NewConfigError("num_grids", "must be at least 2")
	}

	switch spacing {
	case core.Arithmetic:
		return buildArithmetic(bottom, top, numGrids)
	case core.Geometric:
		return buildGeometric(bottom, top, numGrids)
	default:
		return nil, decimal.Zero, apperrors.NewConfigError("spacing_type", "unrecognized spacing type")
	}
}

// LeverageSpacingScale is the factor grid spacing widens by at the given
// leverage: 1 + (leverage-1)*0.1. At 1x it is exactly 1.
func LeverageSpacingScale(leverage decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if leverage.LessThanOrEqual(one) {
		return one
	}
	return one.Add(leverage.Sub(one).Mul(decimal.NewFromFloat(0.1)))
}

// ScaleRangeForLeverage widens [bottom, top] around its midpoint by
// LeverageSpacingScale, so a leveraged ladder built from the scaled range
// spaces its levels further apart as leverage rises. It fails if the
// widened bottom would fall to or below zero.
func ScaleRangeForLeverage(bottom, top, leverage decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	scale := LeverageSpacingScale(leverage)
	two := decimal.NewFromInt(2)
	mid := top.Add(bottom).Div(two)
	halfSpan := top.Sub(bottom).Div(two).Mul(scale)

	newBottom := mid.Sub(halfSpan)
	if newBottom.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero, apperrors.NewConfigError("leverage", "scaled grid range bottom is not positive")
	}
	return newBottom, mid.Add(halfSpan), nil
}

func buildArithmetic(bottom, top decimal.Decimal, numGrids int) ([]decimal.Decimal, decimal.Decimal, error) {
	step := top.Sub(bottom).Div(decimal.NewFromInt(int64(numGrids - 1)))
	prices := make([]decimal.Decimal, numGrids)
	for i := 0; i < numGrids; i++ {
		prices[i] = bottom.Add(step.Mul(decimal.NewFromInt(int64(i))))
	}
	central := top.Add(bottom).Div(decimal.NewFromInt(2))
	return prices, central, nil
}

func buildGeometric(bottom, top decimal.Decimal, numGrids int) ([]decimal.Decimal, decimal.Decimal, error) {
	ratioFloat, _ := top.Div(bottom).Float64()
	exponent := 1.0 / float64(numGrids-1)
	ratio := decimal.NewFromFloat(math.Pow(ratioFloat, exponent))

	prices := make([]decimal.Decimal, numGrids)
	cur := bottom
	for i := 0; i < numGrids; i++ {
		prices[i] = cur
		cur = cur.Mul(ratio)
	}

	var central decimal.Decimal
	mid := numGrids / 2
	if numGrids%2 == 1 {
		central = prices[mid]
	} else {
		central = prices[mid-1].Add(prices[mid]).Div(decimal.NewFromInt(2))
	}
	return prices, central, nil
}

package tradingutils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCalculateNetProfit(t *testing.T) {
	// Buy at 100, sell at 110, 0.1% fee on each leg.
	profit := CalculateNetProfit(dec("100"), dec("110"), dec("0.001"), dec("0.001"))
	assert.True(t, profit.Equal(dec("9.79")), "got %s", profit)
}

func TestCalculateNetProfitCanBeNegative(t *testing.T) {
	profit := CalculateNetProfit(dec("100"), dec("100.1"), dec("0.001"), dec("0.001"))
	assert.True(t, profit.IsNegative(), "fees exceed the one-tick move")
}

func TestFindNearestGridPrice(t *testing.T) {
	got := FindNearestGridPrice(dec("104.4"), dec("100"), dec("1"))
	assert.True(t, got.Equal(dec("104")))

	got = FindNearestGridPrice(dec("104.6"), dec("100"), dec("1"))
	assert.True(t, got.Equal(dec("105")))

	got = FindNearestGridPrice(dec("104.6"), dec("100"), decimal.Zero)
	assert.True(t, got.Equal(dec("104.6")), "zero interval passes the price through")
}

func TestRounding(t *testing.T) {
	assert.True(t, RoundPrice(dec("104.5678"), 2).Equal(dec("104.57")))
	assert.True(t, RoundQuantity(dec("0.1234567"), 6).Equal(dec("0.123457")))
}

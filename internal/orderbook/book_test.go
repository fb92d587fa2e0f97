package orderbook

import (
	"testing"

	"github.com/opensqt/gridbot/internal/core"
	"github.com/opensqt/gridbot/internal/grid"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func openOrder(id string, side core.Side, price string) *core.Order {
	return &core.Order{
		ID:        id,
		Symbol:    "BTC/USDT",
		Side:      side,
		Type:      core.LimitOrder,
		Price:     dec(price),
		Amount:    dec("1"),
		Remaining: dec("1"),
		Status:    core.StatusOpen,
	}
}

func TestAddAndLevelLookup(t *testing.T) {
	b := New()
	lvl := &grid.Level{Price: dec("100"), State: grid.ReadyToBuy}

	b.Add(openOrder("1", core.Buy, "100"), lvl)
	b.Add(openOrder("2", core.Sell, "110"), nil)

	assert.Equal(t, lvl, b.LevelFor("1"))
	assert.Nil(t, b.LevelFor("2"), "non-grid orders carry no level")
	assert.Nil(t, b.Get("missing"))
}

func TestOpenOrdersExcludesTerminalStatuses(t *testing.T) {
	b := New()
	b.Add(openOrder("1", core.Buy, "100"), nil)
	b.Add(openOrder("2", core.Sell, "110"), nil)

	changed, _ := b.UpdateStatus("2", core.StatusClosed, dec("1"), decimal.Zero, dec("110"), decimal.Zero)
	require.True(t, changed)

	open := b.OpenOrders()
	require.Len(t, open, 1)
	assert.Equal(t, "1", open[0].ID)

	assert.Len(t, b.All(), 2, "terminal orders are retained for reporting")
	assert.Equal(t, 1, b.FilledCount())
}

func TestUpdateStatusDedupsRepeatedTerminalReports(t *testing.T) {
	b := New()
	b.Add(openOrder("1", core.Buy, "100"), nil)

	changed, _ := b.UpdateStatus("1", core.StatusClosed, dec("1"), decimal.Zero, dec("100"), decimal.Zero)
	require.True(t, changed)

	// The same CLOSED report on the next poll must not register as a
	// change, so no second ORDER_FILLED can be published off it.
	changed, order := b.UpdateStatus("1", core.StatusClosed, dec("1"), decimal.Zero, dec("100"), decimal.Zero)
	assert.False(t, changed)
	require.NotNil(t, order)
	assert.Equal(t, core.StatusClosed, order.Status)
}

func TestUpdateStatusUnknownOrder(t *testing.T) {
	b := New()
	changed, order := b.UpdateStatus("nope", core.StatusClosed, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero)
	assert.False(t, changed)
	assert.Nil(t, order)
}

func TestUpdateStatusReturnsCloneNotAlias(t *testing.T) {
	b := New()
	b.Add(openOrder("1", core.Buy, "100"), nil)

	_, clone := b.UpdateStatus("1", core.StatusClosed, dec("1"), decimal.Zero, dec("100"), decimal.Zero)
	clone.Status = core.StatusCanceled

	assert.Equal(t, core.StatusClosed, b.Get("1").Status)
}

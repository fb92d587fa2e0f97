package execution

import (
	"context"
	"testing"
	"time"

	"github.com/opensqt/gridbot/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBacktestMarketOrderFillsAtBarClose(t *testing.T) {
	bt := NewBacktest()
	bt.SetBar(decimal.NewFromInt(105), time.Unix(0, 0))

	order, err := bt.ExecuteMarketOrder(context.Background(), core.Buy, "BTC/USDT", decimal.NewFromInt(1), decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, core.StatusClosed, order.Status)
	assert.True(t, order.Price.Equal(decimal.NewFromInt(105)))
	assert.True(t, order.Filled.Equal(decimal.NewFromInt(1)))
}

func TestBacktestLimitOrderRestsOpenAtRequestedPrice(t *testing.T) {
	bt := NewBacktest()
	order, err := bt.ExecuteLimitOrder(context.Background(), core.Sell, "BTC/USDT", decimal.NewFromInt(1), decimal.NewFromInt(110))
	require.NoError(t, err)
	assert.Equal(t, core.StatusOpen, order.Status)
	assert.True(t, order.Price.Equal(decimal.NewFromInt(110)))
	assert.True(t, order.Remaining.Equal(decimal.NewFromInt(1)))
}

func TestBacktestOrderIDsAreMonotonicallyIncreasing(t *testing.T) {
	bt := NewBacktest()
	first, err := bt.ExecuteLimitOrder(context.Background(), core.Buy, "BTC/USDT", decimal.NewFromInt(1), decimal.NewFromInt(100))
	require.NoError(t, err)
	second, err := bt.ExecuteLimitOrder(context.Background(), core.Buy, "BTC/USDT", decimal.NewFromInt(1), decimal.NewFromInt(101))
	require.NoError(t, err)

	assert.Equal(t, "bt-1", first.ID)
	assert.Equal(t, "bt-2", second.ID)
}

func TestBacktestMarkFilledClosesOpenOrder(t *testing.T) {
	bt := NewBacktest()
	order, err := bt.ExecuteLimitOrder(context.Background(), core.Buy, "BTC/USDT", decimal.NewFromInt(2), decimal.NewFromInt(100))
	require.NoError(t, err)

	filled, ok := bt.MarkFilled(order.ID, decimal.NewFromInt(2), decimal.Zero, time.Unix(1, 0))
	require.True(t, ok)
	assert.Equal(t, core.StatusClosed, filled.Status)
	assert.Empty(t, bt.OpenOrders())
}

func TestBacktestGetOrderUnknownIDFails(t *testing.T) {
	bt := NewBacktest()
	_, err := bt.GetOrder(context.Background(), "nope", "BTC/USDT")
	require.Error(t, err)
}

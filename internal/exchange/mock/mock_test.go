package mock

import (
	"context"
	"testing"

	"github.com/opensqt/gridbot/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceMarketOrderFillsImmediately(t *testing.T) {
	ex := New("mock", map[string]decimal.Decimal{"USDT": decimal.NewFromInt(1000)})
	order, err := ex.PlaceMarketOrder(context.Background(), core.Buy, "BTC/USDT", decimal.NewFromInt(1), decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, core.StatusClosed, order.Status)
}

func TestPlaceLimitOrderRestsOpenWithoutAutoFill(t *testing.T) {
	ex := New("mock", nil)
	ex.AutoFill = false
	order, err := ex.PlaceLimitOrder(context.Background(), core.Sell, "BTC/USDT", decimal.NewFromInt(1), decimal.NewFromInt(110))
	require.NoError(t, err)
	assert.Equal(t, core.StatusOpen, order.Status)

	ex.FillOrder(order.ID, decimal.NewFromInt(1))
	updated, err := ex.GetOrder(context.Background(), "BTC/USDT", order.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusClosed, updated.Status)
}

func TestCancelOrderMarksCanceled(t *testing.T) {
	ex := New("mock", nil)
	ex.AutoFill = false
	order, err := ex.PlaceLimitOrder(context.Background(), core.Buy, "BTC/USDT", decimal.NewFromInt(1), decimal.NewFromInt(100))
	require.NoError(t, err)

	require.NoError(t, ex.CancelOrder(context.Background(), "BTC/USDT", order.ID))
	updated, err := ex.GetOrder(context.Background(), "BTC/USDT", order.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCanceled, updated.Status)
}

func TestGetOrderUnknownIDFails(t *testing.T) {
	ex := New("mock", nil)
	_, err := ex.GetOrder(context.Background(), "BTC/USDT", "missing")
	require.Error(t, err)
}

package ordermanager

import (
	"context"
	"testing"
	"time"

	"github.com/opensqt/gridbot/internal/balance"
	"github.com/opensqt/gridbot/internal/core"
	"github.com/opensqt/gridbot/internal/eventbus"
	"github.com/opensqt/gridbot/internal/execution"
	"github.com/opensqt/gridbot/internal/grid"
	"github.com/opensqt/gridbot/internal/logging"
	"github.com/opensqt/gridbot/internal/orderbook"
	"github.com/opensqt/gridbot/internal/position"
	"github.com/opensqt/gridbot/internal/validator"

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

type fixture struct {
	m    *Manager
	grid *grid.Grid
	book *orderbook.Book
	bt   *execution.Backtest
	bal  *balance.Tracker
	bus  *eventbus.Bus
}

func newFixture(t *testing.T, quote, base decimal.Decimal) *fixture {
	t.Helper()
	logger := logging.NewNop()

	prices, central, err := grid.BuildLadder(dec("100"), dec("110"), 11, core.Arithmetic)
	require.NoError(t, err)
	g := grid.New("BTC/USDT", core.SimpleGrid, prices, central)

	book := orderbook.New()
	bt := execution.NewBacktest()
	bt.SetBar(dec("105"), time.Unix(0, 0))
	bal := balance.New(quote, base, logger)
	bus := eventbus.New(nil, logger)
	v := validator.New(validator.Rules{QuantityDecimals: 6})

	m := New(Config{
		Symbol:       "BTC/USDT",
		StrategyType: core.SimpleGrid,
		TradingFee:   decimal.Zero,
		Grid:         g,
		Book:         book,
		Balance:      bal,
		Execution:    bt,
		Sizing:       SpotSizing{},
		Validator:    v,
		Bus:          bus,
		Notifier:     nil,
		Logger:       logger,
	})
	return &fixture{m: m, grid: g, book: book, bt: bt, bal: bal, bus: bus}
}

func TestInitializeGridOrdersPlacesBuysBelowAndSellsAbove(t *testing.T) {
	f := newFixture(t, dec("1000"), decimal.Zero)
	f.m.InitializeGridOrders(context.Background(), dec("105"))

	open := f.book.OpenOrders()
	assert.NotEmpty(t, open)
	for _, o := range open {
		if o.Price.LessThan(dec("105")) {
			assert.Equal(t, core.Buy, o.Side)
		} else {
			assert.Equal(t, core.Sell, o.Side)
		}
	}
}

func TestHandleOrderFilledPairsBuyIntoSell(t *testing.T) {
	f := newFixture(t, dec("1000"), decimal.Zero)
	f.m.InitializeGridOrders(context.Background(), dec("105"))

	// Find the buy resting at 104 and fill it directly through the
	// backtest strategy and book, as the status tracker/fill simulator
	// would.
	level := f.grid.Level(dec("104"))
	require.NotNil(t, level)
	orderID := level.Snapshot().OrderID
	require.NotEmpty(t, orderID)

	filled, ok := f.bt.MarkFilled(orderID, dec("1"), decimal.Zero, time.Unix(1, 0))
	require.True(t, ok)
	changed, updated := f.book.UpdateStatus(orderID, core.StatusClosed, filled.Filled, decimal.Zero, filled.Average, decimal.Zero)
	require.True(t, changed)

	require.NoError(t, f.bus.Publish(context.Background(), core.TopicOrderFilled, updated))

	snap := f.bal.Snapshot()
	assert.True(t, snap.BaseBalance.GreaterThan(decimal.Zero))

	// 105 is READY_TO_BUY, so the smallest sell-placeable level above 104
	// is 106.
	paired := f.grid.Level(dec("106"))
	require.NotNil(t, paired)
	assert.Equal(t, grid.WaitingForSellFill, paired.Snapshot().State)
}

func TestHandleOrderFilledIsIsolatedToItsOwnReservation(t *testing.T) {
	f := newFixture(t, dec("1000"), decimal.Zero)
	f.m.InitializeGridOrders(context.Background(), dec("105"))

	before := f.bal.Snapshot()
	initialTotal := before.QuoteBalance.Add(before.ReservedQuote)

	level := f.grid.Level(dec("100"))
	orderID := level.Snapshot().OrderID
	require.NotEmpty(t, orderID)
	order := f.book.Get(orderID)

	filled, ok := f.bt.MarkFilled(orderID, order.Amount, decimal.Zero, time.Unix(1, 0))
	require.True(t, ok)
	_, updated := f.book.UpdateStatus(orderID, core.StatusClosed, filled.Filled, decimal.Zero, filled.Average, decimal.Zero)
	require.NoError(t, f.bus.Publish(context.Background(), core.TopicOrderFilled, updated))

	// Reservation conservation: the fill consumed exactly its own cost;
	// the sell it re-placed at the paired level reserves base, not quote.
	after := f.bal.Snapshot()
	cost := order.Amount.Mul(order.Price)
	assert.True(t, after.QuoteBalance.Add(after.ReservedQuote).Equal(initialTotal.Sub(cost)),
		"quote conservation broke: %s + %s vs %s - %s", after.QuoteBalance, after.ReservedQuote, initialTotal, cost)
}

func TestSimulateOrderFillsProcessesBuysBeforeSells(t *testing.T) {
	f := newFixture(t, dec("1000"), dec("2"))
	f.m.InitializeGridOrders(context.Background(), dec("105"))

	// The buy at 104 and the sell at 106 rest inside the bar's range.
	var inRange []string
	for _, o := range f.book.OpenOrders() {
		if !o.Price.LessThan(dec("104")) && !o.Price.GreaterThan(dec("106")) {
			inRange = append(inRange, o.ID)
		}
	}
	require.Len(t, inRange, 2)

	var sides []core.Side
	f.bus.Subscribe(core.TopicOrderFilled, func(ctx context.Context, payload interface{}) error {
		sides = append(sides, payload.(*core.Order).Side)
		return nil
	})

	f.m.SimulateOrderFills(context.Background(), dec("106"), dec("104"), time.Unix(2, 0))

	// Every order resting in range at the start of the bar is filled; the
	// paired orders those fills place are not filled in the same bar.
	for _, id := range inRange {
		assert.Equal(t, core.StatusClosed, f.book.Get(id).Status)
	}
	assert.Equal(t, []core.Side{core.Buy, core.Sell}, sides)
}

func TestExecuteTakeProfitOrStopLossRejectsBothTrue(t *testing.T) {
	f := newFixture(t, dec("1000"), decimal.Zero)
	err := f.m.ExecuteTakeProfitOrStopLoss(context.Background(), dec("120"), true, true)
	require.Error(t, err)
}

func TestExecuteTakeProfitOrStopLossLiquidatesBaseAndPublishesStopBot(t *testing.T) {
	f := newFixture(t, decimal.Zero, dec("1"))

	stopped := make(chan string, 1)
	f.bus.Subscribe(core.TopicStopBot, func(ctx context.Context, payload interface{}) error {
		stopped <- payload.(string)
		return nil
	})

	require.NoError(t, f.m.ExecuteTakeProfitOrStopLoss(context.Background(), dec("120"), true, false))

	select {
	case reason := <-stopped:
		assert.Equal(t, "take_profit", reason)
	case <-time.After(time.Second):
		t.Fatal("STOP_BOT was not published")
	}

	assert.True(t, f.bal.Snapshot().BaseBalance.IsZero())
	assert.NotEmpty(t, f.book.All(), "the liquidation order is retained for reporting")
}

func TestPerformInitialPurchaseSkippedWhenTargetAlreadyMet(t *testing.T) {
	f := newFixture(t, dec("1000"), dec("5"))
	require.NoError(t, f.m.PerformInitialPurchase(context.Background(), dec("100"), dec("1"), core.Backtest))
	assert.Empty(t, f.book.OpenOrders())
	assert.Empty(t, f.book.All())
}

func TestGridFillUpdatesPerpetualPositions(t *testing.T) {
	logger := logging.NewNop()
	prices, central, err := grid.BuildLadder(dec("100"), dec("110"), 11, core.Arithmetic)
	require.NoError(t, err)
	g := grid.New("BTC/USDT", core.SimpleGrid, prices, central)

	book := orderbook.New()
	bt := execution.NewBacktest()
	bt.SetBar(dec("105"), time.Unix(0, 0))
	bus := eventbus.New(nil, logger)
	positions := position.New(dec("0.01"), logger)

	m := New(Config{
		Symbol:       "BTC/USDT",
		StrategyType: core.SimpleGrid,
		Grid:         g,
		Book:         book,
		Balance:      balance.New(dec("10000"), decimal.Zero, logger),
		Execution:    bt,
		Sizing:       PerpetualSizing{Leverage: dec("5"), MaintenanceMargin: dec("0.01")},
		Validator:    validator.New(validator.Rules{QuantityDecimals: 6}),
		Bus:          bus,
		Logger:       logger,
		Positions:    positions,
	})

	m.InitializeGridOrders(context.Background(), dec("105"))

	// Leverage-sized orders are large; only the lowest levels fund, so
	// exercise the one guaranteed to have been placed.
	level := g.Level(dec("100"))
	orderID := level.Snapshot().OrderID
	require.NotEmpty(t, orderID)
	order := book.Get(orderID)

	filled, ok := bt.MarkFilled(orderID, order.Amount, decimal.Zero, time.Unix(1, 0))
	require.True(t, ok)
	_, updated := book.UpdateStatus(orderID, core.StatusClosed, filled.Filled, decimal.Zero, filled.Average, decimal.Zero)
	require.NoError(t, bus.Publish(context.Background(), core.TopicOrderFilled, updated))

	assert.True(t, positions.At(position.Long, dec("100")).Equal(order.Amount))
}

func TestHedgedGridSellFillOpensShortPosition(t *testing.T) {
	logger := logging.NewNop()
	prices, central, err := grid.BuildLadder(dec("100"), dec("110"), 11, core.Arithmetic)
	require.NoError(t, err)
	g := grid.New("BTC/USDT", core.HedgedGrid, prices, central)

	book := orderbook.New()
	bt := execution.NewBacktest()
	bt.SetBar(dec("105"), time.Unix(0, 0))
	bus := eventbus.New(nil, logger)
	positions := position.New(dec("0.01"), logger)

	m := New(Config{
		Symbol:       "BTC/USDT",
		StrategyType: core.HedgedGrid,
		Grid:         g,
		Book:         book,
		Balance:      balance.New(decimal.Zero, dec("300"), logger),
		Execution:    bt,
		Sizing:       PerpetualSizing{Leverage: dec("5"), MaintenanceMargin: dec("0.01")},
		Validator:    validator.New(validator.Rules{QuantityDecimals: 6}),
		Bus:          bus,
		Logger:       logger,
		Positions:    positions,
	})

	m.InitializeGridOrders(context.Background(), dec("105"))

	// A hedged interior level sells with no prior buy at that price: the
	// fill is a genuine short open, not a long reduction.
	level := g.Level(dec("106"))
	orderID := level.Snapshot().OrderID
	require.NotEmpty(t, orderID)
	order := book.Get(orderID)
	require.Equal(t, core.Sell, order.Side)

	filled, ok := bt.MarkFilled(orderID, order.Amount, decimal.Zero, time.Unix(1, 0))
	require.True(t, ok)
	_, updated := book.UpdateStatus(orderID, core.StatusClosed, filled.Filled, decimal.Zero, filled.Average, decimal.Zero)
	require.NoError(t, bus.Publish(context.Background(), core.TopicOrderFilled, updated))

	assert.True(t, positions.At(position.Short, dec("106")).Equal(order.Amount))
	assert.True(t, positions.At(position.Long, dec("106")).IsZero())
}

func TestPerformInitialPurchaseCreditsBalancesThroughEventPath(t *testing.T) {
	f := newFixture(t, dec("1000"), decimal.Zero)
	f.bt.SetBar(dec("100"), time.Unix(0, 0))
	require.NoError(t, f.m.PerformInitialPurchase(context.Background(), dec("100"), dec("2"), core.Backtest))

	snap := f.bal.Snapshot()
	assert.True(t, snap.BaseBalance.Equal(dec("2")), "got %s", snap.BaseBalance)
	assert.True(t, snap.QuoteBalance.Equal(dec("800")), "got %s", snap.QuoteBalance)
}

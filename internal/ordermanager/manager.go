// Package ordermanager implements the Order Manager: grid
// initialization, fill handling and pairing, take-profit/stop-loss
// execution, and backtest fill simulation.
package ordermanager

import (
	"context"
	"fmt"
	"time"

	"github.com/opensqt/gridbot/internal/core"
	"github.com/opensqt/gridbot/internal/grid"
	"github.com/opensqt/gridbot/internal/orderbook"
	"github.com/opensqt/gridbot/internal/position"
	"github.com/opensqt/gridbot/pkg/tradingutils"

	"github.com/shopspring/decimal"
)

// balanceTracker is the subset of *balance.Tracker the manager depends
// on, kept narrow so tests can fake it without the real package.
type balanceTracker interface {
	Snapshot() core.BalanceSnapshot
	AccountValue(lastPrice decimal.Decimal) decimal.Decimal
	ReserveForBuy(amountQuote decimal.Decimal) error
	ReserveForSell(qtyBase decimal.Decimal) error
	ReleaseBuyReservation(amountQuote decimal.Decimal)
	ReleaseSellReservation(qtyBase decimal.Decimal)
	ApplyBuyFill(qty, price, fee, reservedQuote decimal.Decimal)
	ApplySellFill(qty, price, fee, reservedBase decimal.Decimal)
}

// backtestFiller is implemented by *execution.Backtest; SimulateOrderFills
// type-asserts the configured strategy against it and is a no-op in live
// and paper-trading modes.
type backtestFiller interface {
	OpenOrders() []*core.Order
	MarkFilled(id string, filled, remaining decimal.Decimal, ts time.Time) (*core.Order, bool)
}

// Manager is a single order manager parameterized by a
// SizingPolicy/ValidationPolicy pair, so spot and perpetual trading
// share one implementation instead of two near-identical managers.
type Manager struct {
	symbol       string
	strategyType core.StrategyType
	feeRate      decimal.Decimal

	grid      *grid.Grid
	book      *orderbook.Book
	balance   balanceTracker
	execution core.ExecutionStrategy
	sizing    SizingPolicy
	validator ValidationPolicy
	bus       core.EventBus
	notifier  core.Notifier
	logger    core.Logger

	// positions is the perpetual variant's per-level contract inventory;
	// nil for spot trading.
	positions *position.Tracker
}

// Config bundles Manager's dependencies.
type Config struct {
	Symbol       string
	StrategyType core.StrategyType
	TradingFee   decimal.Decimal

	Grid      *grid.Grid
	Book      *orderbook.Book
	Balance   balanceTracker
	Execution core.ExecutionStrategy
	Sizing    SizingPolicy
	Validator ValidationPolicy
	Bus       core.EventBus
	Notifier  core.Notifier
	Logger    core.Logger
	Positions *position.Tracker // perpetual variant only
}

// New returns a Manager subscribed to ORDER_FILLED on cfg.Bus.
func New(cfg Config) *Manager {
	m := &Manager{
		symbol:       cfg.Symbol,
		strategyType: cfg.StrategyType,
		feeRate:      cfg.TradingFee,
		grid:         cfg.Grid,
		book:         cfg.Book,
		balance:      cfg.Balance,
		execution:    cfg.Execution,
		sizing:       cfg.Sizing,
		validator:    cfg.Validator,
		bus:          cfg.Bus,
		notifier:     cfg.Notifier,
		logger:       cfg.Logger.WithField("component", "order_manager"),
		positions:    cfg.Positions,
	}
	if m.bus != nil {
		m.bus.Subscribe(core.TopicOrderFilled, m.handleOrderFilled)
	}
	return m
}

// InitializeGridOrders places the initial ladder of resting limit orders
//: buy levels below currentPrice, sell levels above it.
// Errors on one level are logged and notified, never aborting the rest
// of the ladder.
func (m *Manager) InitializeGridOrders(ctx context.Context, currentPrice decimal.Decimal) {
	levels := m.grid.Levels()
	numLevels := len(levels)
	total := m.balance.AccountValue(currentPrice)

	for _, snap := range levels {
		switch {
		case snap.Price.LessThan(currentPrice) && grid.CanPlaceOrder(snap.State, core.Buy):
			m.placeInitialLevel(ctx, core.Buy, snap.Price, total, currentPrice, numLevels)
		case snap.Price.GreaterThan(currentPrice) && grid.CanPlaceOrder(snap.State, core.Sell):
			m.placeInitialLevel(ctx, core.Sell, snap.Price, total, currentPrice, numLevels)
		}
	}
}

func (m *Manager) placeInitialLevel(ctx context.Context, side core.Side, levelPrice, totalBalance, currentPrice decimal.Decimal, numLevels int) {
	level := m.grid.Level(levelPrice)
	if level == nil {
		return
	}

	qty := m.sizing.LevelSize(totalBalance, currentPrice, numLevels)
	adjustedQty, err := m.validateAndReserve(side, qty, levelPrice)
	if err != nil {
		m.logger.Warn("skipping grid level, validation failed", "price", levelPrice, "side", side, "error", err)
		m.notify(ctx, core.NotifyOrderFailed, levelPrice, err)
		return
	}

	order, err := m.execution.ExecuteLimitOrder(ctx, side, m.symbol, adjustedQty, levelPrice)
	if err != nil {
		m.releaseReservation(side, adjustedQty, levelPrice)
		m.logger.Error("failed to place initial grid order", "price", levelPrice, "side", side, "error", err)
		m.notify(ctx, core.NotifyOrderFailed, levelPrice, err)
		return
	}

	m.book.Add(order, level)
	level.Place(side, order.ID)
	if m.notifier != nil {
		m.notifier.Notify(ctx, core.NotifyOrderPlaced, map[string]string{"price": levelPrice.String(), "side": string(side)})
	}
}

// PerformInitialPurchase issues the market buy that brings the base
// position to targetBase. In backtest mode the fill is
// credited through the normal ORDER_FILLED event path; in live/paper
// mode UpdateAfterInitialPurchase is called directly using the
// exchange-reported average.
func (m *Manager) PerformInitialPurchase(ctx context.Context, currentPrice, targetBase decimal.Decimal, mode core.TradingMode) error {
	snap := m.balance.Snapshot()
	quoteAmount := m.sizing.InitialPurchaseQuantity(targetBase, snap.BaseBalance, currentPrice)
	if quoteAmount.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	qty := quoteAmount.Div(currentPrice)

	order, err := m.execution.ExecuteMarketOrder(ctx, core.Buy, m.symbol, qty, currentPrice)
	if err != nil {
		m.logger.Error("initial purchase failed", "error", err)
		m.notify(ctx, core.NotifyOrderFailed, currentPrice, err)
		return err
	}
	m.book.Add(order, nil)

	if mode == core.Backtest {
		// Awaited fan-out, so balances are credited before the caller
		// goes on to place the initial ladder.
		return m.bus.Publish(ctx, core.TopicOrderFilled, order)
	}
	m.UpdateAfterInitialPurchase(order)
	return nil
}

// UpdateAfterInitialPurchase credits balances for a live/paper initial
// purchase using the exchange-reported fill. The purchase
// was never reserved, so the cost comes straight out of the free bucket.
func (m *Manager) UpdateAfterInitialPurchase(order *core.Order) {
	m.balance.ApplyBuyFill(order.Filled, order.Average, order.Fee, decimal.Zero)
}

// handleOrderFilled implements core.Handler for ORDER_FILLED: credit
// balances unconditionally, then — only for orders tied to a grid
// level — transition the level and place its paired order.
func (m *Manager) handleOrderFilled(ctx context.Context, payload interface{}) error {
	order, ok := payload.(*core.Order)
	if !ok || order == nil {
		return nil
	}

	level := m.book.LevelFor(order.ID)

	// Grid orders carried a reservation from placement time; TP/SL and
	// initial-purchase orders did not.
	reservedQuote, reservedBase := decimal.Zero, decimal.Zero
	if level != nil {
		if order.Side == core.Buy {
			reservedQuote = order.Amount.Mul(order.Price)
		} else {
			reservedBase = order.Amount
		}
	}

	if order.Side == core.Buy {
		m.balance.ApplyBuyFill(order.Filled, order.Average, order.Fee, reservedQuote)
	} else {
		m.balance.ApplySellFill(order.Filled, order.Average, order.Fee, reservedBase)
	}

	if level == nil {
		return nil
	}

	if m.positions != nil {
		m.positions.ApplyFill(order.Side, order.Price, order.Filled)
	}

	if order.Side == core.Buy {
		paired := m.grid.PairSellForBuy(level.Snapshot().Price)
		level.Fill(core.Buy, m.strategyType, paired)
		if paired != nil {
			m.placePairedOrder(ctx, core.Sell, paired, order.Filled)
		}
		return nil
	}

	if linked := level.Snapshot().PairedPrice; linked != "" {
		if buyPrice, perr := decimal.NewFromString(linked); perr == nil {
			profit := tradingutils.CalculateNetProfit(buyPrice, order.Average, m.feeRate, m.feeRate)
			m.logger.Info("grid pair completed",
				"buy_price", buyPrice, "sell_price", order.Average, "net_profit_per_unit", profit)
		}
	}

	paired := m.grid.PairBuyForSell(level)
	level.Fill(core.Sell, m.strategyType, paired)
	if paired != nil {
		m.placePairedOrder(ctx, core.Buy, paired, order.Filled)
	}
	return nil
}

// placePairedOrder places the other side of a completed pair. Failure
// here does not roll back the fill that triggered it; it is logged and
// notified.
func (m *Manager) placePairedOrder(ctx context.Context, side core.Side, level *grid.Level, qty decimal.Decimal) {
	price := level.Snapshot().Price
	adjustedQty, err := m.validateAndReserve(side, qty, price)
	if err != nil {
		m.logger.Error("paired order validation failed", "side", side, "price", price, "error", err)
		m.notify(ctx, core.NotifyOrderFailed, price, err)
		return
	}

	order, err := m.execution.ExecuteLimitOrder(ctx, side, m.symbol, adjustedQty, price)
	if err != nil {
		m.releaseReservation(side, adjustedQty, price)
		m.logger.Error("paired order placement failed", "side", side, "price", price, "error", err)
		m.notify(ctx, core.NotifyOrderFailed, price, err)
		return
	}

	m.book.Add(order, level)
	level.Place(side, order.ID)
}

// ExecuteTakeProfitOrStopLoss liquidates the entire base position at
// market and publishes STOP_BOT. Exactly one of tp/sl must
// be true.
func (m *Manager) ExecuteTakeProfitOrStopLoss(ctx context.Context, currentPrice decimal.Decimal, tp, sl bool) error {
	if tp == sl {
		return fmt.Errorf("ordermanager: exactly one of take-profit or stop-loss must trigger")
	}

	snap := m.balance.Snapshot()
	if snap.BaseBalance.GreaterThan(decimal.Zero) {
		order, err := m.execution.ExecuteMarketOrder(ctx, core.Sell, m.symbol, snap.BaseBalance, currentPrice)
		if err != nil {
			m.logger.Error("take-profit/stop-loss liquidation failed", "error", err)
		} else {
			m.book.Add(order, nil)
			m.balance.ApplySellFill(order.Filled, order.Average, order.Fee, decimal.Zero)
		}
	}

	kind := core.NotifyStopLossTriggered
	reason := "stop_loss"
	if tp {
		kind = core.NotifyTakeProfitTriggered
		reason = "take_profit"
	}
	if m.notifier != nil {
		m.notifier.Notify(ctx, kind, map[string]string{"price": currentPrice.String()})
	}
	m.bus.PublishSync(core.TopicStopBot, reason)
	return nil
}

// SimulateOrderFills fills every open limit order whose price sits
// within [low, high], buys before sells. It is a no-op
// when the configured execution strategy isn't a backtest strategy.
func (m *Manager) SimulateOrderFills(ctx context.Context, high, low decimal.Decimal, ts time.Time) {
	filler, ok := m.execution.(backtestFiller)
	if !ok {
		return
	}

	var buys, sells []*core.Order
	for _, o := range filler.OpenOrders() {
		if o.Price.LessThan(low) || o.Price.GreaterThan(high) {
			continue
		}
		if o.Side == core.Buy {
			buys = append(buys, o)
		} else {
			sells = append(sells, o)
		}
	}

	for _, o := range append(buys, sells...) {
		fee := o.Amount.Mul(o.Price).Mul(m.feeRate)
		filled, ok := filler.MarkFilled(o.ID, o.Amount, decimal.Zero, ts)
		if !ok {
			continue
		}
		if changed, updated := m.book.UpdateStatus(o.ID, core.StatusClosed, filled.Filled, decimal.Zero, filled.Average, fee); changed {
			updated.Fee = fee
			// Awaited so each simulated fill's balance and pairing effects
			// land before the next fill of the same bar is processed.
			if err := m.bus.Publish(ctx, core.TopicOrderFilled, updated); err != nil {
				m.logger.Error("publishing simulated fill failed", "order_id", o.ID, "error", err)
			}
		}
	}
}

func (m *Manager) validateAndReserve(side core.Side, qty, price decimal.Decimal) (decimal.Decimal, error) {
	snap := m.balance.Snapshot()
	if side == core.Buy {
		adjusted, err := m.validator.ValidateBuy(snap.QuoteBalance, qty, price)
		if err != nil {
			return decimal.Zero, err
		}
		if err := m.balance.ReserveForBuy(adjusted.Mul(price)); err != nil {
			return decimal.Zero, err
		}
		return adjusted, nil
	}
	adjusted, err := m.validator.ValidateSell(snap.BaseBalance, qty)
	if err != nil {
		return decimal.Zero, err
	}
	if err := m.balance.ReserveForSell(adjusted); err != nil {
		return decimal.Zero, err
	}
	return adjusted, nil
}

func (m *Manager) releaseReservation(side core.Side, qty, price decimal.Decimal) {
	if side == core.Buy {
		m.balance.ReleaseBuyReservation(qty.Mul(price))
		return
	}
	m.balance.ReleaseSellReservation(qty)
}

func (m *Manager) notify(ctx context.Context, kind core.NotificationType, price decimal.Decimal, err error) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(ctx, kind, map[string]string{"price": price.String(), "error": err.Error()})
}

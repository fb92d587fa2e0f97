// Package strategy implements the top-level trading loop:
// trigger detection, per-bar and per-tick handling, and dispatch between
// the backtest and live/paper modes.
package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opensqt/gridbot/internal/core"
	"github.com/opensqt/gridbot/internal/orderbook"
	"github.com/opensqt/gridbot/pkg/telemetry"

	apperrors "github.com/opensqt/gridbot/pkg/errors"

	"github.com/shopspring/decimal"
)

// DefaultTickerInterval is how often the live/paper loop samples the
// ticker when the config leaves it unset.
const DefaultTickerInterval = 3 * time.Second

// OrderManager is the subset of *ordermanager.Manager the loop drives,
// kept narrow so tests can fake it.
type OrderManager interface {
	PerformInitialPurchase(ctx context.Context, currentPrice, targetBase decimal.Decimal, mode core.TradingMode) error
	InitializeGridOrders(ctx context.Context, currentPrice decimal.Decimal)
	SimulateOrderFills(ctx context.Context, high, low decimal.Decimal, ts time.Time)
	ExecuteTakeProfitOrStopLoss(ctx context.Context, currentPrice decimal.Decimal, tp, sl bool) error
}

type balanceTracker interface {
	Snapshot() core.BalanceSnapshot
	AccountValue(lastPrice decimal.Decimal) decimal.Decimal
}

// barSetter is implemented by *execution.Backtest; the loop pins each
// bar's close and timestamp on it before placing or filling orders.
type barSetter interface {
	SetBar(close decimal.Decimal, ts time.Time)
}

// Threshold is the shared shape of the take-profit and stop-loss
// settings.
type Threshold struct {
	Enabled   bool
	Threshold decimal.Decimal
}

// Config is the loop's tuning surface.
type Config struct {
	Symbol       string
	Mode         core.TradingMode
	Timeframe    string
	StartDate    time.Time
	EndDate      time.Time
	TriggerPrice decimal.Decimal // callers default this to the grid's central price
	TakeProfit   Threshold
	StopLoss     Threshold

	// TickerInterval paces the live/paper loop; zero means
	// DefaultTickerInterval.
	TickerInterval time.Duration
}

// Deps bundles the collaborators a Strategy drives.
type Deps struct {
	Manager   OrderManager
	Balance   balanceTracker
	Execution core.ExecutionStrategy
	Exchange  core.Exchange
	Book      *orderbook.Book
	Bus       core.EventBus
	Logger    core.Logger
	Metrics   *telemetry.Metrics // optional
}

// Strategy owns the top-level control loop. Arm-once semantics, the
// last-price edge detector, and the account-value series all live here;
// everything stateful about orders and balances lives behind Deps.
type Strategy struct {
	cfg       Config
	manager   OrderManager
	balance   balanceTracker
	execution core.ExecutionStrategy
	exchange  core.Exchange
	book      *orderbook.Book
	bus       core.EventBus
	logger    core.Logger
	metrics   *telemetry.Metrics

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	armed   bool
	hasLast bool
	last    decimal.Decimal
	values  []decimal.Decimal
}

// New returns a Strategy ready to Run.
func New(cfg Config, deps Deps) *Strategy {
	if cfg.TickerInterval <= 0 {
		cfg.TickerInterval = DefaultTickerInterval
	}
	return &Strategy{
		cfg:       cfg,
		manager:   deps.Manager,
		balance:   deps.Balance,
		execution: deps.Execution,
		exchange:  deps.Exchange,
		book:      deps.Book,
		bus:       deps.Bus,
		logger:    deps.Logger.WithField("component", "trading_strategy"),
		metrics:   deps.Metrics,
	}
}

// Run executes the trading session for the configured mode and blocks
// until it finishes: data exhaustion or TP/SL for backtests, Stop or a
// fatal error for live/paper. Run is not reentrant; a second call while
// running returns immediately.
func (s *Strategy) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stop = make(chan struct{})
	s.armed = false
	s.hasLast = false
	s.values = nil
	stop := s.stop
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("starting trading session",
		"mode", string(s.cfg.Mode), "symbol", s.cfg.Symbol, "trigger_price", s.cfg.TriggerPrice)

	if s.cfg.Mode == core.Backtest {
		err := s.runBacktest(ctx, stop)
		s.logger.Info("backtest simulation finished")
		return err
	}
	return s.runLive(ctx, stop)
}

// Stop signals the loop to exit and closes the exchange connection. It is
// idempotent.
func (s *Strategy) Stop() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if err := s.exchange.Close(); err != nil {
		s.logger.Warn("closing exchange connection failed", "error", err)
	}
	s.logger.Info("trading session stopped")
}

// IsRunning reports whether a session is currently executing.
func (s *Strategy) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Strategy) runBacktest(ctx context.Context, stop <-chan struct{}) error {
	bars, err := s.exchange.FetchOHLCV(ctx, s.cfg.Symbol, s.cfg.Timeframe, s.cfg.StartDate, s.cfg.EndDate)
	if err != nil {
		return fmt.Errorf("loading backtest candles: %w", apperrors.ErrDataFetch)
	}
	if len(bars) == 0 {
		return fmt.Errorf("no candles for %s %s: %w", s.cfg.Symbol, s.cfg.Timeframe, apperrors.ErrDataFetch)
	}

	for _, bar := range bars {
		select {
		case <-stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if bs, ok := s.execution.(barSetter); ok {
			bs.SetBar(bar.Close, bar.Timestamp)
		}

		if !s.armed {
			s.tryArm(ctx, bar.Close)
			if !s.armed {
				s.record(bar.Close)
				s.observeLast(bar.Close)
				continue
			}
		}

		s.manager.SimulateOrderFills(ctx, bar.High, bar.Low, bar.Timestamp)

		if s.checkTakeProfitStopLoss(ctx, bar.Close) {
			s.record(bar.Close)
			return nil
		}

		s.record(bar.Close)
		s.observeLast(bar.Close)
	}
	return nil
}

func (s *Strategy) runLive(ctx context.Context, stop <-chan struct{}) error {
	s.logger.Info("starting ticker listener", "interval", s.cfg.TickerInterval)

	tctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-tctx.Done():
		}
	}()

	err := s.exchange.ListenToTicker(tctx, s.cfg.Symbol, s.cfg.TickerInterval, func(price decimal.Decimal) {
		s.onTick(tctx, price)
	})
	if err != nil && tctx.Err() == nil {
		return fmt.Errorf("ticker stream failed: %w", err)
	}
	return nil
}

// onTick handles one live/paper price sample: metrics first, then at most
// one arm, then at most one TP/SL check.
func (s *Strategy) onTick(ctx context.Context, price decimal.Decimal) {
	if !s.IsRunning() {
		return
	}

	s.record(price)

	if !s.armed {
		s.tryArm(ctx, price)
		s.observeLast(price)
		return
	}

	s.checkTakeProfitStopLoss(ctx, price)
	s.observeLast(price)
}

// tryArm applies the edge-triggered arming rule: arm iff a last price
// exists and last <= trigger <= current, or last == trigger.
// Arming performs the initial market purchase and places the full ladder.
func (s *Strategy) tryArm(ctx context.Context, current decimal.Decimal) {
	if s.armed {
		return
	}
	if !s.hasLast {
		s.logger.Debug("no previous price recorded yet, waiting for the next update")
		return
	}

	trigger := s.cfg.TriggerPrice
	crossed := (s.last.LessThanOrEqual(trigger) && trigger.LessThanOrEqual(current)) || s.last.Equal(trigger)
	if !crossed {
		return
	}

	s.logger.Info("trigger price crossed, arming grid",
		"last_price", s.last, "trigger_price", trigger, "current_price", current)

	targetBase := s.initialBaseTarget(current)
	if err := s.manager.PerformInitialPurchase(ctx, current, targetBase, s.cfg.Mode); err != nil {
		s.logger.Error("initial purchase failed, will retry on next crossing", "error", err)
		return
	}
	s.manager.InitializeGridOrders(ctx, current)
	s.armed = true
}

// initialBaseTarget sizes the initial purchase so half the account's
// value sits in base currency once the grid arms, mirroring the
// half-in/half-out posture the ladder needs to serve both sides.
func (s *Strategy) initialBaseTarget(current decimal.Decimal) decimal.Decimal {
	if current.IsZero() {
		return decimal.Zero
	}
	total := s.balance.AccountValue(current)
	return total.Div(decimal.NewFromInt(2)).Div(current)
}

// checkTakeProfitStopLoss fires at most one of TP/SL against price and
// reports whether the session should end.
func (s *Strategy) checkTakeProfitStopLoss(ctx context.Context, price decimal.Decimal) bool {
	if s.cfg.TakeProfit.Enabled && price.GreaterThanOrEqual(s.cfg.TakeProfit.Threshold) {
		s.logger.Info("take-profit threshold reached", "price", price, "threshold", s.cfg.TakeProfit.Threshold)
		if err := s.manager.ExecuteTakeProfitOrStopLoss(ctx, price, true, false); err != nil {
			s.logger.Error("take-profit execution failed", "error", err)
		}
		return true
	}
	if s.cfg.StopLoss.Enabled && price.LessThanOrEqual(s.cfg.StopLoss.Threshold) {
		s.logger.Info("stop-loss threshold reached", "price", price, "threshold", s.cfg.StopLoss.Threshold)
		if err := s.manager.ExecuteTakeProfitOrStopLoss(ctx, price, false, true); err != nil {
			s.logger.Error("stop-loss execution failed", "error", err)
		}
		return true
	}
	return false
}

// record appends an account-value sample for the performance summary and
// refreshes the balance gauges.
func (s *Strategy) record(price decimal.Decimal) {
	value := s.balance.AccountValue(price)

	s.mu.Lock()
	s.values = append(s.values, value)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.AccountValue.Set(value.InexactFloat64())
		s.metrics.ObserveBalance(s.balance.Snapshot())
	}
}

func (s *Strategy) observeLast(price decimal.Decimal) {
	s.last = price
	s.hasLast = true
}

// PerformanceReport assembles the session's terminal output: the
// account-value series, the final balance snapshot, and order counts
// from the book.
func (s *Strategy) PerformanceReport(configPath string) *core.PerformanceSummary {
	s.mu.Lock()
	values := append([]decimal.Decimal(nil), s.values...)
	s.mu.Unlock()

	return &core.PerformanceSummary{
		ConfigPath:    configPath,
		AccountValues: values,
		FinalBalance:  s.balance.Snapshot(),
		OrdersPlaced:  len(s.book.All()),
		OrdersFilled:  s.book.FilledCount(),
	}
}

// Package bot implements the Bot Controller: lifecycle
// control around the trading strategy and order status tracker,
// START_BOT/STOP_BOT event handling, and the health and balance queries.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opensqt/gridbot/internal/balance"
	"github.com/opensqt/gridbot/internal/core"
	"github.com/opensqt/gridbot/internal/health"
	"github.com/opensqt/gridbot/internal/statustracker"
	"github.com/opensqt/gridbot/internal/strategy"
)

// Controller ties the session together: it starts the status tracker and
// the strategy loop, stops both on STOP_BOT, and restarts on START_BOT.
type Controller struct {
	configPath string
	strategy   *strategy.Strategy
	tracker    *statustracker.Tracker
	exchange   core.Exchange
	balance    *balance.Tracker
	bus        core.EventBus
	logger     core.Logger
	health     *health.Manager

	mu      sync.Mutex
	running bool
}

// New returns a Controller subscribed to START_BOT and STOP_BOT on bus.
func New(configPath string, strat *strategy.Strategy, tracker *statustracker.Tracker,
	exchange core.Exchange, bal *balance.Tracker, bus core.EventBus, logger core.Logger) *Controller {

	c := &Controller{
		configPath: configPath,
		strategy:   strat,
		tracker:    tracker,
		exchange:   exchange,
		balance:    bal,
		bus:        bus,
		logger:     logger.WithField("component", "bot_controller"),
		health:     health.NewManager(logger),
	}

	c.health.Register("strategy", func() error {
		if !strat.IsRunning() {
			return errors.New("strategy is not running")
		}
		return nil
	})
	c.health.Register("exchange", func() error {
		status, err := exchange.ExchangeStatus(context.Background())
		if err != nil {
			return err
		}
		if status != "ok" {
			return fmt.Errorf("exchange status is %q", status)
		}
		return nil
	})

	bus.Subscribe(core.TopicStopBot, c.handleStopBot)
	bus.Subscribe(core.TopicStartBot, c.handleStartBot)
	return c
}

// Run starts order status tracking and executes the strategy loop,
// blocking until the session ends. It returns the session's performance
// summary alongside any loop error.
func (c *Controller) Run(ctx context.Context) (*core.PerformanceSummary, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, errors.New("bot is already running")
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	c.logger.Info("starting grid trading bot", "config", c.configPath)
	c.tracker.Start()

	err := c.strategy.Run(ctx)

	c.tracker.Stop()
	summary := c.strategy.PerformanceReport(c.configPath)
	c.logger.Info("grid trading bot finished",
		"orders_placed", summary.OrdersPlaced, "orders_filled", summary.OrdersFilled)
	return summary, err
}

// Stop halts order tracking and the strategy loop. Calling it while the
// bot is not running is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()

	if !running {
		c.logger.Info("bot is not running, nothing to stop")
		return
	}

	c.logger.Info("stopping grid trading bot")
	c.tracker.Stop()
	c.strategy.Stop()
}

// Restart stops the bot if it is running, waits for the loop to unwind,
// and runs a fresh session.
func (c *Controller) Restart(ctx context.Context) error {
	if c.IsRunning() {
		c.logger.Info("bot is already running, restarting")
		c.Stop()
	}
	if err := c.waitUntilStopped(5 * time.Second); err != nil {
		return err
	}

	_, err := c.Run(ctx)
	return err
}

// IsRunning reports whether a session is currently executing.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Controller) waitUntilStopped(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for c.IsRunning() {
		if time.Now().After(deadline) {
			return errors.New("timed out waiting for previous session to stop")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

// HealthStatus is the health query result: strategy running, exchange
// reporting "ok", and their conjunction.
type HealthStatus struct {
	StrategyRunning bool
	ExchangeOK      bool
	Overall         bool
	Components      map[string]string
}

// Health evaluates every registered check.
func (c *Controller) Health(ctx context.Context) HealthStatus {
	status, err := c.exchange.ExchangeStatus(ctx)
	exchangeOK := err == nil && status == "ok"

	return HealthStatus{
		StrategyRunning: c.strategy.IsRunning(),
		ExchangeOK:      exchangeOK,
		Overall:         c.health.IsHealthy(),
		Components:      c.health.Status(),
	}
}

// Balances returns the current balance snapshot.
func (c *Controller) Balances() core.BalanceSnapshot {
	return c.balance.Snapshot()
}

func (c *Controller) handleStopBot(ctx context.Context, payload interface{}) error {
	reason, _ := payload.(string)
	c.logger.Info("handling STOP_BOT event", "reason", reason)
	c.Stop()
	return nil
}

func (c *Controller) handleStartBot(ctx context.Context, payload interface{}) error {
	reason, _ := payload.(string)
	c.logger.Info("handling START_BOT event", "reason", reason)
	go func() {
		if err := c.Restart(context.Background()); err != nil {
			c.logger.Error("restart after START_BOT failed", "error", err)
		}
	}()
	return nil
}

// Package statustracker implements the cooperative polling loop that
// reconciles the order book against exchange-reported order status.
package statustracker

import (
	"context"
	"sync"
	"time"

	"github.com/opensqt/gridbot/internal/core"
	"github.com/opensqt/gridbot/internal/orderbook"

	"github.com/shopspring/decimal"
)

// Tracker polls every open order in book every interval, updating book
// and publishing ORDER_FILLED/ORDER_CANCELLED on status change. It owns
// no state beyond the set of in-flight polling tasks and the monitor
// goroutine handle.
type Tracker struct {
	book     *orderbook.Book
	strategy core.ExecutionStrategy
	bus      core.EventBus
	logger   core.Logger
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// New returns a Tracker that polls book's open orders through strategy
// every interval.
func New(book *orderbook.Book, strategy core.ExecutionStrategy, bus core.EventBus, interval time.Duration, logger core.Logger) *Tracker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Tracker{
		book:     book,
		strategy: strategy,
		bus:      bus,
		interval: interval,
		logger:   logger.WithField("component", "status_tracker"),
	}
}

// Start launches the polling loop in the background. Calling Start twice
// without an intervening Stop is a no-op.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(ctx, t.done)
}

// Stop cancels the monitor loop and blocks until every in-flight polling
// task has drained.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	done := t.done
	t.cancel = nil
	t.done = nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (t *Tracker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.wg.Wait()
			return
		case <-ticker.C:
			t.pollOnce(ctx)
		}
	}
}

func (t *Tracker) pollOnce(ctx context.Context) {
	for _, order := range t.book.OpenOrders() {
		order := order
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.checkOrder(ctx, order)
		}()
	}
}

func (t *Tracker) checkOrder(ctx context.Context, order *core.Order) {
	fresh, err := t.strategy.GetOrder(ctx, order.ID, order.Symbol)
	if err != nil {
		t.logger.Error("failed to fetch order status", "order_id", order.ID, "error", err)
		return
	}

	switch fresh.Status {
	case core.StatusOpen:
		if fresh.Filled.GreaterThan(decimal.Zero) {
			t.logger.Info("partial fill observed", "order_id", order.ID, "filled", fresh.Filled, "remaining", fresh.Remaining)
		}
	case core.StatusClosed:
		if changed, updated := t.book.UpdateStatus(order.ID, fresh.Status, fresh.Filled, fresh.Remaining, fresh.Average, fresh.Fee); changed {
			t.bus.PublishSync(core.TopicOrderFilled, updated)
		}
	case core.StatusCanceled:
		if changed, updated := t.book.UpdateStatus(order.ID, fresh.Status, fresh.Filled, fresh.Remaining, fresh.Average, fresh.Fee); changed {
			t.bus.PublishSync(core.TopicOrderCancelled, updated)
		}
	default:
		t.logger.Error("order status unknown or unexpected, not advancing state", "order_id", order.ID, "status", string(fresh.Status))
	}
}

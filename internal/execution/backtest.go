package execution

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensqt/gridbot/internal/core"

	apperrors "github.com/opensqt/gridbot/pkg/errors"

	"github.com/shopspring/decimal"
)

// Backtest is the core.ExecutionStrategy used for backtest runs and unit
// tests: no network, deterministic monotonically
// increasing order ids, status OPEN for limits and CLOSED for markets.
type Backtest struct {
	mu        sync.RWMutex
	orders    map[string]*core.Order
	nextID    uint64
	barClose  decimal.Decimal
	timestamp time.Time
}

// NewBacktest returns an empty Backtest execution strategy.
func NewBacktest() *Backtest {
	return &Backtest{orders: make(map[string]*core.Order)}
}

// SetBar updates the close price and timestamp market orders are filled
// against; the trading strategy calls this once per bar before any
// orders are placed on it.
func (b *Backtest) SetBar(close decimal.Decimal, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.barClose = close
	b.timestamp = ts
}

func (b *Backtest) newID() string {
	return fmt.Sprintf("bt-%d", atomic.AddUint64(&b.nextID, 1))
}

// ExecuteMarketOrder synthesizes an immediately CLOSED order filled at
// the current bar's close price.
func (b *Backtest) ExecuteMarketOrder(ctx context.Context, side core.Side, symbol string, qty, price decimal.Decimal) (*core.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fillPrice := b.barClose
	if fillPrice.IsZero() {
		fillPrice = price
	}
	order := &core.Order{
		ID:        b.newID(),
		Symbol:    symbol,
		Side:      side,
		Type:      core.MarketOrder,
		Price:     fillPrice,
		Amount:    qty,
		Filled:    qty,
		Remaining: decimal.Zero,
		Average:   fillPrice,
		Status:    core.StatusClosed,
		Timestamp: b.timestamp,
	}
	b.orders[order.ID] = order
	return order.Clone(), nil
}

// ExecuteLimitOrder synthesizes a resting OPEN order at the requested
// price; the backtest fill simulator is what later closes
// it.
func (b *Backtest) ExecuteLimitOrder(ctx context.Context, side core.Side, symbol string, qty, price decimal.Decimal) (*core.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	order := &core.Order{
		ID:        b.newID(),
		Symbol:    symbol,
		Side:      side,
		Type:      core.LimitOrder,
		Price:     price,
		Amount:    qty,
		Filled:    decimal.Zero,
		Remaining: qty,
		Status:    core.StatusOpen,
		Timestamp: b.timestamp,
	}
	b.orders[order.ID] = order
	return order.Clone(), nil
}

// GetOrder looks up a previously synthesized order by id.
func (b *Backtest) GetOrder(ctx context.Context, id, symbol string) (*core.Order, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	order, ok := b.orders[id]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	return order.Clone(), nil
}

// MarkFilled closes an open order as CLOSED with the given fill fields,
// for the backtest fill simulator to call.
func (b *Backtest) MarkFilled(id string, filled, remaining decimal.Decimal, ts time.Time) (*core.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	order, ok := b.orders[id]
	if !ok {
		return nil, false
	}
	order.Filled = filled
	order.Remaining = remaining
	order.Status = core.StatusClosed
	order.Average = order.Price
	order.Timestamp = ts
	return order.Clone(), true
}

// OpenOrders returns every order still in OPEN status.
func (b *Backtest) OpenOrders() []*core.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	open := make([]*core.Order, 0)
	for _, o := range b.orders {
		if o.Status == core.StatusOpen {
			open = append(open, o.Clone())
		}
	}
	return open
}

var _ core.ExecutionStrategy = (*Backtest)(nil)

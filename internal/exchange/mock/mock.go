// Package mock implements a deterministic in-memory core.Exchange used by
// paper trading and by the rest of the engine's test suites. It never
// touches the network.
package mock

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

// Exchange is an in-memory core.Exchange. Orders placed against it fill
// immediately unless AutoFill is disabled, in which case they rest OPEN
// until FillOrder is called explicitly.
type Exchange struct {
	mu       sync.Mutex
	name     string
	balances map[string]decimal.Decimal
	orders   map[string]*core.Order
	bars     map[string][]core.Bar
	lastTick decimal.Decimal
	nextID   uint64
	AutoFill bool
}

// New returns a mock exchange seeded with the given currency balances.
func New(name string, balances map[string]decimal.Decimal) *Exchange {
	seed := make(map[string]decimal.Decimal, len(balances))
	for k, v := range balances {
		seed[k] = v
	}
	return &Exchange{
		name:     name,
		balances: seed,
		orders:   make(map[string]*core.Order),
		bars:     make(map[string][]core.Bar),
		AutoFill: true,
	}
}

// Name implements core.Exchange.
func (e *Exchange) Name() string { return e.name }

// SeedOHLCV registers the candles FetchOHLCV returns for symbol.
func (e *Exchange) SeedOHLCV(symbol string, bars []core.Bar) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bars[symbol] = bars
}

// SetLastPrice is what ListenToTicker reports on its next tick.
func (e *Exchange) SetLastPrice(price decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastTick = price
}

func (e *Exchange) newID() string {
	return fmt.Sprintf("mock-%d", atomic.AddUint64(&e.nextID, 1))
}

func (e *Exchange) place(ctx context.Context, side core.Side, symbol string, orderType core.OrderType, qty, price decimal.Decimal) (*core.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order := &core.Order{
		ID:        e.newID(),
		Symbol:    symbol,
		Side:      side,
		Type:      orderType,
		Price:     price,
		Amount:    qty,
		Remaining: qty,
		Status:    core.StatusOpen,
		Timestamp: time.Now(),
	}
	if e.AutoFill || orderType == core.MarketOrder {
		order.Filled = qty
		order.Remaining = decimal.Zero
		order.Average = price
		order.Status = core.StatusClosed
	}
	e.orders[order.ID] = order
	return order.Clone(), nil
}

// PlaceMarketOrder implements core.Exchange; market orders fill
// immediately at the requested price.
func (e *Exchange) PlaceMarketOrder(ctx context.Context, side core.Side, symbol string, qty, price decimal.Decimal) (*core.Order, error) {
	return e.place(ctx, side, symbol, core.MarketOrder, qty, price)
}

// PlaceLimitOrder implements core.Exchange.
func (e *Exchange) PlaceLimitOrder(ctx context.Context, side core.Side, symbol string, qty, price decimal.Decimal) (*core.Order, error) {
	return e.place(ctx, side, symbol, core.LimitOrder, qty, price)
}

// CancelOrder implements core.Exchange.
func (e *Exchange) CancelOrder(ctx context.Context, symbol, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	order, ok := e.orders[id]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	if order.Status == core.StatusOpen {
		order.Status = core.StatusCanceled
	}
	return nil
}

// GetOrder implements core.Exchange.
func (e *Exchange) GetOrder(ctx context.Context, symbol, id string) (*core.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	order, ok := e.orders[id]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	return order.Clone(), nil
}

// FillOrder adds filled to a resting order's filled amount at its limit
// price and closes the order once nothing remains, for tests that
// disable AutoFill to exercise partial-fill or status-tracker paths.
func (e *Exchange) FillOrder(id string, filled decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	order, ok := e.orders[id]
	if !ok {
		return
	}
	order.Filled = order.Filled.Add(filled)
	order.Remaining = order.Amount.Sub(order.Filled)
	order.Average = order.Price
	if order.Remaining.LessThanOrEqual(decimal.Zero) {
		order.Remaining = decimal.Zero
		order.Status = core.StatusClosed
	}
}

// GetBalance implements core.Exchange.
func (e *Exchange) GetBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[currency], nil
}

// FetchOHLCV implements core.Exchange, returning whatever SeedOHLCV set.
func (e *Exchange) FetchOHLCV(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]core.Bar, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bars[symbol], nil
}

// ListenToTicker implements core.Exchange by calling cb with the last
// price set via SetLastPrice on every tick of interval, returning when
// ctx is done.
func (e *Exchange) ListenToTicker(ctx context.Context, symbol string, interval time.Duration, cb func(price decimal.Decimal)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.mu.Lock()
			price := e.lastTick
			e.mu.Unlock()
			cb(price)
		}
	}
}

// ExchangeStatus implements core.Exchange, always reporting healthy.
func (e *Exchange) ExchangeStatus(ctx context.Context) (string, error) {
	return "ok", nil
}

// Close implements core.Exchange.
func (e *Exchange) Close() error { return nil }

var _ core.Exchange = (*Exchange)(nil)

// Package orderbook is the in-memory index of live and historical orders
// plus the order-id-to-grid-level map the order manager and status
// tracker key fill handling off of.
package orderbook

import (
	"sync"

	"github.com/opensqt/gridbot/internal/core"
	"github.com/opensqt/gridbot/internal/grid"

	"github.com/shopspring/decimal"
)

// Book maps order id to Order and order id to the grid.Level that order
// belongs to (absent for TP/SL/initial-purchase orders, which are not
// grid levels). Keyed by order rather than by price since multiple
// orders can pass through the same level over the grid's lifetime.
type Book struct {
	mu     sync.RWMutex
	orders map[string]*core.Order
	levels map[string]*grid.Level
}

// New returns an empty Book.
func New() *Book {
	return &Book{
		orders: make(map[string]*core.Order),
		levels: make(map[string]*grid.Level),
	}
}

// Add records a newly placed order, optionally linked to the grid level
// it was placed for.
func (b *Book) Add(order *core.Order, level *grid.Level) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders[order.ID] = order
	if level != nil {
		b.levels[order.ID] = level
	}
}

// Get returns the order for id, or nil if unknown.
func (b *Book) Get(id string) *core.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.orders[id]
}

// LevelFor returns the grid level id was placed for, or nil for a
// non-grid order (TP/SL, initial purchase).
func (b *Book) LevelFor(id string) *grid.Level {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.levels[id]
}

// All returns a snapshot of every order the book has ever recorded, open
// or terminal, for reporting.
func (b *Book) All() []*core.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	all := make([]*core.Order, 0, len(b.orders))
	for _, o := range b.orders {
		all = append(all, o.Clone())
	}
	return all
}

// FilledCount returns how many orders have reached CLOSED status.
func (b *Book) FilledCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, o := range b.orders {
		if o.Status == core.StatusClosed {
			n++
		}
	}
	return n
}

// OpenOrders returns every order currently in OPEN status, for the status
// tracker's polling loop.
func (b *Book) OpenOrders() []*core.Order {
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

// UpdateStatus applies a status/fill report to the order recorded under
// id. It returns changed=false without mutating anything if the order is
// unknown or already in a terminal status matching the report, so a
// duplicate CLOSED poll never re-triggers ORDER_FILLED handling.
func (b *Book) UpdateStatus(id string, status core.OrderStatus, filled, remaining, average, fee decimal.Decimal) (changed bool, order *core.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[id]
	if !ok {
		return false, nil
	}
	if isTerminal(o.Status) && o.Status == status {
		return false, o.Clone()
	}

	o.Status = status
	o.Filled = filled
	o.Remaining = remaining
	o.Average = average
	o.Fee = fee
	return true, o.Clone()
}

func isTerminal(s core.OrderStatus) bool {
	switch s {
	case core.StatusClosed, core.StatusCanceled, core.StatusExpired:
		return true
	default:
		return false
	}
}

// Package grid implements the price-level ladder: geometry construction,
// the per-level state machine, and the buy/sell pairing policy.
package grid

import (
	"sync"

	"github.com/shopspring/decimal"
)

// LevelState is a single grid level's position in the SIMPLE_GRID or
// HEDGED_GRID state machine.
type LevelState string

const (
	ReadyToBuy         LevelState = "READY_TO_BUY"
	WaitingForBuyFill  LevelState = "WAITING_FOR_BUY_FILL"
	ReadyToSell        LevelState = "READY_TO_SELL"
	WaitingForSellFill LevelState = "WAITING_FOR_SELL_FILL"
	ReadyToBuyOrSell   LevelState = "READY_TO_BUY_OR_SELL" // HEDGED_GRID interior quiescent state
	Completed          LevelState = "COMPLETED"            // fill with no placeable pairing target
)

// Level is one price rung of the ladder. PairedPrice is the key (by
// Price.String()) of the level this one is linked to for pairing; Fill
// sets it on both levels whenever a fill is paired, and a fill with no
// pairing target leaves it unchanged.
type Level struct {
	mu sync.Mutex

	Price       decimal.Decimal
	State       LevelState
	OrderID     string
	PairedPrice string
}

// Key is the map key levels are stored and looked up under.
func (l *Level) Key() string {
	return l.Price.String()
}

// LevelSnapshot is a lock-free, read-only copy of a Level's fields.
type LevelSnapshot struct {
	Price       decimal.Decimal
	State       LevelState
	OrderID     string
	PairedPrice string
}

// Snapshot returns a copy safe to read without holding the level's lock.
func (l *Level) Snapshot() LevelSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LevelSnapshot{Price: l.Price, State: l.State, OrderID: l.OrderID, PairedPrice: l.PairedPrice}
}

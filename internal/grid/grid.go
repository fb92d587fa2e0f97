package grid

import (
	"sort"
	"sync"

	"github.com/opensqt/gridbot/internal/core"

	"github.com/shopspring/decimal"
)

// Grid owns the full ladder of Levels for one symbol: lookup by price,
// initial state assignment, and the buy/sell pairing policy. Levels are
// keyed by Price.String().
type Grid struct {
	mu sync.RWMutex

	symbol   string
	strategy core.StrategyType
	prices   []decimal.Decimal // ascending, fixed at construction
	levels   map[string]*Level
}

// New builds a Grid from a pre-computed ladder and central price,
// assigning each level its initial state for the strategy type.
func New(symbol string, strategy core.StrategyType, prices []decimal.Decimal, centralPrice decimal.Decimal) *Grid {
	sorted := append([]decimal.Decimal(nil), prices...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	g := &Grid{
		symbol:   symbol,
		strategy: strategy,
		prices:   sorted,
		levels:   make(map[string]*Level, len(sorted)),
	}

	for i, p := range sorted {
		lvl := &Level{Price: p}
		switch strategy {
		case core.HedgedGrid:
			if i == len(sorted)-1 {
				lvl.State = ReadyToSell
			} else {
				lvl.State = ReadyToBuyOrSell
			}
		default: // SimpleGrid
			if p.LessThanOrEqual(centralPrice) {
				lvl.State = ReadyToBuy
			} else {
				lvl.State = ReadyToSell
			}
		}
		g.levels[lvl.Key()] = lvl
	}
	return g
}

// Symbol returns the instrument this ladder is for.
func (g *Grid) Symbol() string { return g.symbol }

// Prices returns the ascending ladder prices.
func (g *Grid) Prices() []decimal.Decimal {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]decimal.Decimal(nil), g.prices...)
}

// Level returns the level at price, or nil if price is not on the ladder.
func (g *Grid) Level(price decimal.Decimal) *Level {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.levels[price.String()]
}

// Levels returns a snapshot of every level's state.
func (g *Grid) Levels() []LevelSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]LevelSnapshot, 0, len(g.prices))
	for _, p := range g.prices {
		out = append(out, g.levels[p.String()].Snapshot())
	}
	return out
}

// CanPlaceOrder reports whether level is eligible to receive a new order
// on the given side, per its current state machine position.
func CanPlaceOrder(state LevelState, side core.Side) bool {
	switch state {
	case ReadyToBuy:
		return side == core.Buy
	case ReadyToSell:
		return side == core.Sell
	case ReadyToBuyOrSell:
		return true
	default:
		return false
	}
}

// PairSellForBuy finds the paired sell level for a buy fill at buyPrice:
// the smallest level above buyPrice that can currently accept a sell.
// Returns nil if no such level exists.
func (g *Grid) PairSellForBuy(buyPrice decimal.Decimal) *Level {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, p := range g.prices {
		if !p.GreaterThan(buyPrice) {
			continue
		}
		lvl := g.levels[p.String()]
		if lvl.placeableLocked(core.Sell) {
			return lvl
		}
	}
	return nil
}

// PairBuyForSell finds the paired buy level for a sell fill at sellPrice.
// It first tries the level's own stored PairedPrice link (the buy level
// that originally paired into this sell, if it's still placeable), then
// falls back to the greatest level below sellPrice that can accept a buy.
func (g *Grid) PairBuyForSell(sellLevel *Level) *Level {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if linked := sellLevel.Snapshot().PairedPrice; linked != "" {
		if lvl, ok := g.levels[linked]; ok && lvl.placeableLocked(core.Buy) {
			return lvl
		}
	}

	sellPrice := sellLevel.Snapshot().Price
	for i := len(g.prices) - 1; i >= 0; i-- {
		p := g.prices[i]
		if !p.LessThan(sellPrice) {
			continue
		}
		lvl := g.levels[p.String()]
		if lvl.placeableLocked(core.Buy) {
			return lvl
		}
	}
	return nil
}

// placeableLocked reports whether l can accept a new order on side. Safe
// to call while the owning Grid's RLock is held (Grid.mu -> Level.mu).
func (l *Level) placeableLocked(side core.Side) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return CanPlaceOrder(l.State, side)
}

// Place records that orderID was placed for side at l, transitioning the
// level out of its READY_* state and into the matching WAITING_FOR_*_FILL
// state (HEDGED_GRID levels leave ReadyToBuyOrSell the same way).
func (l *Level) Place(side core.Side, orderID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.OrderID = orderID
	if side == core.Buy {
		l.State = WaitingForBuyFill
	} else {
		l.State = WaitingForSellFill
	}
}

// Cancel reverts l to its previous READY_* state, releasing the order.
func (l *Level) Cancel(strategy core.StrategyType) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.OrderID = ""
	switch {
	case strategy == core.HedgedGrid:
		l.State = ReadyToBuyOrSell
	case l.State == WaitingForBuyFill:
		l.State = ReadyToBuy
	case l.State == WaitingForSellFill:
		l.State = ReadyToSell
	}
}

// Fill transitions l after its resting order is filled on side, pairing it
// with paired (may be nil if no pairing target was placeable — in which
// case l becomes COMPLETED on a simple grid; on a hedged grid l always
// returns to READY_TO_BUY_OR_SELL) and recording the
// bidirectional link so a subsequent reverse fill at the paired level
// re-targets l by default.
func (l *Level) Fill(side core.Side, strategy core.StrategyType, paired *Level) {
	l.mu.Lock()
	l.OrderID = ""
	switch {
	case strategy == core.HedgedGrid:
		l.State = ReadyToBuyOrSell
	case paired == nil:
		l.State = Completed
	case side == core.Buy:
		l.State = ReadyToSell
	default:
		l.State = ReadyToBuy
	}
	l.mu.Unlock()

	if paired == nil {
		return
	}
	pairedKey := paired.Key()
	selfKey := l.Key()

	l.mu.Lock()
	l.PairedPrice = pairedKey
	l.mu.Unlock()

	paired.mu.Lock()
	paired.PairedPrice = selfKey
	paired.mu.Unlock()
}

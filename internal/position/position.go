// Package position tracks the perpetual variant's per-level contract
// positions, maintenance margin ratio, and funding-rate history. The spot
// core never constructs one.
package position

import (
	"sync"
	"time"

	"github.com/opensqt/gridbot/internal/core"

	"github.com/shopspring/decimal"
)

// Side distinguishes long from short inventory.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Tracker holds contract quantities keyed by level price, split into long
// and short books, plus the maintenance margin ratio it was built with
// and the recorded funding-rate history.
type Tracker struct {
	mu sync.Mutex

	long         map[string]decimal.Decimal
	short        map[string]decimal.Decimal
	marginRatio  decimal.Decimal
	fundingRates []core.FundingSample

	logger core.Logger
}

// New returns an empty Tracker with the given maintenance margin ratio.
func New(marginRatio decimal.Decimal, logger core.Logger) *Tracker {
	return &Tracker{
		long:        make(map[string]decimal.Decimal),
		short:       make(map[string]decimal.Decimal),
		marginRatio: marginRatio,
		logger:      logger.WithField("component", "position_tracker"),
	}
}

// Update adds quantity to the position held at price on the given side.
// A negative quantity reduces the position; positions never go below zero.
func (t *Tracker) Update(side Side, price, quantity decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.updateLocked(side, price.String(), quantity)
}

func (t *Tracker) updateLocked(side Side, key string, quantity decimal.Decimal) {
	book := t.long
	if side == Short {
		book = t.short
	}
	next := book[key].Add(quantity)
	if next.LessThanOrEqual(decimal.Zero) {
		delete(book, key)
		return
	}
	book[key] = next
}

// ApplyFill records a grid fill against the books. A buy first closes any
// short held at the level, the remainder building long inventory; a sell
// first offsets any long held there, the uncovered remainder opening a
// short. The offset and the write happen under one lock so a concurrent
// fill can't observe the books mid-transfer.
func (t *Tracker) ApplyFill(side core.Side, price, qty decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()

	open, offset := Long, Short
	if side == core.Sell {
		open, offset = Short, Long
	}

	key := price.String()
	held := t.long[key]
	if offset == Short {
		held = t.short[key]
	}

	closed := decimal.Min(qty, held)
	if closed.GreaterThan(decimal.Zero) {
		t.updateLocked(offset, key, closed.Neg())
	}
	if remainder := qty.Sub(closed); remainder.GreaterThan(decimal.Zero) {
		t.updateLocked(open, key, remainder)
	}
}

// At returns the contract quantity held at price on side.
func (t *Tracker) At(side Side, price decimal.Decimal) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	if side == Short {
		return t.short[price.String()]
	}
	return t.long[price.String()]
}

// Total returns the summed contract quantity across every level on side.
func (t *Tracker) Total(side Side) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()

	book := t.long
	if side == Short {
		book = t.short
	}
	sum := decimal.Zero
	for _, q := range book {
		sum = sum.Add(q)
	}
	return sum
}

// MarginRatio returns the maintenance margin ratio.
func (t *Tracker) MarginRatio() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.marginRatio
}

// RecordFundingRate appends an observed rate to the funding history.
func (t *Tracker) RecordFundingRate(rate decimal.Decimal, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fundingRates = append(t.fundingRates, core.FundingSample{Rate: rate, Time: at.Unix()})
}

// LastFundingRate returns the most recently recorded rate, or zero if the
// history is empty.
func (t *Tracker) LastFundingRate() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.fundingRates) == 0 {
		return decimal.Zero
	}
	return t.fundingRates[len(t.fundingRates)-1].Rate
}

// Snapshot returns a copy of the ledger as a core.Positions value for
// reporting.
func (t *Tracker) Snapshot() core.Positions {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := core.Positions{
		LongPositions:  make(map[string]decimal.Decimal, len(t.long)),
		ShortPositions: make(map[string]decimal.Decimal, len(t.short)),
		MarginRatio:    t.marginRatio,
		FundingRates:   append([]core.FundingSample(nil), t.fundingRates...),
	}
	for k, v := range t.long {
		snap.LongPositions[k] = v
	}
	for k, v := range t.short {
		snap.ShortPositions[k] = v
	}
	return snap
}

// FundingFee returns the fee a position of positionValue pays (positive)
// or receives (negative) at the given funding rate.
func FundingFee(positionValue, rate decimal.Decimal) decimal.Decimal {
	return positionValue.Mul(rate)
}

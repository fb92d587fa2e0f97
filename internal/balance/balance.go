// Package balance implements the Balance Tracker: quote/base balances,
// reserved-funds buckets, and fee accrual.
package balance

import (
	"context"
	"fmt"
	"sync"

	"github.com/opensqt/gridbot/internal/core"

	apperrors "github.com/opensqt/gridbot/pkg/errors"
	"github.com/opensqt/gridbot/pkg/retry"

	"github.com/shopspring/decimal"
)

// Tracker owns the quote/base balance buckets for one symbol. It is the
// sole writer of balance state; every mutation happens under its lock so
// the reservation-conservation property holds at every
// observation point.
type Tracker struct {
	mu sync.Mutex

	quote    decimal.Decimal
	base     decimal.Decimal
	resQuote decimal.Decimal
	resBase  decimal.Decimal
	fees     decimal.Decimal

	logger core.Logger
}

// New returns a Tracker seeded with the given opening balances; backtests
// seed it straight from the configured initial balances.
func New(quote, base decimal.Decimal, logger core.Logger) *Tracker {
	return &Tracker{
		quote:  quote,
		base:   base,
		logger: logger.WithField("component", "balance_tracker"),
	}
}

// NewFromExchange boots a Tracker from the exchange's free balances for
// the configured quote/base currencies, the live/paper bootstrap path.
// Fetches are retried with backoff before the boot is declared failed.
func NewFromExchange(ctx context.Context, ex core.Exchange, quoteCcy, baseCcy string, logger core.Logger) (*Tracker, error) {
	fetch := func(ccy string) (decimal.Decimal, error) {
		var v decimal.Decimal
		err := retry.Do(ctx, retry.DefaultPolicy, func(error) bool { return true }, func() error {
			var ferr error
			v, ferr = ex.GetBalance(ctx, ccy)
			return ferr
		})
		if err != nil {
			return decimal.Zero, fmt.Errorf("fetching %s balance: %w", ccy, apperrors.ErrDataFetch)
		}
		return v, nil
	}

	quote, err := fetch(quoteCcy)
	if err != nil {
		return nil, err
	}
	base, err := fetch(baseCcy)
	if err != nil {
		return nil, err
	}
	return New(quote, base, logger), nil
}

// Snapshot returns a consistent, lock-free-to-read copy of every bucket.
func (t *Tracker) Snapshot() core.BalanceSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return core.BalanceSnapshot{
		QuoteBalance:  t.quote,
		BaseBalance:   t.base,
		ReservedQuote: t.resQuote,
		ReservedBase:  t.resBase,
		TotalFees:     t.fees,
	}
}

// ReserveForBuy moves amountQuote from the free quote balance into the
// reserved_quote bucket. It fails if the free balance can't
// cover it.
func (t *Tracker) ReserveForBuy(amountQuote decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if amountQuote.GreaterThan(t.quote) {
		return apperrors.ErrInsufficientBalance
	}
	t.quote = t.quote.Sub(amountQuote)
	t.resQuote = t.resQuote.Add(amountQuote)
	return nil
}

// ReserveForSell moves qtyBase from the free base balance into the
// reserved_base bucket. It fails if the free balance can't cover it.
func (t *Tracker) ReserveForSell(qtyBase decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if qtyBase.GreaterThan(t.base) {
		return apperrors.ErrInsufficientCryptoBalance
	}
	t.base = t.base.Sub(qtyBase)
	t.resBase = t.resBase.Add(qtyBase)
	return nil
}

// ReleaseBuyReservation returns amountQuote from reserved_quote back to
// the free balance (an order was canceled before filling). Reservations
// are zeroed rather than driven negative.
func (t *Tracker) ReleaseBuyReservation(amountQuote decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	released := decimal.Min(amountQuote, t.resQuote)
	t.resQuote = t.resQuote.Sub(released)
	t.quote = t.quote.Add(released)
}

// ReleaseSellReservation mirrors ReleaseBuyReservation for the base side.
func (t *Tracker) ReleaseSellReservation(qtyBase decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	released := decimal.Min(qtyBase, t.resBase)
	t.resBase = t.resBase.Sub(released)
	t.base = t.base.Add(released)
}

// ApplyBuyFill reconciles a filled buy: the order's own reservation
// (reservedQuote, what ReserveForBuy took when the order was placed;
// zero for unreserved market orders) is released, the actual cost
// (qty*price+fee) is debited, any residual from price improvement is
// returned to the free quote balance, base_balance is credited with qty,
// and total_fees accrues the fee. Releasing only the order's
// reservation keeps other open orders' reserved funds untouched.
func (t *Tracker) ApplyBuyFill(qty, price, fee, reservedQuote decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cost := qty.Mul(price).Add(fee)
	released := decimal.Min(reservedQuote, t.resQuote)
	t.resQuote = t.resQuote.Sub(released)
	// released - cost is the residual; negative (fee rounding, or an
	// unreserved market buy) is absorbed by the free bucket so
	// quote + reserved_quote stays conserved.
	t.quote = t.quote.Add(released).Sub(cost)

	t.base = t.base.Add(qty)
	t.fees = t.fees.Add(fee)
}

// ApplySellFill mirrors ApplyBuyFill for a filled sell: the order's base
// reservation is released, qty is debited (shortfall beyond the
// reservation comes out of the free base balance), the proceeds
// (qty*price-fee) credit the quote balance, and total_fees accrues the
// fee.
func (t *Tracker) ApplySellFill(qty, price, fee, reservedBase decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()

	released := decimal.Min(reservedBase, t.resBase)
	t.resBase = t.resBase.Sub(released)
	t.base = t.base.Add(released).Sub(qty)

	proceeds := qty.Mul(price).Sub(fee)
	t.quote = t.quote.Add(proceeds)
	t.fees = t.fees.Add(fee)
}

// AccountValue returns quote_balance + reserved_quote + (base_balance +
// reserved_base)*lastPrice — the account-value sample the trading
// strategy records each tick/bar.
func (t *Tracker) AccountValue(lastPrice decimal.Decimal) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	quote := t.quote.Add(t.resQuote)
	base := t.base.Add(t.resBase)
	return quote.Add(base.Mul(lastPrice))
}

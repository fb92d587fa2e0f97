package balance

import (
	"testing"

	"github.com/opensqt/gridbot/internal/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestReserveForBuyFailsWhenInsufficient(t *testing.T) {
	tr := New(dec("100"), decimal.Zero, logging.NewNop())
	err := tr.ReserveForBuy(dec("150"))
	require.Error(t, err)
}

func TestReservationConservationAcrossBuyFillCycle(t *testing.T) {
	tr := New(dec("1000"), decimal.Zero, logging.NewNop())

	require.NoError(t, tr.ReserveForBuy(dec("105")))
	snap := tr.Snapshot()
	assert.True(t, snap.QuoteBalance.Add(snap.ReservedQuote).Equal(dec("1000")))

	// Price improvement: actual fill cost is less than reserved.
	tr.ApplyBuyFill(dec("1"), dec("100"), dec("0"), dec("105"))
	snap = tr.Snapshot()

	assert.True(t, snap.ReservedQuote.IsZero())
	assert.True(t, snap.BaseBalance.Equal(dec("1")))
	// 1000 - 105 reserved + 5 residual returned = 900 free quote.
	assert.True(t, snap.QuoteBalance.Equal(dec("900")), "got %s", snap.QuoteBalance)
}

func TestApplyBuyFillLeavesOtherReservationsIntact(t *testing.T) {
	tr := New(dec("1000"), decimal.Zero, logging.NewNop())

	require.NoError(t, tr.ReserveForBuy(dec("105")))
	require.NoError(t, tr.ReserveForBuy(dec("104")))

	tr.ApplyBuyFill(dec("1"), dec("105"), dec("0"), dec("105"))
	snap := tr.Snapshot()

	// The 104 reservation must survive the 105 fill untouched.
	assert.True(t, snap.ReservedQuote.Equal(dec("104")), "got %s", snap.ReservedQuote)
	assert.True(t, snap.QuoteBalance.Equal(dec("791")), "got %s", snap.QuoteBalance)
	assert.True(t, snap.QuoteBalance.Add(snap.ReservedQuote).Equal(dec("895")))
}

func TestApplySellFillCreditsQuoteAndDebitsReservedBase(t *testing.T) {
	tr := New(decimal.Zero, dec("2"), logging.NewNop())
	require.NoError(t, tr.ReserveForSell(dec("1")))

	tr.ApplySellFill(dec("1"), dec("110"), dec("1"), dec("1"))
	snap := tr.Snapshot()

	assert.True(t, snap.ReservedBase.IsZero())
	assert.True(t, snap.BaseBalance.Equal(dec("1")))
	assert.True(t, snap.QuoteBalance.Equal(dec("109")))
	assert.True(t, snap.TotalFees.Equal(dec("1")))
}

func TestApplyBuyFillAbsorbsFeeRoundingShortfall(t *testing.T) {
	tr := New(dec("101"), decimal.Zero, logging.NewNop())
	require.NoError(t, tr.ReserveForBuy(dec("100")))

	// Fill cost exceeds what was reserved by 1 unit (fee rounding edge
	// case); the shortfall comes out of the free bucket.
	tr.ApplyBuyFill(dec("1"), dec("100"), dec("1"), dec("100"))
	snap := tr.Snapshot()

	assert.True(t, snap.ReservedQuote.IsZero())
	assert.True(t, snap.QuoteBalance.IsZero(), "got %s", snap.QuoteBalance)
	assert.True(t, snap.BaseBalance.Equal(dec("1")))
}

func TestApplySellFillWithoutReservationDebitsFreeBase(t *testing.T) {
	tr := New(decimal.Zero, dec("3"), logging.NewNop())

	// A take-profit liquidation sells the whole free base position with
	// no prior reservation.
	tr.ApplySellFill(dec("3"), dec("120"), dec("0"), decimal.Zero)
	snap := tr.Snapshot()

	assert.True(t, snap.BaseBalance.IsZero())
	assert.True(t, snap.QuoteBalance.Equal(dec("360")))
}

func TestAccountValueIncludesReservedBuckets(t *testing.T) {
	tr := New(dec("500"), dec("1"), logging.NewNop())
	require.NoError(t, tr.ReserveForBuy(dec("100")))

	val := tr.AccountValue(dec("200"))
	// quote: 400 free + 100 reserved = 500; base: 1 * 200 = 200; total 700.
	assert.True(t, val.Equal(dec("700")), "got %s", val)
}

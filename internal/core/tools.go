package core

import (
	"github.com/shopspring/decimal"
)

// Positions is the perpetual-futures variant's position ledger: contract
// quantity per grid level price, split long/short, plus account margin
// health and funding history.
type Positions struct {
	LongPositions  map[string]decimal.Decimal // keyed by level price string
	ShortPositions map[string]decimal.Decimal
	MarginRatio    decimal.Decimal
	FundingRates   []FundingSample
}

// FundingSample is one observed funding rate at a point in time.
type FundingSample struct {
	Rate decimal.Decimal
	Time int64
}

// NewPositions returns an empty perpetual position ledger.
func NewPositions() *Positions {
	return &Positions{
		LongPositions:  make(map[string]decimal.Decimal),
		ShortPositions: make(map[string]decimal.Decimal),
	}
}

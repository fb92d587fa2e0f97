// Package core defines the shared domain types and interfaces for the grid
// trading engine: orders, grid levels, balances, and the ports the core
// depends on (exchange, logger, event bus, notifier).
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies which side of the book an order rests on.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType identifies the order type submitted to the exchange.
type OrderType string

const (
	LimitOrder      OrderType = "LIMIT"
	MarketOrder     OrderType = "MARKET"
	StopOrder       OrderType = "STOP"
	TakeProfitOrder OrderType = "TAKE_PROFIT"
)

// OrderStatus mirrors the exchange-reported lifecycle of an order.
type OrderStatus string

const (
	StatusOpen     OrderStatus = "OPEN"
	StatusClosed   OrderStatus = "CLOSED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusExpired  OrderStatus = "EXPIRED"
	StatusUnknown  OrderStatus = "UNKNOWN"
)

// Order is the immutable-identity, mutable-status snapshot of a single
// exchange order. Only Status, Filled, Remaining, Average and Fee are
// mutated after creation; everything else is fixed at placement time.
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Type      OrderType
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Filled    decimal.Decimal
	Remaining decimal.Decimal
	Average   decimal.Decimal
	Fee       decimal.Decimal
	Status    OrderStatus
	Timestamp time.Time
}

// Clone returns a deep copy, since an *Order is shared between the book and
// whichever goroutine just received a status update.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}

// Bar is a single OHLCV candle used to drive the backtest loop.
type Bar struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// SpacingType selects how grid prices are distributed between bottom and top.
type SpacingType string

const (
	Arithmetic SpacingType = "ARITHMETIC"
	Geometric  SpacingType = "GEOMETRIC"
)

// StrategyType selects the initial buy/sell partition of the ladder.
type StrategyType string

const (
	SimpleGrid StrategyType = "SIMPLE_GRID"
	HedgedGrid StrategyType = "HEDGED_GRID"
)

// TradingMode selects which execution strategy and balance bootstrap path
// the engine uses.
type TradingMode string

const (
	Backtest     TradingMode = "BACKTEST"
	Live         TradingMode = "LIVE"
	PaperTrading TradingMode = "PAPER_TRADING"
)

// BalanceSnapshot is a consistent read of the balance tracker's buckets,
// used both for property checks and for the engine's performance summary.
type BalanceSnapshot struct {
	QuoteBalance  decimal.Decimal
	BaseBalance   decimal.Decimal
	ReservedQuote decimal.Decimal
	ReservedBase  decimal.Decimal
	TotalFees     decimal.Decimal
}

// PerformanceSummary is the engine's terminal output.
type PerformanceSummary struct {
	ConfigPath    string
	AccountValues []decimal.Decimal
	FinalBalance  BalanceSnapshot
	OrdersPlaced  int
	OrdersFilled  int
}

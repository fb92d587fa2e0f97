// Package execution implements the two core.ExecutionStrategy variants:
// the live strategy, which talks to a real core.Exchange with retry and
// slippage tolerance, and the backtest strategy, which synthesizes
// deterministic orders with no network access.
package execution

import (
	"context"
	"time"

	"github.com/opensqt/gridbot/internal/core"

	apperrors "github.com/opensqt/gridbot/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// LiveConfig tunes the live strategy's retry behavior.
type LiveConfig struct {
	MaxRetries   int
	RetryDelay   time.Duration
	MaxSlippage  decimal.Decimal // fraction, e.g. 0.01 = 1%
	RateLimitRPS float64         // outbound order placement rate limit
}

// DefaultLiveConfig returns a fixed retry and slippage tuning. The
// gridbot binary does not use it; it builds LiveConfig from the config
// file's system section.
func DefaultLiveConfig() LiveConfig {
	return LiveConfig{
		MaxRetries:   3,
		RetryDelay:   time.Second,
		MaxSlippage:  decimal.NewFromFloat(0.01),
		RateLimitRPS: 25,
	}
}

// Live is the core.ExecutionStrategy that submits real orders to an
// exchange adapter.
type Live struct {
	exchange core.Exchange
	logger   core.Logger
	cfg      LiveConfig
	limiter  *rate.Limiter
}

// NewLive returns a Live strategy wrapping exchange.
func NewLive(exchange core.Exchange, cfg LiveConfig, logger core.Logger) *Live {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 25
	}
	return &Live{
		exchange: exchange,
		logger:   logger.WithField("component", "live_execution"),
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(rps), int(rps)),
	}
}

// ExecuteMarketOrder attempts up to cfg.MaxRetries times, walking the
// limit price away from the reference price by maxSlippage*attempt/
// maxRetries on each attempt (upward for buys, downward for sells),
// canceling and retrying any residual left by a partial fill.
func (l *Live) ExecuteMarketOrder(ctx context.Context, side core.Side, symbol string, qty, price decimal.Decimal) (*core.Order, error) {
	remaining := qty
	var lastOrder *core.Order

	// One client id across every attempt of the same logical order, so
	// retries correlate in the logs.
	log := l.logger.WithField("client_order_id", uuid.NewString())

	for attempt := 1; attempt <= l.cfg.MaxRetries; attempt++ {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		adjusted := adjustedPrice(side, price, l.cfg.MaxSlippage, attempt, l.cfg.MaxRetries)
		order, err := l.exchange.PlaceMarketOrder(ctx, side, symbol, remaining, adjusted)
		if err != nil {
			log.Warn("market order attempt failed", "attempt", attempt, "error", err)
			time.Sleep(l.cfg.RetryDelay)
			continue
		}

		if order.Status == core.StatusOpen && order.Filled.GreaterThan(decimal.Zero) {
			log.Info("partial fill, canceling and retrying residual",
				"order_id", order.ID, "filled", order.Filled, "remaining", order.Remaining)
			if cancelErr := l.exchange.CancelOrder(ctx, symbol, order.ID); cancelErr != nil {
				log.Error("cancel of partially filled order failed", "order_id", order.ID, "error", cancelErr)
			}
			remaining = order.Remaining
			lastOrder = order
			if attempt < l.cfg.MaxRetries {
				time.Sleep(l.cfg.RetryDelay)
			}
			continue
		}

		return order, nil
	}

	if lastOrder != nil {
		return lastOrder, apperrors.ErrOrderExecutionFailed
	}
	return nil, apperrors.ErrOrderExecutionFailed
}

// ExecuteLimitOrder submits a single limit order and returns the
// exchange's response status as-is.
func (l *Live) ExecuteLimitOrder(ctx context.Context, side core.Side, symbol string, qty, price decimal.Decimal) (*core.Order, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	order, err := l.exchange.PlaceLimitOrder(ctx, side, symbol, qty, price)
	if err != nil {
		return nil, apperrors.ErrOrderExecutionFailed
	}
	return order, nil
}

// GetOrder retrieves current order status from the exchange; a network
// fault surfaces as ErrDataFetch.
func (l *Live) GetOrder(ctx context.Context, id, symbol string) (*core.Order, error) {
	order, err := l.exchange.GetOrder(ctx, symbol, id)
	if err != nil {
		return nil, apperrors.ErrDataFetch
	}
	return order, nil
}

// adjustedPrice applies the slippage ramp: adjustment =
// maxSlippage * attempt / maxRetries, added for buys and subtracted for
// sells so each retry chases the market a little further.
func adjustedPrice(side core.Side, price, maxSlippage decimal.Decimal, attempt, maxRetries int) decimal.Decimal {
	fraction := decimal.NewFromInt(int64(attempt)).Div(decimal.NewFromInt(int64(maxRetries)))
	adjustment := price.Mul(maxSlippage).Mul(fraction)
	if side == core.Buy {
		return price.Add(adjustment)
	}
	return price.Sub(adjustment)
}

var _ core.ExecutionStrategy = (*Live)(nil)

package strategy

import (
	"fmt"
	"time"

	apperrors "github.com/opensqt/gridbot/pkg/errors"
)

// timeframes maps the candle intervals the engine accepts to their
// duration.
var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// ParseTimeframe resolves a config timeframe string to a duration,
// failing with ErrUnsupportedTimeframe for anything the engine can't
// backtest against.
func ParseTimeframe(tf string) (time.Duration, error) {
	d, ok := timeframes[tf]
	if !ok {
		return 0, fmt.Errorf("timeframe %q: %w", tf, apperrors.ErrUnsupportedTimeframe)
	}
	return d, nil
}

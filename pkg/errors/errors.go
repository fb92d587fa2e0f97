// Package apperrors holds the sentinel error taxonomy shared across the
// grid engine.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's failure taxonomy. Components wrap
// these with fmt.Errorf("...: %w", ...) to attach context; callers use
// errors.Is to branch on category.
var (
	// ErrConfig is fatal at init: invalid grid geometry or an unrecognized
	// spacing/strategy type.
	ErrConfig = errors.New("invalid configuration")

	// ErrInsufficientBalance is raised by the order validator when a buy
	// would exceed the available quote balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientCryptoBalance is raised by the order validator when a
	// sell would exceed the available base balance.
	ErrInsufficientCryptoBalance = errors.New("insufficient crypto balance")

	// ErrOrderExecutionFailed is raised by the live execution strategy
	// after all retries are exhausted.
	ErrOrderExecutionFailed = errors.New("order execution failed")

	// ErrDataFetch covers exchange connectivity or response-shape failures
	// in a data path (status poll, balance fetch).
	ErrDataFetch = errors.New("data fetch failed")

	// ErrUnsupportedExchange and ErrUnsupportedTimeframe are fatal at
	// startup.
	ErrUnsupportedExchange  = errors.New("unsupported exchange")
	ErrUnsupportedTimeframe = errors.New("unsupported timeframe")

	// ErrOrderNotFound signals an order id unknown to the exchange adapter
	// or the backtest execution strategy.
	ErrOrderNotFound = errors.New("order not found")
)

// ConfigError wraps ErrConfig with the offending field for a readable
// startup failure.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error on %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// NewConfigError constructs a ConfigError.
func NewConfigError(field, message string) error {
	return &ConfigError{Field: field, Message: message}
}

// Package config handles loading and validating the grid engine's YAML
// configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the complete configuration surface the engine is constructed
// from: the trading options plus the ambient sections (exchange
// credentials, logging, concurrency, telemetry).
type Config struct {
	Exchange    ExchangeConfig    `yaml:"exchange"`
	Trading     TradingConfig     `yaml:"trading"`
	TakeProfit  ThresholdConfig   `yaml:"take_profit"`
	StopLoss    ThresholdConfig   `yaml:"stop_loss"`
	Perpetual   PerpetualConfig   `yaml:"perpetual"`
	System      SystemConfig      `yaml:"system"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// ExchangeConfig names the venue and its credentials. Secret fields
// redact themselves everywhere they are printed or serialized.
type ExchangeConfig struct {
	Name      string `yaml:"name" validate:"required"`
	APIKey    Secret `yaml:"api_key"`
	SecretKey Secret `yaml:"secret_key"`
	BaseURL   string `yaml:"base_url"`
}

// TradingConfig carries the strategy's trading options.
type TradingConfig struct {
	TradingMode    string          `yaml:"trading_mode" validate:"required,oneof=BACKTEST LIVE PAPER_TRADING"`
	StrategyType   string          `yaml:"strategy_type" validate:"required,oneof=SIMPLE_GRID HEDGED_GRID"`
	SpacingType    string          `yaml:"spacing_type" validate:"required,oneof=ARITHMETIC GEOMETRIC"`
	BottomRange    decimal.Decimal `yaml:"bottom_range"`
	TopRange       decimal.Decimal `yaml:"top_range"`
	NumGrids       int             `yaml:"num_grids" validate:"min=2"`
	BaseCurrency   string          `yaml:"base_currency" validate:"required"`
	QuoteCurrency  string          `yaml:"quote_currency" validate:"required"`
	InitialBalance decimal.Decimal `yaml:"initial_balance"`
	InitialCrypto  decimal.Decimal `yaml:"initial_crypto_balance"`
	TradingFee     decimal.Decimal `yaml:"trading_fee"`
	Timeframe      string          `yaml:"timeframe"`
	StartDate      *time.Time      `yaml:"start_date"`
	EndDate        *time.Time      `yaml:"end_date"`
	TriggerPrice   *decimal.Decimal `yaml:"trigger_price"`
}

// ThresholdConfig is the shared shape of take_profit and stop_loss.
type ThresholdConfig struct {
	Enabled   bool            `yaml:"enabled"`
	Threshold decimal.Decimal `yaml:"threshold"`
}

// PerpetualConfig configures the optional leveraged-futures variant.
// Zeroed/disabled means the spot core applies.
type PerpetualConfig struct {
	Enabled             bool            `yaml:"enabled"`
	Leverage            decimal.Decimal `yaml:"leverage"`
	MaintenanceMargin   decimal.Decimal `yaml:"maintenance_margin_ratio"`
}

// SystemConfig is ambient process configuration: logging, the status
// polling and ticker refresh intervals, and market-order retry tuning.
type SystemConfig struct {
	LogLevel                string `yaml:"log_level" validate:"oneof=DEBUG INFO WARN ERROR FATAL"`
	PollingIntervalSeconds  int    `yaml:"polling_interval_seconds" validate:"min=1"`
	TickerRefreshSeconds    int    `yaml:"ticker_refresh_seconds" validate:"min=1"`
	MaxRetries              int    `yaml:"max_retries" validate:"min=0"`
	RetryDelaySeconds       int    `yaml:"retry_delay_seconds" validate:"min=0"`
	MaxSlippage             decimal.Decimal `yaml:"max_slippage"`
}

// ConcurrencyConfig sizes the bounded worker pool the event bus's
// PublishSync submits handlers to.
type ConcurrencyConfig struct {
	PoolSize   int `yaml:"pool_size" validate:"min=1"`
	PoolBuffer int `yaml:"pool_buffer" validate:"min=0"`
}

// TelemetryConfig controls the ambient Prometheus metrics surface.
type TelemetryConfig struct {
	EnableMetrics bool `yaml:"enable_metrics"`
	MetricsPort   int  `yaml:"metrics_port"`
}

// ValidationError reports a single invalid configuration field.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig reads filename, expands ${VAR} environment references, parses
// YAML, and validates the result.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate performs the cross-field checks: geometry sanity, required
// identifiers, and at-most-one of TP/SL.
func (c *Config) Validate() error {
	var problems []string

	if c.Trading.BottomRange.IsZero() || c.Trading.BottomRange.IsNegative() {
		problems = append(problems, ValidationError{"trading.bottom_range", c.Trading.BottomRange, "must be positive"}.Error())
	}
	if !c.Trading.TopRange.GreaterThan(c.Trading.BottomRange) {
		problems = append(problems, ValidationError{"trading.top_range", c.Trading.TopRange, "must be greater than bottom_range"}.Error())
	}
	if c.Trading.NumGrids < 2 {
		problems = append(problems, ValidationError{"trading.num_grids", c.Trading.NumGrids, "must be at least 2"}.Error())
	}
	if c.Trading.BaseCurrency == "" {
		problems = append(problems, ValidationError{"trading.base_currency", "", "required"}.Error())
	}
	if c.Trading.QuoteCurrency == "" {
		problems = append(problems, ValidationError{"trading.quote_currency", "", "required"}.Error())
	}
	switch strings.ToUpper(c.Trading.TradingMode) {
	case "BACKTEST", "LIVE", "PAPER_TRADING":
	default:
		problems = append(problems, ValidationError{"trading.trading_mode", c.Trading.TradingMode, "must be BACKTEST, LIVE, or PAPER_TRADING"}.Error())
	}
	switch strings.ToUpper(c.Trading.StrategyType) {
	case "SIMPLE_GRID", "HEDGED_GRID":
	default:
		problems = append(problems, ValidationError{"trading.strategy_type", c.Trading.StrategyType, "must be SIMPLE_GRID or HEDGED_GRID"}.Error())
	}
	switch strings.ToUpper(c.Trading.SpacingType) {
	case "ARITHMETIC", "GEOMETRIC":
	default:
		problems = append(problems, ValidationError{"trading.spacing_type", c.Trading.SpacingType, "must be ARITHMETIC or GEOMETRIC"}.Error())
	}
	if c.TakeProfit.Enabled && c.StopLoss.Enabled {
		problems = append(problems, ValidationError{"take_profit/stop_loss", nil, "at most one of take_profit and stop_loss may be enabled"}.Error())
	}
	if c.Exchange.Name == "" {
		problems = append(problems, ValidationError{"exchange.name", "", "required"}.Error())
	}
	if l := strings.ToUpper(c.System.LogLevel); l != "" {
		switch l {
		case "DEBUG", "INFO", "WARN", "ERROR", "FATAL":
		default:
			problems = append(problems, ValidationError{"system.log_level", c.System.LogLevel, "must be DEBUG, INFO, WARN, ERROR, or FATAL"}.Error())
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

// String returns a YAML rendering of the config with secrets redacted,
// suitable for startup logging.
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

// WithDefaults fills in ambient fields left at their zero value, so a
// minimal config file is still runnable.
func (c *Config) WithDefaults() *Config {
	cp := *c
	if cp.System.PollingIntervalSeconds == 0 {
		cp.System.PollingIntervalSeconds = 5
	}
	if cp.System.TickerRefreshSeconds == 0 {
		cp.System.TickerRefreshSeconds = 3
	}
	if cp.System.MaxRetries == 0 {
		cp.System.MaxRetries = 3
	}
	if cp.System.RetryDelaySeconds == 0 {
		cp.System.RetryDelaySeconds = 1
	}
	if cp.System.LogLevel == "" {
		cp.System.LogLevel = "INFO"
	}
	if cp.Concurrency.PoolSize == 0 {
		cp.Concurrency.PoolSize = 8
	}
	if cp.Concurrency.PoolBuffer == 0 {
		cp.Concurrency.PoolBuffer = 64
	}
	if cp.Telemetry.MetricsPort == 0 {
		cp.Telemetry.MetricsPort = 9090
	}
	return &cp
}

func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}

// DefaultConfig returns a small, internally-consistent backtest config
// used by tests and as a starting point for new deployments.
func DefaultConfig() *Config {
	return &Config{
		Exchange: ExchangeConfig{Name: "mock"},
		Trading: TradingConfig{
			TradingMode:    "BACKTEST",
			StrategyType:   "SIMPLE_GRID",
			SpacingType:    "ARITHMETIC",
			BottomRange:    decimal.NewFromInt(100),
			TopRange:       decimal.NewFromInt(110),
			NumGrids:       11,
			BaseCurrency:   "BTC",
			QuoteCurrency:  "USDT",
			InitialBalance: decimal.NewFromInt(1000),
			TradingFee:     decimal.Zero,
			Timeframe:      "1h",
		},
		System: SystemConfig{LogLevel: "INFO"},
	}
}

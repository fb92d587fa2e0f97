package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensqt/gridbot/internal/alert"
	"github.com/opensqt/gridbot/internal/balance"
	"github.com/opensqt/gridbot/internal/bot"
	"github.com/opensqt/gridbot/internal/config"
	"github.com/opensqt/gridbot/internal/core"
	"github.com/opensqt/gridbot/internal/eventbus"
	"github.com/opensqt/gridbot/internal/exchange/mock"
	"github.com/opensqt/gridbot/internal/execution"
	"github.com/opensqt/gridbot/internal/grid"
	"github.com/opensqt/gridbot/internal/logging"
	"github.com/opensqt/gridbot/internal/orderbook"
	"github.com/opensqt/gridbot/internal/ordermanager"
	"github.com/opensqt/gridbot/internal/position"
	"github.com/opensqt/gridbot/internal/statustracker"
	"github.com/opensqt/gridbot/internal/strategy"
	"github.com/opensqt/gridbot/internal/validator"
	"github.com/opensqt/gridbot/pkg/concurrency"
	"github.com/opensqt/gridbot/pkg/telemetry"

	apperrors "github.com/opensqt/gridbot/pkg/errors"

	"github.com/shopspring/decimal"
)

var (
	// Version information (set via build flags)
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/gridbot.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("gridbot version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg = cfg.WithDefaults()

	mode := core.TradingMode(strings.ToUpper(cfg.Trading.TradingMode))

	logger, err := logging.New(cfg.System.LogLevel, mode == core.Backtest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting gridbot",
		"version", version,
		"mode", cfg.Trading.TradingMode,
		"strategy", cfg.Trading.StrategyType,
		"pair", cfg.Trading.BaseCurrency+"/"+cfg.Trading.QuoteCurrency,
	)

	if err := run(cfg, *configPath, mode, logger); err != nil {
		logger.Error("gridbot exited with error", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, mode core.TradingMode, logger *logging.Logger) error {
	symbol := cfg.Trading.BaseCurrency + "/" + cfg.Trading.QuoteCurrency

	if mode == core.Backtest {
		if _, err := strategy.ParseTimeframe(cfg.Trading.Timeframe); err != nil {
			return err
		}
	}

	exchange, err := buildExchange(cfg)
	if err != nil {
		return err
	}
	defer exchange.Close()

	// Metrics are optional; when disabled the components run unmetered.
	var metrics *telemetry.Metrics
	if cfg.Telemetry.EnableMetrics {
		server, m := telemetry.NewServer(cfg.Telemetry.MetricsPort, logger)
		server.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Stop(ctx)
		}()
		metrics = m
	}

	bottom, top := cfg.Trading.BottomRange, cfg.Trading.TopRange
	if cfg.Perpetual.Enabled {
		bottom, top, err = grid.ScaleRangeForLeverage(bottom, top, cfg.Perpetual.Leverage)
		if err != nil {
			return err
		}
	}

	prices, central, err := grid.BuildLadder(bottom, top, cfg.Trading.NumGrids, core.SpacingType(strings.ToUpper(cfg.Trading.SpacingType)))
	if err != nil {
		return err
	}
	g := grid.New(symbol, core.StrategyType(strings.ToUpper(cfg.Trading.StrategyType)), prices, central)

	var bal *balance.Tracker
	if mode == core.Backtest {
		bal = balance.New(cfg.Trading.InitialBalance, cfg.Trading.InitialCrypto, logger)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		bal, err = balance.NewFromExchange(ctx, exchange, cfg.Trading.QuoteCurrency, cfg.Trading.BaseCurrency, logger)
		if err != nil {
			return err
		}
	}

	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "eventbus",
		MaxWorkers:  cfg.Concurrency.PoolSize,
		MaxCapacity: cfg.Concurrency.PoolBuffer,
	}, logger)
	defer pool.Stop()

	bus := eventbus.New(pool, logger)

	var exec core.ExecutionStrategy
	if mode == core.Backtest {
		exec = execution.NewBacktest()
	} else {
		exec = execution.NewLive(exchange, execution.LiveConfig{
			MaxRetries:  cfg.System.MaxRetries,
			RetryDelay:  time.Duration(cfg.System.RetryDelaySeconds) * time.Second,
			MaxSlippage: cfg.System.MaxSlippage,
		}, logger)
	}

	var sizing ordermanager.SizingPolicy = ordermanager.SpotSizing{}
	var positions *position.Tracker
	if cfg.Perpetual.Enabled {
		sizing = ordermanager.PerpetualSizing{
			Leverage:          cfg.Perpetual.Leverage,
			MaintenanceMargin: cfg.Perpetual.MaintenanceMargin,
		}
		positions = position.New(cfg.Perpetual.MaintenanceMargin, logger)
	}

	notifier := alert.NewManager(logger)
	notifier.AddChannel(alert.NewLogChannel(logger))

	book := orderbook.New()
	manager := ordermanager.New(ordermanager.Config{
		Symbol:       symbol,
		StrategyType: core.StrategyType(strings.ToUpper(cfg.Trading.StrategyType)),
		TradingFee:   cfg.Trading.TradingFee,
		Grid:         g,
		Book:         book,
		Balance:      bal,
		Execution:    exec,
		Sizing:       sizing,
		Validator:    validator.New(validator.Rules{PriceDecimals: 8, QuantityDecimals: 6}),
		Bus:          bus,
		Notifier:     notifier,
		Logger:       logger,
		Positions:    positions,
	})

	trigger := central
	if cfg.Trading.TriggerPrice != nil {
		trigger = *cfg.Trading.TriggerPrice
	}

	strategyCfg := strategy.Config{
		Symbol:         symbol,
		Mode:           mode,
		Timeframe:      cfg.Trading.Timeframe,
		TriggerPrice:   trigger,
		TakeProfit:     strategy.Threshold{Enabled: cfg.TakeProfit.Enabled, Threshold: cfg.TakeProfit.Threshold},
		StopLoss:       strategy.Threshold{Enabled: cfg.StopLoss.Enabled, Threshold: cfg.StopLoss.Threshold},
		TickerInterval: time.Duration(cfg.System.TickerRefreshSeconds) * time.Second,
	}
	if cfg.Trading.StartDate != nil {
		strategyCfg.StartDate = *cfg.Trading.StartDate
	}
	if cfg.Trading.EndDate != nil {
		strategyCfg.EndDate = *cfg.Trading.EndDate
	}

	strat := strategy.New(strategyCfg, strategy.Deps{
		Manager:   manager,
		Balance:   bal,
		Execution: exec,
		Exchange:  exchange,
		Book:      book,
		Bus:       bus,
		Logger:    logger,
		Metrics:   metrics,
	})

	tracker := statustracker.New(book, exec, bus,
		time.Duration(cfg.System.PollingIntervalSeconds)*time.Second, logger)

	controller := bot.New(configPath, strat, tracker, exchange, bal, bus, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		logger.Info("received shutdown signal", "signal", sig.String())
		controller.Stop()
	}()

	summary, err := controller.Run(context.Background())
	if err != nil {
		return err
	}

	logSummary(logger, summary)
	return nil
}

// buildExchange resolves the configured venue adapter. Concrete venue
// HTTP/WS adapters are external collaborators; the in-memory adapter is
// the only one that ships with the engine.
func buildExchange(cfg *config.Config) (core.Exchange, error) {
	switch strings.ToLower(cfg.Exchange.Name) {
	case "mock", "paper":
		return mock.New(cfg.Exchange.Name, map[string]decimal.Decimal{
			cfg.Trading.QuoteCurrency: cfg.Trading.InitialBalance,
			cfg.Trading.BaseCurrency:  cfg.Trading.InitialCrypto,
		}), nil
	default:
		return nil, fmt.Errorf("exchange %q: %w", cfg.Exchange.Name, apperrors.ErrUnsupportedExchange)
	}
}

func logSummary(logger core.Logger, s *core.PerformanceSummary) {
	final := decimal.Zero
	if n := len(s.AccountValues); n > 0 {
		final = s.AccountValues[n-1]
	}
	logger.Info("performance summary",
		"config", s.ConfigPath,
		"orders_placed", s.OrdersPlaced,
		"orders_filled", s.OrdersFilled,
		"final_account_value", final,
		"quote_balance", s.FinalBalance.QuoteBalance,
		"base_balance", s.FinalBalance.BaseBalance,
		"total_fees", s.FinalBalance.TotalFees,
	)
}

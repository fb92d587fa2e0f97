package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Logger is the structured logging port every component takes as a
// constructor input, rather than reaching for a process-wide logger.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// Exchange is the abstract venue adapter the core depends on. Production
// adapters and the backtest/mock adapter both satisfy it.
type Exchange interface {
	Name() string

	PlaceMarketOrder(ctx context.Context, side Side, symbol string, qty, price decimal.Decimal) (*Order, error)
	PlaceLimitOrder(ctx context.Context, side Side, symbol string, qty, price decimal.Decimal) (*Order, error)
	CancelOrder(ctx context.Context, symbol, id string) error
	GetOrder(ctx context.Context, symbol, id string) (*Order, error)

	GetBalance(ctx context.Context, currency string) (decimal.Decimal, error)
	FetchOHLCV(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]Bar, error)
	ListenToTicker(ctx context.Context, symbol string, interval time.Duration, cb func(price decimal.Decimal)) error
	ExchangeStatus(ctx context.Context) (string, error)
	Close() error
}

// EventBus is the typed pub/sub the engine's components communicate
// through exclusively.
type EventBus interface {
	Subscribe(topic Topic, handler Handler)
	Publish(ctx context.Context, topic Topic, payload interface{}) error
	PublishSync(topic Topic, payload interface{})
}

// Topic names the handful of events the engine exchanges.
type Topic string

const (
	TopicOrderFilled    Topic = "ORDER_FILLED"
	TopicOrderCancelled Topic = "ORDER_CANCELLED"
	TopicStartBot       Topic = "START_BOT"
	TopicStopBot        Topic = "STOP_BOT"
)

// Handler reacts to a published event. The bus runs all handlers
// registered for a topic concurrently on Publish and logs their errors
// rather than returning them; PublishSync schedules them on the background scheduler and returns
// immediately.
type Handler func(ctx context.Context, payload interface{}) error

// ExecutionStrategy is the order-placement contract shared by the live and
// backtest engines.
type ExecutionStrategy interface {
	ExecuteMarketOrder(ctx context.Context, side Side, symbol string, qty, price decimal.Decimal) (*Order, error)
	ExecuteLimitOrder(ctx context.Context, side Side, symbol string, qty, price decimal.Decimal) (*Order, error)
	GetOrder(ctx context.Context, id, symbol string) (*Order, error)
}

// Notifier is the consumed side-channel for operator-facing alerts. No
// delivery guarantee is required from it.
type Notifier interface {
	Notify(ctx context.Context, kind NotificationType, details map[string]string)
}

// NotificationType enumerates the notification kinds the engine emits.
type NotificationType string

const (
	NotifyOrderPlaced         NotificationType = "ORDER_PLACED"
	NotifyOrderFailed         NotificationType = "ORDER_FAILED"
	NotifyOrderCancelled      NotificationType = "ORDER_CANCELLED"
	NotifyTakeProfitTriggered NotificationType = "TAKE_PROFIT_TRIGGERED"
	NotifyStopLossTriggered   NotificationType = "STOP_LOSS_TRIGGERED"
	NotifyHealthCheckAlert    NotificationType = "HEALTH_CHECK_ALERT"
	NotifyErrorOccurred       NotificationType = "ERROR_OCCURRED"
)

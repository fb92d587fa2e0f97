// Package alert implements core.Notifier: a concurrent fan-out to one or
// more AlertChannels with a per-channel send timeout.
package alert

import (
	"context"
	"sync"
	"time"

	"github.com/opensqt/gridbot/internal/core"
)

// Payload is what every AlertChannel receives for one notification.
type Payload struct {
	Kind      core.NotificationType
	Details   map[string]string
	Timestamp time.Time
}

// Channel delivers a Payload somewhere (log line, webhook, chat message).
// No delivery guarantee is required of it.
type Channel interface {
	Name() string
	Send(ctx context.Context, p Payload) error
}

// Manager is the concrete core.Notifier: it fans a notification out to
// every registered channel concurrently, bounding each by sendTimeout so
// one slow channel can't block the others or the caller indefinitely.
type Manager struct {
	mu          sync.RWMutex
	channels    []Channel
	logger      core.Logger
	sendTimeout time.Duration
}

// NewManager returns a Manager with no channels registered; call
// AddChannel to attach one (e.g. a LogChannel).
func NewManager(logger core.Logger) *Manager {
	return &Manager{
		logger:      logger.WithField("component", "alert_manager"),
		sendTimeout: 10 * time.Second,
	}
}

// AddChannel registers ch to receive every future notification.
func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
	m.logger.Info("alert channel registered", "name", ch.Name())
}

// Notify implements core.Notifier. It does not block on delivery: each
// channel's Send runs on its own goroutine under the send timeout.
func (m *Manager) Notify(ctx context.Context, kind core.NotificationType, details map[string]string) {
	payload := Payload{Kind: kind, Details: details, Timestamp: time.Now()}

	m.mu.RLock()
	channels := append([]Channel(nil), m.channels...)
	m.mu.RUnlock()

	for _, ch := range channels {
		ch := ch
		go func() {
			tctx, cancel := context.WithTimeout(ctx, m.sendTimeout)
			defer cancel()
			if err := ch.Send(tctx, payload); err != nil {
				m.logger.Error("failed to send alert", "channel", ch.Name(), "kind", string(kind), "error", err)
			}
		}()
	}
}

var _ core.Notifier = (*Manager)(nil)

// LogChannel is the default channel: it just logs every notification.
// Richer transports (webhooks, chat) plug in behind Channel.
type LogChannel struct {
	logger core.Logger
}

// NewLogChannel returns a Channel that writes notifications to logger.
func NewLogChannel(logger core.Logger) *LogChannel {
	return &LogChannel{logger: logger.WithField("component", "log_alert_channel")}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(ctx context.Context, p Payload) error {
	fields := make([]interface{}, 0, len(p.Details)*2+2)
	fields = append(fields, "kind", string(p.Kind))
	for k, v := range p.Details {
		fields = append(fields, k, v)
	}
	c.logger.Info("notification", fields...)
	return nil
}

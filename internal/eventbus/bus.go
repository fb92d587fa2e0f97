// Package eventbus implements the typed topic pub/sub the engine's
// components communicate through exclusively.
package eventbus

import (
	"context"
	"sync"

	"github.com/opensqt/gridbot/internal/core"

	"golang.org/x/sync/errgroup"
)

// Bus is the concrete core.EventBus: a per-topic list of subscribers
// delivered in publish order, guarded by a single mutex.
type Bus struct {
	mu     sync.Mutex
	subs   map[core.Topic][]core.Handler
	pool   WorkerPool
	logger core.Logger
}

// WorkerPool is the minimal background-scheduler contract PublishSync
// hands async handlers to; *concurrency.WorkerPool satisfies it.
type WorkerPool interface {
	Submit(task func()) error
}

// New returns an empty Bus. pool is used by PublishSync to schedule async
// handlers in the background; it may be nil, in which case PublishSync
// falls back to a bare goroutine per handler.
func New(pool WorkerPool, logger core.Logger) *Bus {
	return &Bus{
		subs:   make(map[core.Topic][]core.Handler),
		pool:   pool,
		logger: logger.WithField("component", "event_bus"),
	}
}

// Subscribe registers handler for topic. Handlers registered for the same
// topic are invoked in registration order.
func (b *Bus) Subscribe(topic core.Topic, handler core.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], handler)
}

// Publish fans the payload out to every handler subscribed to topic,
// running them concurrently via an errgroup and blocking until all
// complete. A handler's error is logged and a handler panic is recovered
// and logged; neither cancels its siblings, and Publish returns nil.
func (b *Bus) Publish(ctx context.Context, topic core.Topic, payload interface{}) error {
	b.mu.Lock()
	handlers := append([]core.Handler(nil), b.subs[topic]...)
	b.mu.Unlock()

	if len(handlers) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handlers {
		h := h
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked", "topic", string(topic), "panic", r)
				}
			}()
			if err := h(gctx, payload); err != nil {
				b.logger.Warn("event handler failed", "topic", string(topic), "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// PublishSync schedules every handler subscribed to topic on the
// background worker pool and returns immediately, for call sites that
// cannot block on handler completion.
func (b *Bus) PublishSync(topic core.Topic, payload interface{}) {
	b.mu.Lock()
	handlers := append([]core.Handler(nil), b.subs[topic]...)
	b.mu.Unlock()

	for _, h := range handlers {
		h := h
		run := func() {
			if err := h(context.Background(), payload); err != nil {
				b.logger.Warn("event handler failed", "topic", string(topic), "error", err)
			}
		}
		if b.pool != nil {
			if err := b.pool.Submit(run); err != nil {
				b.logger.Warn("failed to schedule handler, running in a new goroutine", "topic", string(topic), "error", err)
				go run()
			}
			continue
		}
		go run()
	}
}

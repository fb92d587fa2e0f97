// Package health aggregates the Bot Controller's health query over a
// small registry of named checks.
package health

import (
	"sync"

	"github.com/opensqt/gridbot/internal/core"
)

// Manager aggregates health status from registered named checks.
type Manager struct {
	logger core.Logger
	mu     sync.RWMutex
	checks map[string]func() error
}

// NewManager returns an empty Manager. logger may be nil for tests.
func NewManager(logger core.Logger) *Manager {
	m := &Manager{checks: make(map[string]func() error)}
	if logger != nil {
		m.logger = logger.WithField("component", "health_manager")
	}
	return m
}

// Register adds or replaces the health check for component.
func (m *Manager) Register(component string, check func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[component] = check
}

// Status returns "Healthy" or "Unhealthy: <err>" per registered component.
func (m *Manager) Status() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.checks))
	for name, check := range m.checks {
		if err := check(); err != nil {
			out[name] = "Unhealthy: " + err.Error()
		} else {
			out[name] = "Healthy"
		}
	}
	return out
}

// IsHealthy reports whether every registered check currently passes.
func (m *Manager) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, check := range m.checks {
		if err := check(); err != nil {
			return false
		}
	}
	return true
}

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"auspex/internal/logging"
)

// Manager starts components in registration order and stops them in
// reverse. A failed start rolls back everything already running.
type Manager struct {
	mu              sync.Mutex
	components      []Component
	started         []Component
	shutdownTimeout time.Duration
	log             *logging.Logger
}

// NewManager returns a manager with a 30-second per-component stop
// grace period.
func NewManager() *Manager {
	return &Manager{
		shutdownTimeout: 30 * time.Second,
		log:             logging.GetLogger("lifecycle"),
	}
}

// Register appends a component. Registration order is start order.
func (m *Manager) Register(c Component) error {
	if c == nil {
		return errors.New("cannot register nil component")
	}
	if c.Name() == "" {
		return errors.New("component must have a non-empty name")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.components {
		if existing == c {
			return fmt.Errorf("component %s is already registered", c.Name())
		}
	}
	m.components = append(m.components, c)
	return nil
}

// Start brings up every registered component in order. On failure the
// components already running are stopped in reverse before returning.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = m.started[:0]
	for _, c := range m.components {
		m.log.Info("Starting %s", c.Name())
		begin := time.Now()

		if err := c.Start(ctx); err != nil {
			m.log.Error("Failed to start %s: %v", c.Name(), err)
			m.rollback()
			return fmt.Errorf("start %s: %w", c.Name(), err)
		}

		m.started = append(m.started, c)
		m.log.Info("%s started (took %dms)", c.Name(), time.Since(begin).Milliseconds())
	}
	return nil
}

// rollback stops the components a failed Start left running, newest
// first. Callers hold m.mu.
func (m *Manager) rollback() {
	for i := len(m.started) - 1; i >= 0; i-- {
		c := m.started[i]
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.Stop(ctx); err != nil {
			m.log.Warn("Error stopping %s during rollback: %v", c.Name(), err)
		}
		cancel()
	}
	m.started = m.started[:0]
}

// Stop shuts down the started components in reverse order. Each gets
// its own grace period; errors are logged rather than returned so one
// misbehaving component cannot block the rest.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.started) - 1; i >= 0; i-- {
		c := m.started[i]
		m.log.Info("Stopping %s", c.Name())
		begin := time.Now()

		stopCtx, cancel := context.WithTimeout(ctx, m.shutdownTimeout)
		err := c.Stop(stopCtx)
		cancel()

		switch {
		case errors.Is(err, context.DeadlineExceeded):
			m.log.Warn("%s exceeded the %s stop grace period", c.Name(), m.shutdownTimeout)
		case err != nil:
			m.log.Error("Error stopping %s: %v", c.Name(), err)
		default:
			m.log.Info("%s stopped (took %dms)", c.Name(), time.Since(begin).Milliseconds())
		}
	}
	m.started = m.started[:0]
	return nil
}

// IsRunning reports whether c started and has not yet been stopped.
func (m *Manager) IsRunning(c Component) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.started {
		if s == c {
			return true
		}
	}
	return false
}

// SetShutdownTimeout overrides the per-component stop grace period.
func (m *Manager) SetShutdownTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownTimeout = d
}

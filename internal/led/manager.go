package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/camrelay/internal/events"
)

// Manager subscribes to pipeline state changes and drives the status LED.
type Manager struct {
	controller Controller
	eventBus   *events.Bus
	logger     *slog.Logger

	mu          sync.Mutex
	unsubscribe func()
	pattern     string
}

// NewManager creates a new LED manager that reacts to pipeline state changes.
func NewManager(controller Controller, eventBus *events.Bus, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
	}
}

// Start begins listening for stream state events.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribe != nil {
		return
	}
	m.unsubscribe = m.eventBus.Subscribe(func(e events.StreamStateEvent) {
		m.handleEvent(e)
	})
	m.logger.Info("LED manager started", "led", m.controller.Name())
}

// Stop unsubscribes and hands the LED back to its original trigger.
func (m *Manager) Stop() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.pattern = ""
	m.mu.Unlock()

	if unsubscribe == nil {
		return
	}
	// Not under mu: a handler may be waiting on it.
	unsubscribe()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.controller.Restore(); err != nil {
		m.logger.Warn("Failed to restore LED", "error", err)
	}
	m.logger.Info("LED manager stopped")
}

func (m *Manager) handleEvent(e events.StreamStateEvent) {
	pattern := PatternFor(e.State)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribe == nil || pattern == m.pattern {
		return
	}

	if err := m.controller.Set(pattern); err != nil {
		m.logger.Warn("Failed to set LED", "pattern", pattern, "error", err)
		return
	}
	m.pattern = pattern
	m.logger.Debug("LED updated", "state", e.State, "pattern", pattern)
}

// PatternFor maps a pipeline state to an LED pattern.
func PatternFor(state events.StreamState) string {
	switch state {
	case events.StateRunning:
		return PatternSolid
	case events.StateProbing, events.StateStarting:
		return PatternPulse
	case events.StateFailed:
		return PatternBlink
	default:
		return PatternOff
	}
}

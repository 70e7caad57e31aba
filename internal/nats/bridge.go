package nats

import (
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camrelay/internal/events"
)

// Bridge forwards bus events to a Publisher and turns control commands
// into RestartRequestedEvent on the bus.
type Bridge struct {
	bus       *events.Bus
	publisher *Publisher
	unsubs    []func()
	logger    *slog.Logger
	mu        sync.Mutex
}

// NewBridge creates a new EventBus-to-NATS bridge.
func NewBridge(bus *events.Bus, publisher *Publisher, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bridge{
		bus:       bus,
		publisher: publisher,
		logger:    logger.With("component", "nats-bridge"),
	}
}

// Start subscribes to the bus. The publisher may connect before or after.
func (b *Bridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.unsubs) > 0 {
		return
	}

	device := b.publisher.Device()
	b.unsubs = append(b.unsubs,
		b.bus.Subscribe(func(e events.AlertEvent) {
			b.publisher.PublishAlert(AlertFromEvent(device, e))
			b.logger.Debug("Forwarded alert", "title", e.Title)
		}),
		b.bus.Subscribe(func(e events.StreamStateEvent) {
			b.publisher.PublishState(StateFromEvent(device, e))
			b.logger.Debug("Forwarded state", "state", e.State)
		}),
	)

	b.publisher.OnRestart(func(reason string) {
		b.bus.Publish(events.RestartRequestedEvent{
			Source:    "nats",
			Reason:    reason,
			Timestamp: time.Now(),
		})
	})

	b.logger.Info("NATS bridge started", "device", device)
}

// Stop unsubscribes from the bus.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
	b.publisher.OnRestart(nil)
	b.logger.Info("NATS bridge stopped")
}

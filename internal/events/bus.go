package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher. Handlers run on the dispatcher's
// goroutines, so Publish never waits for a subscriber.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers of its concrete type.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case AlertEvent:
		event.Publish(b.dispatcher, e)
	case StreamStateEvent:
		event.Publish(b.dispatcher, e)
	case RestartRequestedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a handler; the handler's parameter type selects the
// events it receives. Returns an unsubscribe function.
//
//	unsub := bus.Subscribe(func(e AlertEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(AlertEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamStateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RestartRequestedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// Close stops the dispatcher and all subscriber goroutines.
func (b *Bus) Close() error {
	return b.dispatcher.Close()
}

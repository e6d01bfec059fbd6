package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for typed event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(FrameDecodedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches by concrete type, so each type is
	// published through its own instantiation.
	switch e := ev.(type) {
	case StreamStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case FrameDecodedEvent:
		event.Publish(b.dispatcher, e)
	case DecodeErrorEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function. The handler's
// parameter type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e FrameDecodedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(StreamStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FrameDecodedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DecodeErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

package eventbus

import (
	evbus "github.com/asaskevich/EventBus"
)

// Bus wraps the underlying event bus behind an instance handed to each
// component, so tests and multiple engines never share hidden state.
type Bus struct {
	bus evbus.Bus
}

// New creates an event bus.
func New() *Bus {
	return &Bus{bus: evbus.New()}
}

// Publish delivers an event to all subscribers of the topic.
func (b *Bus) Publish(topic string, args ...interface{}) {
	b.bus.Publish(topic, args...)
}

// Subscribe registers a handler invoked synchronously on every publish.
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// SubscribeAsync registers a handler invoked on its own goroutine.
// transactional serializes deliveries for the handler.
func (b *Bus) SubscribeAsync(topic string, fn interface{}, transactional bool) error {
	return b.bus.SubscribeAsync(topic, fn, transactional)
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}

// WaitAsync blocks until all async handlers have finished.
func (b *Bus) WaitAsync() {
	b.bus.WaitAsync()
}

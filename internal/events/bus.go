package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler processes one event. Handlers run on their own goroutines; a panic
// is recovered and logged, never propagated to the publisher.
type Handler func(Event)

// Bus is a concurrent-safe in-process event bus. Delivery is at-least-once to
// every subscriber registered at publish time; publishing never blocks on
// handler execution.
type Bus struct {
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[string][]Handler

	inflight sync.WaitGroup
}

// NewBus creates an empty bus
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		logger: logger,
		subs:   make(map[string][]Handler),
	}
}

// Subscribe registers a handler for a topic
func (b *Bus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], handler)
	b.logger.Debug("subscribed handler", zap.String("topic", topic))
}

// Publish fans the event out to all subscribers of its topic. Each handler
// runs on its own goroutine.
func (b *Bus) Publish(topic string, payload any) {
	event := Event{
		Topic:     topic,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	b.mu.RLock()
	handlers := append([]Handler{}, b.subs[topic]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.Debug("no subscribers for event", zap.String("topic", topic))
		return
	}

	for _, handler := range handlers {
		b.inflight.Add(1)
		go func(h Handler) {
			defer b.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panic",
						zap.String("topic", topic),
						zap.Any("recover", r))
				}
			}()
			h(event)
		}(handler)
	}
}

// Drain blocks until all handlers dispatched so far have returned. Used on
// shutdown and by tests that assert on listener side effects.
func (b *Bus) Drain() {
	b.inflight.Wait()
}

package eventbus

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"guildbot/internal/logging"
)

// Subscription identifies a registered handler so it can be removed.
type Subscription struct {
	topic Topic
	id    uint64
}

type entry struct {
	id      uint64
	handler Handler
}

// Bus is a simple in-process pub/sub event bus. A panicking handler is
// logged and does not affect other subscribers.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[Topic][]entry
	logger   zerolog.Logger
	wg       sync.WaitGroup
}

// New creates a new event bus.
func New(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[Topic][]entry),
		logger:   logging.Component(logger, "eventbus"),
	}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic Topic, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[topic] = append(b.handlers[topic], entry{id: b.nextID, handler: handler})
	return Subscription{topic: topic, id: b.nextID}
}

// Unsubscribe removes a handler. Unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.handlers[sub.topic]
	for i, e := range list {
		if e.id == sub.id {
			b.handlers[sub.topic] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (b *Bus) snapshot(topic Topic) []entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers := make([]entry, len(b.handlers[topic]))
	copy(handlers, b.handlers[topic])
	return handlers
}

// Publish sends an event to all subscribers of the topic.
// Handlers are called synchronously in the order they were registered.
func (b *Bus) Publish(topic Topic, payload any) {
	event := Event{Topic: topic, Payload: payload, Timestamp: time.Now()}
	for _, e := range b.snapshot(topic) {
		b.dispatch(e.handler, event)
	}
}

// PublishAsync sends an event to all subscribers asynchronously.
func (b *Bus) PublishAsync(topic Topic, payload any) {
	event := Event{Topic: topic, Payload: payload, Timestamp: time.Now()}
	for _, e := range b.snapshot(topic) {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			b.dispatch(h, event)
		}(e.handler)
	}
}

// Publisher is anything events can be published to.
type Publisher interface {
	Publish(topic Topic, payload any)
}

type asyncPublisher struct{ bus *Bus }

func (a asyncPublisher) Publish(topic Topic, payload any) { a.bus.PublishAsync(topic, payload) }

// Async returns a Publisher that delivers through PublishAsync, keeping
// subscribers off the publisher's goroutine.
func (b *Bus) Async() Publisher {
	return asyncPublisher{bus: b}
}

// Wait blocks until all asynchronous deliveries have returned.
func (b *Bus) Wait() {
	b.wg.Wait()
}

func (b *Bus) dispatch(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Str("topic", string(event.Topic)).Interface("panic", r).Msg("handler panicked")
		}
	}()
	h(event)
}

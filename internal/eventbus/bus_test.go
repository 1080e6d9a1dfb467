package eventbus

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubSub(t *testing.T) {
	bus := New(zerolog.Nop())
	var received []Event
	var mu sync.Mutex

	bus.Subscribe(TopicMessage, func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})

	bus.Publish(TopicMessage, "hello")
	bus.Publish(TopicMessage, "world")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, "hello", received[0].Payload)
	assert.Equal(t, "world", received[1].Payload)
	assert.Equal(t, TopicMessage, received[0].Topic)
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestMultipleSubscribers(t *testing.T) {
	bus := New(zerolog.Nop())
	var count atomic.Int32

	for i := 0; i < 3; i++ {
		bus.Subscribe(TopicError, func(e Event) { count.Add(1) })
	}

	bus.Publish(TopicError, ErrorPayload{Source: "test"})
	assert.EqualValues(t, 3, count.Load())
}

func TestUnsubscribe(t *testing.T) {
	bus := New(zerolog.Nop())
	var first, second atomic.Int32

	sub := bus.Subscribe(TopicLevelUp, func(e Event) { first.Add(1) })
	bus.Subscribe(TopicLevelUp, func(e Event) { second.Add(1) })

	bus.Publish(TopicLevelUp, LevelUpPayload{UserID: "1", Level: 2})
	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub)
	bus.Publish(TopicLevelUp, LevelUpPayload{UserID: "1", Level: 3})

	assert.EqualValues(t, 1, first.Load())
	assert.EqualValues(t, 2, second.Load())
}

func TestPanickingHandlerIsIsolated(t *testing.T) {
	bus := New(zerolog.Nop())
	var delivered atomic.Bool

	bus.Subscribe(TopicCommand, func(e Event) { panic("boom") })
	bus.Subscribe(TopicCommand, func(e Event) { delivered.Store(true) })

	assert.NotPanics(t, func() { bus.Publish(TopicCommand, CommandPayload{Name: "level"}) })
	assert.True(t, delivered.Load())
}

func TestPublishAsync(t *testing.T) {
	bus := New(zerolog.Nop())
	var count atomic.Int32
	for i := 0; i < 5; i++ {
		bus.Subscribe(TopicReaction, func(e Event) { count.Add(1) })
	}

	bus.PublishAsync(TopicReaction, ReactionPayload{UserID: "7"})
	bus.Wait()
	assert.EqualValues(t, 5, count.Load())
}

func TestUnsubscribedTopic(t *testing.T) {
	bus := New(zerolog.Nop())
	assert.NotPanics(t, func() { bus.Publish(TopicStatusChange, "no subscribers") })
}

func TestAsyncPublisherDeliversBeforeWaitReturns(t *testing.T) {
	bus := New(zerolog.Nop())
	release := make(chan struct{})
	var got atomic.Value
	bus.Subscribe(TopicGatewayResult, func(e Event) {
		<-release
		got.Store(e.Payload)
	})

	var pub Publisher = bus.Async()
	pub.Publish(TopicGatewayResult, GatewayResultPayload{Outcome: "success"})
	assert.Nil(t, got.Load(), "publish does not block on the subscriber")

	close(release)
	bus.Wait()
	assert.Equal(t, GatewayResultPayload{Outcome: "success"}, got.Load())
}

package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBufferSize is the default channel buffer for subscribers.
const DefaultBufferSize = 64

// BrokerOption configures a Broker.
type BrokerOption[T any] func(*Broker[T])

// WithBufferSize sets the subscriber channel buffer size.
func WithBufferSize[T any](size int) BrokerOption[T] {
	return func(b *Broker[T]) {
		b.bufferSize = size
	}
}

// WithDropPolicy sets whether to drop events when a subscriber is full.
func WithDropPolicy[T any](drop bool) BrokerOption[T] {
	return func(b *Broker[T]) {
		b.dropOnFull = drop
	}
}

// Broker fans events of one payload type out to any number of subscribers.
// Subscriptions end with their context or with Shutdown.
type Broker[T any] struct { //nolint:govet // fieldalignment: preserving logical field order
	name       string
	subs       map[chan Event[T]]struct{}
	mu         sync.RWMutex
	done       chan struct{}
	bufferSize int
	dropOnFull bool

	publishCount atomic.Int64
	dropCount    atomic.Int64
}

// NewBroker creates a new typed broker with optional configuration.
func NewBroker[T any](name string, opts ...BrokerOption[T]) *Broker[T] {
	b := &Broker[T]{
		name:       name,
		subs:       make(map[chan Event[T]]struct{}),
		done:       make(chan struct{}),
		bufferSize: DefaultBufferSize,
		dropOnFull: true,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Name returns the broker's name.
func (b *Broker[T]) Name() string {
	return b.name
}

// Subscribe returns a channel of events that is closed when ctx is done or
// the broker shuts down.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isDone() {
		ch := make(chan Event[T])
		close(ch)
		return ch
	}

	sub := make(chan Event[T], b.bufferSize)
	b.subs[sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
		}
		b.remove(sub)
	}()

	return sub
}

// Observe calls fn for every event until ctx is done or the broker shuts
// down. fn runs on a dedicated goroutine, one event at a time.
func (b *Broker[T]) Observe(ctx context.Context, fn func(Event[T])) {
	events := b.Subscribe(ctx)
	go func() {
		for ev := range events {
			fn(ev)
		}
	}()
}

// Publish sends an event to all subscribers. With the default drop policy
// slow subscribers miss events instead of blocking the publisher.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.isDone() {
		return
	}
	b.publishCount.Add(1)

	event := Event[T]{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	for sub := range b.subs {
		b.deliver(sub, event)
	}
}

func (b *Broker[T]) deliver(sub chan Event[T], event Event[T]) {
	if b.dropOnFull {
		select {
		case sub <- event:
		default:
			b.dropCount.Add(1)
		}
		return
	}
	select {
	case sub <- event:
	case <-b.done:
	}
}

func (b *Broker[T]) remove(sub chan Event[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub)
}

// Shutdown closes every subscription. Pending events are dropped.
func (b *Broker[T]) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isDone() {
		return
	}
	close(b.done)

	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

// IsShutdown returns true if the broker has been shut down.
func (b *Broker[T]) IsShutdown() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.isDone()
}

func (b *Broker[T]) isDone() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Metrics returns the broker's counters.
func (b *Broker[T]) Metrics() BrokerMetrics {
	return BrokerMetrics{
		Name:            b.name,
		PublishCount:    b.publishCount.Load(),
		DropCount:       b.dropCount.Load(),
		SubscriberCount: b.SubscriberCount(),
	}
}

// BrokerMetrics contains broker statistics for debugging.
type BrokerMetrics struct {
	Name            string
	PublishCount    int64
	DropCount       int64
	SubscriberCount int
}

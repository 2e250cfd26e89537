package events

import (
	"context"
	"sync"
	"sync/atomic"

	"oxicrm_backend/platform/logger"
)

const defaultBufferSize = 100

// Subscription is a receive handle returned by Subscribe.
type Subscription struct {
	id      uint64
	pattern string
	ch      chan DomainEvent
	dropped atomic.Uint64
	bus     *InMemoryBus
	once    sync.Once
}

// C returns the channel events are delivered on. It is closed when the
// subscription or the bus is closed.
func (s *Subscription) C() <-chan DomainEvent { return s.ch }

// Pattern returns the topic pattern passed to Subscribe.
func (s *Subscription) Pattern() string { return s.pattern }

// Dropped returns how many events were lost because the buffer was full.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close detaches the subscription from the bus.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

// InMemoryBus is a broadcast bus: each subscription owns a bounded buffer and
// receives every published event. A full buffer drops the event for that
// subscriber only, so delivery is at-most-once.
type InMemoryBus struct {
	mu             sync.RWMutex
	subs           map[uint64]*Subscription
	nextID         uint64
	everSubscribed bool
	closed         bool
	bufferSize     int
	log            *logger.Logger
}

// NewInMemoryBus creates a bus whose subscriptions buffer up to bufferSize events.
func NewInMemoryBus(bufferSize int, log *logger.Logger) *InMemoryBus {
	if bufferSize < 1 {
		bufferSize = defaultBufferSize
	}
	return &InMemoryBus{
		subs:       make(map[uint64]*Subscription),
		bufferSize: bufferSize,
		log:        log,
	}
}

var _ Bus = (*InMemoryBus)(nil)

// Subscribe registers a new subscription.
func (b *InMemoryBus) Subscribe(pattern string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	b.nextID++
	sub := &Subscription{
		id:      b.nextID,
		pattern: pattern,
		ch:      make(chan DomainEvent, b.bufferSize),
		bus:     b,
	}
	b.subs[sub.id] = sub
	b.everSubscribed = true
	return sub, nil
}

// Publish fans the event out without blocking on slow subscribers.
func (b *InMemoryBus) Publish(ctx context.Context, event DomainEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}
	if !b.everSubscribed {
		return ErrNoSubscribers
	}

	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			n := sub.dropped.Add(1)
			if b.log != nil {
				b.log.Warn("event dropped for slow subscriber",
					"topic", event.Topic,
					"pattern", sub.pattern,
					"dropped_total", n,
				)
			}
		}
	}
	return nil
}

// SubscriberCount returns the number of live subscriptions.
func (b *InMemoryBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close detaches every subscription and rejects further use of the bus.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.once.Do(func() { close(sub.ch) })
	}
}

func (b *InMemoryBus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs, sub.id)
	sub.once.Do(func() { close(sub.ch) })
}

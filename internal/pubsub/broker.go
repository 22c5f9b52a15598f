// Package pubsub implements a small in-process event broker with typed
// payloads and context-scoped subscriptions.
package pubsub

import (
	"context"
	"sync"
)

// EventType categorizes an event.
type EventType string

const (
	CreatedEvent EventType = "created"
	UpdatedEvent EventType = "updated"
	DeletedEvent EventType = "deleted"
)

// Event pairs a type with its payload.
type Event[T any] struct {
	Type    EventType
	Payload T
}

// Publisher is the sending half of a broker.
type Publisher[T any] interface {
	Publish(EventType, T)
}

// Subscriber is the receiving half of a broker.
type Subscriber[T any] interface {
	Subscribe(context.Context) <-chan Event[T]
}

const bufferSize = 64

// Broker fans events out to all current subscribers. Publish never blocks;
// events are dropped for subscribers whose buffer is full.
type Broker[T any] struct {
	mu   sync.RWMutex
	subs map[chan Event[T]]struct{}
	done chan struct{}
}

// NewBroker returns a ready-to-use broker.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		subs: make(map[chan Event[T]]struct{}),
		done: make(chan struct{}),
	}
}

// Subscribe registers a new subscriber whose channel is closed when ctx is
// canceled or the broker shuts down.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event[T], bufferSize)
	select {
	case <-b.done:
		close(ch)
		return ch
	default:
	}
	b.subs[ch] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
			b.unsubscribe(ch)
		case <-b.done:
		}
	}()

	return ch
}

func (b *Broker[T]) unsubscribe(ch chan Event[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Publish delivers the event to every subscriber that has buffer room.
func (b *Broker[T]) Publish(t EventType, payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.done:
		return
	default:
	}
	for ch := range b.subs {
		select {
		case ch <- Event[T]{Type: t, Payload: payload}:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Shutdown closes all subscriber channels and rejects further publishes.
// Safe to call more than once.
func (b *Broker[T]) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
		close(b.done)
	}
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

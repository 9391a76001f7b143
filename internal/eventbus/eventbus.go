package eventbus

import "sync"

// Event is an arbitrary domain event: connection lifecycle changes,
// transaction open/close, call outcomes.
type Event interface{}

// EventBus decouples event producers (registry, transaction manager) from
// consumers such as the metrics collector.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// subBuffer bounds each subscriber's backlog. A subscriber that falls this
// far behind starts losing events rather than stalling publishers.
const subBuffer = 16

// Bus fans events out to subscriber channels. The zero value is not usable;
// call New.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan Event
	closed bool
}

// New creates an empty Bus.
func New() *Bus { return &Bus{} }

// Publish delivers the event to every subscriber without blocking. Events
// are dropped for subscribers whose buffer is full.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new subscriber. On a closed bus the returned channel
// is already closed.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, subBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes the subscriber and closes its channel. Unknown
// channels are ignored.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Close closes every subscriber channel. Publish and Subscribe become
// no-ops afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}

// Package events implements the status bus: fan-out of lifecycle transition
// events to an arbitrary number of subscribers. Delivery is at-most-once; a
// subscriber that cannot keep up has events dropped rather than blocking the
// orchestrator. Consumers needing a consistent view reconcile against the
// instance list.
package events

import (
	"sync"

	"menagerie/internal/api"
	"menagerie/pkg/logging"
)

// subscriberBuffer is the per-subscriber channel capacity. Transitions are
// rare (operator actions, crashes), so a small buffer absorbs normal bursts.
const subscriberBuffer = 64

// Bus fans out transition events to subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan api.TransitionEvent]struct{}
	closed      bool
}

// NewBus creates an empty status bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[chan api.TransitionEvent]struct{}),
	}
}

// Subscribe registers a new subscriber and returns its receive channel. The
// channel is closed when Unsubscribe is called or the bus shuts down.
func (b *Bus) Subscribe() <-chan api.TransitionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan api.TransitionEvent, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Passing a channel
// not obtained from Subscribe is a no-op.
func (b *Bus) Unsubscribe(ch <-chan api.TransitionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subscribers {
		if sub == ch {
			delete(b.subscribers, sub)
			close(sub)
			return
		}
	}
}

// Publish delivers an event to every subscriber. Sends never block: a full
// subscriber buffer drops the event for that subscriber only.
func (b *Bus) Publish(event api.TransitionEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			logging.Warn("Events", "Dropping transition event for slow subscriber (instance %s, %s -> %s)",
				event.InstanceID, event.OldState, event.NewState)
		}
	}
}

// Close shuts the bus down, closing all subscriber channels. Publish and
// Subscribe become no-ops afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subscribers {
		close(sub)
		delete(b.subscribers, sub)
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

package events

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// subscription is one registered handler on a routing key.
type subscription struct {
	id      string
	handler EventHandler
}

// InMemoryEventBus routes events inside a single process. Events are
// keyed by user ID; the global chat uses BroadcastUserID as its key, so
// broadcast is just another routing key rather than a special path.
type InMemoryEventBus struct {
	mu    sync.RWMutex
	subs  map[string][]subscription
	store EventStore
}

// NewEventBus creates a new InMemoryEventBus. A nil store disables
// replay.
func NewEventBus(store EventStore) *InMemoryEventBus {
	return &InMemoryEventBus{
		subs:  make(map[string][]subscription),
		store: store,
	}
}

// Publish records the event for replay and delivers it synchronously to
// every handler subscribed on the event's user ID. Replay storage is
// best effort; delivery proceeds even if the store rejects the event.
func (b *InMemoryEventBus) Publish(event Event) error {
	if event.UserID == "" {
		return fmt.Errorf("event must have a UserID")
	}

	if b.store != nil {
		_ = b.store.Store(event)
	}

	b.mu.RLock()
	targets := make([]EventHandler, len(b.subs[event.UserID]))
	for i, sub := range b.subs[event.UserID] {
		targets[i] = sub.handler
	}
	b.mu.RUnlock()

	// Handlers run outside the lock so a slow SSE writer cannot block
	// other publishers.
	for _, handler := range targets {
		handler(event)
	}
	return nil
}

// Subscribe registers a handler on a routing key (a user ID, or
// BroadcastUserID for the global feed) and returns the function that
// removes it. Unsubscribing twice is a no-op.
func (b *InMemoryEventBus) Subscribe(userID string, handler EventHandler) (unsubscribe func()) {
	id := uuid.New().String()

	b.mu.Lock()
	b.subs[userID] = append(b.subs[userID], subscription{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		kept := b.subs[userID][:0]
		for _, sub := range b.subs[userID] {
			if sub.id != id {
				kept = append(kept, sub)
			}
		}
		if len(kept) == 0 {
			delete(b.subs, userID)
		} else {
			b.subs[userID] = kept
		}
	}
}

// GetEventsSince returns stored events for the key after lastEventID,
// capped at 100. Reconnecting SSE clients use this to catch up.
func (b *InMemoryEventBus) GetEventsSince(userID string, lastEventID string) ([]Event, error) {
	if b.store == nil {
		return []Event{}, nil
	}
	return b.store.GetSince(userID, lastEventID, 100)
}

// SubscriberCount returns the number of handlers on a routing key.
func (b *InMemoryEventBus) SubscriberCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}

// TotalSubscribers counts handlers across every routing key.
func (b *InMemoryEventBus) TotalSubscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, subs := range b.subs {
		total += len(subs)
	}
	return total
}

package events

import (
	"sync"
	"time"
)

// InMemoryEventStore keeps a bounded, ordered buffer of published
// events for Last-Event-ID replay. The buffer is a slice ordered
// oldest first; positions map event IDs to their absolute sequence
// number so a lookup survives buffer shifts. When the buffer is full
// the oldest event is dropped.
type InMemoryEventStore struct {
	mu        sync.RWMutex
	buf       []Event
	positions map[string]int // event ID -> absolute sequence
	base      int            // absolute sequence of buf[0]
	maxSize   int
}

// NewEventStore creates a new InMemoryEventStore with the given buffer
// size.
func NewEventStore(maxSize int) *InMemoryEventStore {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &InMemoryEventStore{
		buf:       make([]Event, 0, maxSize),
		positions: make(map[string]int),
		maxSize:   maxSize,
	}
}

// Store saves an event for later replay.
func (es *InMemoryEventStore) Store(event Event) error {
	es.mu.Lock()
	defer es.mu.Unlock()

	if len(es.buf) >= es.maxSize {
		delete(es.positions, es.buf[0].ID)
		es.buf = es.buf[1:]
		es.base++
	}

	es.positions[event.ID] = es.base + len(es.buf)
	es.buf = append(es.buf, event)
	return nil
}

// GetSince returns events after the given event ID for a specific user.
// An empty eventID returns the most recent events up to limit. An
// unknown eventID returns nothing; the client has fallen off the buffer
// and should refresh.
func (es *InMemoryEventStore) GetSince(userID string, eventID string, limit int) ([]Event, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	if eventID == "" {
		return es.tailLocked(userID, limit), nil
	}

	seq, ok := es.positions[eventID]
	if !ok {
		return []Event{}, nil
	}

	result := make([]Event, 0)
	for i := seq - es.base + 1; i < len(es.buf) && len(result) < limit; i++ {
		if es.buf[i].UserID == userID {
			result = append(result, es.buf[i])
		}
	}
	return result, nil
}

// tailLocked collects the newest limit events for the user, oldest
// first.
func (es *InMemoryEventStore) tailLocked(userID string, limit int) []Event {
	newest := make([]Event, 0, limit)
	for i := len(es.buf) - 1; i >= 0 && len(newest) < limit; i-- {
		if es.buf[i].UserID == userID {
			newest = append(newest, es.buf[i])
		}
	}

	result := make([]Event, 0, len(newest))
	for i := len(newest) - 1; i >= 0; i-- {
		result = append(result, newest[i])
	}
	return result
}

// Cleanup removes events older than the given duration.
func (es *InMemoryEventStore) Cleanup(olderThan time.Duration) error {
	es.mu.Lock()
	defer es.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	for len(es.buf) > 0 && !es.buf[0].Timestamp.After(cutoff) {
		delete(es.positions, es.buf[0].ID)
		es.buf = es.buf[1:]
		es.base++
	}
	return nil
}

// Len returns the number of events in the store.
func (es *InMemoryEventStore) Len() int {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return len(es.buf)
}

// LenForUser returns the number of events stored for a specific user.
func (es *InMemoryEventStore) LenForUser(userID string) int {
	es.mu.RLock()
	defer es.mu.RUnlock()

	count := 0
	for _, event := range es.buf {
		if event.UserID == userID {
			count++
		}
	}
	return count
}

// Clear removes all events from the store.
func (es *InMemoryEventStore) Clear() {
	es.mu.Lock()
	defer es.mu.Unlock()

	es.buf = make([]Event, 0, es.maxSize)
	es.positions = make(map[string]int)
	es.base = 0
}

// Package events provides the in-process notification bus. Feature
// services publish events keyed by recipient; the stream layer fans
// them out to connected clients.
package events

import (
	"encoding/json"
	"time"
)

// BroadcastUserID is the pseudo-recipient for events addressed to
// everyone, such as global chat messages.
const BroadcastUserID = "global"

// Event is a single notification addressed to one user (or to the
// broadcast channel).
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	UserID    string          `json:"-"` // routing key, never sent to clients
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventHandler receives published events.
type EventHandler func(event Event)

// EventBus publishes events and manages per-user subscriptions.
type EventBus interface {
	// Publish delivers an event to all subscribers of event.UserID.
	Publish(event Event) error
	// Subscribe registers a handler for one user's events and returns
	// an unsubscribe function.
	Subscribe(userID string, handler EventHandler) (unsubscribe func())
	// GetEventsSince returns stored events after lastEventID for replay
	// on reconnect.
	GetEventsSince(userID string, lastEventID string) ([]Event, error)
}

// EventStore buffers recent events for replay.
type EventStore interface {
	Store(event Event) error
	GetSince(userID string, eventID string, limit int) ([]Event, error)
	Cleanup(olderThan time.Duration) error
}

// Package stream delivers notification bus events to clients over
// Server-Sent Events. Every connection is authenticated; a client
// receives its own events plus the global channel.
package stream

import (
	"errors"
	"net/http"
	"sync"
	"time"
)

// Stream errors
var (
	ErrStreamingNotSupported = errors.New("streaming not supported")
	ErrConnectionClosed      = errors.New("connection closed")
)

// Config holds stream server configuration
type Config struct {
	HeartbeatInterval     time.Duration
	ConnectionTimeout     time.Duration
	MaxConnectionsPerUser int
	EventBufferSize       int
}

// DefaultConfig returns the default stream configuration
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:     30 * time.Second,
		ConnectionTimeout:     1 * time.Hour,
		MaxConnectionsPerUser: 10,
		EventBufferSize:       100,
	}
}

// Connection represents one active event stream. The heartbeat
// goroutine and bus delivery both write to the same response writer,
// so writes are serialized through writeMu to keep frames whole.
type Connection struct {
	ID        string
	UserID    string
	Writer    http.ResponseWriter
	Flusher   http.Flusher
	Done      chan struct{}
	CreatedAt time.Time
	LastPing  time.Time

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewConnection wraps a response writer as a stream connection. The
// writer must support flushing.
func NewConnection(id, userID string, w http.ResponseWriter) (*Connection, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingNotSupported
	}

	return &Connection{
		ID:        id,
		UserID:    userID,
		Writer:    w,
		Flusher:   flusher,
		Done:      make(chan struct{}),
		CreatedAt: time.Now(),
		LastPing:  time.Now(),
	}, nil
}

// Close closes the connection. Safe to call from concurrent goroutines
// and more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.Done)
	})
}

// IsClosed reports whether the connection is closed
func (c *Connection) IsClosed() bool {
	select {
	case <-c.Done:
		return true
	default:
		return false
	}
}

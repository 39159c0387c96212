package stream

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jangteo/marketplace/backend/internal/events"
)

// ConnectionManager tracks active stream connections per user and
// enforces the per-user connection limit.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[string]map[string]*Connection // userID -> connID -> Connection
	config      Config
}

// NewConnectionManager creates a new ConnectionManager with the given
// config
func NewConnectionManager(config Config) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]map[string]*Connection),
		config:      config,
	}
}

// Add registers a connection. When the user is at the limit, the
// oldest connection is told why and closed to make room.
func (cm *ConnectionManager) Add(userID string, conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.connections[userID] == nil {
		cm.connections[userID] = make(map[string]*Connection)
	}

	userConns := cm.connections[userID]
	if len(userConns) >= cm.config.MaxConnectionsPerUser {
		oldest := cm.oldestLocked(userID)
		if oldest != nil {
			cm.sendLimitNoticeLocked(oldest)
			oldest.Close()
			delete(userConns, oldest.ID)
		}
	}

	userConns[conn.ID] = conn
}

// Remove closes and drops a connection
func (cm *ConnectionManager) Remove(userID, connID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if userConns, exists := cm.connections[userID]; exists {
		if conn, ok := userConns[connID]; ok {
			conn.Close()
			delete(userConns, connID)
		}
		if len(userConns) == 0 {
			delete(cm.connections, userID)
		}
	}
}

// Count returns the number of open connections for a user
func (cm *ConnectionManager) Count(userID string) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	count := 0
	for _, conn := range cm.connections[userID] {
		if !conn.IsClosed() {
			count++
		}
	}
	return count
}

// TotalConnections returns the number of open connections across all
// users
func (cm *ConnectionManager) TotalConnections() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	total := 0
	for _, userConns := range cm.connections {
		for _, conn := range userConns {
			if !conn.IsClosed() {
				total++
			}
		}
	}
	return total
}

// Broadcast writes an event to every open connection of a user. Write
// failures are skipped; dead connections are swept by the cleanup
// routine.
func (cm *ConnectionManager) Broadcast(userID string, event events.Event) {
	cm.mu.RLock()
	conns := make([]*Connection, 0)
	for _, conn := range cm.connections[userID] {
		if !conn.IsClosed() {
			conns = append(conns, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		_ = writeEvent(conn, event)
	}
}

// Touch updates the last ping time for a connection
func (cm *ConnectionManager) Touch(userID, connID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if userConns, exists := cm.connections[userID]; exists {
		if conn, ok := userConns[connID]; ok {
			conn.LastPing = time.Now()
		}
	}
}

// Cleanup removes closed, unresponsive, and timed out connections
func (cm *ConnectionManager) Cleanup() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	deadThreshold := cm.config.HeartbeatInterval * 3
	for userID, userConns := range cm.connections {
		for connID, conn := range userConns {
			dead := conn.IsClosed() ||
				time.Since(conn.LastPing) > deadThreshold ||
				time.Since(conn.CreatedAt) > cm.config.ConnectionTimeout
			if dead {
				conn.Close()
				delete(userConns, connID)
			}
		}
		if len(userConns) == 0 {
			delete(cm.connections, userID)
		}
	}
}

// StartCleanupRoutine sweeps dead connections on an interval until the
// returned stop function is called.
func (cm *ConnectionManager) StartCleanupRoutine(interval time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				cm.Cleanup()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
	}
}

func (cm *ConnectionManager) oldestLocked(userID string) *Connection {
	userConns := cm.connections[userID]
	if len(userConns) == 0 {
		return nil
	}

	conns := make([]*Connection, 0, len(userConns))
	for _, conn := range userConns {
		conns = append(conns, conn)
	}
	sort.Slice(conns, func(i, j int) bool {
		return conns[i].CreatedAt.Before(conns[j].CreatedAt)
	})
	return conns[0]
}

func (cm *ConnectionManager) sendLimitNoticeLocked(conn *Connection) {
	data, err := json.Marshal(events.ConnectionLimitEvent{
		Message:        "Maximum connections exceeded, closing oldest connection",
		MaxConnections: cm.config.MaxConnectionsPerUser,
	})
	if err != nil {
		return
	}

	_ = writeEvent(conn, events.Event{
		ID:        uuid.New().String(),
		Type:      events.EventTypeConnectionLimit,
		UserID:    conn.UserID,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// writeEvent writes a single event in text/event-stream framing and
// flushes it. The per-connection write lock keeps concurrent writers
// (heartbeat, bus delivery) from interleaving frames.
func writeEvent(conn *Connection, event events.Event) error {
	conn.writeMu.Lock()
	defer conn.writeMu.Unlock()

	if conn.IsClosed() {
		return ErrConnectionClosed
	}

	if _, err := fmt.Fprint(conn.Writer, FormatEvent(event)); err != nil {
		return err
	}
	conn.Flusher.Flush()
	return nil
}

// FormatEvent renders an event as an SSE frame:
// event: <type>\ndata: <json>\nid: <id>\n\n
func FormatEvent(event events.Event) string {
	return fmt.Sprintf("event: %s\ndata: %s\nid: %s\n\n",
		event.Type,
		string(event.Data),
		event.ID,
	)
}

package stream

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jangteo/marketplace/backend/internal/auth"
	"github.com/jangteo/marketplace/backend/internal/events"
	"github.com/jangteo/marketplace/backend/internal/metrics"
	"github.com/jangteo/marketplace/backend/internal/middleware"
)

// Handler serves the authenticated event stream. Clients receive
// events addressed to them plus the global broadcast channel, with
// Last-Event-ID replay on reconnect.
type Handler struct {
	config       Config
	connManager  *ConnectionManager
	eventBus     events.EventBus
	tokenService *auth.TokenService
}

// NewHandler creates a new stream Handler instance
func NewHandler(config Config, connManager *ConnectionManager, eventBus events.EventBus, tokenService *auth.TokenService) *Handler {
	return &Handler{
		config:       config,
		connManager:  connManager,
		eventBus:     eventBus,
		tokenService: tokenService,
	}
}

// HandleStream handles GET /events/stream. The token is taken from the
// token query parameter, the Authorization header, or the session
// cookie; EventSource cannot set headers, so the query form matters.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	userID, err := h.authenticate(r)
	if err != nil {
		h.writeUnauthorized(w)
		return
	}

	conn, err := NewConnection(uuid.New().String(), userID, w)
	if err != nil {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	h.connManager.Add(userID, conn)
	metrics.StreamConnectionsActive.Inc()
	defer metrics.StreamConnectionsActive.Dec()

	h.sendConnected(conn)

	if lastEventID := r.Header.Get("Last-Event-ID"); lastEventID != "" {
		h.replay(conn, userID, lastEventID)
	}

	deliver := func(event events.Event) {
		_ = writeEvent(conn, event)
	}
	unsubOwn := h.eventBus.Subscribe(userID, deliver)
	defer unsubOwn()
	unsubGlobal := h.eventBus.Subscribe(events.BroadcastUserID, deliver)
	defer unsubGlobal()

	heartbeatDone := make(chan struct{})
	go h.heartbeatLoop(conn, heartbeatDone)

	timeout := time.NewTimer(h.config.ConnectionTimeout)
	defer timeout.Stop()

	select {
	case <-r.Context().Done():
	case <-conn.Done:
	case <-timeout.C:
	}

	close(heartbeatDone)
	h.connManager.Remove(userID, conn.ID)
}

func (h *Handler) authenticate(r *http.Request) (string, error) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		tokenString = middleware.ExtractToken(r, auth.UserCookieName)
	}
	if tokenString == "" {
		return "", auth.ErrInvalidToken
	}

	claims, err := h.tokenService.Validate(tokenString)
	if err != nil {
		return "", auth.ErrInvalidToken
	}
	return claims.UserID(), nil
}

func (h *Handler) writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error": map[string]string{
			"code":    "AUTH_TOKEN_INVALID",
			"message": "Invalid or missing authentication token",
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) sendConnected(conn *Connection) {
	data, err := json.Marshal(events.ConnectedEvent{
		Timestamp: time.Now(),
		Message:   "Connected to real-time notifications",
	})
	if err != nil {
		return
	}

	_ = writeEvent(conn, events.Event{
		ID:        uuid.New().String(),
		Type:      events.EventTypeConnected,
		UserID:    conn.UserID,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func (h *Handler) heartbeatLoop(conn *Connection, done <-chan struct{}) {
	ticker := time.NewTicker(h.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-conn.Done:
			return
		case <-ticker.C:
			h.sendHeartbeat(conn)
		}
	}
}

func (h *Handler) sendHeartbeat(conn *Connection) {
	data, err := json.Marshal(events.HeartbeatEvent{Timestamp: time.Now()})
	if err != nil {
		return
	}

	event := events.Event{
		ID:        uuid.New().String(),
		Type:      events.EventTypeHeartbeat,
		UserID:    conn.UserID,
		Data:      data,
		Timestamp: time.Now(),
	}
	if err := writeEvent(conn, event); err != nil {
		return
	}
	h.connManager.Touch(conn.UserID, conn.ID)
}

func (h *Handler) replay(conn *Connection, userID, lastEventID string) {
	missed, err := h.eventBus.GetEventsSince(userID, lastEventID)
	if err != nil {
		return
	}
	for _, event := range missed {
		if err := writeEvent(conn, event); err != nil {
			return
		}
	}
}

// RegisterRoutes registers the stream endpoint on the router
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/events", func(r chi.Router) {
		r.Get("/stream", h.HandleStream)
	})
}

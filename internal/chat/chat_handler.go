package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jangteo/marketplace/backend/internal/api"
	appctx "github.com/jangteo/marketplace/backend/internal/context"
	"github.com/jangteo/marketplace/backend/internal/repository"
)

// Handler handles HTTP requests for chat
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new chat Handler instance
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// SendRequest is the request body for sending a message
type SendRequest struct {
	Message string `json:"message"`
}

// MessageResponse is the API representation of a chat message
type MessageResponse struct {
	ID          uuid.UUID `json:"id"`
	SenderID    uuid.UUID `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

func toMessageResponse(m *repository.ChatMessage) MessageResponse {
	return MessageResponse{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Message:     m.Message,
		CreatedAt:   m.CreatedAt,
	}
}

// SendGlobal handles POST /chat/global
func (h *Handler) SendGlobal(w http.ResponseWriter, r *http.Request) {
	senderID, ok := senderFromContext(w, r)
	if !ok {
		return
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}

	msg, err := h.service.SendGlobal(r.Context(), senderID, req.Message)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	api.WriteSuccess(w, http.StatusCreated, toMessageResponse(msg))
}

// SendPrivate handles POST /chat/private/{userID}
func (h *Handler) SendPrivate(w http.ResponseWriter, r *http.Request) {
	senderID, ok := senderFromContext(w, r)
	if !ok {
		return
	}

	recipientID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid recipient id", nil)
		return
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}

	msg, err := h.service.SendPrivate(r.Context(), senderID, recipientID, req.Message)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	api.WriteSuccess(w, http.StatusCreated, toMessageResponse(msg))
}

// GlobalHistory handles GET /chat/global
func (h *Handler) GlobalHistory(w http.ResponseWriter, r *http.Request) {
	messages, err := h.service.GlobalHistory(r.Context(), historyLimit(r))
	if err != nil {
		h.logger.Error("failed to load global history", "error", err)
		api.WriteInternalError(w)
		return
	}

	h.writeHistory(w, messages)
}

// PrivateHistory handles GET /chat/private/{userID}
func (h *Handler) PrivateHistory(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := senderFromContext(w, r)
	if !ok {
		return
	}

	otherID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user id", nil)
		return
	}

	messages, err := h.service.PrivateHistory(r.Context(), requesterID, otherID, historyLimit(r))
	if err != nil {
		h.logger.Error("failed to load private history", "error", err)
		api.WriteInternalError(w)
		return
	}

	h.writeHistory(w, messages)
}

func (h *Handler) writeHistory(w http.ResponseWriter, messages []repository.ChatMessage) {
	out := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, toMessageResponse(&messages[i]))
	}
	api.WriteSuccess(w, http.StatusOK, out)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyMessage):
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "message is empty", nil)
	case errors.Is(err, ErrMessageTooLong):
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "message must be at most 500 characters", nil)
	case errors.Is(err, ErrSelfMessage):
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "cannot message yourself", nil)
	case errors.Is(err, ErrRecipientUnknown):
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "recipient not found", nil)
	default:
		h.logger.Error("chat operation failed", "error", err)
		api.WriteInternalError(w)
	}
}

func historyLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func senderFromContext(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw, ok := appctx.ExtractUserID(r.Context())
	if !ok {
		api.WriteError(w, http.StatusUnauthorized, "AUTH_TOKEN_MISSING", "authentication required", nil)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		api.WriteError(w, http.StatusUnauthorized, "AUTH_TOKEN_INVALID", "invalid session", nil)
		return uuid.Nil, false
	}
	return id, true
}

// RegisterRoutes registers chat routes on the router. Sends pass
// through the message throttle; history reads do not.
func RegisterRoutes(r chi.Router, h *Handler, authMiddleware, sendLimiter func(http.Handler) http.Handler) {
	r.Route("/chat", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/global", h.GlobalHistory)
		r.Get("/private/{userID}", h.PrivateHistory)

		r.Group(func(r chi.Router) {
			r.Use(sendLimiter)
			r.Post("/global", h.SendGlobal)
			r.Post("/private/{userID}", h.SendPrivate)
		})
	})
}

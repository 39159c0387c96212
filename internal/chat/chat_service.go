// Package chat implements global and private messaging. Messages are
// sanitized before storage and published to the notification bus so
// connected clients see them without polling.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jangteo/marketplace/backend/internal/events"
	"github.com/jangteo/marketplace/backend/internal/metrics"
	"github.com/jangteo/marketplace/backend/internal/repository"
	"github.com/jangteo/marketplace/backend/internal/sanitizer"
)

// MaxMessageLength bounds a single chat message
const MaxMessageLength = 500

// DefaultHistoryLimit bounds history queries when the caller does not
// specify a limit
const DefaultHistoryLimit = 100

// Chat service errors
var (
	ErrEmptyMessage     = errors.New("message is empty")
	ErrMessageTooLong   = errors.New("message is too long")
	ErrRecipientUnknown = errors.New("recipient not found")
	ErrSelfMessage      = errors.New("cannot message yourself")
)

// Service handles chat business logic
type Service struct {
	chatRepo repository.ChatRepositoryInterface
	userRepo repository.UserRepository
	bus      events.EventBus
	logger   *slog.Logger
}

// NewService creates a new chat Service instance. A nil bus disables
// notifications.
func NewService(chatRepo repository.ChatRepositoryInterface, userRepo repository.UserRepository, bus events.EventBus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		chatRepo: chatRepo,
		userRepo: userRepo,
		bus:      bus,
		logger:   logger,
	}
}

func (s *Service) cleanMessage(raw string) (string, error) {
	msg := strings.TrimSpace(sanitizer.Sanitize(raw))
	if msg == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(msg) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return msg, nil
}

// SendGlobal stores a message in the global channel
func (s *Service) SendGlobal(ctx context.Context, senderID uuid.UUID, raw string) (*repository.ChatMessage, error) {
	content, err := s.cleanMessage(raw)
	if err != nil {
		return nil, err
	}

	msg := &repository.ChatMessage{
		SenderID:    senderID,
		RecipientID: repository.GlobalRecipient,
		Message:     content,
	}
	if err := s.chatRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	metrics.ChatMessagesTotal.WithLabelValues("global").Inc()
	s.publish(msg)
	return msg, nil
}

// SendPrivate stores a direct message to another user. The recipient
// must exist and differ from the sender.
func (s *Service) SendPrivate(ctx context.Context, senderID, recipientID uuid.UUID, raw string) (*repository.ChatMessage, error) {
	if senderID == recipientID {
		return nil, ErrSelfMessage
	}

	content, err := s.cleanMessage(raw)
	if err != nil {
		return nil, err
	}

	if _, err := s.userRepo.GetByID(ctx, recipientID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrRecipientUnknown
		}
		return nil, err
	}

	msg := &repository.ChatMessage{
		SenderID:    senderID,
		RecipientID: recipientID.String(),
		Message:     content,
	}
	if err := s.chatRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	metrics.ChatMessagesTotal.WithLabelValues("private").Inc()
	s.publish(msg)
	return msg, nil
}

// GlobalHistory returns the global channel history, oldest first
func (s *Service) GlobalHistory(ctx context.Context, limit int) ([]repository.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.chatRepo.GlobalHistory(ctx, limit)
}

// PrivateHistory returns the conversation between the requester and
// another user, oldest first
func (s *Service) PrivateHistory(ctx context.Context, requesterID, otherID uuid.UUID, limit int) ([]repository.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.chatRepo.PrivateHistory(ctx, requesterID, otherID, limit)
}

// publish pushes the stored message onto the notification bus. Global
// messages go to the broadcast channel, private ones to the recipient.
func (s *Service) publish(msg *repository.ChatMessage) {
	if s.bus == nil {
		return
	}

	data, err := json.Marshal(events.ChatMessageEvent{
		ID:          msg.ID.String(),
		SenderID:    msg.SenderID.String(),
		RecipientID: msg.RecipientID,
		Content:     msg.Message,
		SentAt:      msg.CreatedAt,
	})
	if err != nil {
		return
	}

	routingKey := msg.RecipientID
	if msg.RecipientID == repository.GlobalRecipient {
		routingKey = events.BroadcastUserID
	}

	if err := s.bus.Publish(events.Event{
		ID:        uuid.New().String(),
		Type:      events.EventTypeChatMessage,
		UserID:    routingKey,
		Data:      data,
		Timestamp: msg.CreatedAt,
	}); err != nil {
		s.logger.Warn("failed to publish chat event", "error", err)
		return
	}
	metrics.StreamEventsPublished.WithLabelValues(events.EventTypeChatMessage).Inc()
}

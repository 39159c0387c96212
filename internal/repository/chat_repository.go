package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Chat repository errors
var (
	ErrChatNotFound = errors.New("chat message not found")
)

// ChatRepositoryInterface defines the interface for chat message data access
type ChatRepositoryInterface interface {
	Create(ctx context.Context, msg *ChatMessage) error
	GlobalHistory(ctx context.Context, limit int) ([]ChatMessage, error)
	PrivateHistory(ctx context.Context, user1, user2 uuid.UUID, limit int) ([]ChatMessage, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ChatRepo implements ChatRepositoryInterface using PostgreSQL
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo creates a new ChatRepo instance
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// Create inserts a chat message. Messages are immutable once created.
func (r *ChatRepo) Create(ctx context.Context, msg *ChatMessage) error {
	query := `
		INSERT INTO chat_messages (sender_id, recipient_id, message)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	return r.db.QueryRowContext(ctx, query,
		msg.SenderID,
		msg.RecipientID,
		msg.Message,
	).Scan(&msg.ID, &msg.CreatedAt)
}

// GlobalHistory retrieves the oldest-first global chat history
func (r *ChatRepo) GlobalHistory(ctx context.Context, limit int) ([]ChatMessage, error) {
	query := `
		SELECT id, sender_id, recipient_id, message, created_at
		FROM chat_messages
		WHERE recipient_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	var messages []ChatMessage
	if err := r.db.SelectContext(ctx, &messages, query, GlobalRecipient, limit); err != nil {
		return nil, err
	}
	return messages, nil
}

// PrivateHistory retrieves the conversation between two users, oldest first
func (r *ChatRepo) PrivateHistory(ctx context.Context, user1, user2 uuid.UUID, limit int) ([]ChatMessage, error) {
	query := `
		SELECT id, sender_id, recipient_id, message, created_at
		FROM chat_messages
		WHERE (sender_id = $1 AND recipient_id = $2::text)
		   OR (sender_id = $2 AND recipient_id = $1::text)
		ORDER BY created_at ASC
		LIMIT $3
	`

	var messages []ChatMessage
	if err := r.db.SelectContext(ctx, &messages, query, user1, user2, limit); err != nil {
		return nil, err
	}
	return messages, nil
}

// Delete removes a chat message (admin moderation only)
func (r *ChatRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrChatNotFound
	}
	return nil
}

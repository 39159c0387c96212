package events

import "time"

// Event type constants
const (
	EventTypeConnected       = "connected"
	EventTypeHeartbeat       = "heartbeat"
	EventTypeChatMessage     = "chat_message"
	EventTypeWalletCredit    = "wallet_credit"
	EventTypeConnectionLimit = "connection_limit"
	EventTypeError           = "error"
)

// ConnectedEvent is sent when a client establishes a stream connection.
type ConnectedEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// HeartbeatEvent is sent periodically to keep the connection alive.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// ChatMessageEvent is sent when a chat message addressed to the
// subscriber (or to the global channel) is stored.
type ChatMessageEvent struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Content     string    `json:"content"`
	SentAt      time.Time `json:"sent_at"`
}

// WalletCreditEvent is sent to the recipient of a completed transfer.
type WalletCreditEvent struct {
	TransactionID string    `json:"transaction_id"`
	SenderID      string    `json:"sender_id"`
	Amount        int       `json:"amount"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ConnectionLimitEvent is sent when a user exceeds the stream
// connection limit.
type ConnectionLimitEvent struct {
	Message        string `json:"message"`
	MaxConnections int    `json:"max_connections"`
}

// ErrorEvent is sent when an error occurs on the stream.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

package repository

import (
	"time"

	"github.com/google/uuid"
)

// User account statuses. Suspension is logical: accounts are never
// physically deleted.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// GlobalRecipient is the reserved recipient ID for global chat messages
const GlobalRecipient = "global"

// User represents a user account in the database
type User struct {
	ID             uuid.UUID  `db:"id"`
	Username       string     `db:"username"`
	PasswordHash   string     `db:"password_hash"`
	Bio            string     `db:"bio"`
	Status         string     `db:"status"`
	Wallet         int        `db:"wallet"`
	FailedAttempts int        `db:"failed_attempts"`
	LockoutUntil   *time.Time `db:"lockout_until"`
	CreatedAt      time.Time  `db:"created_at"`
}

// IsSuspended reports whether the account is logically suspended
func (u *User) IsSuspended() bool {
	return u.Status == StatusSuspended
}

// Product represents a marketplace listing in the database
type Product struct {
	ID          uuid.UUID `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Price       int       `db:"price"`
	SellerID    uuid.UUID `db:"seller_id"`
	CreatedAt   time.Time `db:"created_at"`
}

// Report represents an abuse report. Reports are immutable once filed;
// only an admin may delete them.
type Report struct {
	ID         uuid.UUID `db:"id"`
	ReporterID uuid.UUID `db:"reporter_id"`
	// TargetID references either an account or a product; the target
	// is not required to exist (it may already have been removed).
	TargetID  string    `db:"target_id"`
	Reason    string    `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
}

// ChatMessage represents a chat message, immutable once created.
// RecipientID is either an account ID or the literal "global".
type ChatMessage struct {
	ID          uuid.UUID `db:"id"`
	SenderID    uuid.UUID `db:"sender_id"`
	RecipientID string    `db:"recipient_id"`
	Message     string    `db:"message"`
	CreatedAt   time.Time `db:"created_at"`
}

// WalletTransaction is one row of the append-only wallet audit trail.
// Rows are never mutated or deleted.
type WalletTransaction struct {
	ID          uuid.UUID  `db:"id"`
	SenderID    *uuid.UUID `db:"sender_id"`
	RecipientID *uuid.UUID `db:"recipient_id"`
	Amount      int        `db:"amount"`
	Type        string     `db:"transaction_type"`
	CreatedAt   time.Time  `db:"created_at"`
}

// Wallet transaction types
const (
	TransactionTransfer = "transfer"
)

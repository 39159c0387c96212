package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Wallet repository errors
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// WalletRepository defines the interface for wallet data access.
// Transfer is the only operation that moves balance; the audit trail
// is written inside the same transaction.
type WalletRepository interface {
	Transfer(ctx context.Context, senderID, recipientID uuid.UUID, amount int) (*WalletTransaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]WalletTransaction, error)
}

// walletRepository implements WalletRepository using PostgreSQL
type walletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository creates a new WalletRepository instance
func NewWalletRepository(pool *pgxpool.Pool) WalletRepository {
	return &walletRepository{pool: pool}
}

// Transfer atomically debits the sender, credits the recipient, and
// appends exactly one audit row. The debit is conditional on the
// sender's balance so a concurrent transfer can never drive it
// negative; any failure rolls the whole transaction back.
func (r *walletRepository) Transfer(ctx context.Context, senderID, recipientID uuid.UUID, amount int) (*WalletTransaction, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	debit := `
		UPDATE users
		SET wallet = wallet - $1
		WHERE id = $2 AND wallet >= $1
	`
	result, err := tx.Exec(ctx, debit, amount, senderID)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected() == 0 {
		// Distinguish a missing sender from an underfunded one
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, senderID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrUserNotFound
		}
		return nil, ErrInsufficientBalance
	}

	credit := `
		UPDATE users
		SET wallet = wallet + $1
		WHERE id = $2
	`
	result, err = tx.Exec(ctx, credit, amount, recipientID)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected() == 0 {
		return nil, ErrUserNotFound
	}

	txn := &WalletTransaction{
		SenderID:    &senderID,
		RecipientID: &recipientID,
		Amount:      amount,
		Type:        TransactionTransfer,
	}
	audit := `
		INSERT INTO wallet_transactions (sender_id, recipient_id, amount, transaction_type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	if err := tx.QueryRow(ctx, audit, senderID, recipientID, amount, txn.Type).Scan(&txn.ID, &txn.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return txn, nil
}

// ListByUser retrieves the transactions a user participated in, newest first
func (r *walletRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]WalletTransaction, error) {
	query := `
		SELECT id, sender_id, recipient_id, amount, transaction_type, created_at
		FROM wallet_transactions
		WHERE sender_id = $1 OR recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []WalletTransaction
	for rows.Next() {
		var txn WalletTransaction
		if err := rows.Scan(
			&txn.ID,
			&txn.SenderID,
			&txn.RecipientID,
			&txn.Amount,
			&txn.Type,
			&txn.CreatedAt,
		); err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	return txns, rows.Err()
}

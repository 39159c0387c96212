// Package wallet implements the in-app currency transfer protocol.
// Balances form a closed ledger: every successful transfer conserves
// the total across all accounts and appends exactly one audit row.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jangteo/marketplace/backend/internal/events"
	"github.com/jangteo/marketplace/backend/internal/metrics"
	"github.com/jangteo/marketplace/backend/internal/repository"
)

// Wallet service errors
var (
	ErrSelfTransfer        = errors.New("cannot transfer to yourself")
	ErrInvalidAmount       = errors.New("transfer amount must be positive")
	ErrInsufficientBalance = repository.ErrInsufficientBalance
	ErrUserNotFound        = repository.ErrUserNotFound
)

// DefaultHistoryLimit bounds transaction listings when the caller does
// not specify a limit
const DefaultHistoryLimit = 50

// Service handles wallet transfers and transaction history
type Service struct {
	userRepo   repository.UserRepository
	walletRepo repository.WalletRepository
	bus        events.EventBus
	logger     *slog.Logger
}

// NewService creates a new wallet Service instance. A nil bus disables
// credit notifications.
func NewService(userRepo repository.UserRepository, walletRepo repository.WalletRepository, bus events.EventBus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		userRepo:   userRepo,
		walletRepo: walletRepo,
		bus:        bus,
		logger:     logger,
	}
}

// Transfer moves amount from sender to recipient. Preconditions are
// checked in order, first failure wins: the parties must differ, the
// amount must be positive, and the sender must hold at least the
// amount. The debit, credit, and audit row are applied in a single
// database transaction; a precondition failure changes nothing.
func (s *Service) Transfer(ctx context.Context, senderID, recipientID uuid.UUID, amount int) (*repository.WalletTransaction, error) {
	if senderID == recipientID {
		return nil, ErrSelfTransfer
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	sender, err := s.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if sender.Wallet < amount {
		return nil, ErrInsufficientBalance
	}

	// The recipient must exist before we attempt the transfer so the
	// caller gets a not-found error rather than a rolled-back debit.
	if _, err := s.userRepo.GetByID(ctx, recipientID); err != nil {
		return nil, err
	}

	// The repository re-checks the balance inside the transaction; the
	// check above can go stale under concurrent transfers.
	txn, err := s.walletRepo.Transfer(ctx, senderID, recipientID, amount)
	if err != nil {
		return nil, err
	}

	s.logger.Info("wallet transfer completed",
		"transaction_id", txn.ID,
		"sender_id", senderID,
		"recipient_id", recipientID,
		"amount", amount,
	)
	metrics.WalletTransfersTotal.Inc()
	metrics.WalletTransferAmount.Observe(float64(amount))
	s.notifyCredit(txn, senderID, recipientID, amount)
	return txn, nil
}

func (s *Service) notifyCredit(txn *repository.WalletTransaction, senderID, recipientID uuid.UUID, amount int) {
	if s.bus == nil {
		return
	}

	data, err := json.Marshal(events.WalletCreditEvent{
		TransactionID: txn.ID.String(),
		SenderID:      senderID.String(),
		Amount:        amount,
		OccurredAt:    txn.CreatedAt,
	})
	if err != nil {
		return
	}

	if err := s.bus.Publish(events.Event{
		ID:        uuid.New().String(),
		Type:      events.EventTypeWalletCredit,
		UserID:    recipientID.String(),
		Data:      data,
		Timestamp: txn.CreatedAt,
	}); err != nil {
		s.logger.Warn("failed to publish wallet event", "error", err)
		return
	}
	metrics.StreamEventsPublished.WithLabelValues(events.EventTypeWalletCredit).Inc()
}

// Transactions returns the transactions a user participated in,
// newest first
func (s *Service) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]repository.WalletTransaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.walletRepo.ListByUser(ctx, userID, limit)
}

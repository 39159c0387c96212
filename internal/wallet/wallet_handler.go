package wallet

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

// Handler handles HTTP requests for wallet operations
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new wallet Handler instance
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// TransferRequest is the request body for a wallet transfer
type TransferRequest struct {
	RecipientID string `json:"recipient_id"`
	Amount      int    `json:"amount"`
}

// TransactionResponse is the API representation of a wallet transaction
type TransactionResponse struct {
	ID              uuid.UUID  `json:"id"`
	SenderID        *uuid.UUID `json:"sender_id"`
	RecipientID     *uuid.UUID `json:"recipient_id"`
	Amount          int        `json:"amount"`
	TransactionType string     `json:"transaction_type"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toTransactionResponse(t *repository.WalletTransaction) TransactionResponse {
	return TransactionResponse{
		ID:              t.ID,
		SenderID:        t.SenderID,
		RecipientID:     t.RecipientID,
		Amount:          t.Amount,
		TransactionType: t.Type,
		CreatedAt:       t.CreatedAt,
	}
}

// Transfer handles POST /wallet/transfer
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	senderID, ok := senderFromContext(w, r)
	if !ok {
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}

	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid recipient id", nil)
		return
	}

	txn, err := h.service.Transfer(r.Context(), senderID, recipientID, req.Amount)
	if err != nil {
		h.writeTransferError(w, err)
		return
	}

	api.WriteSuccess(w, http.StatusOK, toTransactionResponse(txn))
}

func (h *Handler) writeTransferError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSelfTransfer):
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "cannot transfer to yourself", nil)
	case errors.Is(err, ErrInvalidAmount):
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "transfer amount must be positive", nil)
	case errors.Is(err, ErrInsufficientBalance):
		api.WriteError(w, http.StatusBadRequest, "INSUFFICIENT_BALANCE", "insufficient wallet balance", nil)
	case errors.Is(err, ErrUserNotFound):
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "recipient not found", nil)
	default:
		h.logger.Error("wallet transfer failed", "error", err)
		api.WriteInternalError(w)
	}
}

// Transactions handles GET /wallet/transactions
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := senderFromContext(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	txns, err := h.service.Transactions(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("failed to list wallet transactions", "error", err)
		api.WriteInternalError(w)
		return
	}

	out := make([]TransactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, toTransactionResponse(&txns[i]))
	}
	api.WriteSuccess(w, http.StatusOK, out)
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

// RegisterRoutes registers wallet routes on the router
func RegisterRoutes(r chi.Router, h *Handler, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/wallet", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/transfer", h.Transfer)
		r.Get("/transactions", h.Transactions)
	})
}

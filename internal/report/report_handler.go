package report

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jangteo/marketplace/backend/internal/api"
	appctx "github.com/jangteo/marketplace/backend/internal/context"
)

// Handler handles HTTP requests for report endpoints
type Handler struct {
	service *Service
}

// NewHandler creates a new report Handler instance
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// FileRequest represents the report filing payload
type FileRequest struct {
	TargetID string `json:"target_id"`
	Reason   string `json:"reason"`
}

// File handles report filing
// POST /api/v1/reports
func (h *Handler) File(w http.ResponseWriter, r *http.Request) {
	userID, ok := appctx.ExtractUserID(r.Context())
	if !ok {
		api.WriteError(w, http.StatusUnauthorized, "AUTH_TOKEN_INVALID", "Invalid or expired token", nil)
		return
	}
	reporterID, err := uuid.Parse(userID)
	if err != nil {
		api.WriteError(w, http.StatusUnauthorized, "AUTH_TOKEN_INVALID", "Invalid or expired token", nil)
		return
	}

	var req FileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", nil)
		return
	}

	report, err := h.service.File(r.Context(), reporterID, req.TargetID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ErrTargetRequired):
			api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Report target must not be empty", nil)
		case errors.Is(err, ErrTargetTooLong):
			api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Report target may be at most 36 characters", nil)
		case errors.Is(err, ErrReasonRequired):
			api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Report reason must not be empty", nil)
		case errors.Is(err, ErrReasonTooLong):
			api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Report reason may be at most 500 characters", nil)
		case errors.Is(err, ErrDuplicateReport):
			api.WriteError(w, http.StatusConflict, "REPORT_DUPLICATE", "You already reported this target recently", nil)
		case errors.Is(err, ErrDailyLimitReached):
			api.WriteError(w, http.StatusTooManyRequests, "REPORT_LIMIT", "Daily report limit reached. Try again tomorrow.", nil)
		case errors.Is(err, ErrTargetUnderReview):
			api.WriteError(w, http.StatusConflict, "REPORT_TARGET_UNDER_REVIEW", "This target has already been reported and is under review", nil)
		default:
			api.WriteInternalError(w)
		}
		return
	}

	api.WriteSuccess(w, http.StatusCreated, map[string]interface{}{
		"report": report,
	})
}

// RegisterRoutes registers report routes with the Chi router
func RegisterRoutes(r chi.Router, handler *Handler, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/reports", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", handler.File)
	})
}

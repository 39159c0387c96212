package account

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jangteo/marketplace/backend/internal/api"
	appctx "github.com/jangteo/marketplace/backend/internal/context"
	"github.com/jangteo/marketplace/backend/internal/repository"
)

// Handler handles HTTP requests for account profiles
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new account Handler instance
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// ProfileResponse is the public representation of a user. Wallet is
// only populated on the owner's own profile.
type ProfileResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Bio       string    `json:"bio"`
	Wallet    *int      `json:"wallet,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toProfileResponse(u *repository.User, includeWallet bool) ProfileResponse {
	resp := ProfileResponse{
		ID:        u.ID,
		Username:  u.Username,
		Bio:       u.Bio,
		CreatedAt: u.CreatedAt,
	}
	if includeWallet {
		wallet := u.Wallet
		resp.Wallet = &wallet
	}
	return resp
}

// UpdateBioRequest is the request body for a bio update
type UpdateBioRequest struct {
	Bio string `json:"bio"`
}

// UpdatePasswordRequest is the request body for a password change
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// List handles GET /users
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListActive(r.Context())
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		api.WriteInternalError(w)
		return
	}

	out := make([]ProfileResponse, 0, len(users))
	for i := range users {
		out = append(out, toProfileResponse(&users[i], false))
	}
	api.WriteSuccess(w, http.StatusOK, out)
}

// Get handles GET /users/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user id", nil)
		return
	}

	user, err := h.service.Get(r.Context(), id, requesterID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
			return
		}
		h.logger.Error("failed to get user", "error", err)
		api.WriteInternalError(w)
		return
	}

	api.WriteSuccess(w, http.StatusOK, toProfileResponse(user, user.ID == requesterID))
}

// Me handles GET /users/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	user, err := h.service.Get(r.Context(), requesterID, requesterID)
	if err != nil {
		h.logger.Error("failed to get own profile", "error", err)
		api.WriteInternalError(w)
		return
	}

	api.WriteSuccess(w, http.StatusOK, toProfileResponse(user, true))
}

// UpdateBio handles PUT /users/me/bio
func (h *Handler) UpdateBio(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	var req UpdateBioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}

	user, err := h.service.UpdateBio(r.Context(), requesterID, req.Bio)
	if err != nil {
		if errors.Is(err, ErrBioTooLong) {
			api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "bio must be at most 500 characters", nil)
			return
		}
		h.logger.Error("failed to update bio", "error", err)
		api.WriteInternalError(w)
		return
	}

	api.WriteSuccess(w, http.StatusOK, toProfileResponse(user, true))
}

// UpdatePassword handles PUT /users/me/password
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requesterFromContext(w, r)
	if !ok {
		return
	}

	var req UpdatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}

	verrs, err := h.service.UpdatePassword(r.Context(), requesterID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, ErrWrongPassword) {
			api.WriteError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "current password is incorrect", nil)
			return
		}
		h.logger.Error("failed to update password", "error", err)
		api.WriteInternalError(w)
		return
	}
	if len(verrs) > 0 {
		details := make(map[string][]string)
		for _, verr := range verrs {
			details[verr.Field] = append(details[verr.Field], verr.Message)
		}
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "password does not meet requirements", details)
		return
	}

	api.WriteSuccess(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func requesterFromContext(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
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

// RegisterRoutes registers account routes on the router
func RegisterRoutes(r chi.Router, h *Handler, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/users", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.List)
		r.Get("/me", h.Me)
		r.Put("/me/bio", h.UpdateBio)
		r.Put("/me/password", h.UpdatePassword)
		r.Get("/{id}", h.Get)
	})
}

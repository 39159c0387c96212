package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jangteo/marketplace/backend/internal/api"
	"github.com/jangteo/marketplace/backend/internal/auth"
)

// AdminCookieName is the session cookie for the admin trust domain.
// It is distinct from the user cookie so the two sessions can coexist
// in one browser.
const AdminCookieName = "admin_jwt"

// Handler handles HTTP requests for the admin domain
type Handler struct {
	service      *Service
	tokenService *auth.TokenService
	production   bool
	logger       *slog.Logger
}

// NewHandler creates a new admin Handler instance
func NewHandler(service *Service, tokenService *auth.TokenService, production bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:      service,
		tokenService: tokenService,
		production:   production,
		logger:       logger,
	}
}

// LoginRequest is the request body for admin login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /admin/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}

	if err := h.service.Authenticate(req.Username, req.Password); err != nil {
		h.logger.Warn("admin login failed", "username", req.Username)
		api.WriteError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
		return
	}

	token, err := h.tokenService.Issue(h.service.Username())
	if err != nil {
		h.logger.Error("failed to issue admin token", "error", err)
		api.WriteInternalError(w)
		return
	}

	auth.SetSessionCookie(w, r, AdminCookieName, token, h.tokenService.Expiry(), h.production)
	api.WriteSuccess(w, http.StatusOK, map[string]string{"token": token})
}

// Logout handles POST /admin/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, r, AdminCookieName, h.production)
	api.WriteSuccess(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// AdminUserResponse is the moderation view of an account. It exposes
// the lockout and wallet state the public profile hides.
type AdminUserResponse struct {
	ID             uuid.UUID  `json:"id"`
	Username       string     `json:"username"`
	Bio            string     `json:"bio"`
	Status         string     `json:"status"`
	Wallet         int        `json:"wallet"`
	FailedAttempts int        `json:"failed_attempts"`
	LockoutUntil   *time.Time `json:"lockout_until,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ListUsers handles GET /admin/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		api.WriteInternalError(w)
		return
	}

	out := make([]AdminUserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, AdminUserResponse{
			ID:             u.ID,
			Username:       u.Username,
			Bio:            u.Bio,
			Status:         u.Status,
			Wallet:         u.Wallet,
			FailedAttempts: u.FailedAttempts,
			LockoutUntil:   u.LockoutUntil,
			CreatedAt:      u.CreatedAt,
		})
	}
	api.WriteSuccess(w, http.StatusOK, out)
}

// SuspendUser handles POST /admin/users/{id}/suspend
func (h *Handler) SuspendUser(w http.ResponseWriter, r *http.Request) {
	h.userStatusChange(w, r, h.service.SuspendUser, "user suspended")
}

// RestoreUser handles POST /admin/users/{id}/restore
func (h *Handler) RestoreUser(w http.ResponseWriter, r *http.Request) {
	h.userStatusChange(w, r, h.service.RestoreUser, "user restored")
}

func (h *Handler) userStatusChange(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID) error, message string) {
	id, ok := pathID(w, r, "invalid user id")
	if !ok {
		return
	}

	if err := op(r.Context(), id); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
			return
		}
		h.logger.Error("failed to update user status", "error", err)
		api.WriteInternalError(w)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]string{"message": message})
}

// AdminProductResponse is the moderation view of a listing
type AdminProductResponse struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       int       `json:"price"`
	SellerID    uuid.UUID `json:"seller_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListProducts handles GET /admin/products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		api.WriteInternalError(w)
		return
	}

	out := make([]AdminProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, AdminProductResponse{
			ID:          p.ID,
			Title:       p.Title,
			Description: p.Description,
			Price:       p.Price,
			SellerID:    p.SellerID,
			CreatedAt:   p.CreatedAt,
		})
	}
	api.WriteSuccess(w, http.StatusOK, out)
}

// DeleteProduct handles DELETE /admin/products/{id}
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid product id")
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		h.logger.Error("failed to delete product", "error", err)
		api.WriteInternalError(w)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

// ReportResponse is the moderation view of a report with its target
// resolved.
type ReportResponse struct {
	ID           uuid.UUID `json:"id"`
	ReporterID   uuid.UUID `json:"reporter_id"`
	TargetID     string    `json:"target_id"`
	TargetType   string    `json:"target_type"`
	TargetName   string    `json:"target_name,omitempty"`
	TargetStatus string    `json:"target_status,omitempty"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListReports handles GET /admin/reports
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.service.ListReports(r.Context())
	if err != nil {
		h.logger.Error("failed to list reports", "error", err)
		api.WriteInternalError(w)
		return
	}

	out := make([]ReportResponse, 0, len(reports))
	for _, er := range reports {
		out = append(out, ReportResponse{
			ID:           er.Report.ID,
			ReporterID:   er.Report.ReporterID,
			TargetID:     er.Report.TargetID,
			TargetType:   er.TargetType,
			TargetName:   er.TargetName,
			TargetStatus: er.TargetStatus,
			Reason:       er.Report.Reason,
			CreatedAt:    er.Report.CreatedAt,
		})
	}
	api.WriteSuccess(w, http.StatusOK, out)
}

// DeleteReport handles DELETE /admin/reports/{id}
func (h *Handler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid report id")
	if !ok {
		return
	}

	if err := h.service.DeleteReport(r.Context(), id); err != nil {
		if errors.Is(err, ErrReportNotFound) {
			api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "report not found", nil)
			return
		}
		h.logger.Error("failed to delete report", "error", err)
		api.WriteInternalError(w)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]string{"message": "report deleted"})
}

// AdminChatResponse is the moderation view of a chat message
type AdminChatResponse struct {
	ID          uuid.UUID `json:"id"`
	SenderID    uuid.UUID `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListChats handles GET /admin/chats
func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	messages, err := h.service.ListGlobalChats(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list chats", "error", err)
		api.WriteInternalError(w)
		return
	}

	out := make([]AdminChatResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, AdminChatResponse{
			ID:          m.ID,
			SenderID:    m.SenderID,
			RecipientID: m.RecipientID,
			Message:     m.Message,
			CreatedAt:   m.CreatedAt,
		})
	}
	api.WriteSuccess(w, http.StatusOK, out)
}

// DeleteChat handles DELETE /admin/chats/{id}
func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid message id")
	if !ok {
		return
	}

	if err := h.service.DeleteChat(r.Context(), id); err != nil {
		if errors.Is(err, ErrChatNotFound) {
			api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "chat message not found", nil)
			return
		}
		h.logger.Error("failed to delete chat", "error", err)
		api.WriteInternalError(w)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]string{"message": "chat message deleted"})
}

func pathID(w http.ResponseWriter, r *http.Request, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
		return uuid.Nil, false
	}
	return id, true
}

// RegisterRoutes registers admin routes. Login is throttled by the
// same limiter as user login; everything else requires an admin
// session.
func RegisterRoutes(r chi.Router, h *Handler, adminMiddleware func(http.Handler) http.Handler, loginLimiter func(http.Handler) http.Handler) {
	r.Route("/admin", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if loginLimiter != nil {
				r.Use(loginLimiter)
			}
			r.Post("/login", h.Login)
		})
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(adminMiddleware)
			r.Get("/users", h.ListUsers)
			r.Post("/users/{id}/suspend", h.SuspendUser)
			r.Post("/users/{id}/restore", h.RestoreUser)
			r.Get("/products", h.ListProducts)
			r.Delete("/products/{id}", h.DeleteProduct)
			r.Get("/reports", h.ListReports)
			r.Delete("/reports/{id}", h.DeleteReport)
			r.Get("/chats", h.ListChats)
			r.Delete("/chats/{id}", h.DeleteChat)
		})
	})
}

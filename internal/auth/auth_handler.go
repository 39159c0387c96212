package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jangteo/marketplace/backend/internal/api"
)

// UserCookieName is the session cookie for the user trust domain
const UserCookieName = "jwt"

// AuthHandler handles HTTP requests for authentication endpoints
type AuthHandler struct {
	authService  *AuthService
	tokenService *TokenService
	production   bool
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(authService *AuthService, tokenService *TokenService, production bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		tokenService: tokenService,
		production:   production,
	}
}

// UserResponse represents user data in responses. The password hash and
// lockout counters never leave the server.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Bio       string    `json:"bio,omitempty"`
	Status    string    `json:"status"`
	Wallet    int       `json:"wallet"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenResponse represents the issued session token
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
	TokenType string `json:"token_type"`
}

// Register handles user registration
// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body", nil)
		return
	}

	user, validationErrors, err := h.authService.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrUsernameExists) {
			api.WriteError(w, http.StatusConflict, CodeUsernameExists, "An account with this username already exists", nil)
			return
		}
		api.WriteInternalError(w)
		return
	}

	if len(validationErrors) > 0 {
		details := make(map[string][]string)
		for _, ve := range validationErrors {
			details[ve.Field] = append(details[ve.Field], ve.Message)
		}
		api.WriteError(w, http.StatusBadRequest, CodeValidationError, "Request validation failed", details)
		return
	}

	api.WriteSuccess(w, http.StatusCreated, map[string]interface{}{
		"user": UserResponse{
			ID:        user.ID.String(),
			Username:  user.Username,
			Status:    user.Status,
			Wallet:    user.Wallet,
			CreatedAt: user.CreatedAt,
		},
	})
}

// Login handles user authentication. On success the token travels both
// in the response body and as an HttpOnly cookie.
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body", nil)
		return
	}

	user, err := h.authService.Login(r.Context(), req)
	if err != nil {
		var locked *AccountLockedError
		if errors.As(err, &locked) {
			details := map[string][]string{
				"retry_after": {strconv.Itoa(locked.RetryAfter)},
			}
			api.WriteError(w, http.StatusUnauthorized, CodeAccountLocked, "Account is locked due to repeated failed logins", details)
			return
		}
		var creds *CredentialsError
		if errors.As(err, &creds) {
			details := map[string][]string{
				"attempts_left": {strconv.Itoa(creds.AttemptsLeft)},
			}
			api.WriteError(w, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid username or password", details)
			return
		}
		if errors.Is(err, ErrInvalidCredentials) {
			api.WriteError(w, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid username or password", nil)
			return
		}
		if errors.Is(err, ErrAccountSuspended) {
			api.WriteError(w, http.StatusUnauthorized, CodeAccountSuspended, "This account is suspended. Contact an administrator.", nil)
			return
		}
		api.WriteInternalError(w)
		return
	}

	token, err := h.tokenService.Issue(user.ID.String())
	if err != nil {
		api.WriteInternalError(w)
		return
	}

	SetSessionCookie(w, r, UserCookieName, token, h.tokenService.Expiry(), h.production)

	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"user": UserResponse{
			ID:        user.ID.String(),
			Username:  user.Username,
			Bio:       user.Bio,
			Status:    user.Status,
			Wallet:    user.Wallet,
			CreatedAt: user.CreatedAt,
		},
		"tokens": TokenResponse{
			Token:     token,
			ExpiresIn: int64(h.tokenService.Expiry().Seconds()),
			TokenType: "Bearer",
		},
	})
}

// Logout clears the session cookie. The token itself stays valid until
// expiry; there is no server-side revocation list.
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookie(w, r, UserCookieName, h.production)
	api.WriteSuccess(w, http.StatusOK, map[string]string{
		"message": "Successfully logged out",
	})
}

// SetSessionCookie writes a session cookie: HttpOnly always, Secure when
// the connection is encrypted or the server runs in production.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, name, token string, expiry time.Duration, production bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(expiry.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil || production,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires a session cookie
func ClearSessionCookie(w http.ResponseWriter, r *http.Request, name string, production bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil || production,
		SameSite: http.SameSiteLaxMode,
	})
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jangteo/marketplace/backend/internal/api"
	"github.com/jangteo/marketplace/backend/internal/auth"
	appctx "github.com/jangteo/marketplace/backend/internal/context"
	"github.com/jangteo/marketplace/backend/internal/repository"
)

// SessionMiddleware validates session tokens for one trust domain.
// Two instances run side by side: the user domain reads the "jwt"
// cookie, the admin domain reads "admin_jwt". Neither accepts the
// other's tokens.
type SessionMiddleware struct {
	tokenService *auth.TokenService
	cookieName   string
	userRepo     repository.UserRepository
}

// NewUserSessionMiddleware creates the user-domain session middleware
func NewUserSessionMiddleware(tokenService *auth.TokenService, userRepo repository.UserRepository) *SessionMiddleware {
	return &SessionMiddleware{
		tokenService: tokenService,
		cookieName:   auth.UserCookieName,
		userRepo:     userRepo,
	}
}

// NewAdminSessionMiddleware creates the admin-domain session middleware
func NewAdminSessionMiddleware(tokenService *auth.TokenService, cookieName string) *SessionMiddleware {
	return &SessionMiddleware{
		tokenService: tokenService,
		cookieName:   cookieName,
	}
}

// Authenticate validates the session token from the Authorization
// header or the domain cookie. Expired, malformed, and wrong-signature
// tokens all produce the same rejection.
func (m *SessionMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ExtractToken(r, m.cookieName)
		if tokenString == "" {
			api.WriteError(w, http.StatusUnauthorized, auth.CodeAuthTokenMissing, "Authentication required", nil)
			return
		}

		claims, err := m.tokenService.Validate(tokenString)
		if err != nil {
			api.WriteError(w, http.StatusUnauthorized, auth.CodeAuthTokenInvalid, "Invalid or expired token", nil)
			return
		}

		ctx := r.Context()
		if m.userRepo != nil {
			// User domain: the account must exist and not be suspended
			user, err := lookupUser(ctx, m.userRepo, claims.UserID())
			if err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					api.WriteError(w, http.StatusUnauthorized, auth.CodeAuthTokenInvalid, "Invalid or expired token", nil)
					return
				}
				api.WriteInternalError(w)
				return
			}
			if user.IsSuspended() {
				api.WriteError(w, http.StatusUnauthorized, auth.CodeAccountSuspended, "This account is suspended. Contact an administrator.", nil)
				return
			}
			ctx = appctx.WithUserID(ctx, claims.UserID())
		} else {
			ctx = appctx.WithAdmin(ctx)
			if claims.UserID() != "" {
				ctx = appctx.WithUserID(ctx, claims.UserID())
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// lookupUser resolves a token subject to its account row
func lookupUser(ctx context.Context, repo repository.UserRepository, subject string) (*repository.User, error) {
	id, err := uuid.Parse(subject)
	if err != nil {
		return nil, repository.ErrUserNotFound
	}
	return repo.GetByID(ctx, id)
}

// ExtractToken pulls a session token from the Authorization header,
// falling back to the domain cookie.
func ExtractToken(r *http.Request, cookieName string) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// ExtractUserID extracts the user ID from the request context
func ExtractUserID(ctx context.Context) (string, bool) {
	return appctx.ExtractUserID(ctx)
}

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware wraps an http.Handler
type Middleware func(http.Handler) http.Handler

// RegisterRoutes registers all authentication routes with the Chi router.
// Register and login sit behind the identity-keyed rate limiter.
func RegisterRoutes(r chi.Router, handler *AuthHandler, loginLimiter Middleware) {
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(loginLimiter)
			r.Post("/register", handler.Register)
			r.Post("/login", handler.Login)
		})

		r.Post("/logout", handler.Logout)
	})
}

// Package context carries the authenticated identity through a
// request. The session middleware writes it, handlers read it; keys
// are unexported types so no other package can collide with them.
package context

import (
	"context"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// UserIDKey is the context key for the authenticated user ID
	UserIDKey ContextKey = "user_id"
	// AdminKey is the context key for the admin flag
	AdminKey ContextKey = "is_admin"
)

// WithUserID returns a context carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithAdmin marks the context as belonging to an admin session.
func WithAdmin(ctx context.Context) context.Context {
	return context.WithValue(ctx, AdminKey, true)
}

// ExtractUserID extracts the user ID from the request context
func ExtractUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// ExtractAdmin reports whether the request context carries an admin identity
func ExtractAdmin(ctx context.Context) bool {
	isAdmin, ok := ctx.Value(AdminKey).(bool)
	return ok && isAdmin
}

package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jangteo/marketplace/backend/internal/api"
	"github.com/jangteo/marketplace/backend/internal/auth"
)

// window holds the request timestamps for one key, oldest first.
type window struct {
	hits []time.Time
}

// prune drops timestamps older than the cutoff and reports whether the
// window is now empty.
func (w *window) prune(cutoff time.Time) bool {
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	w.hits = w.hits[i:]
	return len(w.hits) == 0
}

// RateLimiter is an in-memory sliding-window limiter. Each key gets
// its own window; keys come from a KeyFunc so the same limiter type
// serves both per-identity and per-address throttles.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	period  time.Duration
}

// NewRateLimiter creates a limiter allowing limit requests per period.
// A background sweeper reclaims idle keys.
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
	}
	go rl.sweep()
	return rl
}

// Allow records a request for the key if it fits in the window and
// reports whether it was admitted.
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	win := rl.windows[key]
	if win == nil {
		win = &window{}
		rl.windows[key] = win
	}
	win.prune(now.Add(-rl.period))

	if len(win.hits) >= rl.limit {
		return false
	}
	win.hits = append(win.hits, now)
	return true
}

// Remaining returns how many requests the key has left in the window.
func (rl *RateLimiter) Remaining(key string) int {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	win := rl.windows[key]
	if win == nil {
		return rl.limit
	}
	win.prune(now.Add(-rl.period))

	if left := rl.limit - len(win.hits); left > 0 {
		return left
	}
	return 0
}

// Reset returns when the key's oldest recorded request leaves the
// window, which is when a blocked caller may retry.
func (rl *RateLimiter) Reset(key string) time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	win := rl.windows[key]
	if win == nil || len(win.hits) == 0 {
		return time.Now()
	}
	return win.hits[0].Add(rl.period)
}

// sweep drops keys whose whole window has aged out.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.period)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-rl.period)
		rl.mu.Lock()
		for key, win := range rl.windows {
			if win.prune(cutoff) {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}

// KeyFunc resolves a request to a rate-limit key
type KeyFunc func(r *http.Request) string

// IdentityKey resolves a request to its identity: the session token's
// subject when a valid token is present, otherwise the remote address.
// Both trust domains front their login routes with this same gate.
func IdentityKey(tokenService *auth.TokenService, cookieName string) KeyFunc {
	return func(r *http.Request) string {
		if tokenString := ExtractToken(r, cookieName); tokenString != "" {
			if claims, err := tokenService.Validate(tokenString); err == nil {
				return claims.UserID()
			}
		}
		return r.RemoteAddr
	}
}

// Limit wraps a handler with the limiter, keyed by keyFn. Rejected
// requests get a 429 with Retry-After; admitted ones carry the usual
// X-RateLimit headers.
func (rl *RateLimiter) Limit(keyFn KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)

			if !rl.Allow(key) {
				retryAfter := max(rl.Reset(key).Unix()-time.Now().Unix(), 0)
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				details := map[string][]string{
					"retry_after": {strconv.FormatInt(retryAfter, 10)},
				}
				api.WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded. Please try again later.", details)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining(key)))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rl.Reset(key).Unix(), 10))
			next.ServeHTTP(w, r)
		})
	}
}

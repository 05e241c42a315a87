package ratelimit

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/plateroute/api/internal/platform/auth"
	"github.com/plateroute/api/internal/platform/httpx"
)

// Logger abstracts the logging dependency used inside the middleware.
type Logger interface {
	Printf(format string, args ...any)
}

type clockFunc func() time.Time

// KeyFunc derives the client identity a request is throttled by.
type KeyFunc func(r *http.Request) string

type middlewareConfig struct {
	keyFn  KeyFunc
	clock  clockFunc
	logger Logger
}

// MiddlewareOption customises middleware behaviour.
type MiddlewareOption func(*middlewareConfig)

// WithKeyFunc overrides how the client key is derived from the request.
func WithKeyFunc(fn KeyFunc) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if fn != nil {
			cfg.keyFn = fn
		}
	}
}

// WithClock overrides the time source, primarily for testing.
func WithClock(clock clockFunc) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// WithLogger injects a logger for store failures.
func WithLogger(logger Logger) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.logger = logger
	}
}

// Middleware throttles requests per client key. The store failing does not
// block traffic; the request passes through and the failure is logged.
func Middleware(store Store, limit int, window time.Duration, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil || limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if window <= 0 {
		window = DefaultWindow
	}

	cfg := middlewareConfig{
		keyFn: identityKey,
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(cfg.keyFn(r))
			if key == "" {
				key = "anonymous"
			}

			count, err := store.Increment(r.Context(), key, cfg.clock(), window)
			if err != nil {
				if cfg.logger != nil {
					cfg.logger.Printf("ratelimit: increment failed for key %s: %v", key, err)
				}
				next.ServeHTTP(w, r)
				return
			}

			if count > limit {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
				httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "too many requests, slow down", http.StatusTooManyRequests))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// identityKey keys by the authenticated user when present, falling back to
// the remote address.
func identityKey(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return identity.UID
	}
	return r.RemoteAddr
}

package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/xferlogic/gateway/internal/auth"
	"golang.org/x/time/rate"
)

type ctxKey string

const identityKey ctxKey = "identity"

// IdentityFromContext returns the identity attached by JWTAuthMiddleware.
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*auth.Identity)
	return id, ok && id != nil
}

func bearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r.Header.Get("Authorization"))
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "Authorization token is required")
			return
		}

		identity, err := h.tokens.Verify(tokenString)
		if err != nil {
			h.log.WithError(err).Debug("Rejected bearer token")
			writeError(w, http.StatusForbidden, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger writes one logrus entry per request.
func RequestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  middleware.GetReqID(r.Context()),
			}).Info("HTTP request")
		})
	}
}

// limiterIdleTTL is how long an unused bucket is kept. A bucket idle for a full
// minute has refilled, so dropping it loses no state.
const limiterIdleTTL = 2 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per user and drops idle buckets.
type RateLimiter struct {
	limiters  map[int64]*limiterEntry
	mu        sync.Mutex
	perMin    int
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		limiters:  make(map[int64]*limiterEntry),
		perMin:    perMinute,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (rl *RateLimiter) getLimiter(userID int64) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= limiterIdleTTL {
		for id, e := range rl.limiters {
			if now.Sub(e.lastSeen) >= limiterIdleTTL {
				delete(rl.limiters, id)
			}
		}
		rl.lastSweep = now
	}

	e, exists := rl.limiters[userID]
	if !exists {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(rl.perMin)/60, rl.perMin)}
		rl.limiters[userID] = e
	}
	e.lastSeen = now
	return e.limiter
}

// Middleware must run after JWTAuthMiddleware. A non-positive limit disables it.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if rl == nil || rl.perMin <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if !rl.getLimiter(identity.UserID).Allow() {
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

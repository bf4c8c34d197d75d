package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Lideeyah/DevAssist-sub000/internal/auth"
)

// Limiter decides whether one more request is allowed for an identity
// within a scope ("auth", "generate", ...). Implementations hold the
// window state outside the process so multiple instances share limits.
type Limiter interface {
	Allow(ctx context.Context, scope, identity string) (bool, error)
	Window(scope string) time.Duration
}

// SlidingWindowLimiter is a Redis sorted-set sliding window keyed by
// scope:identity.
type SlidingWindowLimiter struct {
	client   redis.Cmdable
	scopes   map[string]windowConfig
	fallback windowConfig
}

type windowConfig struct {
	maxReqs int
	window  time.Duration
}

// NewSlidingWindowLimiter creates a limiter with no configured scopes.
func NewSlidingWindowLimiter(client redis.Cmdable) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client:   client,
		scopes:   make(map[string]windowConfig),
		fallback: windowConfig{maxReqs: 60, window: time.Minute},
	}
}

// Configure sets the limit for a scope.
func (l *SlidingWindowLimiter) Configure(scope string, maxReqs, windowSec int) {
	l.scopes[scope] = windowConfig{maxReqs: maxReqs, window: time.Duration(windowSec) * time.Second}
}

func (l *SlidingWindowLimiter) scopeConfig(scope string) windowConfig {
	if cfg, ok := l.scopes[scope]; ok {
		return cfg
	}
	return l.fallback
}

func (l *SlidingWindowLimiter) Window(scope string) time.Duration {
	return l.scopeConfig(scope).window
}

func (l *SlidingWindowLimiter) Allow(ctx context.Context, scope, identity string) (bool, error) {
	cfg := l.scopeConfig(scope)
	key := "ratelimit:" + scope + ":" + identity
	now := time.Now()
	windowStart := float64(now.Add(-cfg.window).UnixMilli())
	member := fmt.Sprintf("%d", now.UnixNano())
	score := float64(now.UnixMilli())

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%f", windowStart))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: member})
	pipe.Expire(ctx, key, cfg.window+time.Second)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, err
	}

	return countCmd.Val() < int64(cfg.maxReqs), nil
}

// RateLimitByIP enforces the scope's limit per client IP.
// On limiter errors it fails open (allows the request through).
func RateLimitByIP(limiter Limiter, scope string) func(http.Handler) http.Handler {
	return rateLimit(limiter, scope, func(r *http.Request) string {
		return clientIP(r)
	})
}

// RateLimitByUser enforces the scope's limit per authenticated user.
// Must run after the auth middleware; unauthenticated requests fall
// back to the client IP.
func RateLimitByUser(limiter Limiter, scope string) func(http.Handler) http.Handler {
	return rateLimit(limiter, scope, func(r *http.Request) string {
		if claims := auth.GetUserClaims(r.Context()); claims != nil {
			return claims.UserID
		}
		return clientIP(r)
	})
}

func rateLimit(limiter Limiter, scope string, identity func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identity(r)

			allowed, err := limiter.Allow(r.Context(), scope, id)
			if err != nil {
				slog.Warn("rate limiter: backend error, failing open", "error", err, "scope", scope, "identity", id)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				retryAfter := int(limiter.Window(scope).Seconds())
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				http.Error(w, `{"error":"too many requests"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	// Check X-Forwarded-For first (trusted reverse proxy)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

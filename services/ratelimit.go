package services

import (
	"context"
	"time"

	"truthlens-api/logging"
)

const guestKeyPrefix = "rate_limit_guest:"

// GuestLimiter caps unauthenticated checks per client IP in a fixed window
// that starts with the first request.
type GuestLimiter struct {
	kv      *KVStore
	limit   int
	window  time.Duration
	logger  logging.Logger
	metrics *Metrics
}

// NewGuestLimiter returns a limiter allowing limit requests per window. A
// non-positive limit disables limiting.
func NewGuestLimiter(kv *KVStore, limit int, window time.Duration, logger logging.Logger, metrics *Metrics) *GuestLimiter {
	return &GuestLimiter{kv: kv, limit: limit, window: window, logger: logger, metrics: metrics}
}

func (g *GuestLimiter) Limit() int {
	return g.limit
}

// Allow counts one request for ip. Redis errors let the request through.
func (g *GuestLimiter) Allow(ctx context.Context, ip string) (bool, int64) {
	if g.limit <= 0 {
		return true, 0
	}
	n, err := g.kv.Incr(ctx, guestKeyPrefix+ip, g.window)
	if err != nil {
		g.logger.WithError(err).WithField("ip", ip).Warn("Guest rate limit check failed")
		return true, n
	}
	if n > int64(g.limit) {
		g.metrics.IncGuestRejected()
		return false, n
	}
	return true, n
}

// Used returns how many requests ip has made in the current window.
func (g *GuestLimiter) Used(ctx context.Context, ip string) int64 {
	n, err := g.kv.Counter(ctx, guestKeyPrefix+ip)
	if err != nil {
		g.logger.WithError(err).WithField("ip", ip).Warn("Guest usage lookup failed")
		return 0
	}
	return n
}

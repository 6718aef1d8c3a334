package http

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	apperrors "github.com/spec-kit/itconnect/pkg/util/errorutil"
)

const limiterIdleTTL = 10 * time.Minute

// ipRateLimiter keeps one token bucket per client IP.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPRateLimiter(perSecond float64, burst int) *ipRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ipRateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.limiters[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	allowed := entry.limiter.AllowN(now, 1)

	for key, e := range l.limiters {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(l.limiters, key)
		}
	}
	return allowed
}

// LoginRateLimit throttles sign-in attempts per client IP. A non-positive
// rate disables the limiter.
func LoginRateLimit(perSecond float64, burst int) fiber.Handler {
	if perSecond <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	limiter := newIPRateLimiter(perSecond, burst)
	return func(c *fiber.Ctx) error {
		if !limiter.allow(c.IP()) {
			return apperrors.NewTooManyRequests()
		}
		return c.Next()
	}
}

package wall

import (
	"sync"
	"time"

	"github.com/longregen/cogito/internal/config"
	"github.com/longregen/cogito/internal/domain/models"
)

// rateLimiter holds one token bucket per (user, risk tier). Buckets refill
// continuously at limit/window and are created on first use.
type rateLimiter struct {
	mu      sync.Mutex
	limits  map[string]config.RateLimitConfig
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newRateLimiter(limits map[string]config.RateLimitConfig, now func() time.Time) *rateLimiter {
	if now == nil {
		now = time.Now
	}
	return &rateLimiter{
		limits:  limits,
		buckets: make(map[string]*bucket),
		now:     now,
	}
}

// Allow consumes one token for the (user, tier) pair. Tiers without a
// configured limit are unthrottled.
func (r *rateLimiter) Allow(userID string, tier models.RiskTier) bool {
	limit, ok := r.limits[string(tier)]
	if !ok || limit.Limit <= 0 || limit.WindowSec <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := userID + "|" + string(tier)
	now := r.now()
	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(limit.Limit), last: now}
		r.buckets[key] = b
	}

	refillPerSec := float64(limit.Limit) / float64(limit.WindowSec)
	elapsed := now.Sub(b.last).Seconds()
	b.tokens += elapsed * refillPerSec
	if b.tokens > float64(limit.Limit) {
		b.tokens = float64(limit.Limit)
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

package admission

import (
	"sync"
	"time"
)

// PoolLimit names a rate-limit pool's bucket parameters: max requests per
// fixed window, where a window opens at the first request after the
// previous window has elapsed (spec.md §4.4 step 6).
type PoolLimit struct {
	Window      time.Duration
	MaxRequests int
}

type bucket struct {
	windowStart time.Time
	count       int
}

// RateLimiter enforces a bucketed token/window scheme per pool. Operations
// map to one or more pools; each pool is limited independently.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[string]PoolLimit
	buckets map[string]*bucket
}

// NewRateLimiter constructs a limiter from a fixed pool → limit mapping.
func NewRateLimiter(limits map[string]PoolLimit) *RateLimiter {
	return &RateLimiter{
		limits:  limits,
		buckets: make(map[string]*bucket),
	}
}

// Allow admits one request against pool at now. On exhaustion it returns
// allowed=false and retryAfter computed from the window's reset time.
func (r *RateLimiter) Allow(pool string, now time.Time) (allowed bool, retryAfter time.Duration) {
	limit, ok := r.limits[pool]
	if !ok {
		// Unconfigured pools are not rate-limited.
		return true, 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[pool]
	if !ok || now.Sub(b.windowStart) >= limit.Window {
		b = &bucket{windowStart: now, count: 0}
		r.buckets[pool] = b
	}

	if b.count >= limit.MaxRequests {
		reset := b.windowStart.Add(limit.Window)
		return false, reset.Sub(now)
	}
	b.count++
	return true, 0
}

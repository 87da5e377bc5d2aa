package fetch

import (
	"sync"
	"time"
)

// rateBucket tracks requests to one remote host within a fixed window.
type rateBucket struct {
	windowStart time.Time
	count       int
}

// Limiter is a per-domain fixed-window request counter. Buckets are created
// lazily on first use and live for the process lifetime; one saturated domain
// never starves another.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	now     func() time.Time
}

// NewLimiter creates an empty [Limiter].
func NewLimiter() *Limiter {
	return &Limiter{
		buckets: make(map[string]*rateBucket),
		now:     time.Now,
	}
}

// Allow reports whether a call to domain may proceed within the current
// window, counting the call when it does. It never blocks and never errors;
// a full bucket yields false.
func (l *Limiter) Allow(domain string, maxRequests int, window time.Duration) bool {
	if maxRequests <= 0 || window <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[domain]
	if !ok || now.Sub(b.windowStart) >= window {
		l.buckets[domain] = &rateBucket{windowStart: now, count: 1}
		return true
	}

	if b.count >= maxRequests {
		return false
	}

	b.count++
	return true
}

// RetryAfter returns the time until the domain's bucket resets. Zero when the
// domain has no bucket or the window already elapsed.
func (l *Limiter) RetryAfter(domain string, window time.Duration) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[domain]
	if !ok {
		return 0
	}

	remaining := window - l.now().Sub(b.windowStart)
	if remaining < 0 {
		return 0
	}
	return remaining
}

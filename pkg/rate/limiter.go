package rate

import (
	"math"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter limits operations based on a provided key.
type Limiter interface {
	Allow(key string) (bool, error)
}

type localRateLimiter struct {
	limit rate.Limit
	burst int

	sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLimiter returns an in memory limiter allowing perSecond operations per
// key, or a NoLimiter when perSecond is not positive.
func NewLimiter(perSecond float64) Limiter {
	if perSecond <= 0 || math.IsNaN(perSecond) {
		return &NoLimiter{}
	}
	return NewLocalRateLimiter(rate.Limit(perSecond), int(math.Max(1, perSecond)))
}

// NewLocalRateLimiter returns an in memory limiter with the given burst size.
func NewLocalRateLimiter(limit rate.Limit, burst int) Limiter {
	return &localRateLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow implements limiter.Allow.
func (l *localRateLimiter) Allow(key string) (bool, error) {
	l.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	l.Unlock()

	return limiter.Allow(), nil
}

// NoLimiter never limits operations
type NoLimiter struct {
}

// Allow implements limiter.Allow.
func (n *NoLimiter) Allow(key string) (bool, error) {
	return true, nil
}

package limits

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a session sends events too quickly.
var ErrRateLimited = errors.New("rate limit exceeded")

// EventLimiter keeps one token bucket per key, used to bound how fast one live
// session can send events. A rate of zero or less allows everything.
type EventLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewEventLimiter allows r events per second with bursts up to burst.
func NewEventLimiter(r float64, burst int) *EventLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(r)
	if r <= 0 {
		limit = rate.Inf
	}
	return &EventLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow takes one token from key's bucket.
func (el *EventLimiter) Allow(key string) bool {
	return el.allowAt(key, time.Now())
}

func (el *EventLimiter) allowAt(key string, now time.Time) bool {
	if el.limit == rate.Inf {
		return true
	}

	el.mu.Lock()
	l, ok := el.limiters[key]
	if !ok {
		l = rate.NewLimiter(el.limit, el.burst)
		el.limiters[key] = l
	}
	el.mu.Unlock()

	return l.AllowN(now, 1)
}

// Forget drops key's bucket. Sessions call it when they close.
func (el *EventLimiter) Forget(key string) {
	el.mu.Lock()
	delete(el.limiters, key)
	el.mu.Unlock()
}

// Len returns the number of tracked keys.
func (el *EventLimiter) Len() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.limiters)
}

// Package ratelimiter implements the RateLimiter collaborator used by
// the scheduler's API-quota check (spec §6.4: aq_schedule_count per
// aq_schedule_window_ms), keyed per (userId, package, tag) the way the
// teacher's single-stream RateLimiter wraps one golang.org/x/time/rate
// limiter, generalized here to one limiter per key.
package ratelimiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type key struct {
	userID int
	pkg    string
	tag    string
}

// RateLimiter enforces, per (userId, package, tag), no more than count
// schedule calls within window.
type RateLimiter struct {
	mu       sync.Mutex
	count    int
	window   time.Duration
	limiters map[key]*rate.Limiter
}

// New creates a RateLimiter allowing count events per window for each
// distinct key. count<=0 disables limiting entirely.
func New(count int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		count:    count,
		window:   window,
		limiters: make(map[key]*rate.Limiter),
	}
}

func (r *RateLimiter) limiterFor(k key) *rate.Limiter {
	if l, ok := r.limiters[k]; ok {
		return l
	}
	var l *rate.Limiter
	if r.count <= 0 || r.window <= 0 {
		l = rate.NewLimiter(rate.Inf, 0)
	} else {
		perSecond := float64(r.count) / r.window.Seconds()
		l = rate.NewLimiter(rate.Limit(perSecond), r.count)
	}
	r.limiters[k] = l
	return l
}

// IsWithinQuota reports whether one more schedule call for this key
// would be allowed right now, without consuming quota.
func (r *RateLimiter) IsWithinQuota(userID int, pkg, tag string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.limiterFor(key{userID, pkg, tag})
	reservation := l.ReserveN(time.Now(), 1)
	ok := reservation.OK() && reservation.Delay() == 0
	reservation.Cancel()
	return ok
}

// NoteEvent records that a schedule call for this key occurred,
// consuming one unit of quota.
func (r *RateLimiter) NoteEvent(userID int, pkg, tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.limiterFor(key{userID, pkg, tag})
	l.Allow()
}

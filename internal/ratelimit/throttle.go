package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle is a token bucket per key.
type Throttle struct {
	limit   rate.Limit
	burst   int
	maxIdle time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*throttleEntry
}

// NewThrottle allows perMinute events per key with the given burst.
func NewThrottle(perMinute, burst int, now func() time.Time) *Throttle {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Throttle{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		maxIdle: 10 * time.Minute,
		now:     now,
		entries: map[string]*throttleEntry{},
	}
}

// Allow consumes a token for key. When none is available it returns the wait
// until the next one.
func (t *Throttle) Allow(key string) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	entry, ok := t.entries[key]
	if !ok {
		entry = &throttleEntry{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.entries[key] = entry
	}
	entry.lastSeen = now
	if entry.limiter.AllowN(now, 1) {
		return true, 0
	}
	res := entry.limiter.ReserveN(now, 1)
	wait := res.DelayFrom(now)
	res.CancelAt(now)
	return false, wait
}

func (t *Throttle) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-t.maxIdle)
	removed := 0
	for key, entry := range t.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(t.entries, key)
			removed++
		}
	}
	return removed
}

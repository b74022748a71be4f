// Package ratelimit keeps per-client counters in memory. Clocks are injected
// so tests control time; state is lost on restart.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type loginRecord struct {
	failures    int
	windowStart time.Time
	lockedUntil time.Time
}

// LoginLimiter locks a client out after MaxFailures failed logins inside
// Window, for Lockout.
type LoginLimiter struct {
	maxFailures int
	window      time.Duration
	lockout     time.Duration
	now         func() time.Time

	mu      sync.Mutex
	records map[string]*loginRecord
}

func NewLoginLimiter(maxFailures int, window, lockout time.Duration, now func() time.Time) *LoginLimiter {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	if lockout <= 0 {
		lockout = 15 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &LoginLimiter{
		maxFailures: maxFailures,
		window:      window,
		lockout:     lockout,
		now:         now,
		records:     map[string]*loginRecord{},
	}
}

// Check reports whether key may attempt a login, and if not, how long until
// it can.
func (l *LoginLimiter) Check(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[key]
	if !ok {
		return true, 0
	}
	now := l.now()
	if now.Before(rec.lockedUntil) {
		return false, rec.lockedUntil.Sub(now)
	}
	return true, 0
}

// Fail records a failed attempt. It returns true and the lockout length when
// this failure triggers a lockout.
func (l *LoginLimiter) Fail(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	rec, ok := l.records[key]
	if !ok || now.Sub(rec.windowStart) > l.window || (!rec.lockedUntil.IsZero() && !now.Before(rec.lockedUntil)) {
		rec = &loginRecord{windowStart: now}
		l.records[key] = rec
	}
	rec.failures++
	if rec.failures >= l.maxFailures {
		rec.lockedUntil = now.Add(l.lockout)
		return true, l.lockout
	}
	return false, 0
}

// Succeed clears the record for key.
func (l *LoginLimiter) Succeed(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, key)
}

// Sweep drops records whose window and lockout have both passed.
func (l *LoginLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	removed := 0
	for key, rec := range l.records {
		if now.Sub(rec.windowStart) > l.window && !now.Before(rec.lockedUntil) {
			delete(l.records, key)
			removed++
		}
	}
	return removed
}

func (l *LoginLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Sweeper is implemented by both limiters.
type Sweeper interface {
	Sweep() int
}

// RunSweeper calls Sweep on every limiter each interval until ctx is done.
func RunSweeper(ctx context.Context, interval time.Duration, limiters ...Sweeper) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, l := range limiters {
				l.Sweep()
			}
		}
	}
}

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestLoginLockoutAfterFiveFailures(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLoginLimiter(5, 15*time.Minute, 15*time.Minute, clock.Now)

	for i := 0; i < 4; i++ {
		locked, _ := l.Fail("1.2.3.4")
		assert.False(t, locked)
		clock.Advance(time.Minute)
	}
	ok, _ := l.Check("1.2.3.4")
	assert.True(t, ok)

	locked, retry := l.Fail("1.2.3.4")
	assert.True(t, locked)
	assert.Equal(t, 15*time.Minute, retry)

	ok, retry = l.Check("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, 15*time.Minute, retry)

	other, _ := l.Check("5.6.7.8")
	assert.True(t, other)

	clock.Advance(14 * time.Minute)
	ok, retry = l.Check("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	clock.Advance(time.Minute)
	ok, _ = l.Check("1.2.3.4")
	assert.True(t, ok)

	locked, _ = l.Fail("1.2.3.4")
	assert.False(t, locked, "a fresh window starts after the lockout")
}

func TestLoginWindowExpires(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLoginLimiter(5, 15*time.Minute, 15*time.Minute, clock.Now)

	for i := 0; i < 4; i++ {
		l.Fail("ip")
	}
	clock.Advance(16 * time.Minute)
	locked, _ := l.Fail("ip")
	assert.False(t, locked)
}

func TestLoginSuccessClearsRecord(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	l := NewLoginLimiter(5, 15*time.Minute, 15*time.Minute, clock.Now)
	for i := 0; i < 4; i++ {
		l.Fail("ip")
	}
	l.Succeed("ip")
	assert.Equal(t, 0, l.Len())
	locked, _ := l.Fail("ip")
	assert.False(t, locked)
}

func TestLoginSweep(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	l := NewLoginLimiter(2, time.Minute, 5*time.Minute, clock.Now)
	l.Fail("a")
	l.Fail("b")
	l.Fail("b")

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())

	clock.Advance(4 * time.Minute)
	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 0, l.Len())
}

func TestThrottle(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	th := NewThrottle(10, 2, clock.Now)

	ok, _ := th.Allow("ip")
	assert.True(t, ok)
	ok, _ = th.Allow("ip")
	assert.True(t, ok)
	ok, wait := th.Allow("ip")
	assert.False(t, ok)
	assert.InDelta(t, float64(6*time.Second), float64(wait), float64(time.Millisecond))

	ok, _ = th.Allow("other")
	assert.True(t, ok)

	clock.Advance(7 * time.Second)
	ok, _ = th.Allow("ip")
	assert.True(t, ok)

	clock.Advance(11 * time.Minute)
	assert.Equal(t, 2, th.Sweep())
}

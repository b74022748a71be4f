package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grixate/missioncontrol/internal/apperr"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := HashPassword("very-secure-password")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$"), hash)
	assert.True(t, VerifyPassword("very-secure-password", hash))
	assert.True(t, VerifyPassword("  very-secure-password\n", hash))
	assert.False(t, VerifyPassword("wrong-password", hash))
}

func TestHashRejectsShortPassword(t *testing.T) {
	_, err := HashPassword("short")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$",
	} {
		assert.False(t, VerifyPassword("anything", encoded), encoded)
	}
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestSessionsIdleExpiry(t *testing.T) {
	c := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewSessions(time.Hour, 24*time.Hour, c.Now)
	rec, err := s.Create()
	require.NoError(t, err)

	c.now = c.now.Add(50 * time.Minute)
	_, ok := s.Touch(rec.ID)
	require.True(t, ok)

	c.now = c.now.Add(50 * time.Minute)
	_, ok = s.Touch(rec.ID)
	assert.True(t, ok, "touch extends the idle deadline")

	c.now = c.now.Add(61 * time.Minute)
	_, ok = s.Touch(rec.ID)
	assert.False(t, ok)
}

func TestSessionsAbsoluteExpiry(t *testing.T) {
	c := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewSessions(time.Hour, 2*time.Hour, c.Now)
	rec, err := s.Create()
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		c.now = c.now.Add(30 * time.Minute)
		_, ok := s.Touch(rec.ID)
		require.True(t, ok)
	}
	assert.Equal(t, rec.CreatedAt.Add(2*time.Hour), s.ExpiresAt(Session{CreatedAt: rec.CreatedAt, LastSeen: c.now}))
	c.now = c.now.Add(time.Minute)
	_, ok := s.Touch(rec.ID)
	assert.False(t, ok)
}

func TestSessionsRevokeAndSweep(t *testing.T) {
	c := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewSessions(time.Hour, 0, c.Now)
	a, err := s.Create()
	require.NoError(t, err)
	b, err := s.Create()
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	s.Revoke(a.ID)
	_, ok := s.Touch(a.ID)
	assert.False(t, ok)

	c.now = c.now.Add(2 * time.Hour)
	assert.Equal(t, 1, s.Sweep())
	_, ok = s.Touch("")
	assert.False(t, ok)
}

package auth

import (
	"sync"
	"time"
)

const (
	DefaultIdleTTL = 24 * time.Hour
	DefaultMaxTTL  = 7 * 24 * time.Hour

	tokenBytes = 24
)

type Session struct {
	ID        string
	CreatedAt time.Time
	LastSeen  time.Time
}

// Sessions is an in-memory session table. A session expires after IdleTTL
// without use or MaxTTL after creation, whichever comes first.
type Sessions struct {
	idleTTL time.Duration
	maxTTL  time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]Session
}

func NewSessions(idleTTL, maxTTL time.Duration, now func() time.Time) *Sessions {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if maxTTL <= 0 {
		maxTTL = DefaultMaxTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Sessions{
		idleTTL:  idleTTL,
		maxTTL:   maxTTL,
		now:      now,
		sessions: map[string]Session{},
	}
}

func (s *Sessions) IdleTTL() time.Duration { return s.idleTTL }
func (s *Sessions) MaxTTL() time.Duration  { return s.maxTTL }

func (s *Sessions) Create() (Session, error) {
	token, err := RandomToken(tokenBytes)
	if err != nil {
		return Session{}, err
	}
	now := s.now().UTC()
	rec := Session{ID: token, CreatedAt: now, LastSeen: now}
	s.mu.Lock()
	s.sessions[token] = rec
	s.mu.Unlock()
	return rec, nil
}

// Touch validates id and extends its idle deadline.
func (s *Sessions) Touch(id string) (Session, bool) {
	if id == "" {
		return Session{}, false
	}
	now := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	if s.expired(rec, now) {
		delete(s.sessions, id)
		return Session{}, false
	}
	rec.LastSeen = now
	s.sessions[id] = rec
	return rec, true
}

// ExpiresAt is the earlier of the idle and absolute deadlines.
func (s *Sessions) ExpiresAt(rec Session) time.Time {
	idle := rec.LastSeen.Add(s.idleTTL)
	absolute := rec.CreatedAt.Add(s.maxTTL)
	if absolute.Before(idle) {
		return absolute
	}
	return idle
}

func (s *Sessions) Revoke(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Sessions) Sweep() int {
	now := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rec := range s.sessions {
		if s.expired(rec, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Sessions) expired(rec Session, now time.Time) bool {
	return now.Sub(rec.LastSeen) > s.idleTTL || now.Sub(rec.CreatedAt) > s.maxTTL
}

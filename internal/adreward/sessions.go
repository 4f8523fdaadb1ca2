package adreward

import "sync"

// Sessions tracks the in-flight watch session per identity. Sessions live in
// process memory only: a restart drops all progress, which is acceptable for
// a UI pacing loop whose real control is the daily grant ceiling.
type Sessions struct {
	mu     sync.Mutex
	active map[int64]*Session
}

func NewSessions() *Sessions {
	return &Sessions{active: make(map[int64]*Session)}
}

// Acquire returns the identity's current session, starting one with the given
// target if none is in flight. The target is fixed at session start; a
// settings change applies from the next session on.
func (s *Sessions) Acquire(identityID int64, target int) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.active[identityID]; ok {
		return sess
	}
	sess := NewSession(identityID, target)
	s.active[identityID] = sess
	return sess
}

// Peek returns the in-flight session without starting one.
func (s *Sessions) Peek(identityID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.active[identityID]
	return sess, ok
}

// Drop discards the identity's session, e.g. after its grant was consumed.
func (s *Sessions) Drop(identityID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, identityID)
}

package adreward

import (
	"sync"
	"time"
)

// SessionState tracks one in-memory reward session.
type SessionState string

const (
	StateIdle     SessionState = "IDLE"
	StateWatching SessionState = "WATCHING"
	StateCooldown SessionState = "COOLING"
	StateReady    SessionState = "READY" // target reached, grant pending
)

// CooldownInterval paces consecutive ad plays within one session.
// UI pacing only, not a security control.
const CooldownInterval = 10 * time.Second

// Session is the client-local watch loop state machine:
// Idle -> Watching -> Cooldown -> ... -> Ready. Progress lives only in
// process memory; abandoning the session drops it silently.
type Session struct {
	mu            sync.Mutex
	identityID    int64
	target        int
	watched       int
	state         SessionState
	cooldownUntil time.Time
	now           func() time.Time
}

func NewSession(identityID int64, target int) *Session {
	if target <= 0 {
		target = 1
	}
	return &Session{
		identityID: identityID,
		target:     target,
		state:      StateIdle,
		now:        time.Now,
	}
}

// BeginWatch transitions Idle -> Watching. Returns false while cooling down
// or once the target has been reached.
func (s *Session) BeginWatch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateReady {
		return false
	}
	if s.state == StateCooldown && s.now().Before(s.cooldownUntil) {
		return false
	}
	s.state = StateWatching
	return true
}

// RecordWatch counts one finished ad play and enters the cooldown window.
// Does not touch the server; only the final grant does.
func (s *Session) RecordWatch() (watched int, ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateWatching {
		return s.watched, s.state == StateReady
	}
	s.watched++
	if s.watched >= s.target {
		s.state = StateReady
		return s.watched, true
	}
	s.state = StateCooldown
	s.cooldownUntil = s.now().Add(CooldownInterval)
	return s.watched, false
}

// Snapshot returns the current progress for the UI.
func (s *Session) Snapshot() (state SessionState, watched, target int, cooldownLeft time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	left := time.Duration(0)
	if s.state == StateCooldown {
		if until := s.cooldownUntil.Sub(s.now()); until > 0 {
			left = until
		} else {
			s.state = StateIdle
		}
	}
	return s.state, s.watched, s.target, left
}

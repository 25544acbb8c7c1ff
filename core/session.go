package core

import (
	"sync"
	"time"
)

// SessionState is a snapshot of the player's sign-in status.
type SessionState struct {
	Authenticated bool      `json:"authenticated"`
	PlayerID      UserID    `json:"player_id,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
}

// Session holds the sign-in status shared between the caller and remote
// completions. It is passed by reference; all access goes through its lock.
type Session struct {
	mu    sync.RWMutex
	state SessionState
}

func NewSession() *Session { return &Session{} }

// Snapshot returns the current state.
func (s *Session) Snapshot() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Authenticated reports whether the last sign-in check succeeded.
func (s *Session) Authenticated() bool {
	return s.Snapshot().Authenticated
}

// Record stores the outcome of a sign-in check.
func (s *Session) Record(authenticated bool, player UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SessionState{Authenticated: authenticated, PlayerID: player, CheckedAt: time.Now().UTC()}
}

// Reset forgets the sign-in status.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SessionState{}
}

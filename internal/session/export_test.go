package session

import "time"

// Backdate rewinds a session's activity clock for expiry tests.
func (s *Session) Backdate(d time.Duration) {
	s.touch(time.Now().Add(-d))
}

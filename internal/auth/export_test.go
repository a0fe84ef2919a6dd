package auth

import "time"

// SetClock overrides the token clock for tests.
func (m *TokenManager) SetClock(now func() time.Time) {
	m.now = now
}

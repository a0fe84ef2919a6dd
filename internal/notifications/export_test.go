package notifications

import "time"

// SetClock overrides the clock used to stamp new notifications.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

package storage

import "time"

func (s *SessionStore) SetClock(now func() time.Time) { s.now = now }

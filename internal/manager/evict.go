package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// collectExpiredLocked removes expired, idle sessions from the map and
// returns them with their mutex held. Busy sessions are left for a later
// pass. Callers must hold m.mu and pass the result to release after
// unlocking it.
func (m *Manager) collectExpiredLocked(now time.Time) []*Session {
	var victims []*Session
	for id, s := range m.sessions {
		if now.Before(s.expiresAt) {
			continue
		}
		if !s.mu.TryLock() {
			continue
		}
		delete(m.sessions, id)
		victims = append(victims, s)
	}
	if len(victims) > 0 {
		sessionsLive.Set(float64(len(m.sessions)))
	}
	return victims
}

// release closes the engine handles of expired sessions collected by
// collectExpiredLocked and frees their slots.
func (m *Manager) release(victims []*Session) {
	for _, s := range victims {
		m.closeHandleLocked(s)
		s.mu.Unlock()
		m.slots.Release(1)
		m.expired.Add(1)
		sessionsExpired.Inc()
		log.Info().Str("session_id", s.ID).Str("model", s.ModelKey).Msg("session_expire")
		m.publish(Event{Name: EventSessionExpire, SessionID: s.ID, Model: s.ModelKey})
	}
}

// closeHandleLocked releases the engine handle once. s.mu must be held.
func (m *Manager) closeHandleLocked(s *Session) {
	if s.closed {
		return
	}
	s.closed = true
	if err := s.model.Engine.CloseSession(s.handle); err != nil {
		log.Warn().Err(err).Str("session_id", s.ID).Msg("engine close session failed")
	}
	s.handle = nil
}

// Sweep removes sessions that expired at or before now and are not inside a
// generate call. It returns the number of sessions removed.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	victims := m.collectExpiredLocked(now)
	m.mu.Unlock()
	m.release(victims)
	return len(victims)
}

// Run sweeps expired sessions every sweep interval until ctx is done, then
// closes every remaining session.
func (m *Manager) Run(ctx context.Context) error {
	t := time.NewTicker(m.sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return nil
		case <-t.C:
			if n := m.Sweep(m.now()); n > 0 {
				log.Debug().Int("expired", n).Msg("sweep")
			}
		}
	}
}

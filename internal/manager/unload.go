package manager

import (
	"github.com/rs/zerolog/log"
)

// Close removes a session and releases its engine handle. It waits for an
// in-flight generate call on the session to finish. A session that expired
// but was not yet swept is released too and reported as not found.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return sessionNotFoundError{id: id}
	}
	expired := !m.now().Before(s.expiresAt)
	delete(m.sessions, id)
	live := len(m.sessions)
	m.mu.Unlock()
	sessionsLive.Set(float64(live))

	s.mu.Lock()
	m.closeHandleLocked(s)
	s.mu.Unlock()
	m.slots.Release(1)

	if expired {
		m.expired.Add(1)
		sessionsExpired.Inc()
		m.publish(Event{Name: EventSessionExpire, SessionID: id, Model: s.ModelKey})
		return sessionNotFoundError{id: id}
	}
	m.closed.Add(1)
	sessionsClosed.Inc()
	log.Info().Str("session_id", id).Str("model", s.ModelKey).Msg("session_close")
	m.publish(Event{Name: EventSessionClose, SessionID: id, Model: s.ModelKey})
	return nil
}

// CloseAll releases every session; used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		_ = m.Close(id)
	}
}

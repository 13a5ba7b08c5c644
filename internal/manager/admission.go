package manager

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Open admits a new session for modelName (key, alias, or "" for the default
// model) with room for maxLength tokens and returns its id.
//
// The capacity slot is reserved under mu together with purging expired
// sessions; the engine handle is acquired afterwards without holding mu.
func (m *Manager) Open(ctx context.Context, modelName string, maxLength int) (string, error) {
	model, ok := m.models.Resolve(modelName)
	if !ok {
		return "", modelNotFoundError{id: modelName}
	}
	if maxLength <= 0 {
		return "", ErrValidation("max_length must be a positive integer, got %d", maxLength)
	}
	if model.MaxSessionLength > 0 && maxLength > model.MaxSessionLength {
		return "", ErrValidation("max_length %d exceeds the limit of %d for model %s", maxLength, model.MaxSessionLength, model.Key)
	}

	m.mu.Lock()
	victims := m.collectExpiredLocked(m.now())
	admitted := m.slots.TryAcquire(1)
	m.mu.Unlock()
	m.release(victims)
	if !admitted {
		m.rejected.Add(1)
		sessionsRejected.Inc()
		log.Warn().Str("model", model.Key).Int("max_sessions", m.maxSessions).Msg("session rejected: capacity")
		m.publish(Event{Name: EventSessionReject, Model: model.Key, Fields: map[string]any{"max_sessions": m.maxSessions}})
		return "", capacityError{max: m.maxSessions}
	}

	h, err := model.Engine.OpenSession(ctx, model.Key, maxLength)
	if err != nil {
		m.slots.Release(1)
		return "", engineError{op: "open session", err: err}
	}

	now := m.now()
	s := &Session{
		ModelKey:  model.Key,
		MaxLength: maxLength,
		CreatedAt: now,
		model:     model,
		handle:    h,
		expiresAt: now.Add(m.ttl),
	}
	m.mu.Lock()
	for {
		s.ID = m.newID()
		if _, dup := m.sessions[s.ID]; !dup {
			break
		}
	}
	m.sessions[s.ID] = s
	live := len(m.sessions)
	m.mu.Unlock()

	m.opened.Add(1)
	sessionsOpened.WithLabelValues(model.Key).Inc()
	sessionsLive.Set(float64(live))
	log.Info().Str("session_id", s.ID).Str("model", model.Key).Int("max_length", maxLength).Msg("session_open")
	m.publish(Event{Name: EventSessionOpen, SessionID: s.ID, Model: model.Key, Fields: map[string]any{"max_length": maxLength}})
	return s.ID, nil
}

package manager

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"inferd/pkg/types"
)

// Manager owns every live Session. mu guards the session map and expiry
// deadlines only; it is never held across an engine call.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	slots    *semaphore.Weighted

	models        Models
	maxSessions   int
	ttl           time.Duration
	sweepInterval time.Duration
	stepTokens    int
	now           func() time.Time
	newID         func() string
	startTime     time.Time

	pubMu     sync.RWMutex
	publisher EventPublisher

	opened   atomic.Uint64
	closed   atomic.Uint64
	expired  atomic.Uint64
	rejected atomic.Uint64
}

// New constructs a Manager with default limits.
func New(models Models) *Manager {
	return NewWithConfig(ManagerConfig{Models: models})
}

// newSessionID returns 32 lowercase hex characters.
func newSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// SetEventPublisher swaps the lifecycle event sink.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.pubMu.Lock()
	m.publisher = p
	m.pubMu.Unlock()
}

func (m *Manager) publish(e Event) {
	m.pubMu.RLock()
	p := m.publisher
	m.pubMu.RUnlock()
	p.Publish(e)
}

// Ready reports whether at least one model can be served.
func (m *Manager) Ready() bool {
	return m.models != nil && len(m.models.Keys()) > 0
}

// ListModels returns metadata of the models exposed through the API.
func (m *Manager) ListModels() []types.ModelInfo {
	if m.models == nil {
		return nil
	}
	return m.models.Public()
}

// Touch refreshes a live session's expiry.
func (m *Manager) Touch(id string) error {
	_, err := m.GetAndTouch(id)
	return err
}

// SessionTTL returns the idle timeout applied to sessions.
func (m *Manager) SessionTTL() time.Duration { return m.ttl }

// GetAndTouch returns a live session and pushes its expiry to now+TTL. The
// new deadline is always later than the previous one. No lock is held on
// return.
func (m *Manager) GetAndTouch(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	s, ok := m.sessions[id]
	if !ok || !now.Before(s.expiresAt) {
		return nil, sessionNotFoundError{id: id}
	}
	m.touchLocked(s, now)
	return s, nil
}

// ExpiresAt returns the expiry deadline of a live session.
func (m *Manager) ExpiresAt(id string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !m.now().Before(s.expiresAt) {
		return time.Time{}, false
	}
	return s.expiresAt, true
}

func (m *Manager) touchLocked(s *Session, now time.Time) {
	next := now.Add(m.ttl)
	if !next.After(s.expiresAt) {
		next = s.expiresAt.Add(time.Nanosecond)
	}
	s.expiresAt = next
}

func (m *Manager) touch(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[s.ID]; ok && cur == s {
		m.touchLocked(s, m.now())
	}
}

// Len returns the number of registered sessions, expired ones not yet swept
// included.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

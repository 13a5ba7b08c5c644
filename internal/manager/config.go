package manager

import (
	"time"

	"golang.org/x/sync/semaphore"

	"inferd/internal/registry"
	"inferd/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxSessions   = 50
	defaultSessionTTL    = 5 * time.Minute
	defaultSweepInterval = 30 * time.Second
	defaultStepTokens    = 1
)

// WholeBudget as ManagerConfig.StepTokens spends a request's whole token
// budget in one engine call. Stop sequences are then only checked once.
const WholeBudget = -1

// Models resolves model names to servable models.
type Models interface {
	Resolve(name string) (*registry.Model, bool)
	Keys() []string
	Public() []types.ModelInfo
}

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Models        Models
	MaxSessions   int
	SessionTTL    time.Duration
	SweepInterval time.Duration
	// StepTokens caps tokens per engine call. Zero selects one token per
	// step; a negative value (WholeBudget) spends the whole budget at once.
	StepTokens int
	Publisher  EventPublisher
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
	// NewID overrides session id generation, for tests.
	NewID func() string
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		models:        cfg.Models,
		sessions:      make(map[string]*Session),
		maxSessions:   cfg.MaxSessions,
		ttl:           cfg.SessionTTL,
		sweepInterval: cfg.SweepInterval,
		stepTokens:    cfg.StepTokens,
		publisher:     cfg.Publisher,
		now:           cfg.Clock,
		newID:         cfg.NewID,
	}
	if m.maxSessions <= 0 {
		m.maxSessions = defaultMaxSessions
	}
	if m.ttl <= 0 {
		m.ttl = defaultSessionTTL
	}
	if m.sweepInterval <= 0 {
		m.sweepInterval = defaultSweepInterval
	}
	switch {
	case m.stepTokens == 0:
		m.stepTokens = defaultStepTokens
	case m.stepTokens < 0:
		m.stepTokens = 0
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = newSessionID
	}
	m.slots = semaphore.NewWeighted(int64(m.maxSessions))
	m.startTime = m.now()
	return m
}

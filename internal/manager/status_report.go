package manager

import (
	"sort"

	"inferd/pkg/types"
)

// Snapshot is a read-only projection of one session.
type Snapshot struct {
	ID        string
	ModelKey  string
	MaxLength int
	Busy      bool
	Expired   bool
}

// Snapshots lists registered sessions sorted by id.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	out := make([]Snapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		busy := !s.mu.TryLock()
		if !busy {
			s.mu.Unlock()
		}
		out = append(out, Snapshot{
			ID:        s.ID,
			ModelKey:  s.ModelKey,
			MaxLength: s.MaxLength,
			Busy:      busy,
			Expired:   !now.Before(s.expiresAt),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Status builds a detailed status response for /status. Sessions past their
// deadline but not yet swept are not counted.
func (m *Manager) Status() types.StatusResponse {
	snaps := m.Snapshots()
	now := m.now()
	resp := types.StatusResponse{
		MaxSessions:       m.maxSessions,
		SessionTTLSeconds: int64(m.ttl.Seconds()),
		OpenedTotal:       m.opened.Load(),
		ClosedTotal:       m.closed.Load(),
		ExpiredTotal:      m.expired.Load(),
		RejectedTotal:     m.rejected.Load(),
		UptimeSeconds:     int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix:    now.Unix(),
	}
	perModel := map[string]int{}
	if m.models != nil {
		for _, k := range m.models.Keys() {
			perModel[k] = 0
		}
	}
	for _, s := range snaps {
		if s.Expired {
			continue
		}
		resp.LiveSessions++
		if s.Busy {
			resp.BusySessions++
		}
		perModel[s.ModelKey]++
	}
	resp.Models = make([]types.ModelStatus, 0, len(perModel))
	for k, n := range perModel {
		resp.Models = append(resp.Models, types.ModelStatus{Key: k, LiveSessions: n})
	}
	sort.Slice(resp.Models, func(i, j int) bool { return resp.Models[i].Key < resp.Models[j].Key })
	return resp
}

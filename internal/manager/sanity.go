package manager

import (
	"context"
	"sort"
	"sync"

	"inferd/internal/registry"
)

// Pinger is implemented by engines that can check their backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SanityReport describes backend reachability per model.
type SanityReport struct {
	OK     bool          `json:"ok"`
	Models []ModelSanity `json:"models"`
}

// ModelSanity is the reachability of one model's engine.
type ModelSanity struct {
	Key       string `json:"key"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// SanityCheck pings every model engine that supports it. Engines without a
// remote backend are reported reachable. It does not mutate state.
func (m *Manager) SanityCheck(ctx context.Context) SanityReport {
	r := SanityReport{OK: m.Ready()}
	if m.models == nil {
		return r
	}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, key := range m.models.Keys() {
		model, ok := m.lookup(key)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(model *registry.Model) {
			defer wg.Done()
			ms := ModelSanity{Key: model.Key, Reachable: true}
			if p, ok := model.Engine.(Pinger); ok {
				if err := p.Ping(ctx); err != nil {
					ms.Reachable = false
					ms.Error = err.Error()
				}
			}
			mu.Lock()
			r.Models = append(r.Models, ms)
			if !ms.Reachable {
				r.OK = false
			}
			mu.Unlock()
		}(model)
	}
	wg.Wait()
	sort.Slice(r.Models, func(i, j int) bool { return r.Models[i].Key < r.Models[j].Key })
	return r
}

// lookup finds a model by key, public or not.
func (m *Manager) lookup(key string) (*registry.Model, bool) {
	if l, ok := m.models.(interface {
		Lookup(string) (*registry.Model, bool)
	}); ok {
		return l.Lookup(key)
	}
	return m.models.Resolve(key)
}

// Package registry holds the table of servable models: the engine and
// tokenizer behind each model key, its aliases, and the metadata published to
// clients.
package registry

import (
	"fmt"
	"sort"

	"inferd/internal/engine"
	"inferd/pkg/types"
)

// Model is one servable model.
type Model struct {
	Key       string
	Aliases   []string
	Engine    engine.Engine
	Tokenizer engine.Tokenizer
	// Sentinel is the text used by the leading-space decode workaround.
	Sentinel string
	// PublicAPI false hides the model from listings and from the API.
	PublicAPI bool
	// SuppressPlainStopMatch disables plain stop_sequence matching.
	SuppressPlainStopMatch bool
	// MaxSessionLength bounds max_length at open; 0 means unbounded.
	MaxSessionLength int

	Info types.ModelInfo
}

// Registry resolves model keys and aliases. It is immutable after New.
type Registry struct {
	byName       map[string]*Model
	models       []*Model
	defaultModel string
}

// New validates models and indexes them by key and alias. defaultModel may be
// empty, in which case the first model is the default.
func New(models []Model, defaultModel string) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Model)}
	for i := range models {
		m := models[i]
		if m.Key == "" {
			return nil, fmt.Errorf("model without key")
		}
		if m.Engine == nil || m.Tokenizer == nil {
			return nil, fmt.Errorf("model %q: engine and tokenizer are required", m.Key)
		}
		m.Info.Key = m.Key
		m.Info.Aliases = m.Aliases
		m.Info.MaxSessionLength = m.MaxSessionLength
		if m.Info.Name == "" {
			m.Info.Name = m.Key
		}
		mp := &m
		for _, name := range append([]string{m.Key}, m.Aliases...) {
			if prev, ok := r.byName[name]; ok {
				return nil, fmt.Errorf("model name %q used by both %q and %q", name, prev.Key, m.Key)
			}
			r.byName[name] = mp
		}
		r.models = append(r.models, mp)
	}
	if defaultModel == "" && len(r.models) > 0 {
		defaultModel = r.models[0].Key
	}
	if defaultModel != "" {
		m, ok := r.byName[defaultModel]
		if !ok {
			return nil, fmt.Errorf("default model %q not registered", defaultModel)
		}
		defaultModel = m.Key
	}
	r.defaultModel = defaultModel
	return r, nil
}

// Resolve looks up a public model by key or alias; an empty name selects the
// default model.
func (r *Registry) Resolve(name string) (*Model, bool) {
	if name == "" {
		name = r.defaultModel
	}
	m, ok := r.byName[name]
	if !ok || !m.PublicAPI {
		return nil, false
	}
	return m, true
}

// Lookup finds a model by key or alias regardless of PublicAPI.
func (r *Registry) Lookup(name string) (*Model, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Default returns the default model key.
func (r *Registry) Default() string { return r.defaultModel }

// Len returns the number of registered models.
func (r *Registry) Len() int { return len(r.models) }

// Public lists metadata for public models sorted by key.
func (r *Registry) Public() []types.ModelInfo {
	out := make([]types.ModelInfo, 0, len(r.models))
	for _, m := range r.models {
		if m.PublicAPI {
			out = append(out, m.Info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Keys returns every model key in registration order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.models))
	for i, m := range r.models {
		out[i] = m.Key
	}
	return out
}

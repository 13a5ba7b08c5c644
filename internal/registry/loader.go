package registry

import (
	"fmt"

	"inferd/internal/config"
	"inferd/internal/decode"
	"inferd/internal/engine"
	"inferd/internal/engine/echo"
	"inferd/internal/engine/llamaserver"
	"inferd/internal/tokenizer"
	"inferd/pkg/types"
)

// FromConfig builds a Registry from model entries, constructing one engine
// per model.
func FromConfig(entries []config.ModelConfig, defaultModel string) (*Registry, error) {
	models := make([]Model, 0, len(entries))
	for _, e := range entries {
		eng, tok, err := buildBackend(e)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", e.Key, err)
		}
		sentinel := e.Sentinel
		if sentinel == "" {
			sentinel = decode.DefaultSentinel
		}
		name := e.Name
		if name == "" {
			name = e.Key
		}
		models = append(models, Model{
			Key:                    e.Key,
			Aliases:                e.Aliases,
			Engine:                 eng,
			Tokenizer:              tok,
			Sentinel:               sentinel,
			PublicAPI:              e.IsPublic(),
			SuppressPlainStopMatch: e.SuppressPlainStopMatch,
			MaxSessionLength:       e.MaxSessionLength,
			Info: types.ModelInfo{
				Name:               name,
				ModelCard:          e.ModelCard,
				License:            e.License,
				StopToken:          e.StopToken,
				SepToken:           e.SepToken,
				ExtraStopSequences: e.ExtraStopSequences,
			},
		})
	}
	return New(models, defaultModel)
}

func buildBackend(e config.ModelConfig) (engine.Engine, engine.Tokenizer, error) {
	switch e.Backend {
	case config.BackendLlamaServer, "":
		if e.URL == "" {
			return nil, nil, fmt.Errorf("llama-server backend requires url")
		}
		c := llamaserver.New(llamaserver.Options{
			BaseURL:        e.URL,
			APIKey:         e.APIKey,
			RequestTimeout: e.RequestTimeout.Duration,
		})
		return c, c, nil
	case config.BackendEcho:
		tok, err := tokenizer.New(e.Tokenizer)
		if err != nil {
			return nil, nil, err
		}
		return echo.New(e.StepDelay.Duration), tok, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", e.Backend)
	}
}

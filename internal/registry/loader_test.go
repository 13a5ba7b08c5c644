package registry

import (
	"testing"

	"inferd/internal/config"
	"inferd/internal/engine/echo"
	"inferd/internal/engine/llamaserver"
	"inferd/internal/tokenizer"
)

func boolPtr(b bool) *bool { return &b }

func TestFromConfigBuildsBackends(t *testing.T) {
	r, err := FromConfig([]config.ModelConfig{
		{Key: "bigscience/bloom", Aliases: []string{"bloom"}, Backend: config.BackendLlamaServer, URL: "http://127.0.0.1:1", StopToken: "</s>"},
		{Key: "echo", Backend: config.BackendEcho, PublicAPI: boolPtr(false), SuppressPlainStopMatch: true},
	}, "bloom")
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	if r.Default() != "bigscience/bloom" {
		t.Fatalf("default should resolve alias, got %q", r.Default())
	}
	m, ok := r.Resolve("bloom")
	if !ok || m.Key != "bigscience/bloom" {
		t.Fatalf("resolve alias: %+v %v", m, ok)
	}
	if _, ok := m.Engine.(*llamaserver.Client); !ok {
		t.Fatalf("expected llama-server engine, got %T", m.Engine)
	}
	if m.Sentinel != "^" || m.Info.StopToken != "</s>" || m.Info.Name != "bigscience/bloom" {
		t.Fatalf("unexpected model: %+v", m)
	}

	if _, ok := r.Resolve("echo"); ok {
		t.Fatalf("private model must not resolve")
	}
	e, ok := r.Lookup("echo")
	if !ok {
		t.Fatalf("lookup private model")
	}
	if _, ok := e.Engine.(*echo.Engine); !ok {
		t.Fatalf("expected echo engine, got %T", e.Engine)
	}
	if _, ok := e.Tokenizer.(tokenizer.Bytes); !ok {
		t.Fatalf("expected byte tokenizer, got %T", e.Tokenizer)
	}
	if !e.SuppressPlainStopMatch {
		t.Fatalf("capability flag lost")
	}
}

func TestPublicListing(t *testing.T) {
	r, err := FromConfig([]config.ModelConfig{
		{Key: "z", Backend: config.BackendEcho},
		{Key: "a", Backend: config.BackendEcho, ModelCard: "https://example.com/a", MaxSessionLength: 128},
		{Key: "hidden", Backend: config.BackendEcho, PublicAPI: boolPtr(false)},
	}, "")
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	pub := r.Public()
	if len(pub) != 2 || pub[0].Key != "a" || pub[1].Key != "z" {
		t.Fatalf("unexpected listing: %+v", pub)
	}
	if pub[0].ModelCard != "https://example.com/a" || pub[0].MaxSessionLength != 128 {
		t.Fatalf("metadata lost: %+v", pub[0])
	}
	if r.Default() != "z" || r.Len() != 3 {
		t.Fatalf("default=%q len=%d", r.Default(), r.Len())
	}
	if m, ok := r.Resolve(""); !ok || m.Key != "z" {
		t.Fatalf("empty name should select default")
	}
}

func TestFromConfigErrors(t *testing.T) {
	cases := map[string][]config.ModelConfig{
		"dup":       {{Key: "a", Backend: config.BackendEcho}, {Key: "b", Aliases: []string{"a"}, Backend: config.BackendEcho}},
		"no url":    {{Key: "a", Backend: config.BackendLlamaServer}},
		"backend":   {{Key: "a", Backend: "cuda"}},
		"tokenizer": {{Key: "a", Backend: config.BackendEcho, Tokenizer: "sentencepiece"}},
		"empty key": {{Backend: config.BackendEcho}},
	}
	for name, entries := range cases {
		if _, err := FromConfig(entries, ""); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := FromConfig([]config.ModelConfig{{Key: "a", Backend: config.BackendEcho}}, "missing"); err == nil {
		t.Fatalf("expected unknown default error")
	}
}

package manager

import (
	"sync"
	"testing"
	"time"

	"inferd/internal/engine"
	"inferd/internal/engine/enginetest"
	"inferd/internal/registry"
	"inferd/internal/tokenizer"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// byteStream returns the byte tokenizer ids of s.
func byteStream(s string) []int {
	ids, _ := tokenizer.Bytes{}.Encode(s)
	return ids
}

type testModelOpt func(*registry.Model)

func newTestRegistry(t *testing.T, eng engine.Engine, opts ...testModelOpt) *registry.Registry {
	t.Helper()
	m := registry.Model{
		Key:       "m",
		Aliases:   []string{"alias"},
		Engine:    eng,
		Tokenizer: tokenizer.Bytes{},
		Sentinel:  "^",
		PublicAPI: true,
	}
	for _, o := range opts {
		o(&m)
	}
	r, err := registry.New([]registry.Model{m}, "")
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r
}

// newTestManager wires a Manager to eng with the byte tokenizer and a fake
// clock. cfg.Models and cfg.Clock are filled in.
func newTestManager(t *testing.T, eng *enginetest.Engine, cfg ManagerConfig, opts ...testModelOpt) (*Manager, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	cfg.Models = newTestRegistry(t, eng, opts...)
	cfg.Clock = clk.Now
	return NewWithConfig(cfg), clk
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

// collect runs Generate and returns the emitted chunks.
func collect(t *testing.T, m *Manager, id string, req GenerateRequest) ([]Chunk, error) {
	t.Helper()
	var chunks []Chunk
	err := m.Generate(testCtx(t), id, req, func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	return chunks, err
}

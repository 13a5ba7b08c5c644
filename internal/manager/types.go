package manager

import (
	"sync"
	"time"

	"inferd/internal/engine"
	"inferd/internal/registry"
)

// Session is one client's inference session: an engine handle plus the state
// needed to continue generating from where the previous request stopped.
type Session struct {
	ID        string
	ModelKey  string
	MaxLength int
	CreatedAt time.Time

	model  *registry.Model
	handle engine.Handle

	// expiresAt is guarded by Manager.mu.
	expiresAt time.Time

	// mu serializes generate calls; the fields below are guarded by it.
	mu           sync.Mutex
	position     int
	continuation *int
	closed       bool
}

// Chunk is one piece of streamed output.
type Chunk struct {
	Outputs    string
	Stop       bool
	TokenCount int
}

// GenerateRequest carries the per-request knobs of a generate call.
type GenerateRequest struct {
	// Inputs is fed before generating; nil or empty continues the context.
	Inputs             *string
	Params             engine.SamplingParams
	MaxNewTokens       *int
	MaxLength          *int
	StopSequence       *string
	ExtraStopSequences []string
	// SingleStep spends the whole budget in one engine call.
	SingleStep bool
}

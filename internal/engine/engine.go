// Package engine declares the narrow surface through which inferd talks to a
// model runtime and its tokenizer. Concrete runtimes live in sub-packages
// (llamaserver, echo); the session manager only ever sees these interfaces.
package engine

import "context"

// Handle is an opaque reference to per-session model state owned by an Engine.
// A Handle is never shared between sessions.
type Handle interface{}

// Engine abstracts the runtime that performs the forward pass.
type Engine interface {
	// OpenSession reserves model state for up to maxLength tokens of context.
	OpenSession(ctx context.Context, modelKey string, maxLength int) (Handle, error)
	// CloseSession releases the state behind h. It is called exactly once per handle.
	CloseSession(h Handle) error
	// Generate feeds req.Inputs after the committed context of h and samples up
	// to req.MaxNewTokens new tokens. It blocks until the step completes.
	//
	// The last sampled token of a step is held by the engine as pending and is
	// fed first on the next step. A step whose Inputs begin with a caller
	// supplied token after Replace is set uses that token instead of the
	// pending one.
	Generate(ctx context.Context, h Handle, req Request) ([]int, error)
}

// Tokenizer converts between text and token ids for one model.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)
}

// SamplingParams captures the per-request sampling knobs passed to the engine.
type SamplingParams struct {
	DoSample    bool
	Temperature float32
	TopK        int
	TopP        float32
}

// Request is a single generate step against a session handle.
type Request struct {
	Inputs       []int
	Params       SamplingParams
	MaxNewTokens int
	// Replace makes Inputs[0] stand in for the engine's pending token.
	Replace bool
}

// Package echo is a loopback engine: each session repeats the most recent
// inputs it was given, token by token. It needs no model files and backs the
// "echo" model backend used for smoke tests and local development.
package echo

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"inferd/internal/engine"
)

// Engine implements engine.Engine without a model.
type Engine struct {
	// StepDelay is slept per generated token to imitate a real forward pass.
	StepDelay time.Duration

	open atomic.Int64
}

var _ engine.Engine = (*Engine)(nil)

type session struct {
	maxLength int
	length    int
	source    []int
	cursor    int
	pending   bool
	closed    bool
}

// New returns an echo engine.
func New(stepDelay time.Duration) *Engine { return &Engine{StepDelay: stepDelay} }

// Open reports the number of sessions currently open.
func (e *Engine) Open() int { return int(e.open.Load()) }

func (e *Engine) OpenSession(ctx context.Context, modelKey string, maxLength int) (engine.Handle, error) {
	if maxLength <= 0 {
		return nil, errors.New("echo: max_length must be positive")
	}
	e.open.Add(1)
	return &session{maxLength: maxLength}, nil
}

func (e *Engine) CloseSession(h engine.Handle) error {
	s, ok := h.(*session)
	if !ok {
		return errors.New("echo: foreign handle")
	}
	if s.closed {
		return errors.New("echo: session already closed")
	}
	s.closed = true
	e.open.Add(-1)
	return nil
}

func (e *Engine) Generate(ctx context.Context, h engine.Handle, req engine.Request) ([]int, error) {
	s, ok := h.(*session)
	if !ok {
		return nil, errors.New("echo: foreign handle")
	}
	if s.closed {
		return nil, errors.New("echo: session closed")
	}
	inputs := req.Inputs
	length := s.length + len(inputs)
	if req.Replace && len(inputs) > 0 {
		// The forced token takes the held token's slot in the context.
		inputs = inputs[1:]
	} else if s.pending {
		length++
	}
	if length > s.maxLength {
		return nil, errors.New("echo: session context is full")
	}
	s.length, s.pending = length, false
	if len(inputs) > 0 {
		s.source = append(s.source[:0:0], inputs...)
		s.cursor = 0
	}
	if len(s.source) == 0 {
		return nil, nil
	}

	n := req.MaxNewTokens
	if room := s.maxLength - s.length; n > room {
		n = room
	}
	out := make([]int, 0, max(n, 0))
	for i := 0; i < n; i++ {
		if e.StepDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.StepDelay):
			}
		}
		out = append(out, s.source[s.cursor%len(s.source)])
		s.cursor++
	}
	if len(out) > 0 {
		// All but the last token are committed; the last one is held.
		s.length += len(out) - 1
		s.pending = true
	}
	return out, nil
}

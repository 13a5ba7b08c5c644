// Package enginetest provides instrumented in-memory Engine and Tokenizer
// implementations for tests.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"inferd/internal/engine"
)

// Vocab is a tokenizer over an explicit list of pieces; a piece's id is its
// index. Encode is greedy longest-match. Pieces may hold partial UTF-8.
type Vocab struct {
	pieces []string
}

func NewVocab(pieces ...string) *Vocab { return &Vocab{pieces: pieces} }

// ID returns the id of piece p or panics; test helper.
func (v *Vocab) ID(p string) int {
	for i, s := range v.pieces {
		if s == p {
			return i
		}
	}
	panic(fmt.Sprintf("enginetest: piece %q not in vocab", p))
}

// IDs maps each piece to its id.
func (v *Vocab) IDs(pieces ...string) []int {
	out := make([]int, len(pieces))
	for i, p := range pieces {
		out[i] = v.ID(p)
	}
	return out
}

func (v *Vocab) Encode(text string) ([]int, error) {
	var ids []int
	for len(text) > 0 {
		best, bestLen := -1, 0
		for i, p := range v.pieces {
			if len(p) > bestLen && strings.HasPrefix(text, p) {
				best, bestLen = i, len(p)
			}
		}
		if best < 0 {
			return nil, fmt.Errorf("cannot encode %q", text)
		}
		ids = append(ids, best)
		text = text[bestLen:]
	}
	return ids, nil
}

func (v *Vocab) Decode(ids []int) (string, error) {
	var b strings.Builder
	for _, id := range ids {
		if id < 0 || id >= len(v.pieces) {
			return "", fmt.Errorf("unknown token id %d", id)
		}
		b.WriteString(v.pieces[id])
	}
	return strings.ToValidUTF8(b.String(), "\uFFFD"), nil
}

// Handle is the fake engine's per-session state.
type Handle struct {
	ID        int
	ModelKey  string
	MaxLength int

	cursor   int
	inflight int
	closed   bool
	Fed      [][]int
}

// Engine replays Stream to every session. Each Generate call returns the next
// tokens of Stream, at most MaxNewTokens (and at most PerStep when set). An
// exhausted stream yields no tokens.
type Engine struct {
	Stream  []int
	PerStep int
	Delay   time.Duration
	OpenErr error
	GenErr  error

	mu          sync.Mutex
	nextID      int
	handles     []*Handle
	calls       int
	maxInflight int
	doubleClose int
	requests    []engine.Request
}

var _ engine.Engine = (*Engine)(nil)

func (e *Engine) OpenSession(ctx context.Context, modelKey string, maxLength int) (engine.Handle, error) {
	if e.OpenErr != nil {
		return nil, e.OpenErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	h := &Handle{ID: e.nextID, ModelKey: modelKey, MaxLength: maxLength}
	e.handles = append(e.handles, h)
	return h, nil
}

func (e *Engine) CloseSession(h engine.Handle) error {
	fh, ok := h.(*Handle)
	if !ok {
		return errors.New("enginetest: foreign handle")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if fh.closed {
		e.doubleClose++
		return errors.New("enginetest: handle closed twice")
	}
	fh.closed = true
	return nil
}

func (e *Engine) Generate(ctx context.Context, h engine.Handle, req engine.Request) ([]int, error) {
	fh, ok := h.(*Handle)
	if !ok {
		return nil, errors.New("enginetest: foreign handle")
	}
	e.mu.Lock()
	if fh.closed {
		e.mu.Unlock()
		return nil, errors.New("enginetest: generate on closed handle")
	}
	fh.inflight++
	if fh.inflight > e.maxInflight {
		e.maxInflight = fh.inflight
	}
	e.calls++
	e.requests = append(e.requests, req)
	fh.Fed = append(fh.Fed, append([]int(nil), req.Inputs...))
	e.mu.Unlock()

	if e.Delay > 0 {
		time.Sleep(e.Delay)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	fh.inflight--
	if e.GenErr != nil {
		return nil, e.GenErr
	}
	n := req.MaxNewTokens
	if e.PerStep > 0 && n > e.PerStep {
		n = e.PerStep
	}
	if rest := len(e.Stream) - fh.cursor; n > rest {
		n = rest
	}
	if n < 0 {
		n = 0
	}
	out := append([]int(nil), e.Stream[fh.cursor:fh.cursor+n]...)
	fh.cursor += n
	return out, nil
}

// Calls returns the number of Generate calls.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// MaxInflight returns the highest number of concurrent Generate calls seen on
// any single handle.
func (e *Engine) MaxInflight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxInflight
}

// Requests returns a copy of every Generate request received.
func (e *Engine) Requests() []engine.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.Request(nil), e.requests...)
}

// Opened returns how many handles were opened and how many are closed.
func (e *Engine) Opened() (opened, closed int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range e.handles {
		if h.closed {
			closed++
		}
	}
	return len(e.handles), closed
}

// DoubleCloses counts CloseSession calls on an already closed handle.
func (e *Engine) DoubleCloses() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doubleClose
}

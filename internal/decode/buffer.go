// Package decode turns streams of raw token ids into text that is safe to send
// to a client, and decides when a generation has reached a stop condition.
package decode

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"inferd/internal/engine"
)

// DefaultSentinel is the text whose first token is prepended before decoding so
// that tokenizers which drop a leading space on the first piece keep it.
const DefaultSentinel = "^"

// replacementWindow is how many trailing runes are inspected for U+FFFD.
const replacementWindow = 10

// State of a Buffer after the most recent Push.
type State int

const (
	// Ready means the last Push produced a complete chunk and nothing is pending.
	Ready State = iota
	// Buffering means pending tokens end inside a multi-byte character.
	Buffering
)

func (s State) String() string {
	if s == Buffering {
		return "buffering"
	}
	return "ready"
}

// Chunk is text released by a Buffer together with the number of tokens it covers.
type Chunk struct {
	Text   string
	Tokens int
}

// Buffer accumulates token deltas until they decode without a split character.
type Buffer struct {
	tok      engine.Tokenizer
	sentinel int
	prefix   string
	pending  []int
	state    State
}

// NewBuffer prepares a Buffer for tok using the first token of sentinel as the
// decode prefix. An empty sentinel selects DefaultSentinel.
func NewBuffer(tok engine.Tokenizer, sentinel string) (*Buffer, error) {
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	ids, err := tok.Encode(sentinel)
	if err != nil {
		return nil, fmt.Errorf("encode sentinel: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("sentinel %q encodes to no tokens", sentinel)
	}
	rendered, err := tok.Decode(ids[:1])
	if err != nil {
		return nil, fmt.Errorf("decode sentinel: %w", err)
	}
	return &Buffer{
		tok:      tok,
		sentinel: ids[0],
		prefix:   strings.TrimLeftFunc(rendered, unicode.IsSpace),
	}, nil
}

// State reports whether the buffer is holding an incomplete character.
func (b *Buffer) State() State { return b.state }

// Pending returns the number of tokens not yet released.
func (b *Buffer) Pending() int { return len(b.pending) }

// Push appends delta and tries to release the accumulated run. ok is false
// while the run still ends inside a multi-byte character.
func (b *Buffer) Push(delta []int) (c Chunk, ok bool, err error) {
	b.pending = append(b.pending, delta...)
	if len(b.pending) == 0 {
		b.state = Ready
		return Chunk{}, true, nil
	}
	text, err := b.decode()
	if err != nil {
		return Chunk{}, false, err
	}
	if hasTrailingReplacement(text) {
		b.state = Buffering
		return Chunk{}, false, nil
	}
	return b.release(text), true, nil
}

// Flush releases whatever is pending, even if it ends inside a character.
func (b *Buffer) Flush() (Chunk, error) {
	if len(b.pending) == 0 {
		b.state = Ready
		return Chunk{}, nil
	}
	text, err := b.decode()
	if err != nil {
		return Chunk{}, err
	}
	return b.release(text), nil
}

func (b *Buffer) release(text string) Chunk {
	c := Chunk{Text: text, Tokens: len(b.pending)}
	b.pending = b.pending[:0]
	b.state = Ready
	return c
}

func (b *Buffer) decode() (string, error) {
	ids := make([]int, 0, len(b.pending)+1)
	ids = append(ids, b.sentinel)
	ids = append(ids, b.pending...)
	text, err := b.tok.Decode(ids)
	if err != nil {
		return "", err
	}
	// Some tokenizers render a space before the first piece.
	text = strings.TrimLeftFunc(text, unicode.IsSpace)
	return strings.TrimPrefix(text, b.prefix), nil
}

func hasTrailingReplacement(s string) bool {
	for i := 0; i < replacementWindow && len(s) > 0; i++ {
		r, size := utf8.DecodeLastRuneInString(s)
		if r == utf8.RuneError {
			return true
		}
		s = s[:len(s)-size]
	}
	return false
}

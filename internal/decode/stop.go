package decode

import (
	"fmt"
	"strings"

	"inferd/internal/engine"
)

// InvalidStopError reports an extra stop sequence that is not exactly one token.
type InvalidStopError struct {
	Sequence string
	Tokens   int
}

func (e *InvalidStopError) Error() string {
	return fmt.Sprintf("extra stop sequence %q must be exactly one token, got %d", e.Sequence, e.Tokens)
}

// StopOptions configures a StopMatcher for one request.
type StopOptions struct {
	// StopSequence ends generation once the emitted text contains it.
	// Nil means stop right after the first chunk.
	StopSequence *string
	// ExtraStopSequences must each encode to a single token. They stop
	// generation when the emitted text ends with one of them.
	ExtraStopSequences []string
	// SuppressPlainStopMatch disables the StopSequence rule for models whose
	// output legitimately contains it mid-generation.
	SuppressPlainStopMatch bool
}

type extraStop struct {
	text  string
	token int
}

// StopMatcher decides whether the emitted text so far reached a stop condition.
type StopMatcher struct {
	stop     *string
	suppress bool
	extras   []extraStop
}

// Decision is the outcome of a Check.
type Decision struct {
	Stop bool
	// Continuation is the token id of the matched extra stop sequence, if any.
	Continuation *int
}

// NewStopMatcher validates opts against tok and builds a matcher.
func NewStopMatcher(tok engine.Tokenizer, opts StopOptions) (*StopMatcher, error) {
	m := &StopMatcher{stop: opts.StopSequence, suppress: opts.SuppressPlainStopMatch}
	for _, seq := range opts.ExtraStopSequences {
		ids, err := tok.Encode(seq)
		if err != nil {
			return nil, fmt.Errorf("encode extra stop sequence %q: %w", seq, err)
		}
		if len(ids) != 1 {
			return nil, &InvalidStopError{Sequence: seq, Tokens: len(ids)}
		}
		m.extras = append(m.extras, extraStop{text: seq, token: ids[0]})
	}
	return m, nil
}

// Check evaluates the text emitted before this chunk plus the chunk itself.
// An extra stop sequence only matches at the end of that text, where its token
// is the one the engine still holds.
func (m *StopMatcher) Check(emitted, chunk string) Decision {
	all := emitted + chunk
	for _, es := range m.extras {
		if strings.HasSuffix(all, es.text) {
			tok := es.token
			return Decision{Stop: true, Continuation: &tok}
		}
	}
	if m.suppress {
		return Decision{}
	}
	if m.stop == nil {
		return Decision{Stop: true}
	}
	return Decision{Stop: strings.Contains(all, *m.stop)}
}

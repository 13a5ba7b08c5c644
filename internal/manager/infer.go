package manager

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"inferd/internal/decode"
	"inferd/internal/engine"
)

// Generate runs one generate request on session id and calls emit for every
// chunk in order. The last chunk has Stop set. The session mutex is held for
// the whole call, so requests on one session never overlap.
//
// Failures leave the session open. An error returned by emit aborts the loop
// and is returned as is.
func (m *Manager) Generate(ctx context.Context, id string, req GenerateRequest, emit func(Chunk) error) error {
	s, err := m.GetAndTouch(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return sessionNotFoundError{id: id}
	}
	defer m.touch(s)

	start := time.Now()
	tokens, err := m.generateLocked(ctx, s, req, emit)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	generateDuration.WithLabelValues(s.ModelKey, outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		if IsEngineError(err) {
			log.Error().Err(err).Str("session_id", id).Str("model", s.ModelKey).Msg("generate failed")
			m.publish(Event{Name: EventGenerateFailed, SessionID: id, Model: s.ModelKey, Fields: map[string]any{"error": err.Error()}})
		}
		return err
	}
	m.publish(Event{Name: EventGenerateDone, SessionID: id, Model: s.ModelKey, Fields: map[string]any{"tokens": tokens}})
	return nil
}

func (m *Manager) generateLocked(ctx context.Context, s *Session, req GenerateRequest, emit func(Chunk) error) (int, error) {
	model := s.model
	tok := model.Tokenizer

	stop, err := decode.NewStopMatcher(tok, decode.StopOptions{
		StopSequence:           req.StopSequence,
		ExtraStopSequences:     req.ExtraStopSequences,
		SuppressPlainStopMatch: model.SuppressPlainStopMatch,
	})
	if err != nil {
		var ise *decode.InvalidStopError
		if errors.As(err, &ise) {
			return 0, validationError{msg: ise.Error()}
		}
		return 0, ErrValidation("invalid extra_stop_sequences: %v", err)
	}
	buf, err := decode.NewBuffer(tok, model.Sentinel)
	if err != nil {
		return 0, engineError{op: "tokenize", err: err}
	}

	var fresh []int
	if req.Inputs != nil && *req.Inputs != "" {
		if fresh, err = tok.Encode(*req.Inputs); err != nil {
			return 0, engineError{op: "tokenize", err: err}
		}
	}
	inputs := fresh
	replace := false
	if s.continuation != nil {
		inputs = append([]int{*s.continuation}, fresh...)
		replace = true
	}

	budget := s.MaxLength - s.position
	switch {
	case req.MaxNewTokens != nil:
		budget = *req.MaxNewTokens
	case req.MaxLength != nil:
		budget = *req.MaxLength - s.position
	}
	if room := s.MaxLength - s.position - len(fresh); budget > room {
		budget = room
	}
	if budget <= 0 {
		return 0, ErrValidation("no room to generate: session holds %d of %d tokens", s.position+len(fresh), s.MaxLength)
	}

	step := m.stepTokens
	if req.SingleStep || step <= 0 {
		step = budget
	}

	var emitted strings.Builder
	remaining, generated := budget, 0
	first := true
	for {
		n := min(remaining, step)
		ereq := engine.Request{Params: req.Params, MaxNewTokens: n}
		if first {
			ereq.Inputs, ereq.Replace = inputs, replace
		}
		engineSteps.WithLabelValues(s.ModelKey).Inc()
		out, err := model.Engine.Generate(ctx, s.handle, ereq)
		if err != nil {
			return generated, engineError{op: "generate", err: err}
		}
		if first {
			s.position += len(fresh)
			s.continuation = nil
			first = false
		}
		if len(out) > n {
			out = out[:n]
		}
		s.position += len(out)
		remaining -= len(out)
		generated += len(out)
		generatedTokens.WithLabelValues(s.ModelKey).Add(float64(len(out)))
		eos := len(out) == 0

		chunk, ready, err := buf.Push(out)
		if err != nil {
			return generated, engineError{op: "detokenize", err: err}
		}
		if !ready {
			if remaining > 0 && !eos {
				continue
			}
			if chunk, err = buf.Flush(); err != nil {
				return generated, engineError{op: "detokenize", err: err}
			}
		}

		d := stop.Check(emitted.String(), chunk.Text)
		if d.Continuation != nil {
			s.continuation = d.Continuation
		}
		final := d.Stop || remaining <= 0 || eos
		emitted.WriteString(chunk.Text)
		if err := emit(Chunk{Outputs: chunk.Text, Stop: final, TokenCount: chunk.Tokens}); err != nil {
			return generated, err
		}
		if final {
			return generated, nil
		}
	}
}

// DefaultOnceLength is the temporary session length GenerateOnce uses when
// neither the caller nor the model sets one.
const DefaultOnceLength = 2048

// GenerateOnce opens a temporary session, generates its whole budget in a
// single engine step without a stop sequence, and closes the session on every
// exit path. maxLength <= 0 selects the model's session limit, or
// DefaultOnceLength for models without one.
func (m *Manager) GenerateOnce(ctx context.Context, modelName string, maxLength int, req GenerateRequest) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultOnceLength
		if model, ok := m.models.Resolve(modelName); ok && model.MaxSessionLength > 0 && model.MaxSessionLength < maxLength {
			maxLength = model.MaxSessionLength
		}
	}
	id, err := m.Open(ctx, modelName, maxLength)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := m.Close(id); err != nil && !IsSessionNotFound(err) {
			log.Warn().Err(err).Str("session_id", id).Msg("close temporary session")
		}
	}()
	req.SingleStep = true
	req.StopSequence = nil
	var out strings.Builder
	err = m.Generate(ctx, id, req, func(c Chunk) error {
		out.WriteString(c.Outputs)
		return nil
	})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

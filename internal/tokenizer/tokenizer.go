// Package tokenizer provides in-process tokenizers for backends that do not
// ship their own (the echo engine). Both implementations render bytes that do
// not form a complete UTF-8 sequence as U+FFFD, the same way model tokenizers
// do when a codepoint is split across tokens.
package tokenizer

import (
	"fmt"
	"strings"

	"inferd/internal/engine"
)

// New resolves a tokenizer spec: "" or "bytes" for the byte tokenizer,
// "tiktoken:<encoding>" for a BPE encoding such as cl100k_base.
func New(spec string) (engine.Tokenizer, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == "" || spec == "bytes":
		return Bytes{}, nil
	case strings.HasPrefix(spec, "tiktoken:"):
		return NewTiktoken(strings.TrimPrefix(spec, "tiktoken:"))
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", spec)
	}
}

// render converts raw decoded bytes to text, marking incomplete sequences.
func render(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

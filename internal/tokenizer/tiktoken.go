package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tiktoken wraps a BPE encoding from tiktoken-go. Encoding tables are fetched
// on first use and cached under TIKTOKEN_CACHE_DIR.
type Tiktoken struct {
	name string
	enc  *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding, falling back to a model-name lookup
// (e.g. "gpt-4") when it is not an encoding name.
func NewTiktoken(name string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		var merr error
		enc, merr = tiktoken.EncodingForModel(name)
		if merr != nil {
			return nil, fmt.Errorf("tiktoken %q: %w", name, err)
		}
	}
	return &Tiktoken{name: name, enc: enc}, nil
}

func (t *Tiktoken) Encode(text string) ([]int, error) {
	return t.enc.EncodeOrdinary(text), nil
}

func (t *Tiktoken) Decode(ids []int) (string, error) {
	return render([]byte(t.enc.Decode(ids))), nil
}

func (t *Tiktoken) String() string { return "tiktoken:" + t.name }

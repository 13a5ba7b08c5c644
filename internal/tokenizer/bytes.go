package tokenizer

import "fmt"

// Bytes is a tokenizer with one token per UTF-8 byte (ids 0..255).
type Bytes struct{}

func (Bytes) Encode(text string) ([]int, error) {
	ids := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		ids[i] = int(text[i])
	}
	return ids, nil
}

func (Bytes) Decode(ids []int) (string, error) {
	b := make([]byte, len(ids))
	for i, id := range ids {
		if id < 0 || id > 255 {
			return "", fmt.Errorf("token id %d out of range", id)
		}
		b[i] = byte(id)
	}
	return render(b), nil
}

package chunker

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the tiktoken encoding used when none is configured.
// cl100k_base matches the OpenAI embedding model family.
const DefaultEncoding = "cl100k_base"

// Tokenizer counts text length in model tokens. Chunk boundaries are
// measured in tokens, not characters, because the embedding API's limits
// are token limits.
type Tokenizer interface {
	// Count returns the number of tokens in text.
	Count(text string) (int, error)
}

type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer creates a Tokenizer backed by the named tiktoken
// encoding.
func NewTiktokenTokenizer(encoding string) (Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading tiktoken encoding %q: %w", encoding, err)
	}
	return &tiktokenTokenizer{enc: enc}, nil
}

func (t *tiktokenTokenizer) Count(text string) (int, error) {
	return len(t.enc.Encode(text, nil, nil)), nil
}

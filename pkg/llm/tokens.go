package llm

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// Tokenizer wraps the shared BPE encoder used for token accounting. A
// fixed encoding (o200k_base) is used for all configured models, matching
// the pack's own simplification for providers it cannot special-case.
type Tokenizer struct {
	enc tokenizer.Codec
}

// NewTokenizer builds a Tokenizer. It panics only if the named encoding is
// missing from the library, which indicates a build-time misconfiguration
// rather than a runtime condition.
func NewTokenizer() *Tokenizer {
	enc, err := tokenizer.Get(tokenizer.O200kBase)
	if err != nil {
		panic(fmt.Errorf("llm: invalid encoder %v: %w", tokenizer.O200kBase, err))
	}
	return &Tokenizer{enc: enc}
}

// Count returns the token count for text, falling back to a byte-based
// estimate if the encoder itself errors on malformed input.
func (t *Tokenizer) Count(text string) int {
	count, err := t.enc.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

package assemble

import (
	"math"

	"github.com/pkoukk/tiktoken-go"
)

// messageOverheadTokens approximates the per-chunk framing cost (role tags,
// citation prefix, separators) that a raw character count doesn't capture
// (spec.md §4.7).
const messageOverheadTokens = 10

// TokenCounter estimates how many tokens a piece of text costs.
type TokenCounter func(text string) int

// FallbackTokenCounter is used whenever no real tokenizer is configured:
// ceil(charCount/4) plus a fixed per-chunk overhead.
func FallbackTokenCounter(text string) int {
	return int(math.Ceil(float64(len(text))/4)) + messageOverheadTokens
}

// NewTiktokenCounter wraps github.com/pkoukk/tiktoken-go for an exact token
// count against the given model/encoding name, grounded on
// sweetpotato0-ai-allin/contrib/tokenizer/tiktoken's Tokenizer wrapper (its
// CountTokens summed token ids rather than counting them; this counts the
// encoded slice's length instead).
func NewTiktokenCounter(model string) (TokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(model)
		if err != nil {
			return nil, err
		}
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil)) + messageOverheadTokens
	}, nil
}

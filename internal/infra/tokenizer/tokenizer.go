package tokenizer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// Counter counts tokens with a BPE encoding.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// New loads the encoding used by model, or encoding when model is unknown.
func New(model, encoding string) (*Counter, error) {
	if strings.TrimSpace(model) != "" {
		if enc, err := tiktoken.EncodingForModel(model); err == nil {
			return &Counter{enc: enc}, nil
		}
	}
	if strings.TrimSpace(encoding) == "" {
		encoding = defaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	return &Counter{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Approximate estimates roughly four characters per token. It is used when
// the BPE ranks cannot be loaded.
type Approximate struct{}

// Count returns ceil(runes/4).
func (Approximate) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// Package tokenizer counts tokens for budget accounting.
package tokenizer

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE used by current OpenAI and close enough for
// Anthropic budget accounting.
const DefaultEncoding = "cl100k_base"

// Counter counts tokens in a string.
type Counter interface {
	Count(text string) int
}

// CharEstimator estimates tokens using a characters-per-token ratio.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator creates a CharEstimator. charsPerToken <= 0 uses 4.
func NewCharEstimator(charsPerToken float64) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

// Count rounds up so estimates never undercount.
func (e *CharEstimator) Count(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text))/e.CharsPerToken) + 1
}

// Tiktoken counts tokens with a real BPE encoding.
type Tiktoken struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding. Loading may fetch the vocabulary
// over the network on first use.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

// New returns the counter named by kind ("tiktoken" or "chars"). A tiktoken
// encoding that cannot be loaded degrades to the character estimator.
func New(kind string, logger *slog.Logger) Counter {
	if logger == nil {
		logger = slog.Default()
	}
	if kind == "tiktoken" {
		tk, err := NewTiktoken(DefaultEncoding)
		if err == nil {
			return tk
		}
		logger.Warn("tiktoken unavailable, using character estimate", "err", err)
	}
	return NewCharEstimator(4)
}

package llm

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Process-wide encoder, initialized once on first use and read-only after
var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
	encoderErr  error
)

// TiktokenCounter counts tokens with the cl100k_base encoding. When the
// encoding cannot be initialized (e.g. no cached BPE data and no network)
// it falls back to a bytes/4 estimate so summarization keeps working.
type TiktokenCounter struct{}

func NewTokenCounter() *TiktokenCounter {
	return &TiktokenCounter{}
}

func (c *TiktokenCounter) Count(text string) int {
	encoderOnce.Do(func() {
		encoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
		if encoderErr != nil {
			slog.Warn("Failed to initialize cl100k_base tokenizer, using byte estimate", "error", encoderErr)
		}
	})

	if encoderErr != nil {
		return len(text) / 4
	}

	return len(encoder.Encode(text, []string{"all"}, nil))
}

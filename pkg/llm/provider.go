package llm

import (
	"context"
)

// Prompt is the structured request assembled by the prompt builder.
type Prompt struct {
	System      string
	User        string
	Model       string // Override provider default
	MaxTokens   int
	Temperature float64
}

// Completion is a finished generation plus usage metadata.
type Completion struct {
	Content    string
	TokensUsed int
	Model      string
}

// ChunkFunc receives ordered text fragments during a streamed generation.
type ChunkFunc func(text string)

// Provider defines the contract for any completion backend.
type Provider interface {
	// Complete executes the prompt and returns the finished text.
	Complete(ctx context.Context, prompt Prompt) (*Completion, error)

	// CompleteStream executes the prompt, invoking onChunk for each text
	// fragment in arrival order, and returns the finished text. The
	// concatenation of all chunks equals the returned content.
	CompleteStream(ctx context.Context, prompt Prompt, onChunk ChunkFunc) (*Completion, error)
}

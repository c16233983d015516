// Package llm abstracts the model providers used for policy classification
// and speech embeddings. Two implementations exist: OpenAI and Gemini,
// selected by configuration.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse indicates the provider returned no usable content.
var ErrEmptyResponse = errors.New("empty model response")

// Request is a single completion request.
type Request struct {
	System      string  // system instruction
	Prompt      string  // user content
	MaxTokens   int     // 0 = provider default
	Temperature float32 // classification runs cold (0.0–0.2)
	ForceJSON   bool    // request a JSON-only response where the API supports it
}

// Provider generates completions.
type Provider interface {
	// Name returns the provider identifier ("openai", "gemini").
	Name() string

	// Complete returns the model's text response for the request.
	Complete(ctx context.Context, req Request) (string, error)
}

// Embedder generates vector embeddings for texts. Implementations must
// return one vector per input, each of the configured dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

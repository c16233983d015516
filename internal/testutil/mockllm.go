package testutil

import (
	"context"
	"sync"

	"github.com/seiji-watch/diet-tracker/internal/llm"
)

// MockProvider is a scripted llm.Client for tests. Responses are returned
// in order; when they run out, the last one repeats. Safe for concurrent use.
type MockProvider struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	EmbedDim  int // dimension of fake embeddings, default 1536
	calls     int
	Prompts   []llm.Request // records every Complete request
}

var _ llm.Client = (*MockProvider)(nil)

// Name returns "mock".
func (m *MockProvider) Name() string { return "mock" }

// Complete returns the next scripted response.
func (m *MockProvider) Complete(_ context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, req)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", llm.ErrEmptyResponse
	}
	i := m.calls
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	m.calls++
	return m.Responses[i], nil
}

// CallCount reports how many Complete calls were made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Embed returns deterministic unit-ish vectors derived from text length.
func (m *MockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	dim := m.EmbedDim
	if dim == 0 {
		dim = 1536
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, dim)
		// Vary the first components so different texts are not identical.
		v[0] = float32(len(t)%17) / 17.0
		v[1] = float32(len(t)%5) / 5.0
		v[2] = 1
		vectors[i] = v
	}
	return vectors, nil
}

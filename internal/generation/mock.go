package generation

import (
	"context"
	"sync"
)

// MockClient implements Client for testing. Responses are served in order;
// when exhausted, the last response repeats. GenerateFunc overrides
// everything when set.
type MockClient struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Calls     int

	GenerateFunc func(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Ensure MockClient implements Client interface
var _ Client = (*MockClient)(nil)

// Generate returns the next canned response or the configured error.
func (m *MockClient) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	m.mu.Lock()
	m.Calls++
	call := m.Calls
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, temperature)
	}

	if m.Err != nil {
		return "", m.Err
	}

	if len(m.Responses) == 0 {
		return "", nil
	}

	idx := call - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}

	return m.Responses[idx], nil
}

package embeddings

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/semlab/sembench/pkg/vectormath"
)

// MockClient implements the Client interface for testing purposes.
// It generates deterministic embeddings based on the input text hash.
type MockClient struct {
	dimensions int
}

// NewMockClient creates a new mock embedding client.
// Default dimensions is 1536 to match OpenAI's text-embedding-3-small.
func NewMockClient() *MockClient {
	return &MockClient{dimensions: defaultDimension}
}

// NewMockClientWithDimensions creates a mock client with custom dimensions.
func NewMockClientWithDimensions(dimensions int) *MockClient {
	return &MockClient{dimensions: dimensions}
}

// CreateEmbedding generates a deterministic embedding based on the text hash.
func (c *MockClient) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}

	return c.deterministicEmbedding(text), nil
}

// CreateEmbeddings generates embeddings for multiple texts.
// Returns an error if any text is empty.
func (c *MockClient) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	out := make([][]float32, len(texts))

	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("%w: index %d", ErrEmptyInput, i)
		}

		out[i] = c.deterministicEmbedding(text)
	}

	return out, nil
}

// deterministicEmbedding creates a unit-length vector from the text hash.
func (c *MockClient) deterministicEmbedding(text string) []float32 {
	hash := sha256.Sum256([]byte(text))
	vec := make([]float32, c.dimensions)

	for i := 0; i < c.dimensions; i++ {
		byteIdx := i % len(hash)
		vec[i] = (float32(hash[byteIdx]) / 127.5) - 1.0
	}

	vectormath.NormalizeL2(vec)

	return vec
}

// Ensure MockClient implements Client interface
var _ Client = (*MockClient)(nil)

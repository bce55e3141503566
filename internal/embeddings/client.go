// Package embeddings provides the embedding collaborator: a client for the
// learned API-backed space and a provider abstraction that resolves terms
// within named embedding spaces.
package embeddings

import "context"

// Client defines the interface for generating text embeddings.
type Client interface {
	// CreateEmbedding generates an embedding vector for the given text.
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)

	// CreateEmbeddings generates embedding vectors for multiple texts in a
	// batch. More efficient than calling CreateEmbedding per text.
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

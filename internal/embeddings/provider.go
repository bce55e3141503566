package embeddings

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/semlab/sembench/internal/apperrors"
	"github.com/semlab/sembench/internal/observability"
	"github.com/semlab/sembench/internal/vocab"
	"github.com/semlab/sembench/pkg/vectormath"
)

// Provider resolves a term to its embedding vector within one named space.
type Provider interface {
	// Embed returns the embedding for the term. Returns an
	// OutOfVocabularyError when the space cannot represent the term.
	Embed(ctx context.Context, term string) ([]float32, error)

	// Space returns the name of the embedding space this provider serves.
	Space() string
}

// StaticProvider serves embeddings from an in-memory vocabulary pool.
// Terms outside the pool are out of vocabulary; no network is involved.
type StaticProvider struct {
	pool    *vocab.Pool
	metrics observability.EmbeddingMetrics
}

// Ensure StaticProvider implements Provider interface
var _ Provider = (*StaticProvider)(nil)

// NewStaticProvider creates a provider backed by the pool.
// metrics may be nil when metrics are disabled.
func NewStaticProvider(pool *vocab.Pool, metrics observability.EmbeddingMetrics) *StaticProvider {
	return &StaticProvider{pool: pool, metrics: metrics}
}

func (p *StaticProvider) Space() string {
	return p.pool.Space()
}

func (p *StaticProvider) Embed(ctx context.Context, term string) ([]float32, error) {
	if p.metrics != nil {
		p.metrics.RecordLookup(ctx, p.pool.Space())
	}

	vec, err := p.pool.Vector(term)
	if err != nil {
		return nil, err
	}

	return vec, nil
}

const defaultCacheSize = 4096

// APIProvider serves embeddings from a remote client, memoizing results in an
// LRU cache keyed by the normalized term. Every distinct term costs one API
// call per cache lifetime, which keeps repeated scoring of the same response
// terms cheap.
type APIProvider struct {
	space   string
	client  Client
	cache   *lru.Cache[string, []float32]
	metrics observability.EmbeddingMetrics
}

// Ensure APIProvider implements Provider interface
var _ Provider = (*APIProvider)(nil)

// NewAPIProvider creates a provider that embeds terms via the client.
// cacheSize <= 0 falls back to the default. metrics may be nil.
func NewAPIProvider(
	space string,
	client Client,
	cacheSize int,
	metrics observability.EmbeddingMetrics,
) (*APIProvider, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}

	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &APIProvider{space: space, client: client, cache: cache, metrics: metrics}, nil
}

func (p *APIProvider) Space() string {
	return p.space
}

func (p *APIProvider) Embed(ctx context.Context, term string) ([]float32, error) {
	if p.metrics != nil {
		p.metrics.RecordLookup(ctx, p.space)
	}

	key := vocab.Normalize(term)
	if key == "" {
		return nil, apperrors.NewValidationError("term", "term is empty")
	}

	if vec, ok := p.cache.Get(key); ok {
		if p.metrics != nil {
			p.metrics.RecordCacheHit(ctx, p.space)
		}

		return vec, nil
	}

	start := time.Now()

	vec, err := p.client.CreateEmbedding(ctx, key)
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordError(ctx, p.space)
			p.metrics.RecordEmbeddingDuration(ctx, time.Since(start), "error")
		}

		return nil, apperrors.NewCollaboratorError("embeddings", err.Error())
	}

	if p.metrics != nil {
		p.metrics.RecordEmbeddingDuration(ctx, time.Since(start), "ok")
	}

	if vectormath.IsZero(vec) {
		// A zero vector means the space has no signal for this term; treat
		// it the same as a missing vocabulary entry.
		return nil, apperrors.NewOutOfVocabularyError(term, p.space)
	}

	p.cache.Add(key, vec)

	return vec, nil
}

// Registry dispatches embedding lookups to the provider registered for each
// space name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry over the given providers, keyed by space.
// Later providers with the same space name replace earlier ones.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Space()] = p
	}

	return r
}

// Provider returns the provider for the space, or a NotFoundError.
func (r *Registry) Provider(space string) (Provider, error) {
	p, ok := r.providers[space]
	if !ok {
		return nil, apperrors.NewNotFoundError("embedding space", space)
	}

	return p, nil
}

// Spaces lists the registered space names.
func (r *Registry) Spaces() []string {
	out := make([]string, 0, len(r.providers))
	for space := range r.providers {
		out = append(out, space)
	}

	return out
}

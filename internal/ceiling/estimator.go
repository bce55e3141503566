// Package ceiling searches for a near-maximal-divergence term set by greedy
// incremental selection. The result is a heuristic upper bound on achievable
// divergence, not a true maximum: the greedy choice depends on the random
// seed term, so the estimator runs several restarts and reports how much the
// estimate moved between them.
package ceiling

import (
	"math/rand"

	"github.com/semlab/sembench/internal/apperrors"
	"github.com/semlab/sembench/internal/models"
	"github.com/semlab/sembench/internal/scoring"
	"github.com/semlab/sembench/internal/stats"
	"github.com/semlab/sembench/internal/vocab"
	"github.com/semlab/sembench/pkg/vectormath"
)

// DefaultMaxVocabulary caps the per-step candidate scan. The scan is
// O(vocabulary x set size) per restart, so very large vocabularies are
// subsampled deterministically from the top-level seed.
const DefaultMaxVocabulary = 10000

// Estimator runs the greedy ceiling search.
type Estimator struct {
	maxVocabulary int
}

// Option configures the estimator.
type Option func(*Estimator)

// WithMaxVocabulary sets the candidate scan cap.
func WithMaxVocabulary(n int) Option {
	return func(e *Estimator) {
		e.maxVocabulary = n
	}
}

// NewEstimator creates a ceiling estimator.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{maxVocabulary: DefaultMaxVocabulary}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Estimate runs numRestarts greedy constructions and keeps the best set.
// Restart i draws its seed term from seed+i, so any restart's result is
// independently reproducible. Fails with a ConfigurationError before any
// work when the parameters are unusable.
func (e *Estimator) Estimate(
	pool *vocab.Pool,
	setSize int,
	numRestarts int,
	seed int64,
) (*models.CeilingEstimate, error) {
	if setSize < 2 {
		return nil, apperrors.NewConfigurationError("set_size", "set size must be at least 2")
	}

	if numRestarts < 1 {
		return nil, apperrors.NewConfigurationError("num_restarts", "restart count must be positive")
	}

	if pool.Size() < setSize {
		return nil, apperrors.NewConfigurationError("vocabulary",
			"vocabulary has fewer valid-embedding terms than the set size")
	}

	if e.maxVocabulary < setSize {
		return nil, apperrors.NewConfigurationError("max_vocabulary",
			"vocabulary cap is smaller than the set size")
	}

	candidates := e.candidateIndices(pool, seed)
	scorer := scoring.NewDivergenceScorer(setSize)

	var (
		best      models.CeilingEstimate
		perStart  []float64
		bestScore = -1.0
	)

	for r := 0; r < numRestarts; r++ {
		terms, vectors := greedyConstruct(pool, candidates, setSize, seed+int64(r))

		res := scorer.Score(vectors)
		if !res.Valid {
			return nil, apperrors.NewConfigurationError("vocabulary",
				"greedy set could not be scored; embedding dimensions are inconsistent")
		}

		perStart = append(perStart, res.Score)

		if res.Score > bestScore {
			bestScore = res.Score
			best.Best = res.Score
			best.BestTerms = terms
		}
	}

	best.Space = pool.Space()
	best.SetSize = setSize
	best.NumRestarts = numRestarts
	best.Seed = seed
	best.RestartMean = stats.Mean(perStart)
	best.RestartSD = stats.SD(perStart)
	best.VocabScanned = len(candidates)

	return &best, nil
}

// candidateIndices returns the pool indices eligible for greedy selection,
// subsampled deterministically when the pool exceeds the configured cap.
func (e *Estimator) candidateIndices(pool *vocab.Pool, seed int64) []int {
	n := pool.Size()
	if n <= e.maxVocabulary {
		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}

		return indices
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)

	indices := make([]int, e.maxVocabulary)
	copy(indices, perm[:e.maxVocabulary])

	return indices
}

// greedyConstruct builds one set: it seeds with a random candidate, then
// repeatedly adds the candidate that maximizes the resulting set's mean
// pairwise distance. Ties resolve to the earliest candidate in scan order,
// which keeps the construction deterministic for a given restart seed.
func greedyConstruct(pool *vocab.Pool, candidates []int, setSize int, restartSeed int64) ([]string, [][]float32) {
	rng := rand.New(rand.NewSource(restartSeed))

	chosen := make(map[int]struct{}, setSize)
	terms := make([]string, 0, setSize)
	vectors := make([][]float32, 0, setSize)

	// Running sum of distances from each candidate to the chosen set. Adding
	// a term only needs this accumulator, keeping each step O(vocabulary).
	distToChosen := make(map[int]float64, len(candidates))

	first := candidates[rng.Intn(len(candidates))]
	addTerm(pool, first, chosen, &terms, &vectors, candidates, distToChosen)

	for len(terms) < setSize {
		bestIdx := -1
		bestSum := -1.0

		for _, c := range candidates {
			if _, taken := chosen[c]; taken {
				continue
			}

			// Maximizing the resulting mean over a fixed pair count is the
			// same as maximizing the added distance sum.
			if sum := distToChosen[c]; sum > bestSum {
				bestSum = sum
				bestIdx = c
			}
		}

		if bestIdx < 0 {
			break
		}

		addTerm(pool, bestIdx, chosen, &terms, &vectors, candidates, distToChosen)
	}

	return terms, vectors
}

// addTerm commits a candidate to the set and folds its distances into the
// per-candidate accumulator.
func addTerm(
	pool *vocab.Pool,
	idx int,
	chosen map[int]struct{},
	terms *[]string,
	vectors *[][]float32,
	candidates []int,
	distToChosen map[int]float64,
) {
	entry := pool.Entry(idx)
	chosen[idx] = struct{}{}
	*terms = append(*terms, entry.Term)
	*vectors = append(*vectors, entry.Vector)

	for _, c := range candidates {
		if _, taken := chosen[c]; taken {
			continue
		}

		d, ok := vectormath.CosineDistance(pool.Entry(c).Vector, entry.Vector)
		if !ok {
			continue
		}

		distToChosen[c] += d
	}
}

// Package baseline estimates null divergence distributions by scoring random
// term sets drawn from a vocabulary pool. The result is the reference a
// model's scores are compared against: "what would chance produce?"
package baseline

import (
	"math/rand"
	"sort"

	"github.com/semlab/sembench/internal/apperrors"
	"github.com/semlab/sembench/internal/models"
	"github.com/semlab/sembench/internal/scoring"
	"github.com/semlab/sembench/internal/stats"
	"github.com/semlab/sembench/internal/vocab"
)

// Result is a baseline distribution plus the raw samples it was computed
// from, kept for percentile lookups. The embedded distribution is what gets
// persisted; samples stay in memory for the run.
type Result struct {
	models.BaselineDistribution

	Samples []float64
}

// ZScore returns how many baseline standard deviations score sits above the
// baseline mean. Returns 0 when the baseline SD is 0.
func (r *Result) ZScore(score float64) float64 {
	if r.SD == 0 {
		return 0
	}

	return (score - r.Mean) / r.SD
}

// Percentile returns the fraction of baseline samples strictly below score,
// in [0, 1].
func (r *Result) Percentile(score float64) float64 {
	if len(r.Samples) == 0 {
		return 0
	}

	sorted := make([]float64, len(r.Samples))
	copy(sorted, r.Samples)
	sort.Float64s(sorted)

	below := sort.SearchFloat64s(sorted, score)

	return float64(below) / float64(len(sorted))
}

// Estimator computes baseline distributions via seeded Monte Carlo sampling.
type Estimator struct{}

// NewEstimator creates a baseline estimator.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Estimate draws numSamples random term sets of setSize from the pool under
// the given strategy, scores each, and reports the empirical mean and SD.
// Results are bit-identical for the same seed and pool snapshot. Fails with a
// ConfigurationError before sampling when the parameters are unusable.
func (e *Estimator) Estimate(
	strategy models.BaselineStrategy,
	pool *vocab.Pool,
	setSize int,
	numSamples int,
	seed int64,
) (*Result, error) {
	if setSize < 2 {
		return nil, apperrors.NewConfigurationError("set_size", "set size must be at least 2")
	}

	if numSamples <= 0 {
		return nil, apperrors.NewConfigurationError("num_samples", "sample count must be positive")
	}

	if pool.Size() < setSize {
		return nil, apperrors.NewConfigurationError("vocabulary",
			"vocabulary has fewer valid-embedding terms than the set size")
	}

	var sample func(rng *rand.Rand, n int) ([]vocab.Entry, error)

	switch strategy {
	case models.BaselineUniform:
		sample = pool.SampleUniform
	case models.BaselineFrequencyWeighted:
		sample = pool.SampleWeighted
	default:
		return nil, apperrors.NewConfigurationError("strategy", "unknown baseline strategy: "+string(strategy))
	}

	scorer := scoring.NewDivergenceScorer(setSize)
	rng := rand.New(rand.NewSource(seed))
	samples := make([]float64, 0, numSamples)

	for i := 0; i < numSamples; i++ {
		entries, err := sample(rng, setSize)
		if err != nil {
			return nil, err
		}

		vectors := make([][]float32, len(entries))
		for j, entry := range entries {
			vectors[j] = entry.Vector
		}

		res := scorer.Score(vectors)
		if !res.Valid {
			// Pool entries always have usable embeddings, so this only
			// happens on dimension mismatches within the space.
			return nil, apperrors.NewConfigurationError("vocabulary",
				"sampled set could not be scored; embedding dimensions are inconsistent")
		}

		samples = append(samples, res.Score)
	}

	return &Result{
		BaselineDistribution: models.BaselineDistribution{
			Strategy:   strategy,
			Space:      pool.Space(),
			SetSize:    setSize,
			NumSamples: numSamples,
			Seed:       seed,
			Mean:       stats.Mean(samples),
			SD:         stats.SD(samples),
		},
		Samples: samples,
	}, nil
}

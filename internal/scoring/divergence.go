// Package scoring implements the divergence and bridging metrics computed over
// term embeddings. Scorers are pure: they consume embedding vectors and produce
// scores, with no shared mutable state, so they may run concurrently across trials.
package scoring

import (
	"github.com/semlab/sembench/pkg/vectormath"
)

// ZeroVectorPolicy controls how pairs involving a missing or zero-norm
// embedding contribute to the divergence score.
type ZeroVectorPolicy string

const (
	// ZeroVectorExclude drops the pair from the mean (default). The effective
	// pair count shrinks; validity still requires at least two embeddable terms.
	ZeroVectorExclude ZeroVectorPolicy = "exclude"
	// ZeroVectorMaxDistance scores the pair at the maximum cosine distance
	// instead of dropping it.
	ZeroVectorMaxDistance ZeroVectorPolicy = "max_distance"
)

// maxCosineDistance is 1 - cos for opposite vectors, the ceiling of the metric.
const maxCosineDistance = 2.0

// DefaultDivergenceScale converts mean pairwise cosine distance to the 0-100+
// range used by human-normed divergent association scores (Olson et al. 2021).
const DefaultDivergenceScale = 100.0

// DivergenceScorer computes the mean pairwise cosine distance within a term
// set, rescaled for interpretability.
type DivergenceScorer struct {
	setSize    int
	scale      float64
	zeroPolicy ZeroVectorPolicy
}

// DivergenceOption configures a DivergenceScorer.
type DivergenceOption func(*DivergenceScorer)

// WithScale overrides the score scale factor.
func WithScale(scale float64) DivergenceOption {
	return func(s *DivergenceScorer) {
		s.scale = scale
	}
}

// WithZeroVectorPolicy sets how invalid embeddings contribute to the score.
func WithZeroVectorPolicy(policy ZeroVectorPolicy) DivergenceOption {
	return func(s *DivergenceScorer) {
		s.zeroPolicy = policy
	}
}

// NewDivergenceScorer creates a scorer for sets of exactly setSize terms.
// setSize <= 0 disables the size check (used by the estimators, which build
// sets incrementally).
func NewDivergenceScorer(setSize int, opts ...DivergenceOption) *DivergenceScorer {
	s := &DivergenceScorer{
		setSize:    setSize,
		scale:      DefaultDivergenceScale,
		zeroPolicy: ZeroVectorExclude,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// DivergenceResult is the outcome of scoring one term set.
type DivergenceResult struct {
	// Score is the mean pairwise cosine distance times the scale factor.
	// Only meaningful when Valid is true.
	Score float64
	// Valid is false when fewer than two terms have usable embeddings or the
	// set size does not match the configured size.
	Valid bool
	// Pairs is the number of pairs included in the mean.
	Pairs int
	// Excluded is the number of terms with missing or zero-norm embeddings.
	Excluded int
}

// Score computes the divergence of a term set given its embedding vectors,
// one per term. A nil or zero-norm vector marks a term without a usable
// embedding in the space. The score is invariant to the ordering of the set.
func (s *DivergenceScorer) Score(vectors [][]float32) DivergenceResult {
	if s.setSize > 0 && len(vectors) != s.setSize {
		return DivergenceResult{}
	}

	usable := make([][]float32, 0, len(vectors))
	excluded := 0

	for _, v := range vectors {
		if len(v) == 0 || vectormath.IsZero(v) {
			excluded++

			continue
		}

		usable = append(usable, v)
	}

	if len(usable) < 2 {
		return DivergenceResult{Excluded: excluded}
	}

	var sum float64

	pairs := 0

	for i := 0; i < len(usable); i++ {
		for j := i + 1; j < len(usable); j++ {
			d, ok := vectormath.CosineDistance(usable[i], usable[j])
			if !ok {
				// Dimension mismatch within one space; skip the pair.
				continue
			}

			sum += d
			pairs++
		}
	}

	if s.zeroPolicy == ZeroVectorMaxDistance && excluded > 0 {
		// Every pair touching an excluded term counts at the maximum distance.
		n := len(vectors)
		total := n * (n - 1) / 2
		zeroPairs := total - len(usable)*(len(usable)-1)/2
		sum += float64(zeroPairs) * maxCosineDistance
		pairs += zeroPairs
	}

	if pairs == 0 {
		return DivergenceResult{Excluded: excluded}
	}

	return DivergenceResult{
		Score:    sum / float64(pairs) * s.scale,
		Valid:    true,
		Pairs:    pairs,
		Excluded: excluded,
	}
}

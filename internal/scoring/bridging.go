package scoring

import (
	"github.com/semlab/sembench/internal/apperrors"
	"github.com/semlab/sembench/pkg/vectormath"
)

// BridgingScorer computes the relevance of a clue sequence to an anchor pair.
// A clue's contribution is min(sim to anchor, sim to target): a clue only
// bridges when it is close to BOTH endpoints, so pure proximity to one
// endpoint scores its distance to the other.
type BridgingScorer struct {
	bands []Band
}

// NewBridgingScorer creates a scorer with the given qualitative bands.
// Pass nil to use DefaultBridgingBands.
func NewBridgingScorer(bands []Band) *BridgingScorer {
	if bands == nil {
		bands = DefaultBridgingBands
	}

	return &BridgingScorer{bands: bands}
}

// BridgingResult is the outcome of scoring one clue sequence.
type BridgingResult struct {
	// Score is the arithmetic mean of per-clue contributions over valid clues.
	Score float64 `json:"score"`
	// PerClue holds the contribution of each scored clue, in sequence order,
	// with invalid clues omitted.
	PerClue []float64 `json:"per_clue"`
	// Scored is the number of clues included in the mean.
	Scored int `json:"scored"`
	// Excluded is the number of empty or out-of-vocabulary clues dropped.
	Excluded int `json:"excluded"`
	// Band is the qualitative label for Score under the configured bands.
	Band string `json:"band"`
}

// Score computes the bridging relevance of clues relative to the anchor pair.
// Clue vectors that are nil or zero-norm are excluded and counted. Returns a
// ValidationError when the anchor or target embedding is unusable, or when
// every clue is invalid.
func (s *BridgingScorer) Score(clues [][]float32, anchor, target []float32) (BridgingResult, error) {
	if len(anchor) == 0 || vectormath.IsZero(anchor) {
		return BridgingResult{}, apperrors.NewValidationError("anchor", "anchor embedding is missing or zero")
	}

	if len(target) == 0 || vectormath.IsZero(target) {
		return BridgingResult{}, apperrors.NewValidationError("target", "target embedding is missing or zero")
	}

	result := BridgingResult{PerClue: make([]float64, 0, len(clues))}

	var sum float64

	for _, clue := range clues {
		simA, okA := vectormath.Cosine(clue, anchor)
		simT, okT := vectormath.Cosine(clue, target)

		if !okA || !okT {
			result.Excluded++

			continue
		}

		contribution := min(simA, simT)
		result.PerClue = append(result.PerClue, contribution)
		sum += contribution
		result.Scored++
	}

	if result.Scored == 0 {
		return BridgingResult{}, apperrors.NewValidationError("clues", "no clue has a usable embedding")
	}

	result.Score = sum / float64(result.Scored)
	result.Band = Interpret(s.bands, result.Score)

	return result, nil
}

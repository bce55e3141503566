package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semlab/sembench/internal/apperrors"
)

func TestBridgingScorer_Score(t *testing.T) {
	anchor := []float32{1, 0}
	target := []float32{0, 1}

	t.Run("midpoint clue bridges both endpoints", func(t *testing.T) {
		s := NewBridgingScorer(nil)

		res, err := s.Score([][]float32{{0.7, 0.7}}, anchor, target)
		require.NoError(t, err)

		want := math.Sqrt(2) / 2 // ~0.707 similarity to both endpoints
		assert.InDelta(t, want, res.Score, 1e-6)
		require.Len(t, res.PerClue, 1)
		assert.InDelta(t, want, res.PerClue[0], 1e-6)
		assert.Equal(t, "strong", res.Band)
	})

	t.Run("clue identical to anchor scores zero", func(t *testing.T) {
		s := NewBridgingScorer(nil)

		res, err := s.Score([][]float32{{1, 0}}, anchor, target)
		require.NoError(t, err)

		// sim to anchor is 1.0 but sim to target is 0.0; min penalizes
		// proximity to a single endpoint.
		assert.InDelta(t, 0.0, res.Score, 1e-9)
		assert.Equal(t, "noise", res.Band)
	})

	t.Run("mean over multiple clues", func(t *testing.T) {
		s := NewBridgingScorer(nil)

		res, err := s.Score([][]float32{{0.7, 0.7}, {1, 0}}, anchor, target)
		require.NoError(t, err)

		want := (math.Sqrt(2)/2 + 0) / 2
		assert.InDelta(t, want, res.Score, 1e-6)
		assert.Equal(t, 2, res.Scored)
	})

	t.Run("invalid clues excluded and counted", func(t *testing.T) {
		s := NewBridgingScorer(nil)

		res, err := s.Score([][]float32{{0.7, 0.7}, nil, {0, 0}}, anchor, target)
		require.NoError(t, err)

		assert.Equal(t, 1, res.Scored)
		assert.Equal(t, 2, res.Excluded)
		assert.Len(t, res.PerClue, 1)
	})

	t.Run("fails when all clues invalid", func(t *testing.T) {
		s := NewBridgingScorer(nil)

		_, err := s.Score([][]float32{nil, {0, 0}}, anchor, target)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("fails on zero anchor embedding", func(t *testing.T) {
		s := NewBridgingScorer(nil)

		_, err := s.Score([][]float32{{0.7, 0.7}}, []float32{0, 0}, target)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("custom bands", func(t *testing.T) {
		bands := []Band{{Min: -1, Label: "cold"}, {Min: 0.5, Label: "warm"}}
		s := NewBridgingScorer(bands)

		res, err := s.Score([][]float32{{0.7, 0.7}}, anchor, target)
		require.NoError(t, err)
		assert.Equal(t, "warm", res.Band)
	})
}

func TestInterpret(t *testing.T) {
	t.Run("divergence bands ascend", func(t *testing.T) {
		assert.Equal(t, "low", Interpret(DefaultDivergenceBands, 30))
		assert.Equal(t, "below_average", Interpret(DefaultDivergenceBands, 60))
		assert.Equal(t, "average", Interpret(DefaultDivergenceBands, 80))
		assert.Equal(t, "above_average", Interpret(DefaultDivergenceBands, 90))
		assert.Equal(t, "high", Interpret(DefaultDivergenceBands, 101))
	})

	t.Run("score below every band gets first label", func(t *testing.T) {
		assert.Equal(t, "low", Interpret(DefaultDivergenceBands, -5))
	})

	t.Run("empty table", func(t *testing.T) {
		assert.Equal(t, "", Interpret(nil, 1))
	})
}

package service

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semlab/sembench/internal/apperrors"
	"github.com/semlab/sembench/internal/embeddings"
	"github.com/semlab/sembench/internal/vocab"
)

func testRegistry(t *testing.T) *embeddings.Registry {
	t.Helper()

	pool := vocab.NewPool("test-space", []vocab.Entry{
		{Term: "ocean", Vector: []float32{1, 0}},
		{Term: "glacier", Vector: []float32{0, 1}},
		{Term: "river", Vector: []float32{0.7, 0.7}},
		{Term: "bridge", Vector: []float32{0.6, 0.8}},
	})

	return embeddings.NewRegistry(embeddings.NewStaticProvider(pool, nil))
}

func newTestScoringService(t *testing.T) *ScoringService {
	t.Helper()

	svc, err := NewScoringService(ScoringServiceParams{
		Registry:     testRegistry(t),
		DefaultSpace: "test-space",
		SetSize:      3,
	})
	require.NoError(t, err)

	return svc
}

func TestNewScoringService(t *testing.T) {
	t.Run("requires registry", func(t *testing.T) {
		_, err := NewScoringService(ScoringServiceParams{DefaultSpace: "x", SetSize: 3})
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	})

	t.Run("requires usable set size", func(t *testing.T) {
		_, err := NewScoringService(ScoringServiceParams{
			Registry: testRegistry(t), DefaultSpace: "x", SetSize: 1,
		})
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	})
}

func TestScoringService_ScoreDivergence(t *testing.T) {
	svc := newTestScoringService(t)
	ctx := context.Background()

	t.Run("orthogonal pair scores the full distance", func(t *testing.T) {
		result, err := svc.ScoreDivergence(ctx, "test-space", []string{"ocean", "glacier"})
		require.NoError(t, err)

		assert.True(t, result.Valid)
		assert.InDelta(t, 100.0, result.Score, 1e-9)
		assert.Equal(t, 1, result.Pairs)
		assert.Empty(t, result.ExcludedTerms)
	})

	t.Run("mean over all pairs", func(t *testing.T) {
		result, err := svc.ScoreDivergence(ctx, "test-space", []string{"ocean", "glacier", "river"})
		require.NoError(t, err)

		// Pairs: (ocean,glacier)=1, (ocean,river)=1-sqrt2/2, (glacier,river)=1-sqrt2/2.
		want := (1.0 + 2*(1.0-math.Sqrt2/2)) / 3 * 100
		assert.InDelta(t, want, result.Score, 1e-9)
	})

	t.Run("out-of-vocabulary terms are excluded not fatal", func(t *testing.T) {
		result, err := svc.ScoreDivergence(ctx, "test-space", []string{"ocean", "glacier", "zeppelin"})
		require.NoError(t, err)

		assert.True(t, result.Valid)
		assert.Equal(t, []string{"zeppelin"}, result.ExcludedTerms)
		assert.Equal(t, 1, result.Pairs)
	})

	t.Run("too few embeddable terms yields invalid score", func(t *testing.T) {
		result, err := svc.ScoreDivergence(ctx, "test-space", []string{"ocean", "zeppelin"})
		require.NoError(t, err)

		assert.False(t, result.Valid)
	})

	t.Run("unknown space", func(t *testing.T) {
		_, err := svc.ScoreDivergence(ctx, "word2vec", []string{"ocean", "glacier"})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("rejects fewer than two terms", func(t *testing.T) {
		_, err := svc.ScoreDivergence(ctx, "test-space", []string{"ocean"})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestScoringService_ScoreTerms(t *testing.T) {
	svc := newTestScoringService(t)

	score, valid, err := svc.ScoreTerms(context.Background(), []string{"ocean", "glacier"})
	require.NoError(t, err)
	assert.True(t, valid)
	assert.InDelta(t, 100.0, score, 1e-9)
}

func TestScoringService_ScoreBridging(t *testing.T) {
	svc := newTestScoringService(t)
	ctx := context.Background()

	t.Run("clue equal to anchor scores its similarity to target", func(t *testing.T) {
		result, err := svc.ScoreBridging(ctx, "test-space", []string{"ocean"}, "ocean", "glacier")
		require.NoError(t, err)

		// min(sim(ocean,ocean)=1, sim(ocean,glacier)=0) = 0
		assert.InDelta(t, 0.0, result.Score, 1e-9)
		assert.Equal(t, "noise", result.Band)
	})

	t.Run("bridging clue scores the weaker endpoint", func(t *testing.T) {
		result, err := svc.ScoreBridging(ctx, "test-space", []string{"river"}, "ocean", "glacier")
		require.NoError(t, err)

		// sim(river,ocean) = sim(river,glacier) = sqrt2/2
		assert.InDelta(t, math.Sqrt2/2, result.Score, 1e-9)
		assert.Equal(t, "strong", result.Band)
	})

	t.Run("out-of-vocabulary anchor is a validation error", func(t *testing.T) {
		_, err := svc.ScoreBridging(ctx, "test-space", []string{"river"}, "zeppelin", "glacier")
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("out-of-vocabulary clues are excluded", func(t *testing.T) {
		result, err := svc.ScoreBridging(ctx, "test-space", []string{"river", "zeppelin"}, "ocean", "glacier")
		require.NoError(t, err)

		assert.Equal(t, []string{"zeppelin"}, result.ExcludedClues)
		assert.Equal(t, 1, result.Scored)
		assert.Equal(t, 1, result.Excluded)
	})

	t.Run("all clues out of vocabulary", func(t *testing.T) {
		_, err := svc.ScoreBridging(ctx, "test-space", []string{"zeppelin"}, "ocean", "glacier")
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

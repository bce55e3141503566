package ceiling

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semlab/sembench/internal/apperrors"
	"github.com/semlab/sembench/internal/baseline"
	"github.com/semlab/sembench/internal/models"
	"github.com/semlab/sembench/internal/vocab"
)

func scatteredPool(t *testing.T, n int) *vocab.Pool {
	t.Helper()

	rng := rand.New(rand.NewSource(5))
	entries := make([]vocab.Entry, 0, n)

	for i := 0; i < n; i++ {
		vec := make([]float32, 6)
		for d := range vec {
			vec[d] = float32(rng.NormFloat64())
		}

		entries = append(entries, vocab.Entry{
			Term:      fmt.Sprintf("word%04d", i),
			Vector:    vec,
			Frequency: 1,
		})
	}

	return vocab.NewPool("static", entries)
}

func TestEstimator_Estimate(t *testing.T) {
	pool := scatteredPool(t, 300)

	t.Run("finds a full set", func(t *testing.T) {
		est := NewEstimator()

		res, err := est.Estimate(pool, 7, 5, 42)
		require.NoError(t, err)

		assert.Len(t, res.BestTerms, 7)
		assert.Equal(t, 5, res.NumRestarts)
		assert.Equal(t, 300, res.VocabScanned)
		assert.Greater(t, res.Best, 0.0)
		assert.GreaterOrEqual(t, res.Best, res.RestartMean)
	})

	t.Run("deterministic for a fixed seed", func(t *testing.T) {
		est := NewEstimator()

		a, err := est.Estimate(pool, 5, 3, 7)
		require.NoError(t, err)
		b, err := est.Estimate(pool, 5, 3, 7)
		require.NoError(t, err)

		assert.Equal(t, a.Best, b.Best)
		assert.Equal(t, a.BestTerms, b.BestTerms)
		assert.Equal(t, a.RestartMean, b.RestartMean)
		assert.Equal(t, a.RestartSD, b.RestartSD)
	})

	t.Run("beats the uniform baseline mean", func(t *testing.T) {
		est := NewEstimator()

		ceilingRes, err := est.Estimate(pool, 7, 5, 42)
		require.NoError(t, err)

		baselineRes, err := baseline.NewEstimator().Estimate(models.BaselineUniform, pool, 7, 200, 42)
		require.NoError(t, err)

		assert.Greater(t, ceilingRes.Best, baselineRes.Mean,
			"greedy search must beat pure chance")
	})

	t.Run("vocabulary cap subsamples deterministically", func(t *testing.T) {
		est := NewEstimator(WithMaxVocabulary(50))

		a, err := est.Estimate(pool, 5, 2, 42)
		require.NoError(t, err)
		assert.Equal(t, 50, a.VocabScanned)

		b, err := est.Estimate(pool, 5, 2, 42)
		require.NoError(t, err)
		assert.Equal(t, a.BestTerms, b.BestTerms)
	})

	t.Run("rejects bad parameters", func(t *testing.T) {
		est := NewEstimator()

		_, err := est.Estimate(pool, 1, 3, 42)
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)

		_, err = est.Estimate(pool, 5, 0, 42)
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)

		small := scatteredPool(t, 3)
		_, err = NewEstimator().Estimate(small, 5, 3, 42)
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)

		_, err = NewEstimator(WithMaxVocabulary(3)).Estimate(pool, 5, 3, 42)
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	})
}

package baseline

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semlab/sembench/internal/apperrors"
	"github.com/semlab/sembench/internal/models"
	"github.com/semlab/sembench/internal/vocab"
)

// randomPool builds a vocabulary of unit vectors scattered deterministically
// on the 8-dimensional sphere, with zipf-ish frequencies.
func randomPool(t *testing.T, n int) *vocab.Pool {
	t.Helper()

	rng := rand.New(rand.NewSource(99))
	entries := make([]vocab.Entry, 0, n)

	for i := 0; i < n; i++ {
		vec := make([]float32, 8)
		for d := range vec {
			vec[d] = float32(rng.NormFloat64())
		}

		entries = append(entries, vocab.Entry{
			Term:      fmt.Sprintf("word%04d", i),
			Vector:    vec,
			Frequency: 1 / float64(i+1),
		})
	}

	return vocab.NewPool("static", entries)
}

func TestEstimator_Estimate(t *testing.T) {
	pool := randomPool(t, 200)
	est := NewEstimator()

	t.Run("uniform baseline has plausible shape", func(t *testing.T) {
		res, err := est.Estimate(models.BaselineUniform, pool, 7, 200, 42)
		require.NoError(t, err)

		assert.Equal(t, models.BaselineUniform, res.Strategy)
		assert.Equal(t, "static", res.Space)
		assert.Equal(t, 200, res.NumSamples)
		assert.Greater(t, res.Mean, 0.0)
		assert.Greater(t, res.SD, 0.0)
		assert.Len(t, res.Samples, 200)
	})

	t.Run("fixed seed reproduces bit-identical results", func(t *testing.T) {
		a, err := est.Estimate(models.BaselineUniform, pool, 7, 100, 42)
		require.NoError(t, err)
		b, err := est.Estimate(models.BaselineUniform, pool, 7, 100, 42)
		require.NoError(t, err)

		assert.Equal(t, a.Mean, b.Mean)
		assert.Equal(t, a.SD, b.SD)
		assert.Equal(t, a.Samples, b.Samples)
	})

	t.Run("different seeds differ", func(t *testing.T) {
		a, err := est.Estimate(models.BaselineUniform, pool, 7, 100, 1)
		require.NoError(t, err)
		b, err := est.Estimate(models.BaselineUniform, pool, 7, 100, 2)
		require.NoError(t, err)

		assert.NotEqual(t, a.Samples, b.Samples)
	})

	t.Run("frequency weighted strategy", func(t *testing.T) {
		res, err := est.Estimate(models.BaselineFrequencyWeighted, pool, 5, 100, 42)
		require.NoError(t, err)

		assert.Equal(t, models.BaselineFrequencyWeighted, res.Strategy)
		assert.Greater(t, res.Mean, 0.0)
	})

	t.Run("rejects undersized vocabulary", func(t *testing.T) {
		small := randomPool(t, 4)

		_, err := est.Estimate(models.BaselineUniform, small, 7, 10, 42)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	})

	t.Run("rejects bad parameters", func(t *testing.T) {
		_, err := est.Estimate(models.BaselineUniform, pool, 1, 10, 42)
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)

		_, err = est.Estimate(models.BaselineUniform, pool, 7, 0, 42)
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)

		_, err = est.Estimate("hopeful", pool, 7, 10, 42)
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	})
}

func TestResult_Normalization(t *testing.T) {
	res := &Result{
		BaselineDistribution: models.BaselineDistribution{Mean: 80, SD: 4},
		Samples:              []float64{70, 75, 80, 85, 90},
	}

	t.Run("z-score", func(t *testing.T) {
		assert.InDelta(t, 2.5, res.ZScore(90), 1e-9)
		assert.InDelta(t, -2.5, res.ZScore(70), 1e-9)
	})

	t.Run("zero SD yields zero z-score", func(t *testing.T) {
		flat := &Result{BaselineDistribution: models.BaselineDistribution{Mean: 80}}
		assert.Equal(t, 0.0, flat.ZScore(100))
	})

	t.Run("percentile", func(t *testing.T) {
		assert.InDelta(t, 0.8, res.Percentile(87), 1e-9)
		assert.InDelta(t, 0.0, res.Percentile(60), 1e-9)
		assert.InDelta(t, 1.0, res.Percentile(95), 1e-9)
	})

	t.Run("percentile of empty samples", func(t *testing.T) {
		empty := &Result{}
		assert.Equal(t, 0.0, empty.Percentile(10))
	})
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semlab/sembench/internal/apperrors"
	"github.com/semlab/sembench/internal/baseline"
	"github.com/semlab/sembench/internal/models"
)

type mockStatsService struct {
	baselineFunc func(ctx context.Context, space string, strategy models.BaselineStrategy,
		setSize, numSamples int, seed int64) (*baseline.Result, error)
	ceilingFunc func(ctx context.Context, space string, setSize, numRestarts int, seed int64) (*models.CeilingEstimate, error)
}

func (m *mockStatsService) Baseline(
	ctx context.Context, space string, strategy models.BaselineStrategy, setSize, numSamples int, seed int64,
) (*baseline.Result, error) {
	return m.baselineFunc(ctx, space, strategy, setSize, numSamples, seed)
}

func (m *mockStatsService) Ceiling(
	ctx context.Context, space string, setSize, numRestarts int, seed int64,
) (*models.CeilingEstimate, error) {
	return m.ceilingFunc(ctx, space, setSize, numRestarts, seed)
}

func newStatsHandler(svc StatsService) *StatsHandler {
	return NewStatsHandler(StatsHandlerParams{
		Service:         svc,
		DefaultSpace:    "test-space",
		DefaultSetSize:  10,
		BaselineSamples: 1000,
		CeilingRestarts: 5,
		Seed:            42,
	})
}

func TestStatsHandler_Baseline(t *testing.T) {
	t.Run("applies server defaults", func(t *testing.T) {
		svc := &mockStatsService{
			baselineFunc: func(_ context.Context, space string, strategy models.BaselineStrategy,
				setSize, numSamples int, seed int64) (*baseline.Result, error) {
				assert.Equal(t, "test-space", space)
				assert.Equal(t, models.BaselineUniform, strategy)
				assert.Equal(t, 10, setSize)
				assert.Equal(t, 1000, numSamples)
				assert.Equal(t, int64(42), seed)

				return &baseline.Result{
					BaselineDistribution: models.BaselineDistribution{
						Strategy: strategy, Space: space, SetSize: setSize,
						NumSamples: numSamples, Seed: seed, Mean: 78.2, SD: 4.1,
					},
				}, nil
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/baselines", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()

		newStatsHandler(svc).Baseline(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp models.BaselineDistribution
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.InDelta(t, 78.2, resp.Mean, 1e-9)
	})

	t.Run("honors explicit parameters including seed zero", func(t *testing.T) {
		svc := &mockStatsService{
			baselineFunc: func(_ context.Context, space string, strategy models.BaselineStrategy,
				setSize, numSamples int, seed int64) (*baseline.Result, error) {
				assert.Equal(t, "glove-840b", space)
				assert.Equal(t, models.BaselineFrequencyWeighted, strategy)
				assert.Equal(t, 5, setSize)
				assert.Equal(t, 500, numSamples)
				assert.Equal(t, int64(0), seed)

				return &baseline.Result{}, nil
			},
		}

		body := `{"space":"glove-840b","strategy":"frequency_weighted","set_size":5,"num_samples":500,"seed":0}`
		req := httptest.NewRequest(http.MethodPost, "/v1/baselines", strings.NewReader(body))
		rec := httptest.NewRecorder()

		newStatsHandler(svc).Baseline(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects unknown strategy", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/baselines",
			strings.NewReader(`{"strategy":"zipf"}`))
		rec := httptest.NewRecorder()

		newStatsHandler(&mockStatsService{}).Baseline(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps configuration error to 400", func(t *testing.T) {
		svc := &mockStatsService{
			baselineFunc: func(_ context.Context, _ string, _ models.BaselineStrategy,
				_, _ int, _ int64) (*baseline.Result, error) {
				return nil, apperrors.NewConfigurationError("set_size",
					"vocabulary has fewer usable terms than the requested sample size")
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/baselines",
			strings.NewReader(`{"set_size":99}`))
		rec := httptest.NewRecorder()

		newStatsHandler(svc).Baseline(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStatsHandler_Ceiling(t *testing.T) {
	t.Run("returns the estimate", func(t *testing.T) {
		svc := &mockStatsService{
			ceilingFunc: func(_ context.Context, space string, setSize, numRestarts int, seed int64) (*models.CeilingEstimate, error) {
				assert.Equal(t, "test-space", space)
				assert.Equal(t, 10, setSize)
				assert.Equal(t, 5, numRestarts)
				assert.Equal(t, int64(42), seed)

				return &models.CeilingEstimate{
					Space: space, SetSize: setSize, NumRestarts: numRestarts, Seed: seed,
					Best: 112.4, BestTerms: []string{"a", "b"},
				}, nil
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/ceiling", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()

		newStatsHandler(svc).Ceiling(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp models.CeilingEstimate
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.InDelta(t, 112.4, resp.Best, 1e-9)
	})

	t.Run("maps missing space to 404", func(t *testing.T) {
		svc := &mockStatsService{
			ceilingFunc: func(_ context.Context, _ string, _, _ int, _ int64) (*models.CeilingEstimate, error) {
				return nil, apperrors.NewNotFoundError("vocabulary space", "no embedded terms")
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/ceiling",
			strings.NewReader(`{"space":"word2vec"}`))
		rec := httptest.NewRecorder()

		newStatsHandler(svc).Ceiling(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

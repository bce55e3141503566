package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/semlab/sembench/internal/apperrors"
	"github.com/semlab/sembench/internal/baseline"
	"github.com/semlab/sembench/internal/ceiling"
	"github.com/semlab/sembench/internal/models"
	"github.com/semlab/sembench/internal/vocab"
	"github.com/semlab/sembench/pkg/cache"
)

const (
	poolCacheSize     = 8
	estimateCacheSize = 64
)

// PoolLoader loads the vocabulary pool for a space.
type PoolLoader interface {
	LoadPool(ctx context.Context, space string) (*vocab.Pool, error)
}

// EstimateStore persists computed estimates. May be nil (no persistence).
type EstimateStore interface {
	SaveBaseline(ctx context.Context, baseline models.BaselineDistribution) error
	SaveCeiling(ctx context.Context, ceiling models.CeilingEstimate) error
}

type baselineKey struct {
	Space      string
	Strategy   models.BaselineStrategy
	SetSize    int
	NumSamples int
	Seed       int64
}

type ceilingKey struct {
	Space       string
	SetSize     int
	NumRestarts int
	Seed        int64
}

// StatsService computes baseline distributions and ceiling estimates over
// vocabulary pools. Both estimates are pure functions of their parameter key
// and the pool snapshot, so results are memoized: concurrent requests for the
// same key share a single computation.
type StatsService struct {
	loader   PoolLoader
	store    EstimateStore
	baseline *baseline.Estimator
	ceiling  *ceiling.Estimator

	pools     *cache.LoaderCache[string, *vocab.Pool]
	baselines *cache.LoaderCache[baselineKey, *baseline.Result]
	ceilings  *cache.LoaderCache[ceilingKey, *models.CeilingEstimate]

	logger *slog.Logger
}

// StatsServiceParams configures StatsService. Store and Logger may be nil.
type StatsServiceParams struct {
	Loader PoolLoader
	Store  EstimateStore
	Logger *slog.Logger
}

// NewStatsService creates a StatsService.
func NewStatsService(p StatsServiceParams) (*StatsService, error) {
	if p.Loader == nil {
		return nil, apperrors.NewConfigurationError("loader", "vocabulary pool loader is required")
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pools, err := cache.NewLoaderCache[string, *vocab.Pool](poolCacheSize, func(space string) string {
		return space
	})
	if err != nil {
		return nil, fmt.Errorf("create pool cache: %w", err)
	}

	baselines, err := cache.NewLoaderCache[baselineKey, *baseline.Result](estimateCacheSize, func(k baselineKey) string {
		return fmt.Sprintf("%s|%s|%d|%d|%d", k.Space, k.Strategy, k.SetSize, k.NumSamples, k.Seed)
	})
	if err != nil {
		return nil, fmt.Errorf("create baseline cache: %w", err)
	}

	ceilings, err := cache.NewLoaderCache[ceilingKey, *models.CeilingEstimate](estimateCacheSize, func(k ceilingKey) string {
		return fmt.Sprintf("%s|%d|%d|%d", k.Space, k.SetSize, k.NumRestarts, k.Seed)
	})
	if err != nil {
		return nil, fmt.Errorf("create ceiling cache: %w", err)
	}

	return &StatsService{
		loader:    p.Loader,
		store:     p.Store,
		baseline:  baseline.NewEstimator(),
		ceiling:   ceiling.NewEstimator(),
		pools:     pools,
		baselines: baselines,
		ceilings:  ceilings,
		logger:    logger,
	}, nil
}

// Pool returns the vocabulary pool for the space, loading it at most once per
// cache lifetime. Pools are immutable snapshots; invalidate after backfills.
func (s *StatsService) Pool(ctx context.Context, space string) (*vocab.Pool, error) {
	return s.pools.Get(ctx, space, s.loader.LoadPool)
}

// InvalidatePool drops the cached pool and every estimate computed from it.
// Call after vocabulary backfills so fresh embeddings become visible.
func (s *StatsService) InvalidatePool(space string) {
	s.pools.Invalidate(space)
	s.baselines.InvalidateAll()
	s.ceilings.InvalidateAll()
}

// Baseline returns the baseline divergence distribution for the parameter
// key, computing and persisting it on first use.
func (s *StatsService) Baseline(
	ctx context.Context,
	space string,
	strategy models.BaselineStrategy,
	setSize, numSamples int,
	seed int64,
) (*baseline.Result, error) {
	key := baselineKey{Space: space, Strategy: strategy, SetSize: setSize, NumSamples: numSamples, Seed: seed}

	return s.baselines.Get(ctx, key, func(ctx context.Context, k baselineKey) (*baseline.Result, error) {
		pool, err := s.Pool(ctx, k.Space)
		if err != nil {
			return nil, err
		}

		result, err := s.baseline.Estimate(k.Strategy, pool, k.SetSize, k.NumSamples, k.Seed)
		if err != nil {
			return nil, err
		}

		s.logger.InfoContext(ctx, "baseline estimated",
			"space", k.Space,
			"strategy", string(k.Strategy),
			"set_size", k.SetSize,
			"num_samples", k.NumSamples,
			"mean", result.Mean,
			"sd", result.SD,
		)

		if s.store != nil {
			if err := s.store.SaveBaseline(ctx, result.BaselineDistribution); err != nil {
				// Persistence is best-effort; the in-memory result is correct.
				s.logger.WarnContext(ctx, "baseline persist failed", "error", err)
			}
		}

		return result, nil
	})
}

// Ceiling returns the greedy ceiling estimate for the parameter key,
// computing and persisting it on first use.
func (s *StatsService) Ceiling(
	ctx context.Context,
	space string,
	setSize, numRestarts int,
	seed int64,
) (*models.CeilingEstimate, error) {
	key := ceilingKey{Space: space, SetSize: setSize, NumRestarts: numRestarts, Seed: seed}

	return s.ceilings.Get(ctx, key, func(ctx context.Context, k ceilingKey) (*models.CeilingEstimate, error) {
		pool, err := s.Pool(ctx, k.Space)
		if err != nil {
			return nil, err
		}

		estimate, err := s.ceiling.Estimate(pool, k.SetSize, k.NumRestarts, k.Seed)
		if err != nil {
			return nil, err
		}

		s.logger.InfoContext(ctx, "ceiling estimated",
			"space", k.Space,
			"set_size", k.SetSize,
			"num_restarts", k.NumRestarts,
			"best", estimate.Best,
		)

		if s.store != nil {
			if err := s.store.SaveCeiling(ctx, *estimate); err != nil {
				s.logger.WarnContext(ctx, "ceiling persist failed", "error", err)
			}
		}

		return estimate, nil
	})
}

// Normalization locates a score against a baseline distribution.
type Normalization struct {
	ZScore     float64 `json:"z_score"`
	Percentile float64 `json:"percentile"`
}

// Normalize locates score against the baseline for the parameter key.
func (s *StatsService) Normalize(
	ctx context.Context,
	score float64,
	space string,
	strategy models.BaselineStrategy,
	setSize, numSamples int,
	seed int64,
) (*Normalization, error) {
	base, err := s.Baseline(ctx, space, strategy, setSize, numSamples, seed)
	if err != nil {
		return nil, err
	}

	return &Normalization{
		ZScore:     base.ZScore(score),
		Percentile: base.Percentile(score),
	}, nil
}

// Package service contains the application services gluing embedding
// providers, scorers and estimators together behind the API and the
// experiment orchestrator.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/semlab/sembench/internal/apperrors"
	"github.com/semlab/sembench/internal/embeddings"
	"github.com/semlab/sembench/internal/scoring"
)

// ProviderRegistry resolves embedding providers by space name.
type ProviderRegistry interface {
	Provider(space string) (embeddings.Provider, error)
	Spaces() []string
}

// ScoringService scores term sets for divergence and clue sequences for
// bridging relevance. It implements the orchestrator's trial scorer against
// the default space.
type ScoringService struct {
	registry     ProviderRegistry
	defaultSpace string
	setSize      int
	divergence   *scoring.DivergenceScorer
	bridging     *scoring.BridgingScorer
	logger       *slog.Logger
}

// ScoringServiceParams configures ScoringService. Logger may be nil.
type ScoringServiceParams struct {
	Registry     ProviderRegistry
	DefaultSpace string
	SetSize      int
	ZeroPolicy   scoring.ZeroVectorPolicy
	Logger       *slog.Logger
}

// NewScoringService creates a ScoringService.
func NewScoringService(p ScoringServiceParams) (*ScoringService, error) {
	if p.Registry == nil {
		return nil, apperrors.NewConfigurationError("registry", "embedding provider registry is required")
	}

	if p.DefaultSpace == "" {
		return nil, apperrors.NewConfigurationError("default_space", "default embedding space is required")
	}

	if p.SetSize < 2 {
		return nil, apperrors.NewConfigurationError("set_size", "set size must be at least 2")
	}

	zeroPolicy := p.ZeroPolicy
	if zeroPolicy == "" {
		zeroPolicy = scoring.ZeroVectorExclude
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ScoringService{
		registry:     p.Registry,
		defaultSpace: p.DefaultSpace,
		setSize:      p.SetSize,
		divergence:   scoring.NewDivergenceScorer(0, scoring.WithZeroVectorPolicy(zeroPolicy)),
		bridging:     scoring.NewBridgingScorer(nil),
		logger:       logger,
	}, nil
}

// DivergenceScore is a scored term set with its excluded terms named, so
// callers can see exactly which terms fell out of the statistic.
type DivergenceScore struct {
	Score         float64  `json:"score"`
	Valid         bool     `json:"valid"`
	Pairs         int      `json:"pairs"`
	ExcludedTerms []string `json:"excluded_terms,omitempty"`
	Band          string   `json:"band"`
	Space         string   `json:"space"`
}

// ScoreTerms scores one generated term set against the default space. The
// second return is false when the set cannot produce a valid score (fewer
// than two embeddable terms); that is an exclusion, not an error.
func (s *ScoringService) ScoreTerms(ctx context.Context, terms []string) (float64, bool, error) {
	result, err := s.ScoreDivergence(ctx, s.defaultSpace, terms)
	if err != nil {
		return 0, false, err
	}

	return result.Score, result.Valid, nil
}

// ScoreDivergence scores a term set within the named space. Out-of-vocabulary
// terms are excluded and reported; collaborator failures are errors.
func (s *ScoringService) ScoreDivergence(ctx context.Context, space string, terms []string) (*DivergenceScore, error) {
	if len(terms) < 2 {
		return nil, apperrors.NewValidationError("terms", "at least two terms are required")
	}

	provider, err := s.registry.Provider(space)
	if err != nil {
		return nil, err
	}

	vectors, excluded, err := s.embedTerms(ctx, provider, terms)
	if err != nil {
		return nil, err
	}

	res := s.divergence.Score(vectors)

	if !res.Valid {
		s.logger.InfoContext(ctx, "divergence: set not scorable",
			"space", space,
			"terms", len(terms),
			"excluded", len(excluded),
		)
	}

	return &DivergenceScore{
		Score:         res.Score,
		Valid:         res.Valid,
		Pairs:         res.Pairs,
		ExcludedTerms: excluded,
		Band:          scoring.Interpret(scoring.DefaultDivergenceBands, res.Score),
		Space:         space,
	}, nil
}

// BridgingScore is a scored clue sequence.
type BridgingScore struct {
	scoring.BridgingResult

	ExcludedClues []string `json:"excluded_clues,omitempty"`
	Space         string   `json:"space"`
}

// ScoreBridging scores a clue sequence against an anchor pair within the
// named space. An out-of-vocabulary anchor or target is a validation error;
// out-of-vocabulary clues are excluded and reported.
func (s *ScoringService) ScoreBridging(
	ctx context.Context, space string, clues []string, anchor, target string,
) (*BridgingScore, error) {
	if len(clues) == 0 {
		return nil, apperrors.NewValidationError("clues", "at least one clue is required")
	}

	provider, err := s.registry.Provider(space)
	if err != nil {
		return nil, err
	}

	anchorVec, err := s.embedEndpoint(ctx, provider, "anchor", anchor)
	if err != nil {
		return nil, err
	}

	targetVec, err := s.embedEndpoint(ctx, provider, "target", target)
	if err != nil {
		return nil, err
	}

	clueVecs, excluded, err := s.embedTerms(ctx, provider, clues)
	if err != nil {
		return nil, err
	}

	res, err := s.bridging.Score(clueVecs, anchorVec, targetVec)
	if err != nil {
		return nil, err
	}

	return &BridgingScore{BridgingResult: res, ExcludedClues: excluded, Space: space}, nil
}

// embedTerms resolves each term to its vector. Out-of-vocabulary terms map to
// a nil vector (the scorers exclude those) and are collected by name.
func (s *ScoringService) embedTerms(
	ctx context.Context, provider embeddings.Provider, terms []string,
) ([][]float32, []string, error) {
	vectors := make([][]float32, len(terms))

	var excluded []string

	for i, term := range terms {
		vec, err := provider.Embed(ctx, term)
		if err != nil {
			if errors.Is(err, apperrors.ErrOutOfVocabulary) {
				excluded = append(excluded, term)

				continue
			}

			return nil, nil, fmt.Errorf("embed term: %w", err)
		}

		vectors[i] = vec
	}

	return vectors, excluded, nil
}

// embedEndpoint resolves an anchor-pair endpoint, turning a missing
// vocabulary entry into a validation error since bridging cannot be scored
// without both endpoints.
func (s *ScoringService) embedEndpoint(
	ctx context.Context, provider embeddings.Provider, field, term string,
) ([]float32, error) {
	vec, err := provider.Embed(ctx, term)
	if err != nil {
		if errors.Is(err, apperrors.ErrOutOfVocabulary) {
			return nil, apperrors.NewValidationError(field, field+" term is not in the embedding space")
		}

		return nil, fmt.Errorf("embed %s: %w", field, err)
	}

	return vec, nil
}

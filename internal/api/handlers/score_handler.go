package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/semlab/sembench/internal/api/response"
	"github.com/semlab/sembench/internal/api/validation"
	"github.com/semlab/sembench/internal/models"
	"github.com/semlab/sembench/internal/service"
)

// ScoringService defines the scoring operations the handler exposes.
type ScoringService interface {
	ScoreDivergence(ctx context.Context, space string, terms []string) (*service.DivergenceScore, error)
	ScoreBridging(ctx context.Context, space string, clues []string, anchor, target string) (*service.BridgingScore, error)
}

// Normalizer locates a score against a baseline distribution.
type Normalizer interface {
	Normalize(
		ctx context.Context,
		score float64,
		space string,
		strategy models.BaselineStrategy,
		setSize, numSamples int,
		seed int64,
	) (*service.Normalization, error)
}

// ScoreHandler handles HTTP requests for divergence and bridging scoring.
type ScoreHandler struct {
	service    ScoringService
	normalizer Normalizer

	defaultSpace    string
	baselineSamples int
	seed            int64
}

// ScoreHandlerParams configures ScoreHandler. Normalizer may be nil to
// disable score normalization.
type ScoreHandlerParams struct {
	Service         ScoringService
	Normalizer      Normalizer
	DefaultSpace    string
	BaselineSamples int
	Seed            int64
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(p ScoreHandlerParams) *ScoreHandler {
	return &ScoreHandler{
		service:         p.Service,
		normalizer:      p.Normalizer,
		defaultSpace:    p.DefaultSpace,
		baselineSamples: p.BaselineSamples,
		seed:            p.Seed,
	}
}

// DivergenceRequest is the body for POST /v1/score/divergence.
type DivergenceRequest struct {
	Space     string   `json:"space"     validate:"omitempty,no_null_bytes"`
	Terms     []string `json:"terms"     validate:"required,min=2,max=100,dive,required,no_null_bytes"`
	Normalize bool     `json:"normalize"`
}

// DivergenceResponse is the response for divergence scoring.
type DivergenceResponse struct {
	*service.DivergenceScore

	Normalization *service.Normalization `json:"normalization,omitempty"`
}

// Divergence handles POST /v1/score/divergence.
func (h *ScoreHandler) Divergence(w http.ResponseWriter, r *http.Request) {
	var req DivergenceRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if err := validation.ValidateStruct(req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	space := req.Space
	if space == "" {
		space = h.defaultSpace
	}

	score, err := h.service.ScoreDivergence(r.Context(), space, req.Terms)
	if err != nil {
		response.RespondAppError(w, err)

		return
	}

	resp := DivergenceResponse{DivergenceScore: score}

	if req.Normalize && h.normalizer != nil && score.Valid {
		norm, err := h.normalizer.Normalize(
			r.Context(), score.Score, space, models.BaselineUniform, len(req.Terms), h.baselineSamples, h.seed)
		if err != nil {
			response.RespondAppError(w, err)

			return
		}

		resp.Normalization = norm
	}

	response.RespondJSON(w, http.StatusOK, resp)
}

// BridgingRequest is the body for POST /v1/score/bridging.
type BridgingRequest struct {
	Space  string   `json:"space"  validate:"omitempty,no_null_bytes"`
	Clues  []string `json:"clues"  validate:"required,min=1,max=100,dive,required,no_null_bytes"`
	Anchor string   `json:"anchor" validate:"required,no_null_bytes"`
	Target string   `json:"target" validate:"required,no_null_bytes"`
}

// Bridging handles POST /v1/score/bridging.
func (h *ScoreHandler) Bridging(w http.ResponseWriter, r *http.Request) {
	var req BridgingRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if err := validation.ValidateStruct(req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	space := req.Space
	if space == "" {
		space = h.defaultSpace
	}

	score, err := h.service.ScoreBridging(r.Context(), space, req.Clues, req.Anchor, req.Target)
	if err != nil {
		response.RespondAppError(w, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, score)
}

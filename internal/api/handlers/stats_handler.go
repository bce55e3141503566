package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/semlab/sembench/internal/api/response"
	"github.com/semlab/sembench/internal/api/validation"
	"github.com/semlab/sembench/internal/baseline"
	"github.com/semlab/sembench/internal/models"
)

// StatsService defines the estimation operations the handler exposes.
type StatsService interface {
	Baseline(
		ctx context.Context,
		space string,
		strategy models.BaselineStrategy,
		setSize, numSamples int,
		seed int64,
	) (*baseline.Result, error)
	Ceiling(ctx context.Context, space string, setSize, numRestarts int, seed int64) (*models.CeilingEstimate, error)
}

// StatsHandler handles HTTP requests for baseline and ceiling estimation.
type StatsHandler struct {
	service StatsService

	defaultSpace    string
	defaultSetSize  int
	baselineSamples int
	ceilingRestarts int
	seed            int64
}

// StatsHandlerParams configures StatsHandler.
type StatsHandlerParams struct {
	Service         StatsService
	DefaultSpace    string
	DefaultSetSize  int
	BaselineSamples int
	CeilingRestarts int
	Seed            int64
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(p StatsHandlerParams) *StatsHandler {
	return &StatsHandler{
		service:         p.Service,
		defaultSpace:    p.DefaultSpace,
		defaultSetSize:  p.DefaultSetSize,
		baselineSamples: p.BaselineSamples,
		ceilingRestarts: p.CeilingRestarts,
		seed:            p.Seed,
	}
}

// BaselineRequest is the body for POST /v1/baselines. Zero values fall back
// to the server defaults; Seed is pointer-typed because 0 is a valid seed.
type BaselineRequest struct {
	Space      string                  `json:"space"       validate:"omitempty,no_null_bytes"`
	Strategy   models.BaselineStrategy `json:"strategy"    validate:"baseline_strategy"`
	SetSize    int                     `json:"set_size"    validate:"omitempty,gte=2,lte=100"`
	NumSamples int                     `json:"num_samples" validate:"omitempty,gte=1,lte=1000000"`
	Seed       *int64                  `json:"seed"`
}

// Baseline handles POST /v1/baselines.
func (h *StatsHandler) Baseline(w http.ResponseWriter, r *http.Request) {
	var req BaselineRequest

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

	strategy := req.Strategy
	if strategy == "" {
		strategy = models.BaselineUniform
	}

	setSize := req.SetSize
	if setSize == 0 {
		setSize = h.defaultSetSize
	}

	numSamples := req.NumSamples
	if numSamples == 0 {
		numSamples = h.baselineSamples
	}

	seed := h.seed
	if req.Seed != nil {
		seed = *req.Seed
	}

	result, err := h.service.Baseline(r.Context(), space, strategy, setSize, numSamples, seed)
	if err != nil {
		response.RespondAppError(w, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, result.BaselineDistribution)
}

// CeilingRequest is the body for POST /v1/ceiling.
type CeilingRequest struct {
	Space       string `json:"space"        validate:"omitempty,no_null_bytes"`
	SetSize     int    `json:"set_size"     validate:"omitempty,gte=2,lte=100"`
	NumRestarts int    `json:"num_restarts" validate:"omitempty,gte=1,lte=1000"`
	Seed        *int64 `json:"seed"`
}

// Ceiling handles POST /v1/ceiling.
func (h *StatsHandler) Ceiling(w http.ResponseWriter, r *http.Request) {
	var req CeilingRequest

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

	setSize := req.SetSize
	if setSize == 0 {
		setSize = h.defaultSetSize
	}

	numRestarts := req.NumRestarts
	if numRestarts == 0 {
		numRestarts = h.ceilingRestarts
	}

	seed := h.seed
	if req.Seed != nil {
		seed = *req.Seed
	}

	estimate, err := h.service.Ceiling(r.Context(), space, setSize, numRestarts, seed)
	if err != nil {
		response.RespondAppError(w, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, estimate)
}

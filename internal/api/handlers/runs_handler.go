package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/semlab/sembench/internal/api/response"
	"github.com/semlab/sembench/internal/api/validation"
	"github.com/semlab/sembench/internal/models"
)

// RunStore provides read access to persisted experiment runs.
type RunStore interface {
	GetRunSummary(ctx context.Context, runID uuid.UUID) (*models.RunSummary, error)
	ListTrials(ctx context.Context, runID uuid.UUID) ([]models.Trial, error)
}

// RunsHandler handles HTTP requests for experiment run results.
type RunsHandler struct {
	store RunStore
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(store RunStore) *RunsHandler {
	return &RunsHandler{store: store}
}

// Get handles GET /v1/runs/{id}.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		response.RespondBadRequest(w, "Invalid run ID")

		return
	}

	summary, err := h.store.GetRunSummary(r.Context(), id)
	if err != nil {
		response.RespondAppError(w, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, summary)
}

// TrialsQuery filters the trial listing.
type TrialsQuery struct {
	// Condition restricts the listing to one condition key.
	Condition string `form:"condition" validate:"omitempty,max=200,no_null_bytes"`
	// Pilot selects pilot (true) or main-run (false) trials; nil means both.
	Pilot *bool `form:"pilot"`
	// Valid selects valid (true) or invalid (false) trials; nil means both.
	Valid *bool `form:"valid"`
}

// Trials handles GET /v1/runs/{id}/trials.
func (h *RunsHandler) Trials(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		response.RespondBadRequest(w, "Invalid run ID")

		return
	}

	var query TrialsQuery
	if err := validation.ValidateAndDecodeQueryParams(r, &query); err != nil {
		response.RespondBadRequest(w, err.Error())

		return
	}

	// Distinguish "run absent" from "run exists with no trials yet".
	if _, err := h.store.GetRunSummary(r.Context(), id); err != nil {
		response.RespondAppError(w, err)

		return
	}

	trials, err := h.store.ListTrials(r.Context(), id)
	if err != nil {
		response.RespondAppError(w, err)

		return
	}

	filtered := make([]models.Trial, 0, len(trials))

	for _, trial := range trials {
		if query.Condition != "" && trial.ConditionKey != query.Condition {
			continue
		}

		if query.Pilot != nil && trial.Pilot != *query.Pilot {
			continue
		}

		if query.Valid != nil && trial.Valid != *query.Valid {
			continue
		}

		filtered = append(filtered, trial)
	}

	response.RespondJSON(w, http.StatusOK, filtered)
}

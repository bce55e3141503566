package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/semlab/sembench/internal/apperrors"
	"github.com/semlab/sembench/internal/models"
)

// ResultsRepository persists runs, trials, baselines and ceiling estimates.
// It is the durable sink behind the orchestrator: trials are written as they
// complete so a cancelled run still leaves its partial results on disk.
type ResultsRepository struct {
	db *pgxpool.Pool
}

// NewResultsRepository creates a new results repository.
func NewResultsRepository(db *pgxpool.Pool) *ResultsRepository {
	return &ResultsRepository{db: db}
}

// SaveTrial inserts one trial row. Trials are immutable; re-saving the same
// trial ID is a no-op so retried sink calls stay idempotent.
func (r *ResultsRepository) SaveTrial(ctx context.Context, trial models.Trial) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO trials (
			id, run_id, condition_key, raw_response, terms,
			score, valid, invalid_reason, attempts, pilot, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		trial.ID, trial.RunID, trial.ConditionKey, trial.RawResponse, trial.Terms,
		trial.Score, trial.Valid, trial.InvalidReason, trial.Attempts, trial.Pilot, trial.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("trial insert: %w", err)
	}

	return nil
}

// SaveRunSummary upserts the run row. The structured parts (determinism,
// power, condition summaries, warnings) are stored as a JSON document next to
// the queryable state columns.
func (r *ResultsRepository) SaveRunSummary(ctx context.Context, summary models.RunSummary) error {
	doc, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO runs (id, state, summary, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET state = EXCLUDED.state, summary = EXCLUDED.summary, finished_at = EXCLUDED.finished_at`,
		summary.RunID, string(summary.State), doc, summary.StartedAt, summary.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("run summary upsert: %w", err)
	}

	return nil
}

// GetRunSummary returns the stored summary for a run.
// Returns a NotFoundError when the run does not exist.
func (r *ResultsRepository) GetRunSummary(ctx context.Context, runID uuid.UUID) (*models.RunSummary, error) {
	var doc []byte

	err := r.db.QueryRow(ctx, `SELECT summary FROM runs WHERE id = $1`, runID).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("run", runID.String())
		}

		return nil, fmt.Errorf("get run summary: %w", err)
	}

	var summary models.RunSummary
	if err := json.Unmarshal(doc, &summary); err != nil {
		return nil, fmt.Errorf("unmarshal run summary: %w", err)
	}

	return &summary, nil
}

// ListTrials returns all trials of a run in insertion order.
func (r *ResultsRepository) ListTrials(ctx context.Context, runID uuid.UUID) ([]models.Trial, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, run_id, condition_key, raw_response, terms,
		       score, valid, invalid_reason, attempts, pilot, created_at
		FROM trials
		WHERE run_id = $1
		ORDER BY created_at, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list trials: %w", err)
	}
	defer rows.Close()

	var trials []models.Trial

	for rows.Next() {
		var trial models.Trial

		err := rows.Scan(
			&trial.ID, &trial.RunID, &trial.ConditionKey, &trial.RawResponse, &trial.Terms,
			&trial.Score, &trial.Valid, &trial.InvalidReason, &trial.Attempts, &trial.Pilot, &trial.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}

		trials = append(trials, trial)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trials: %w", err)
	}

	return trials, nil
}

// SaveBaseline stores one baseline distribution, replacing any previous
// estimate for the same (space, strategy, set_size, num_samples, seed) key.
func (r *ResultsRepository) SaveBaseline(ctx context.Context, baseline models.BaselineDistribution) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO baselines (space, strategy, set_size, num_samples, seed, mean, sd, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (space, strategy, set_size, num_samples, seed)
		DO UPDATE SET mean = EXCLUDED.mean, sd = EXCLUDED.sd, created_at = now()`,
		baseline.Space, string(baseline.Strategy), baseline.SetSize,
		baseline.NumSamples, baseline.Seed, baseline.Mean, baseline.SD,
	)
	if err != nil {
		return fmt.Errorf("baseline upsert: %w", err)
	}

	return nil
}

// GetBaseline returns the stored baseline for the exact parameter key.
// Returns a NotFoundError when no estimate has been computed yet.
func (r *ResultsRepository) GetBaseline(
	ctx context.Context,
	space string,
	strategy models.BaselineStrategy,
	setSize, numSamples int,
	seed int64,
) (*models.BaselineDistribution, error) {
	baseline := models.BaselineDistribution{
		Strategy:   strategy,
		Space:      space,
		SetSize:    setSize,
		NumSamples: numSamples,
		Seed:       seed,
	}

	err := r.db.QueryRow(ctx, `
		SELECT mean, sd FROM baselines
		WHERE space = $1 AND strategy = $2 AND set_size = $3 AND num_samples = $4 AND seed = $5`,
		space, string(strategy), setSize, numSamples, seed,
	).Scan(&baseline.Mean, &baseline.SD)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("baseline", "no baseline for the given parameters")
		}

		return nil, fmt.Errorf("get baseline: %w", err)
	}

	return &baseline, nil
}

// SaveCeiling stores one ceiling estimate, replacing any previous estimate
// for the same (space, set_size, num_restarts, seed) key.
func (r *ResultsRepository) SaveCeiling(ctx context.Context, ceiling models.CeilingEstimate) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO ceilings (
			space, set_size, num_restarts, seed,
			best, best_terms, restart_mean, restart_sd, vocab_scanned, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (space, set_size, num_restarts, seed)
		DO UPDATE SET best = EXCLUDED.best, best_terms = EXCLUDED.best_terms,
		              restart_mean = EXCLUDED.restart_mean, restart_sd = EXCLUDED.restart_sd,
		              vocab_scanned = EXCLUDED.vocab_scanned, created_at = now()`,
		ceiling.Space, ceiling.SetSize, ceiling.NumRestarts, ceiling.Seed,
		ceiling.Best, ceiling.BestTerms, ceiling.RestartMean, ceiling.RestartSD, ceiling.VocabScanned,
	)
	if err != nil {
		return fmt.Errorf("ceiling upsert: %w", err)
	}

	return nil
}

// GetCeiling returns the stored ceiling estimate for the exact parameter key.
// Returns a NotFoundError when no estimate has been computed yet.
func (r *ResultsRepository) GetCeiling(
	ctx context.Context,
	space string,
	setSize, numRestarts int,
	seed int64,
) (*models.CeilingEstimate, error) {
	ceiling := models.CeilingEstimate{
		Space:       space,
		SetSize:     setSize,
		NumRestarts: numRestarts,
		Seed:        seed,
	}

	err := r.db.QueryRow(ctx, `
		SELECT best, best_terms, restart_mean, restart_sd, vocab_scanned
		FROM ceilings
		WHERE space = $1 AND set_size = $2 AND num_restarts = $3 AND seed = $4`,
		space, setSize, numRestarts, seed,
	).Scan(&ceiling.Best, &ceiling.BestTerms, &ceiling.RestartMean, &ceiling.RestartSD, &ceiling.VocabScanned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("ceiling", "no ceiling estimate for the given parameters")
		}

		return nil, fmt.Errorf("get ceiling: %w", err)
	}

	return &ceiling, nil
}

// Package orchestrator drives an experimental run end to end: a determinism
// probe at zero temperature, a pilot to estimate score variance, power
// analysis to size the design, and the main run over the full cross-product
// of conditions, all behind one shared rate gate.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/semlab/sembench/internal/apperrors"
	"github.com/semlab/sembench/internal/generation"
	"github.com/semlab/sembench/internal/models"
	"github.com/semlab/sembench/internal/observability"
	"github.com/semlab/sembench/internal/stats"
)

// TrialScorer turns a validated term set into a divergence (or bridging)
// score. Implementations are pure with respect to orchestrator state, so
// scoring may overlap with waiting on the rate gate.
type TrialScorer interface {
	// ScoreTerms returns the score and whether the set was scorable (at
	// least two terms with embeddings). A non-nil error reports a transient
	// collaborator failure, retried under the trial's retry cap.
	ScoreTerms(ctx context.Context, terms []string) (float64, bool, error)
}

// ResultSink receives finished trials and the run summary as plain records.
// Persistence format is the sink's concern, not the orchestrator's.
type ResultSink interface {
	SaveTrial(ctx context.Context, trial models.Trial) error
	SaveRunSummary(ctx context.Context, summary models.RunSummary) error
}

// Config holds the experiment parameters. All state that affects results
// (seeds, sizes, thresholds) is explicit here; nothing is ambient.
type Config struct {
	// SetSize is the number of terms each generation must produce.
	SetSize int
	// DeterminismProbes is the number of identical zero-temperature requests
	// issued before the run (e.g. 5).
	DeterminismProbes int
	// PilotTrialsPerCondition sizes the variance pilot (e.g. 3).
	PilotTrialsPerCondition int
	// RetryLimit caps retries per trial after transient failures.
	RetryLimit int
	// MinDelay is the global minimum spacing between generation requests.
	MinDelay time.Duration
	// RequestTimeout bounds one generation request; expiry counts as a
	// transient failure.
	RequestTimeout time.Duration
	// ExcludedTerms are rejected during validation (novelty lists).
	ExcludedTerms []string
	// Power declares the sample-size targets.
	Power PowerConfig
}

// Deps holds the orchestrator's collaborators.
type Deps struct {
	Generator generation.Client
	Scorer    TrialScorer
	// Validator approves single terms (e.g. noun-only policy); nil accepts all.
	Validator TermValidator
	// Sink receives results; nil disables persistence.
	Sink ResultSink
	// Metrics may be nil when metrics are disabled.
	Metrics observability.TrialMetrics
}

// Orchestrator runs one experimental design. Requests are issued
// sequentially with respect to the shared gate; a cooperative stop signal is
// checked between trials, never mid-request.
type Orchestrator struct {
	cfg      Config
	deps     Deps
	gate     *Gate
	excluded map[string]struct{}
}

// New creates an orchestrator. Returns a ConfigurationError when the
// parameters can never produce a valid run; nothing is issued in that case.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if cfg.SetSize < 2 {
		return nil, apperrors.NewConfigurationError("set_size", "set size must be at least 2")
	}

	if deps.Generator == nil {
		return nil, apperrors.NewConfigurationError("generator", "generation client is required")
	}

	if deps.Scorer == nil {
		return nil, apperrors.NewConfigurationError("scorer", "trial scorer is required")
	}

	if cfg.RetryLimit < 0 {
		return nil, apperrors.NewConfigurationError("retry_limit", "retry limit must not be negative")
	}

	if cfg.PilotTrialsPerCondition < 1 {
		return nil, apperrors.NewConfigurationError("pilot_trials", "pilot needs at least one trial per condition")
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	excluded := make(map[string]struct{}, len(cfg.ExcludedTerms))
	for _, term := range cfg.ExcludedTerms {
		excluded[normalizeOutput(term)] = struct{}{}
	}

	return &Orchestrator{
		cfg:      cfg,
		deps:     deps,
		gate:     NewGate(cfg.MinDelay),
		excluded: excluded,
	}, nil
}

// Run executes the full state machine over the given conditions. On
// cancellation the summary carries the partial results and state "failed";
// the returned error is the context's. Per-trial failures never abort the
// run.
func (o *Orchestrator) Run(ctx context.Context, conditions []models.Condition) (*models.RunSummary, error) {
	if len(conditions) == 0 {
		return nil, apperrors.NewConfigurationError("conditions", "at least one condition is required")
	}

	summary := &models.RunSummary{
		RunID:     uuid.New(),
		State:     models.RunStateConfigured,
		StartedAt: time.Now(),
	}

	ctx = context.WithValue(ctx, observability.RunIDKey, summary.RunID.String())
	slog.InfoContext(ctx, "run configured",
		"conditions", len(conditions),
		"set_size", o.cfg.SetSize,
		"min_delay", o.cfg.MinDelay,
	)

	// DETERMINISM_CHECK
	summary.State = models.RunStateDeterminismCheck

	determinism, err := o.determinismCheck(ctx, conditions[0])
	if err != nil {
		return o.fail(ctx, summary, err)
	}

	summary.Determinism = determinism
	if determinism.NonDeterministic {
		summary.Warnings = append(summary.Warnings,
			"zero-temperature output is not deterministic; each call counts as one independent observation")
	}

	// PILOT
	summary.State = models.RunStatePilot

	pilotScores, pilotExcluded, err := o.pilot(ctx, summary, conditions)
	if err != nil {
		return o.fail(ctx, summary, err)
	}

	pilotSD := stats.SampleSD(pilotScores)
	if len(pilotScores) < 2 {
		summary.Warnings = append(summary.Warnings,
			"pilot yielded fewer than two valid trials; sample size falls back to the configured floor")
	}

	// POWER_ANALYSIS
	summary.State = models.RunStatePowerAnalysis

	power := PlanPower(o.cfg.Power, pilotSD, len(pilotScores)+pilotExcluded, pilotExcluded)
	summary.Power = &power

	slog.InfoContext(ctx, "power analysis complete",
		"pilot_sd", power.PilotSD,
		"required_n", power.RequiredN,
		"trials_per_group", power.TrialsPerGroup,
		"floor_applied", power.FloorApplied,
	)

	// MAIN_RUN
	summary.State = models.RunStateMainRun

	if err := o.mainRun(ctx, summary, conditions, power.TrialsPerGroup); err != nil {
		return o.fail(ctx, summary, err)
	}

	o.summarize(summary, conditions)

	summary.State = models.RunStateComplete
	summary.FinishedAt = time.Now()

	o.saveSummary(ctx, summary)
	slog.InfoContext(ctx, "run complete",
		"trials", len(summary.Trials),
		"warnings", len(summary.Warnings),
	)

	return summary, nil
}

// determinismCheck issues identical zero-temperature requests and counts
// distinct normalized outputs. Probe failures are warnings, not run failures.
func (o *Orchestrator) determinismCheck(ctx context.Context, cond models.Condition) (*models.DeterminismCheck, error) {
	check := &models.DeterminismCheck{Probes: o.cfg.DeterminismProbes}
	if o.cfg.DeterminismProbes <= 0 {
		return check, nil
	}

	distinct := make(map[string]struct{})

	for i := 0; i < o.cfg.DeterminismProbes; i++ {
		if err := ctx.Err(); err != nil {
			return check, err
		}

		text, err := o.request(ctx, cond.Prompt, 0)
		if err != nil {
			if ctx.Err() != nil {
				return check, ctx.Err()
			}

			slog.WarnContext(ctx, "determinism probe failed", "probe", i, "error", err)

			continue
		}

		normalized := normalizeOutput(text)
		if _, seen := distinct[normalized]; !seen {
			distinct[normalized] = struct{}{}
			check.Samples = append(check.Samples, text)
		}
	}

	check.DistinctOutputs = len(distinct)
	check.NonDeterministic = len(distinct) > 1

	slog.InfoContext(ctx, "determinism check done",
		"probes", check.Probes,
		"distinct_outputs", check.DistinctOutputs,
	)

	return check, nil
}

// pilot runs the fixed pilot trials for every condition and returns the
// valid scores plus the count excluded from the SD estimate.
func (o *Orchestrator) pilot(
	ctx context.Context,
	summary *models.RunSummary,
	conditions []models.Condition,
) ([]float64, int, error) {
	var (
		scores   []float64
		excluded int
	)

	for _, cond := range conditions {
		for i := 0; i < o.cfg.PilotTrialsPerCondition; i++ {
			if err := ctx.Err(); err != nil {
				return scores, excluded, err
			}

			trial, err := o.issueTrial(ctx, summary.RunID, cond, true)
			if err != nil {
				return scores, excluded, err
			}

			summary.Trials = append(summary.Trials, trial)
			o.saveTrial(ctx, trial)

			if trial.Valid {
				scores = append(scores, trial.Score)
			} else {
				excluded++
			}
		}
	}

	slog.InfoContext(ctx, "pilot done", "valid", len(scores), "excluded", excluded)

	return scores, excluded, nil
}

// mainRun issues trialsPerCondition trials for every condition.
func (o *Orchestrator) mainRun(
	ctx context.Context,
	summary *models.RunSummary,
	conditions []models.Condition,
	trialsPerCondition int,
) error {
	for _, cond := range conditions {
		for i := 0; i < trialsPerCondition; i++ {
			// Cooperative stop, checked between trials only.
			if err := ctx.Err(); err != nil {
				return err
			}

			trial, err := o.issueTrial(ctx, summary.RunID, cond, false)
			if err != nil {
				return err
			}

			summary.Trials = append(summary.Trials, trial)
			o.saveTrial(ctx, trial)
		}
	}

	return nil
}

// issueTrial runs one trial: acquire the gate, generate, validate, score.
// Transient collaborator errors and validation failures are retried up to
// the cap; an exhausted trial is returned invalid, never as an error. The
// only error returned is the context's, to stop the run.
func (o *Orchestrator) issueTrial(
	ctx context.Context,
	runID uuid.UUID,
	cond models.Condition,
	pilot bool,
) (models.Trial, error) {
	trial := models.Trial{
		ID:           uuid.New(),
		RunID:        runID,
		ConditionKey: cond.Key,
		Pilot:        pilot,
		CreatedAt:    time.Now(),
	}

	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordTrialIssued(ctx, cond.Key)
	}

	var lastReason string

	for attempt := 1; attempt <= o.cfg.RetryLimit+1; attempt++ {
		trial.Attempts = attempt

		text, err := o.request(ctx, cond.Prompt, cond.Temperature)
		if err != nil {
			if ctx.Err() != nil {
				return trial, ctx.Err()
			}

			lastReason = "collaborator"
			o.retryLog(ctx, cond, attempt, fmt.Errorf("generation: %w", err))

			continue
		}

		trial.RawResponse = text
		terms := parseTerms(text)

		if err := validateTerms(terms, o.cfg.SetSize, o.excluded, o.deps.Validator); err != nil {
			lastReason = "validation"
			trial.InvalidReason = err.Error()
			o.retryLog(ctx, cond, attempt, err)

			continue
		}

		trial.Terms = terms

		score, valid, err := o.deps.Scorer.ScoreTerms(ctx, terms)
		if err != nil {
			if ctx.Err() != nil {
				return trial, ctx.Err()
			}

			lastReason = "collaborator"
			o.retryLog(ctx, cond, attempt, fmt.Errorf("scoring: %w", err))

			continue
		}

		if !valid {
			// Too few embeddable terms is a property of the response, not a
			// transient failure; retrying would re-score the same behavior.
			trial.InvalidReason = "too few embeddable terms to score"

			if o.deps.Metrics != nil {
				o.deps.Metrics.RecordTrialInvalid(ctx, "scoring")
			}

			return trial, nil
		}

		trial.Score = score
		trial.Valid = true
		trial.InvalidReason = ""

		return trial, nil
	}

	if trial.InvalidReason == "" {
		trial.InvalidReason = "retries exhausted"
	}

	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordTrialInvalid(ctx, lastReason)
	}

	slog.WarnContext(ctx, "trial invalid",
		"condition", cond.Key,
		"attempts", trial.Attempts,
		"reason", trial.InvalidReason,
	)

	return trial, nil
}

// request acquires the shared gate and performs one generation call under
// the configured timeout.
func (o *Orchestrator) request(ctx context.Context, prompt string, temperature float64) (string, error) {
	if err := o.gate.Acquire(ctx); err != nil {
		return "", err
	}

	reqCtx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()

	text, err := o.deps.Generator.Generate(reqCtx, prompt, temperature)

	if o.deps.Metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}

		o.deps.Metrics.RecordGenerationDuration(ctx, time.Since(start), status)
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", apperrors.NewCollaboratorError("generation", "request timed out")
		}

		return "", err
	}

	return text, nil
}

func (o *Orchestrator) retryLog(ctx context.Context, cond models.Condition, attempt int, err error) {
	if o.deps.Metrics != nil && attempt <= o.cfg.RetryLimit {
		o.deps.Metrics.RecordRetry(ctx, cond.Key)
	}

	slog.DebugContext(ctx, "trial attempt failed",
		"condition", cond.Key,
		"attempt", attempt,
		"error", err,
	)
}

// summarize fills per-condition statistics from the valid, non-pilot trials.
func (o *Orchestrator) summarize(summary *models.RunSummary, conditions []models.Condition) {
	for _, cond := range conditions {
		cs := models.ConditionSummary{Condition: cond}

		var scores []float64

		for _, trial := range summary.Trials {
			if trial.Pilot || trial.ConditionKey != cond.Key {
				continue
			}

			cs.Trials++

			if trial.Valid {
				cs.ValidTrials++
				scores = append(scores, trial.Score)
			} else {
				cs.InvalidTrials++
			}
		}

		if len(scores) > 0 {
			cs.Mean = stats.Mean(scores)
			cs.SD = stats.SampleSD(scores)
		} else {
			cs.Insufficient = true
			summary.Warnings = append(summary.Warnings,
				"condition "+cond.Key+" finished with zero valid trials")
		}

		summary.Conditions = append(summary.Conditions, cs)
	}
}

// fail finalizes a cancelled or aborted run, preserving partial results.
func (o *Orchestrator) fail(ctx context.Context, summary *models.RunSummary, err error) (*models.RunSummary, error) {
	summary.State = models.RunStateFailed
	summary.FinishedAt = time.Now()
	summary.Warnings = append(summary.Warnings, "run stopped early: "+err.Error())

	o.saveSummary(ctx, summary)
	slog.WarnContext(ctx, "run failed",
		"error", err,
		"trials_preserved", len(summary.Trials),
	)

	return summary, err
}

func (o *Orchestrator) saveTrial(ctx context.Context, trial models.Trial) {
	if o.deps.Sink == nil {
		return
	}

	if err := o.deps.Sink.SaveTrial(ctx, trial); err != nil {
		slog.ErrorContext(ctx, "failed to save trial", "trial_id", trial.ID, "error", err)
	}
}

func (o *Orchestrator) saveSummary(ctx context.Context, summary *models.RunSummary) {
	if o.deps.Sink == nil {
		return
	}

	// Persist with a fresh context so a cancelled run still saves its
	// partial results.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := o.deps.Sink.SaveRunSummary(saveCtx, *summary); err != nil {
		slog.ErrorContext(ctx, "failed to save run summary", "run_id", summary.RunID, "error", err)
	}
}

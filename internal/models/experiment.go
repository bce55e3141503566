package models

import (
	"time"

	"github.com/google/uuid"
)

// RunState is the lifecycle state of an experimental run.
type RunState string

const (
	RunStateConfigured       RunState = "configured"
	RunStateDeterminismCheck RunState = "determinism_check"
	RunStatePilot            RunState = "pilot"
	RunStatePowerAnalysis    RunState = "power_analysis"
	RunStateMainRun          RunState = "main_run"
	RunStateComplete         RunState = "complete"
	RunStateFailed           RunState = "failed"
)

// Condition identifies one cell of the experimental design, e.g. one
// (temperature, prompt-variant) pair, or one (anchor-pair, clue-count) pair
// for bridging experiments.
type Condition struct {
	Key           string  `json:"key"`
	Prompt        string  `json:"prompt"`
	PromptVariant string  `json:"prompt_variant"`
	Temperature   float64 `json:"temperature"`
}

// Trial is one generation request's outcome within a condition.
// Immutable once scored; invalid trials keep their raw response and the
// reason they were excluded.
type Trial struct {
	ID            uuid.UUID `json:"id"`
	RunID         uuid.UUID `json:"run_id"`
	ConditionKey  string    `json:"condition_key"`
	RawResponse   string    `json:"raw_response"`
	Terms         []string  `json:"terms,omitempty"`
	Score         float64   `json:"score"`
	Valid         bool      `json:"valid"`
	InvalidReason string    `json:"invalid_reason,omitempty"`
	Attempts      int       `json:"attempts"`
	Pilot         bool      `json:"pilot"`
	CreatedAt     time.Time `json:"created_at"`
}

// ConditionSummary aggregates the trials of one condition. Statistics cover
// the valid subset only; every exclusion is counted next to the statistic it
// was excluded from.
type ConditionSummary struct {
	Condition     Condition `json:"condition"`
	Trials        int       `json:"trials"`
	ValidTrials   int       `json:"valid_trials"`
	InvalidTrials int       `json:"invalid_trials"`
	Mean          float64   `json:"mean"`
	SD            float64   `json:"sd"`
	// Insufficient flags a condition that ended with zero valid trials.
	// The run still completes; downstream consumers must not treat the
	// zero-valued statistics as observations.
	Insufficient bool `json:"insufficient"`
}

// DeterminismCheck records the outcome of the zero-temperature probe.
// NonDeterministic means repeated identical requests produced more than one
// distinct normalized output; each call then counts as a single independent
// observation rather than a deterministic oracle.
type DeterminismCheck struct {
	Probes           int      `json:"probes"`
	DistinctOutputs  int      `json:"distinct_outputs"`
	NonDeterministic bool     `json:"non_deterministic"`
	Samples          []string `json:"samples,omitempty"`
}

// PowerAnalysis records the sample-size decision derived from the pilot SD.
type PowerAnalysis struct {
	PilotSD        float64   `json:"pilot_sd"`
	PilotTrials    int       `json:"pilot_trials"`
	PilotExcluded  int       `json:"pilot_excluded"`
	Alpha          float64   `json:"alpha"`
	Power          float64   `json:"power"`
	Effects        []float64 `json:"effects"`
	PerEffectN     []int     `json:"per_effect_n"`
	RequiredN      int       `json:"required_n"`
	FloorApplied   bool      `json:"floor_applied"`
	TrialsPerGroup int       `json:"trials_per_group"`
}

// RunSummary is the final record of an experimental run, including partial
// results when the run was cancelled.
type RunSummary struct {
	RunID       uuid.UUID          `json:"run_id"`
	State       RunState           `json:"state"`
	Determinism *DeterminismCheck  `json:"determinism,omitempty"`
	Power       *PowerAnalysis     `json:"power,omitempty"`
	Conditions  []ConditionSummary `json:"conditions"`
	Trials      []Trial            `json:"trials"`
	Warnings    []string           `json:"warnings,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
}

// BaselineStrategy names a baseline sampling strategy.
type BaselineStrategy string

const (
	// BaselineUniform samples terms uniformly at random from the vocabulary.
	BaselineUniform BaselineStrategy = "uniform"
	// BaselineFrequencyWeighted samples terms with probability proportional
	// to corpus frequency, modeling what a low-effort generator would produce.
	BaselineFrequencyWeighted BaselineStrategy = "frequency_weighted"
)

// BaselineDistribution is the empirical divergence distribution under random
// term selection, used as a null comparator.
type BaselineDistribution struct {
	Strategy   BaselineStrategy `json:"strategy"`
	Space      string           `json:"space"`
	SetSize    int              `json:"set_size"`
	NumSamples int              `json:"num_samples"`
	Seed       int64            `json:"seed"`
	Mean       float64          `json:"mean"`
	SD         float64          `json:"sd"`
}

// CeilingEstimate is the best divergence found by greedy search. It is a
// heuristic upper bound, not a true maximum; Best depends on the restart seeds.
type CeilingEstimate struct {
	Space        string   `json:"space"`
	SetSize      int      `json:"set_size"`
	NumRestarts  int      `json:"num_restarts"`
	Seed         int64    `json:"seed"`
	Best         float64  `json:"best"`
	BestTerms    []string `json:"best_terms"`
	RestartMean  float64  `json:"restart_mean"`
	RestartSD    float64  `json:"restart_sd"`
	VocabScanned int      `json:"vocab_scanned"`
}

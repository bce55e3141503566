package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semlab/sembench/internal/apperrors"
	"github.com/semlab/sembench/internal/generation"
	"github.com/semlab/sembench/internal/models"
)

// mockScorer scores a term set by the number of distinct first letters, a
// cheap deterministic stand-in for divergence.
type mockScorer struct {
	scoreFunc func(ctx context.Context, terms []string) (float64, bool, error)
}

func (m *mockScorer) ScoreTerms(ctx context.Context, terms []string) (float64, bool, error) {
	if m.scoreFunc != nil {
		return m.scoreFunc(ctx, terms)
	}

	letters := make(map[byte]struct{})
	for _, term := range terms {
		letters[term[0]] = struct{}{}
	}

	return float64(len(letters)) * 10, true, nil
}

type recordingSink struct {
	mu        sync.Mutex
	trials    []models.Trial
	summaries []models.RunSummary
}

func (s *recordingSink) SaveTrial(_ context.Context, trial models.Trial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trials = append(s.trials, trial)

	return nil
}

func (s *recordingSink) SaveRunSummary(_ context.Context, summary models.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, summary)

	return nil
}

func testConfig() Config {
	return Config{
		SetSize:                 3,
		DeterminismProbes:       2,
		PilotTrialsPerCondition: 2,
		RetryLimit:              2,
		MinDelay:                0,
		RequestTimeout:          time.Second,
		Power: PowerConfig{
			Alpha:   0.05,
			Power:   0.80,
			Effects: []float64{5.0},
			FloorN:  4,
		},
	}
}

func testConditions() []models.Condition {
	return []models.Condition{
		{Key: "t0.0-v1", Prompt: "list three unrelated nouns", PromptVariant: "v1", Temperature: 0},
		{Key: "t1.0-v1", Prompt: "list three unrelated nouns", PromptVariant: "v1", Temperature: 1.0},
	}
}

func TestNew(t *testing.T) {
	t.Run("rejects bad configuration before any work", func(t *testing.T) {
		gen := &generation.MockClient{}

		_, err := New(Config{SetSize: 1}, Deps{Generator: gen, Scorer: &mockScorer{}})
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)

		cfg := testConfig()
		cfg.PilotTrialsPerCondition = 0
		_, err = New(cfg, Deps{Generator: gen, Scorer: &mockScorer{}})
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)

		_, err = New(testConfig(), Deps{Scorer: &mockScorer{}})
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)

		_, err = New(testConfig(), Deps{Generator: gen})
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	})
}

func TestOrchestrator_Run(t *testing.T) {
	t.Run("full run yields expected trial counts", func(t *testing.T) {
		gen := &generation.MockClient{Responses: []string{"ocean, glacier, paradox"}}
		sink := &recordingSink{}

		o, err := New(testConfig(), Deps{Generator: gen, Scorer: &mockScorer{}, Sink: sink})
		require.NoError(t, err)

		summary, err := o.Run(context.Background(), testConditions())
		require.NoError(t, err)

		assert.Equal(t, models.RunStateComplete, summary.State)

		// 2 conditions x (2 pilot + 4 main via floor)
		assert.Len(t, summary.Trials, 12)

		main := 0
		for _, trial := range summary.Trials {
			assert.True(t, trial.Valid)
			if !trial.Pilot {
				main++
			}
		}
		assert.Equal(t, 8, main)

		require.Len(t, summary.Conditions, 2)
		for _, cs := range summary.Conditions {
			assert.Equal(t, 4, cs.Trials)
			assert.Equal(t, 4, cs.ValidTrials)
			assert.False(t, cs.Insufficient)
			assert.Greater(t, cs.Mean, 0.0)
		}

		assert.Len(t, sink.trials, 12)
		require.Len(t, sink.summaries, 1)
		assert.Equal(t, models.RunStateComplete, sink.summaries[0].State)
	})

	t.Run("identical zero-temperature outputs are deterministic", func(t *testing.T) {
		gen := &generation.MockClient{Responses: []string{"ocean, glacier, paradox"}}

		o, err := New(testConfig(), Deps{Generator: gen, Scorer: &mockScorer{}})
		require.NoError(t, err)

		summary, err := o.Run(context.Background(), testConditions())
		require.NoError(t, err)

		require.NotNil(t, summary.Determinism)
		assert.Equal(t, 1, summary.Determinism.DistinctOutputs)
		assert.False(t, summary.Determinism.NonDeterministic)
	})

	t.Run("distinct zero-temperature outputs set the flag without blocking", func(t *testing.T) {
		gen := &generation.MockClient{Responses: []string{
			"ocean, glacier, paradox",
			"storm, whisper, zenith",
		}}

		o, err := New(testConfig(), Deps{Generator: gen, Scorer: &mockScorer{}})
		require.NoError(t, err)

		summary, err := o.Run(context.Background(), testConditions())
		require.NoError(t, err)

		assert.True(t, summary.Determinism.NonDeterministic)
		assert.Equal(t, 2, summary.Determinism.DistinctOutputs)
		assert.NotEmpty(t, summary.Warnings)
		assert.Equal(t, models.RunStateComplete, summary.State)
	})

	t.Run("transient generation errors are retried up to the cap", func(t *testing.T) {
		var mu sync.Mutex
		failures := 0

		gen := &generation.MockClient{
			GenerateFunc: func(ctx context.Context, prompt string, temperature float64) (string, error) {
				mu.Lock()
				defer mu.Unlock()

				// Fail the first two calls of every trial's first window.
				if failures < 2 {
					failures++
					return "", apperrors.NewCollaboratorError("generation", "boom")
				}

				return "ocean, glacier, paradox", nil
			},
		}

		o, err := New(testConfig(), Deps{Generator: gen, Scorer: &mockScorer{}})
		require.NoError(t, err)

		summary, err := o.Run(context.Background(), testConditions())
		require.NoError(t, err)

		// Determinism probes absorb the failures; every trial is valid.
		for _, trial := range summary.Trials {
			assert.True(t, trial.Valid)
		}
	})

	t.Run("persistently invalid responses mark trials invalid without aborting", func(t *testing.T) {
		gen := &generation.MockClient{Responses: []string{"only, two"}}

		o, err := New(testConfig(), Deps{Generator: gen, Scorer: &mockScorer{}})
		require.NoError(t, err)

		summary, err := o.Run(context.Background(), testConditions())
		require.NoError(t, err)

		assert.Equal(t, models.RunStateComplete, summary.State)

		for _, trial := range summary.Trials {
			assert.False(t, trial.Valid)
			assert.Equal(t, 3, trial.Attempts, "retry cap is 2, so 3 attempts")
			assert.NotEmpty(t, trial.InvalidReason)
		}

		for _, cs := range summary.Conditions {
			assert.True(t, cs.Insufficient)
			assert.Equal(t, 0, cs.ValidTrials)
		}

		// One warning per insufficient condition, plus the pilot fallback.
		assert.GreaterOrEqual(t, len(summary.Warnings), 2)
	})

	t.Run("unscorable sets are not retried", func(t *testing.T) {
		gen := &generation.MockClient{Responses: []string{"ocean, glacier, paradox"}}
		scorer := &mockScorer{
			scoreFunc: func(ctx context.Context, terms []string) (float64, bool, error) {
				return 0, false, nil
			},
		}

		o, err := New(testConfig(), Deps{Generator: gen, Scorer: scorer})
		require.NoError(t, err)

		summary, err := o.Run(context.Background(), testConditions())
		require.NoError(t, err)

		for _, trial := range summary.Trials {
			assert.False(t, trial.Valid)
			assert.Equal(t, 1, trial.Attempts)
		}
	})

	t.Run("cancellation preserves partial results", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		var mu sync.Mutex
		calls := 0

		gen := &generation.MockClient{
			GenerateFunc: func(ctx context.Context, prompt string, temperature float64) (string, error) {
				mu.Lock()
				defer mu.Unlock()

				calls++
				if calls == 8 {
					cancel()
				}

				return "ocean, glacier, paradox", nil
			},
		}
		sink := &recordingSink{}

		o, err := New(testConfig(), Deps{Generator: gen, Scorer: &mockScorer{}, Sink: sink})
		require.NoError(t, err)

		summary, err := o.Run(ctx, testConditions())
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)

		require.NotNil(t, summary)
		assert.Equal(t, models.RunStateFailed, summary.State)
		assert.NotEmpty(t, summary.Trials, "partial results must be preserved")

		// The failed summary is still persisted.
		require.Len(t, sink.summaries, 1)
		assert.Equal(t, models.RunStateFailed, sink.summaries[0].State)
	})

	t.Run("requires at least one condition", func(t *testing.T) {
		gen := &generation.MockClient{}

		o, err := New(testConfig(), Deps{Generator: gen, Scorer: &mockScorer{}})
		require.NoError(t, err)

		_, err = o.Run(context.Background(), nil)
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	})

	t.Run("scorer errors count against the retry cap", func(t *testing.T) {
		gen := &generation.MockClient{Responses: []string{"ocean, glacier, paradox"}}
		scorer := &mockScorer{
			scoreFunc: func(ctx context.Context, terms []string) (float64, bool, error) {
				return 0, false, errors.New("embedding service unavailable")
			},
		}

		o, err := New(testConfig(), Deps{Generator: gen, Scorer: scorer})
		require.NoError(t, err)

		summary, err := o.Run(context.Background(), testConditions())
		require.NoError(t, err)

		for _, trial := range summary.Trials {
			assert.False(t, trial.Valid)
			assert.Equal(t, 3, trial.Attempts)
		}
	})
}

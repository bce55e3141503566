// experiment runs one full experimental design against a generation model:
// determinism check, variance pilot, power analysis, and the main run over
// the prompt-by-temperature cross-product, persisting trials and the run
// summary as it goes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.opentelemetry.io/otel"

	"github.com/semlab/sembench/internal/config"
	"github.com/semlab/sembench/internal/embeddings"
	"github.com/semlab/sembench/internal/generation"
	"github.com/semlab/sembench/internal/models"
	"github.com/semlab/sembench/internal/observability"
	"github.com/semlab/sembench/internal/orchestrator"
	"github.com/semlab/sembench/internal/repository"
	"github.com/semlab/sembench/internal/service"
	"github.com/semlab/sembench/pkg/database"
)

const (
	exitSuccess = 0
	exitFailure = 1

	defaultPrompt = "List %d single-word English nouns that are as semantically " +
		"different from each other as possible. Respond with a comma-separated " +
		"list of the nouns and nothing else."
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		prompt       = flag.String("prompt", defaultPrompt, "prompt template; %d is replaced with the set size")
		variant      = flag.String("variant", "default", "prompt variant name recorded on every condition")
		temperatures = flag.String("temperatures", "0.7,1.0", "comma-separated sampling temperatures")
		space        = flag.String("space", "", "embedding space to score against (default: configured space)")
		exclude      = flag.String("exclude", "", "comma-separated terms rejected during validation")
		out          = flag.String("out", "", "write the run summary JSON to this file")
	)

	flag.Parse()

	cfg, err := config.LoadExperiment()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return exitFailure
	}

	setupLogging(cfg.LogLevel)

	if cfg.OpenAIAPIKey == "" {
		slog.Error("OPENAI_API_KEY is required to run experiments")

		return exitFailure
	}

	if *space == "" {
		*space = cfg.EmbeddingSpace
	}

	temps, err := parseTemperatures(*temperatures)
	if err != nil {
		slog.Error("Invalid temperatures", "error", err)

		return exitFailure
	}

	// Stop between trials on the first signal; partial results are saved.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.WithVectorTypes())
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return exitFailure
	}
	defer db.Close()

	vocabRepo := repository.NewVocabularyRepository(db)
	resultsRepo := repository.NewResultsRepository(db)

	meter := otel.Meter("sembench")

	embeddingMetrics, err := observability.NewEmbeddingMetrics(meter)
	if err != nil {
		slog.Error("Failed to create embedding metrics", "error", err)

		return exitFailure
	}

	trialMetrics, err := observability.NewTrialMetrics(meter)
	if err != nil {
		slog.Error("Failed to create trial metrics", "error", err)

		return exitFailure
	}

	provider, err := buildProvider(ctx, cfg, *space, vocabRepo, embeddingMetrics)
	if err != nil {
		slog.Error("Failed to build embedding provider", "error", err)

		return exitFailure
	}

	scoringService, err := service.NewScoringService(service.ScoringServiceParams{
		Registry:     embeddings.NewRegistry(provider),
		DefaultSpace: *space,
		SetSize:      cfg.SetSize,
	})
	if err != nil {
		slog.Error("Failed to create scoring service", "error", err)

		return exitFailure
	}

	generator := generation.NewOpenAIClient(cfg.OpenAIAPIKey)

	orch, err := orchestrator.New(
		orchestrator.Config{
			SetSize:                 cfg.SetSize,
			DeterminismProbes:       cfg.DeterminismProbes,
			PilotTrialsPerCondition: cfg.PilotTrials,
			RetryLimit:              cfg.RetryLimit,
			MinDelay:                cfg.MinRequestDelay,
			RequestTimeout:          cfg.RequestTimeout,
			ExcludedTerms:           splitList(*exclude),
			Power: orchestrator.PowerConfig{
				Alpha:   cfg.PowerAlpha,
				Power:   cfg.PowerTarget,
				Effects: cfg.PowerEffects,
				FloorN:  cfg.PowerFloorN,
			},
		},
		orchestrator.Deps{
			Generator: generator,
			Scorer:    scoringService,
			Sink:      resultsRepo,
			Metrics:   trialMetrics,
		},
	)
	if err != nil {
		slog.Error("Failed to configure orchestrator", "error", err)

		return exitFailure
	}

	conditions := buildConditions(*prompt, *variant, cfg.SetSize, temps)

	summary, err := orch.Run(ctx, conditions)
	if err != nil {
		slog.Error("Run did not complete", "error", err)

		if summary == nil {
			return exitFailure
		}
		// Fall through: a partial summary is still worth reporting.
	}

	report(summary)

	if *out != "" {
		if err := writeSummary(*out, summary); err != nil {
			slog.Error("Failed to write summary", "path", *out, "error", err)

			return exitFailure
		}

		fmt.Printf("Summary written to %s\n", *out)
	}

	if summary.State != models.RunStateComplete {
		return exitFailure
	}

	return exitSuccess
}

// buildProvider resolves the scoring space: the learned API-backed provider
// for the configured space, a static in-memory pool for everything else.
func buildProvider(
	ctx context.Context,
	cfg *config.Config,
	space string,
	vocabRepo *repository.VocabularyRepository,
	metrics observability.EmbeddingMetrics,
) (embeddings.Provider, error) {
	if space == cfg.EmbeddingSpace {
		client := embeddings.NewOpenAIClient(cfg.OpenAIAPIKey, embeddings.WithDimensions(cfg.EmbeddingDimensions))

		return embeddings.NewAPIProvider(space, client, cfg.EmbeddingCacheSize, metrics)
	}

	pool, err := vocabRepo.LoadPool(ctx, space)
	if err != nil {
		return nil, err
	}

	slog.Info("Vocabulary space loaded", "space", space, "terms", pool.Size())

	return embeddings.NewStaticProvider(pool, metrics), nil
}

// buildConditions crosses the single prompt variant with every temperature.
func buildConditions(prompt, variant string, setSize int, temps []float64) []models.Condition {
	if strings.Contains(prompt, "%d") {
		prompt = fmt.Sprintf(prompt, setSize)
	}

	conditions := make([]models.Condition, 0, len(temps))

	for _, temp := range temps {
		conditions = append(conditions, models.Condition{
			Key:           variant + "_t" + strconv.FormatFloat(temp, 'g', -1, 64),
			Prompt:        prompt,
			PromptVariant: variant,
			Temperature:   temp,
		})
	}

	return conditions
}

func parseTemperatures(s string) ([]float64, error) {
	var temps []float64

	for _, part := range splitList(s) {
		temp, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("temperature %q: %w", part, err)
		}

		if temp < 0 {
			return nil, fmt.Errorf("temperature %v is negative", temp)
		}

		temps = append(temps, temp)
	}

	if len(temps) == 0 {
		return nil, fmt.Errorf("at least one temperature is required")
	}

	return temps, nil
}

func splitList(s string) []string {
	var items []string

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}

	return items
}

func report(summary *models.RunSummary) {
	fmt.Printf("Run %s finished in state %s with %d trial(s).\n",
		summary.RunID, summary.State, len(summary.Trials))

	if summary.Determinism != nil && summary.Determinism.NonDeterministic {
		fmt.Printf("Zero-temperature output was NOT deterministic (%d distinct outputs over %d probes).\n",
			summary.Determinism.DistinctOutputs, summary.Determinism.Probes)
	}

	if summary.Power != nil {
		fmt.Printf("Power analysis: pilot SD %.2f, %d trial(s) per condition (floor applied: %v).\n",
			summary.Power.PilotSD, summary.Power.TrialsPerGroup, summary.Power.FloorApplied)
	}

	for _, cs := range summary.Conditions {
		if cs.Insufficient {
			fmt.Printf("  %-24s no valid trials\n", cs.Condition.Key)

			continue
		}

		fmt.Printf("  %-24s mean %.2f sd %.2f (%d valid / %d invalid)\n",
			cs.Condition.Key, cs.Mean, cs.SD, cs.ValidTrials, cs.InvalidTrials)
	}

	for _, warning := range summary.Warnings {
		fmt.Printf("  warning: %s\n", warning)
	}
}

func writeSummary(path string, summary *models.RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func setupLogging(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := observability.NewTraceContextHandler(slog.NewTextHandler(os.Stdout, opts))
	slog.SetDefault(slog.New(handler))
}

// api serves the scoring and estimation HTTP endpoints: divergence and
// bridging scoring, baseline distributions, ceiling estimates, and stored
// experiment runs.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/semlab/sembench/internal/api/handlers"
	"github.com/semlab/sembench/internal/api/middleware"
	"github.com/semlab/sembench/internal/config"
	"github.com/semlab/sembench/internal/embeddings"
	"github.com/semlab/sembench/internal/observability"
	"github.com/semlab/sembench/internal/repository"
	"github.com/semlab/sembench/internal/service"
	"github.com/semlab/sembench/pkg/database"
)

const maxRequestBodyBytes = 1 << 20 // 1 MiB; term lists are small

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Configure slog with the log level from config
	setupLogging(cfg.LogLevel)

	// Initialize database connection with pgvector codecs
	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.WithVectorTypes())
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	vocabRepo := repository.NewVocabularyRepository(db)
	resultsRepo := repository.NewResultsRepository(db)

	// Metrics are recorded against the global meter; without an SDK provider
	// this is a no-op.
	meter := otel.Meter("sembench")

	embeddingMetrics, err := observability.NewEmbeddingMetrics(meter)
	if err != nil {
		slog.Error("Failed to create embedding metrics", "error", err)
		os.Exit(1)
	}

	requestMetrics, err := observability.NewRequestMetrics(meter)
	if err != nil {
		slog.Error("Failed to create request metrics", "error", err)
		os.Exit(1)
	}

	// Register a static provider for every embedded vocabulary space, then
	// the learned API-backed space on top when an OpenAI key is configured.
	registry, err := buildRegistry(ctx, cfg, vocabRepo, embeddingMetrics)
	if err != nil {
		slog.Error("Failed to build embedding registry", "error", err)
		os.Exit(1)
	}

	scoringService, err := service.NewScoringService(service.ScoringServiceParams{
		Registry:     registry,
		DefaultSpace: cfg.EmbeddingSpace,
		SetSize:      cfg.SetSize,
	})
	if err != nil {
		slog.Error("Failed to create scoring service", "error", err)
		os.Exit(1)
	}

	statsService, err := service.NewStatsService(service.StatsServiceParams{
		Loader: vocabRepo,
		Store:  resultsRepo,
	})
	if err != nil {
		slog.Error("Failed to create stats service", "error", err)
		os.Exit(1)
	}

	scoreHandler := handlers.NewScoreHandler(handlers.ScoreHandlerParams{
		Service:         scoringService,
		Normalizer:      statsService,
		DefaultSpace:    cfg.EmbeddingSpace,
		BaselineSamples: cfg.BaselineSamples,
		Seed:            cfg.Seed,
	})
	statsHandler := handlers.NewStatsHandler(handlers.StatsHandlerParams{
		Service:         statsService,
		DefaultSpace:    cfg.EmbeddingSpace,
		DefaultSetSize:  cfg.SetSize,
		BaselineSamples: cfg.BaselineSamples,
		CeilingRestarts: cfg.CeilingRestarts,
		Seed:            cfg.Seed,
	})
	runsHandler := handlers.NewRunsHandler(resultsRepo)
	healthHandler := handlers.NewHealthHandler(db)

	// Set up public endpoints (no authentication required)
	publicMux := http.NewServeMux()
	publicMux.HandleFunc("GET /health", healthHandler.Check)
	publicMux.HandleFunc("GET /ready", healthHandler.Ready)

	// Set up protected endpoints (authentication required)
	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("POST /v1/score/divergence", scoreHandler.Divergence)
	protectedMux.HandleFunc("POST /v1/score/bridging", scoreHandler.Bridging)
	protectedMux.HandleFunc("POST /v1/baselines", statsHandler.Baseline)
	protectedMux.HandleFunc("POST /v1/ceiling", statsHandler.Ceiling)
	protectedMux.HandleFunc("GET /v1/runs/{id}", runsHandler.Get)
	protectedMux.HandleFunc("GET /v1/runs/{id}/trials", runsHandler.Trials)

	var protectedHandler http.Handler = protectedMux
	protectedHandler = middleware.Auth(cfg.APIKey)(protectedHandler)
	protectedHandler = middleware.MaxBody(maxRequestBodyBytes)(protectedHandler)

	// Combine both handlers
	mainMux := http.NewServeMux()
	mainMux.Handle("/v1/", protectedHandler)
	mainMux.Handle("/", publicMux)

	// RequestID innermost-first: every log line and metric carries the ID.
	handler := middleware.Metrics(requestMetrics)(middleware.RequestID(mainMux))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "port", cfg.Port, "default_space", cfg.EmbeddingSpace)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

// buildRegistry assembles the embedding provider registry. Static providers
// serve every space with embedded vocabulary rows; the API-backed provider is
// layered over the configured learned space when a key is present, so unknown
// terms there resolve via the API instead of going out of vocabulary.
func buildRegistry(
	ctx context.Context,
	cfg *config.Config,
	vocabRepo *repository.VocabularyRepository,
	metrics observability.EmbeddingMetrics,
) (*embeddings.Registry, error) {
	spaces, err := vocabRepo.ListSpaces(ctx)
	if err != nil {
		return nil, err
	}

	providers := make([]embeddings.Provider, 0, len(spaces)+1)

	for _, space := range spaces {
		if cfg.OpenAIAPIKey != "" && space == cfg.EmbeddingSpace {
			continue
		}

		pool, err := vocabRepo.LoadPool(ctx, space)
		if err != nil {
			return nil, err
		}

		slog.Info("Vocabulary space loaded", "space", space, "terms", pool.Size())
		providers = append(providers, embeddings.NewStaticProvider(pool, metrics))
	}

	if cfg.OpenAIAPIKey != "" {
		client := embeddings.NewOpenAIClient(cfg.OpenAIAPIKey, embeddings.WithDimensions(cfg.EmbeddingDimensions))

		api, err := embeddings.NewAPIProvider(cfg.EmbeddingSpace, client, cfg.EmbeddingCacheSize, metrics)
		if err != nil {
			return nil, err
		}

		slog.Info("Learned embedding space enabled", "space", cfg.EmbeddingSpace)
		providers = append(providers, api)
	} else {
		slog.Info("Learned embedding space disabled (OPENAI_API_KEY not set)")
	}

	if len(providers) == 0 {
		return nil, errors.New("no embedding spaces available: load a vocabulary or set OPENAI_API_KEY")
	}

	return embeddings.NewRegistry(providers...), nil
}

// setupLogging configures slog with the specified log level and trace/request
// correlation.
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

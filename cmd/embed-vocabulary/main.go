// embed-vocabulary ingests vocabulary terms and backfills their embeddings.
// Pass -terms to load a term list first (one term per line, optionally
// followed by a frequency); the tool then embeds every term of the space that
// has no stored vector yet, in rate-limited batches.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/semlab/sembench/internal/embeddings"
	"github.com/semlab/sembench/internal/orchestrator"
	"github.com/semlab/sembench/internal/repository"
	"github.com/semlab/sembench/pkg/database"
)

const (
	defaultSpace      = "text-embedding-3-small"
	defaultBatchSize  = 64
	defaultDelayMs    = 1000
	defaultDimensions = 1536

	exitSuccess = 0
	exitFailure = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		space     = flag.String("space", "", "embedding space to backfill (default: EMBEDDING_SPACE)")
		termsPath = flag.String("terms", "", "term list to ingest before backfilling (one term per line)")
		batchSize = flag.Int("batch", defaultBatchSize, "terms per embedding request")
		mock      = flag.Bool("mock", false, "embed with a deterministic local stub instead of the API")
	)

	flag.Parse()

	// Load .env for consistency with the API server (godotenv.Load() there).
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		slog.Error("DATABASE_URL is required")

		return exitFailure
	}

	if *space == "" {
		*space = getEnv("EMBEDDING_SPACE", defaultSpace)
	}

	if *batchSize <= 0 {
		*batchSize = defaultBatchSize
	}

	client, err := buildClient(*mock)
	if err != nil {
		slog.Error(err.Error())

		return exitFailure
	}

	ctx := context.Background()

	db, err := database.NewPostgresPool(ctx, databaseURL, database.WithVectorTypes())
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return exitFailure
	}
	defer db.Close()

	repo := repository.NewVocabularyRepository(db)

	if *termsPath != "" {
		ingested, err := ingestTerms(ctx, repo, *space, *termsPath)
		if err != nil {
			slog.Error("Term ingest failed", "path", *termsPath, "error", err)

			return exitFailure
		}

		fmt.Printf("Ingested %d term(s) into space %s.\n", ingested, *space)
	}

	embedded, err := backfill(ctx, repo, client, *space, *batchSize)
	if err != nil {
		slog.Error("Backfill failed", "error", err)

		return exitFailure
	}

	total, withEmbedding, err := repo.CountTerms(ctx, *space)
	if err != nil {
		slog.Error("Failed to count terms", "error", err)

		return exitFailure
	}

	fmt.Printf("Embedded %d term(s); space %s now has %d/%d embedded.\n",
		embedded, *space, withEmbedding, total)

	return exitSuccess
}

// buildClient picks the embedding client. The mock produces hash-derived unit
// vectors, which is enough to exercise storage and scoring locally.
func buildClient(mock bool) (embeddings.Client, error) {
	dimensions := getEnvAsInt("EMBEDDING_DIMENSIONS", defaultDimensions)

	if mock {
		return embeddings.NewMockClientWithDimensions(dimensions), nil
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required (or pass -mock)")
	}

	return embeddings.NewOpenAIClient(apiKey, embeddings.WithDimensions(dimensions)), nil
}

// ingestTerms upserts every term in the file without touching stored vectors.
// Lines are "term" or "term<whitespace>frequency"; blank lines and lines
// starting with # are skipped.
func ingestTerms(ctx context.Context, repo *repository.VocabularyRepository, space, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var (
		ingested int
		line     int
	)

	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line++

		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		term := text
		frequency := 1.0

		if fields := strings.Fields(text); len(fields) > 1 {
			term = fields[0]

			frequency, err = strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return ingested, fmt.Errorf("line %d: frequency %q: %w", line, fields[1], err)
			}
		}

		if err := repo.UpsertTerm(ctx, space, term, nil, frequency); err != nil {
			return ingested, fmt.Errorf("line %d: %w", line, err)
		}

		ingested++
	}

	if err := scanner.Err(); err != nil {
		return ingested, err
	}

	return ingested, nil
}

// backfill embeds every term of the space that has no stored vector, one
// rate-limited batch at a time. A failed batch stops the backfill; completed
// batches stay persisted, so rerunning picks up where it left off.
func backfill(
	ctx context.Context,
	repo *repository.VocabularyRepository,
	client embeddings.Client,
	space string,
	batchSize int,
) (int, error) {
	pending, err := repo.ListTermsMissingEmbedding(ctx, space)
	if err != nil {
		return 0, err
	}

	if len(pending) == 0 {
		slog.Info("Nothing to backfill", "space", space)

		return 0, nil
	}

	delay := time.Duration(getEnvAsInt("MIN_REQUEST_DELAY_MS", defaultDelayMs)) * time.Millisecond
	gate := orchestrator.NewGate(delay)

	slog.Info("Backfill starting",
		"space", space,
		"pending", len(pending),
		"batch_size", batchSize,
		"min_delay", delay,
	)

	var embedded int

	for start := 0; start < len(pending); start += batchSize {
		end := min(start+batchSize, len(pending))
		batch := pending[start:end]

		if err := gate.Acquire(ctx); err != nil {
			return embedded, err
		}

		vectors, err := client.CreateEmbeddings(ctx, batch)
		if err != nil {
			return embedded, fmt.Errorf("embed batch starting at %q: %w", batch[0], err)
		}

		for i, term := range batch {
			if err := repo.UpsertEmbedding(ctx, space, term, vectors[i]); err != nil {
				return embedded, fmt.Errorf("store embedding for %q: %w", term, err)
			}

			embedded++
		}

		slog.Info("Batch embedded", "done", embedded, "pending", len(pending)-embedded)
	}

	return embedded, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}

	return n
}

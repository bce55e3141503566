// Package repository contains pgx-backed data access for vocabulary terms and
// experiment results.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/semlab/sembench/internal/apperrors"
	"github.com/semlab/sembench/internal/vocab"
)

// VocabularyRepository handles data access for the vocabulary_terms table.
type VocabularyRepository struct {
	db *pgxpool.Pool
}

// NewVocabularyRepository creates a new vocabulary repository.
func NewVocabularyRepository(db *pgxpool.Pool) *VocabularyRepository {
	return &VocabularyRepository{db: db}
}

// LoadPool reads every embedded term of the space into an in-memory pool.
// Terms without a stored embedding are skipped; they are backfill work, not
// scoring material. Returns a NotFoundError when the space has no embedded
// terms at all.
func (r *VocabularyRepository) LoadPool(ctx context.Context, space string) (*vocab.Pool, error) {
	rows, err := r.db.Query(ctx, `
		SELECT term, embedding, frequency
		FROM vocabulary_terms
		WHERE space = $1 AND embedding IS NOT NULL
		ORDER BY term`, space)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary pool: %w", err)
	}
	defer rows.Close()

	var entries []vocab.Entry

	for rows.Next() {
		var (
			term      string
			vec       pgvector.Vector
			frequency float64
		)

		if err := rows.Scan(&term, &vec, &frequency); err != nil {
			return nil, fmt.Errorf("scan vocabulary term: %w", err)
		}

		entries = append(entries, vocab.Entry{Term: term, Vector: vec.Slice(), Frequency: frequency})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vocabulary terms: %w", err)
	}

	if len(entries) == 0 {
		return nil, apperrors.NewNotFoundError("vocabulary space", "no embedded terms for space "+space)
	}

	return vocab.NewPool(space, entries), nil
}

// UpsertTerm inserts or updates one vocabulary term. A nil embedding leaves
// the stored embedding untouched so frequency refreshes don't clear vectors.
func (r *VocabularyRepository) UpsertTerm(
	ctx context.Context, space, term string, embedding []float32, frequency float64,
) error {
	term = vocab.Normalize(term)
	if term == "" {
		return apperrors.NewValidationError("term", "term is empty")
	}

	now := time.Now()

	if embedding == nil {
		_, err := r.db.Exec(ctx, `
			INSERT INTO vocabulary_terms (space, term, frequency, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (space, term)
			DO UPDATE SET frequency = EXCLUDED.frequency, updated_at = $4`,
			space, term, frequency, now,
		)
		if err != nil {
			return fmt.Errorf("vocabulary term upsert: %w", err)
		}

		return nil
	}

	vec := pgvector.NewVector(embedding)

	_, err := r.db.Exec(ctx, `
		INSERT INTO vocabulary_terms (space, term, embedding, frequency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (space, term)
		DO UPDATE SET embedding = EXCLUDED.embedding, frequency = EXCLUDED.frequency, updated_at = $5`,
		space, term, vec, frequency, now,
	)
	if err != nil {
		return fmt.Errorf("vocabulary term upsert: %w", err)
	}

	return nil
}

// UpsertEmbedding stores the embedding for an existing term without touching
// its frequency. Returns a NotFoundError when the term is not in the space.
func (r *VocabularyRepository) UpsertEmbedding(
	ctx context.Context, space, term string, embedding []float32,
) error {
	vec := pgvector.NewVector(embedding)

	tag, err := r.db.Exec(ctx, `
		UPDATE vocabulary_terms
		SET embedding = $3, updated_at = $4
		WHERE space = $1 AND term = $2`,
		space, vocab.Normalize(term), vec, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("vocabulary embedding update: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("vocabulary term", term)
	}

	return nil
}

// ListTermsMissingEmbedding returns terms of the space that have no stored
// embedding yet, oldest first, so backfill order is stable across runs.
func (r *VocabularyRepository) ListTermsMissingEmbedding(ctx context.Context, space string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT term FROM vocabulary_terms
		WHERE space = $1 AND embedding IS NULL
		ORDER BY created_at, term`, space)
	if err != nil {
		return nil, fmt.Errorf("list terms missing embedding: %w", err)
	}
	defer rows.Close()

	var terms []string

	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}

		terms = append(terms, term)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating missing terms: %w", err)
	}

	return terms, nil
}

// GetEmbedding returns the stored embedding for the term in the space.
// Returns an OutOfVocabularyError when the term has no embedded row.
func (r *VocabularyRepository) GetEmbedding(ctx context.Context, space, term string) ([]float32, error) {
	var vec pgvector.Vector

	err := r.db.QueryRow(ctx, `
		SELECT embedding FROM vocabulary_terms
		WHERE space = $1 AND term = $2 AND embedding IS NOT NULL`,
		space, vocab.Normalize(term),
	).Scan(&vec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewOutOfVocabularyError(term, space)
		}

		return nil, fmt.Errorf("get vocabulary embedding: %w", err)
	}

	return vec.Slice(), nil
}

// ListSpaces returns the names of spaces that have at least one embedded term.
func (r *VocabularyRepository) ListSpaces(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT space FROM vocabulary_terms
		WHERE embedding IS NOT NULL
		ORDER BY space`)
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	defer rows.Close()

	var spaces []string

	for rows.Next() {
		var space string
		if err := rows.Scan(&space); err != nil {
			return nil, fmt.Errorf("scan space: %w", err)
		}

		spaces = append(spaces, space)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating spaces: %w", err)
	}

	return spaces, nil
}

// CountTerms returns (total, embedded) term counts for the space.
func (r *VocabularyRepository) CountTerms(ctx context.Context, space string) (int, int, error) {
	var total, embedded int

	err := r.db.QueryRow(ctx, `
		SELECT count(*), count(embedding)
		FROM vocabulary_terms
		WHERE space = $1`, space,
	).Scan(&total, &embedded)
	if err != nil {
		return 0, 0, fmt.Errorf("count vocabulary terms: %w", err)
	}

	return total, embedded, nil
}

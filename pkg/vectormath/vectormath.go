// Package vectormath provides utilities for embedding vectors (cosine similarity,
// distance, L2 normalization).
package vectormath

import (
	"math"
)

// NormalizeL2 takes a raw embedding vector and normalizes it to a length of 1.
// It modifies the slice in-place to save allocations when embedding large vocabularies.
func NormalizeL2(vector []float32) {
	var sumSquares float64

	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	// Avoid division by zero (a zero vector stays a zero vector)
	if sumSquares == 0 {
		return
	}

	magnitude := math.Sqrt(sumSquares)

	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
}

// IsZero reports whether every component of the vector is zero.
// Cosine similarity is undefined for zero vectors, so callers treat them as
// invalid embeddings.
func IsZero(vector []float32) bool {
	for _, v := range vector {
		if v != 0 {
			return false
		}
	}

	return true
}

// Cosine returns the cosine similarity between two vectors, in [-1, 1].
// Returns (0, false) when either vector has zero norm or the lengths differ,
// since the similarity is undefined in those cases.
func Cosine(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}

	var dot, normA, normB float64

	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}

	if normA == 0 || normB == 0 {
		return 0, false
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

// CosineDistance returns 1 - Cosine(a, b), in [0, 2].
// Returns (0, false) when the similarity is undefined.
func CosineDistance(a, b []float32) (float64, bool) {
	sim, ok := Cosine(a, b)
	if !ok {
		return 0, false
	}

	return 1 - sim, true
}

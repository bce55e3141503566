// Package vocab provides an in-memory vocabulary snapshot for one embedding
// space: terms, their vectors, and corpus frequencies, with seeded random
// sampling for the baseline and ceiling estimators.
package vocab

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/semlab/sembench/internal/apperrors"
	"github.com/semlab/sembench/pkg/vectormath"
)

// Entry is one vocabulary term with its embedding and corpus frequency.
// Frequency 0 is valid; such terms are never drawn by the frequency-weighted
// strategy but remain available to the uniform one.
type Entry struct {
	Term      string
	Vector    []float32
	Frequency float64
}

// Pool is an immutable vocabulary snapshot. Immutability is what makes the
// estimators reproducible and parallel-safe: samples are a pure function of
// (pool, seed).
type Pool struct {
	space      string
	entries    []Entry
	index      map[string]int
	cumulative []float64
	totalFreq  float64
}

// NewPool builds a pool for the given space. Terms are case-folded and
// trimmed; entries with empty terms, duplicate terms, or unusable (empty or
// zero-norm) vectors are dropped so that every entry can participate in
// pairwise scoring.
func NewPool(space string, entries []Entry) *Pool {
	p := &Pool{
		space: space,
		index: make(map[string]int, len(entries)),
	}

	for _, e := range entries {
		term := Normalize(e.Term)
		if term == "" {
			continue
		}

		if _, exists := p.index[term]; exists {
			continue
		}

		if len(e.Vector) == 0 || vectormath.IsZero(e.Vector) {
			continue
		}

		freq := e.Frequency
		if freq < 0 {
			freq = 0
		}

		p.index[term] = len(p.entries)
		p.entries = append(p.entries, Entry{Term: term, Vector: e.Vector, Frequency: freq})
		p.totalFreq += freq
		p.cumulative = append(p.cumulative, p.totalFreq)
	}

	return p
}

// Normalize case-folds and trims a term the same way the pool indexes it.
func Normalize(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// Space returns the embedding space name this pool snapshots.
func (p *Pool) Space() string {
	return p.space
}

// Size returns the number of usable terms in the pool.
func (p *Pool) Size() int {
	return len(p.entries)
}

// Contains reports whether the normalized term is in the pool.
func (p *Pool) Contains(term string) bool {
	_, ok := p.index[Normalize(term)]

	return ok
}

// Vector returns the embedding for the term, or ErrOutOfVocabulary.
func (p *Pool) Vector(term string) ([]float32, error) {
	i, ok := p.index[Normalize(term)]
	if !ok {
		return nil, apperrors.NewOutOfVocabularyError(term, p.space)
	}

	return p.entries[i].Vector, nil
}

// Frequency returns the corpus frequency for the term, or 0 when absent.
func (p *Pool) Frequency(term string) float64 {
	i, ok := p.index[Normalize(term)]
	if !ok {
		return 0
	}

	return p.entries[i].Frequency
}

// Entry returns the entry at index i. Panics on out-of-range like a slice.
func (p *Pool) Entry(i int) Entry {
	return p.entries[i]
}

// SampleUniform draws n distinct entries uniformly at random using rng.
// Returns a ConfigurationError when the pool holds fewer than n terms.
func (p *Pool) SampleUniform(rng *rand.Rand, n int) ([]Entry, error) {
	if n > len(p.entries) {
		return nil, apperrors.NewConfigurationError("set_size",
			"vocabulary has fewer usable terms than the requested sample size")
	}

	chosen := make(map[int]struct{}, n)
	sample := make([]Entry, 0, n)

	for len(sample) < n {
		i := rng.Intn(len(p.entries))
		if _, dup := chosen[i]; dup {
			continue
		}

		chosen[i] = struct{}{}
		sample = append(sample, p.entries[i])
	}

	return sample, nil
}

// SampleWeighted draws n distinct entries with probability proportional to
// corpus frequency, rejecting already-chosen terms. Returns a
// ConfigurationError when fewer than n terms have positive frequency.
func (p *Pool) SampleWeighted(rng *rand.Rand, n int) ([]Entry, error) {
	positive := 0
	for _, e := range p.entries {
		if e.Frequency > 0 {
			positive++
		}
	}

	if n > positive {
		return nil, apperrors.NewConfigurationError("set_size",
			"vocabulary has fewer positive-frequency terms than the requested sample size")
	}

	chosen := make(map[int]struct{}, n)
	sample := make([]Entry, 0, n)

	for len(sample) < n {
		u := rng.Float64() * p.totalFreq
		i := sort.SearchFloat64s(p.cumulative, u)

		if i >= len(p.entries) {
			i = len(p.entries) - 1
		}

		if p.entries[i].Frequency == 0 {
			continue
		}

		if _, dup := chosen[i]; dup {
			continue
		}

		chosen[i] = struct{}{}
		sample = append(sample, p.entries[i])
	}

	return sample, nil
}

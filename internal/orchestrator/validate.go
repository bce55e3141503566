package orchestrator

import (
	"strconv"
	"strings"

	"github.com/semlab/sembench/internal/apperrors"
	"github.com/semlab/sembench/internal/vocab"
)

// TermValidator decides whether a single term is acceptable, e.g. a
// noun-only policy. A nil validator accepts every term.
type TermValidator func(term string) bool

// parseTerms splits a raw model response into candidate terms. Responses are
// expected as comma- or newline-separated lists, possibly numbered or
// bulleted; terms are case-folded and stripped of list markers and quotes.
func parseTerms(response string) []string {
	fields := strings.FieldsFunc(response, func(r rune) bool {
		return r == '\n' || r == ',' || r == ';'
	})

	terms := make([]string, 0, len(fields))

	for _, f := range fields {
		term := strings.TrimSpace(f)
		term = strings.TrimLeft(term, "0123456789.)- *•")
		term = strings.Trim(term, "\"'`.")
		term = vocab.Normalize(term)

		if term == "" {
			continue
		}

		terms = append(terms, term)
	}

	return terms
}

// validateTerms checks a parsed term list against the experiment's contract:
// exact set size, no duplicates (a duplicated term rejects the whole
// response), no excluded terms, and per-term validator approval.
func validateTerms(terms []string, setSize int, excluded map[string]struct{}, validator TermValidator) error {
	if len(terms) != setSize {
		return apperrors.NewValidationError("terms",
			"expected exactly "+strconv.Itoa(setSize)+" terms, got "+strconv.Itoa(len(terms)))
	}

	seen := make(map[string]struct{}, len(terms))

	for _, term := range terms {
		if _, dup := seen[term]; dup {
			return apperrors.NewValidationError("terms", "duplicate term: "+term)
		}

		seen[term] = struct{}{}

		if _, banned := excluded[term]; banned {
			return apperrors.NewValidationError("terms", "excluded term: "+term)
		}

		if validator != nil && !validator(term) {
			return apperrors.NewValidationError("terms", "term rejected by validator: "+term)
		}
	}

	return nil
}

// normalizeOutput canonicalizes a raw response for the determinism probe:
// case-folded with whitespace runs collapsed, so formatting jitter does not
// count as non-determinism.
func normalizeOutput(response string) string {
	return strings.Join(strings.Fields(strings.ToLower(response)), " ")
}

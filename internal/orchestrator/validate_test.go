package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semlab/sembench/internal/apperrors"
)

func TestParseTerms(t *testing.T) {
	t.Run("comma separated", func(t *testing.T) {
		terms := parseTerms("ocean, Glacier, paradox")
		assert.Equal(t, []string{"ocean", "glacier", "paradox"}, terms)
	})

	t.Run("numbered list", func(t *testing.T) {
		terms := parseTerms("1. Ocean\n2. Glacier\n3. Paradox")
		assert.Equal(t, []string{"ocean", "glacier", "paradox"}, terms)
	})

	t.Run("bullets and quotes", func(t *testing.T) {
		terms := parseTerms("- \"ocean\"\n* 'glacier'\n• paradox")
		assert.Equal(t, []string{"ocean", "glacier", "paradox"}, terms)
	})

	t.Run("empty fields dropped", func(t *testing.T) {
		terms := parseTerms("ocean,, ,\n\nglacier")
		assert.Equal(t, []string{"ocean", "glacier"}, terms)
	})

	t.Run("empty response", func(t *testing.T) {
		assert.Empty(t, parseTerms(""))
	})
}

func TestValidateTerms(t *testing.T) {
	t.Run("accepts a clean set", func(t *testing.T) {
		err := validateTerms([]string{"ocean", "glacier", "paradox"}, 3, nil, nil)
		assert.NoError(t, err)
	})

	t.Run("rejects wrong count", func(t *testing.T) {
		err := validateTerms([]string{"ocean", "glacier"}, 3, nil, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("rejects whole response on duplicate", func(t *testing.T) {
		err := validateTerms([]string{"ocean", "glacier", "ocean"}, 3, nil, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("rejects excluded terms", func(t *testing.T) {
		excluded := map[string]struct{}{"glacier": {}}

		err := validateTerms([]string{"ocean", "glacier", "paradox"}, 3, excluded, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("applies the term validator", func(t *testing.T) {
		nounsOnly := func(term string) bool { return term != "quickly" }

		err := validateTerms([]string{"ocean", "quickly", "paradox"}, 3, nil, nounsOnly)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestNormalizeOutput(t *testing.T) {
	assert.Equal(t, "ocean glacier paradox", normalizeOutput("  Ocean \n glacier\tPARADOX "))
	assert.Equal(t, normalizeOutput("a, b"), normalizeOutput("A,  B"))
}

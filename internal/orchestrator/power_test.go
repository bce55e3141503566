package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiredN(t *testing.T) {
	t.Run("small variance relative to effect needs few trials", func(t *testing.T) {
		n := RequiredN(0.8, 5.0, 0.05, 0.80)

		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, 2)
	})

	t.Run("known textbook case", func(t *testing.T) {
		// sd 10, effect 10, alpha 0.05, power 0.80 => ~16-17 per group
		n := RequiredN(10, 10, 0.05, 0.80)

		assert.GreaterOrEqual(t, n, 16)
		assert.LessOrEqual(t, n, 17)
	})

	t.Run("strictly increases as effect shrinks", func(t *testing.T) {
		prev := 0
		for _, effect := range []float64{8.0, 4.0, 2.0, 1.0} {
			n := RequiredN(10, effect, 0.05, 0.80)
			assert.Greater(t, n, prev, "effect %f", effect)
			prev = n
		}
	})

	t.Run("increases with target power", func(t *testing.T) {
		low := RequiredN(10, 5, 0.05, 0.80)
		high := RequiredN(10, 5, 0.05, 0.95)

		assert.Greater(t, high, low)
	})

	t.Run("degenerate inputs give one", func(t *testing.T) {
		assert.Equal(t, 1, RequiredN(0, 5, 0.05, 0.80))
		assert.Equal(t, 1, RequiredN(10, 0, 0.05, 0.80))
	})
}

func TestPlanPower(t *testing.T) {
	cfg := PowerConfig{
		Alpha:   0.05,
		Power:   0.80,
		Effects: []float64{10.0, 5.0, 2.5},
		FloorN:  5,
	}

	t.Run("takes maximum over effects", func(t *testing.T) {
		plan := PlanPower(cfg, 10, 12, 2)

		assert.Len(t, plan.PerEffectN, 3)
		assert.Equal(t, plan.PerEffectN[2], plan.RequiredN, "smallest effect dominates")
		assert.Equal(t, 12, plan.PilotTrials)
		assert.Equal(t, 2, plan.PilotExcluded)
	})

	t.Run("applies the floor when formula rounds small", func(t *testing.T) {
		plan := PlanPower(cfg, 0.1, 6, 0)

		assert.True(t, plan.FloorApplied)
		assert.Equal(t, 5, plan.TrialsPerGroup)
	})

	t.Run("floor not applied when formula exceeds it", func(t *testing.T) {
		plan := PlanPower(cfg, 20, 6, 0)

		assert.False(t, plan.FloorApplied)
		assert.Equal(t, plan.RequiredN, plan.TrialsPerGroup)
		assert.Greater(t, plan.TrialsPerGroup, 5)
	})
}

package orchestrator

import (
	"math"

	"github.com/semlab/sembench/internal/models"
)

// PowerConfig declares the statistical targets for sizing the main run.
type PowerConfig struct {
	// Alpha is the two-sided significance level, e.g. 0.05.
	Alpha float64
	// Power is the target power, e.g. 0.80.
	Power float64
	// Effects are the minimum detectable effect sizes of interest, in score
	// points. The required N is the maximum over all of them.
	Effects []float64
	// FloorN is the minimum trials per condition regardless of what the
	// formula yields, guarding against anomalously small pilot SDs.
	FloorN int
}

// RequiredN computes the per-group sample size to detect a mean difference of
// effect with the given SD, using the standard two-sample formula
// n = 2 * ((z_{1-alpha/2} + z_{power}) * sd / effect)^2, rounded up.
// Returns at least 1.
func RequiredN(sd, effect, alpha, power float64) int {
	if sd <= 0 || effect <= 0 {
		return 1
	}

	z := zQuantile(1-alpha/2) + zQuantile(power)
	n := 2 * math.Pow(z*sd/effect, 2)

	required := int(math.Ceil(n))
	if required < 1 {
		required = 1
	}

	return required
}

// PlanPower sizes the main run from the pilot SD: the maximum required N
// across all declared effects, then the configured floor.
func PlanPower(cfg PowerConfig, pilotSD float64, pilotTrials, pilotExcluded int) models.PowerAnalysis {
	analysis := models.PowerAnalysis{
		PilotSD:       pilotSD,
		PilotTrials:   pilotTrials,
		PilotExcluded: pilotExcluded,
		Alpha:         cfg.Alpha,
		Power:         cfg.Power,
		Effects:       cfg.Effects,
	}

	required := 1

	for _, effect := range cfg.Effects {
		n := RequiredN(pilotSD, effect, cfg.Alpha, cfg.Power)
		analysis.PerEffectN = append(analysis.PerEffectN, n)

		if n > required {
			required = n
		}
	}

	analysis.RequiredN = required
	analysis.TrialsPerGroup = required

	if cfg.FloorN > 0 && required < cfg.FloorN {
		analysis.TrialsPerGroup = cfg.FloorN
		analysis.FloorApplied = true
	}

	return analysis
}

// zQuantile is the standard normal quantile function for p in (0, 1).
func zQuantile(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}

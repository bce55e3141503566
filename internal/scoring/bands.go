package scoring

// Band maps a minimum (inclusive) score to a qualitative label. Band tables
// are configuration, checked in ascending order of Min; the label of the
// highest band at or below the score applies.
type Band struct {
	Min   float64 `json:"min"`
	Label string  `json:"label"`
}

// DefaultBridgingBands are the qualitative bands for bridging relevance.
// Scores below the weak threshold are indistinguishable from noise.
var DefaultBridgingBands = []Band{
	{Min: -1.0, Label: "noise"},
	{Min: 0.15, Label: "weak"},
	{Min: 0.30, Label: "moderate"},
	{Min: 0.45, Label: "strong"},
}

// DefaultDivergenceBands are the qualitative bands for divergence scores on
// the 0-100+ scale, calibrated against human divergent-association norms.
var DefaultDivergenceBands = []Band{
	{Min: 0, Label: "low"},
	{Min: 50, Label: "below_average"},
	{Min: 75, Label: "average"},
	{Min: 85, Label: "above_average"},
	{Min: 95, Label: "high"},
}

// Interpret returns the label of the highest band whose Min is at or below
// score. Returns the first band's label when the score is below every band.
func Interpret(bands []Band, score float64) string {
	if len(bands) == 0 {
		return ""
	}

	label := bands[0].Label

	for _, b := range bands {
		if score >= b.Min {
			label = b.Label
		}
	}

	return label
}

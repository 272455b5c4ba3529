package tempo

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary condenses a ranked candidate list for display
type Summary struct {
	// Tempo is the best candidate, 0 when there are none
	Tempo int `json:"tempo"`

	// Confidence is the share of the candidates' votes won by the best one (0-1)
	Confidence float64 `json:"confidence"`

	// WeightedTempo is the vote-weighted mean tempo of the candidates
	WeightedTempo float64 `json:"weighted_tempo"`
}

// Summarize computes a Summary of ranked candidates (best first)
func Summarize(candidates []Hypothesis) Summary {
	if len(candidates) == 0 {
		return Summary{}
	}

	tempi := make([]float64, len(candidates))
	weights := make([]float64, len(candidates))
	for i, c := range candidates {
		tempi[i] = float64(c.Tempo)
		weights[i] = float64(c.Count)
	}

	total := floats.Sum(weights)
	if total <= 0 {
		return Summary{Tempo: candidates[0].Tempo}
	}

	return Summary{
		Tempo:         candidates[0].Tempo,
		Confidence:    weights[0] / total,
		WeightedTempo: stat.Mean(tempi, weights),
	}
}

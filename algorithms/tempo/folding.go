package tempo

import "math"

const (
	// MinTempo is the lower bound of the canonical band; slower tempi are doubled
	MinTempo = 90.0

	// MaxTempo is the exclusive upper bound of the band; faster tempi are halved
	MaxTempo = 180.0
)

// Hypothesis is a candidate tempo with the votes accumulated for it
type Hypothesis struct {
	Tempo int `json:"tempo"`
	Count int `json:"count"`
}

// FoldTempo octave-folds a raw tempo into [MinTempo, MaxTempo) and rounds it.
// Non-positive or non-finite input returns 0.
func FoldTempo(bpm float64) int {
	if bpm <= 0 || math.IsInf(bpm, 0) || math.IsNaN(bpm) {
		return 0
	}
	for bpm < MinTempo {
		bpm *= 2
	}
	for bpm >= MaxTempo {
		bpm /= 2
	}
	return int(math.Round(bpm))
}

// IntervalToTempo converts a distance in samples to beats per minute
func IntervalToTempo(interval int64, sampleRate int) float64 {
	if interval <= 0 || sampleRate <= 0 {
		return 0
	}
	return 60.0 / (float64(interval) / float64(sampleRate))
}

// Fold converts interval votes to folded tempo hypotheses. Votes landing on the
// same folded tempo are summed; hypotheses keep first-seen order.
func Fold(votes []IntervalVote, sampleRate int) []Hypothesis {
	var hypotheses []Hypothesis
	index := make(map[int]int)

	for _, v := range votes {
		bpm := FoldTempo(IntervalToTempo(v.Interval, sampleRate))
		if bpm == 0 {
			continue
		}

		if pos, ok := index[bpm]; ok {
			hypotheses[pos].Count += v.Count
			continue
		}
		index[bpm] = len(hypotheses)
		hypotheses = append(hypotheses, Hypothesis{Tempo: bpm, Count: v.Count})
	}

	return hypotheses
}

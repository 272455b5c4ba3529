package tempo

import (
	"cmp"
	"slices"
)

// DefaultCandidates is the number of hypotheses reported per result
const DefaultCandidates = 5

// Top returns the n best hypotheses by vote count. Ties keep their original
// order. n <= 0 selects DefaultCandidates. The input is left untouched.
func Top(hypotheses []Hypothesis, n int) []Hypothesis {
	if n <= 0 {
		n = DefaultCandidates
	}

	ranked := slices.Clone(hypotheses)
	slices.SortStableFunc(ranked, func(a, b Hypothesis) int {
		return cmp.Compare(b.Count, a.Count)
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Estimate runs the whole chain for one peak sequence: interval histogram,
// octave folding and ranking
func Estimate(peaks []int64, sampleRate int, n int) []Hypothesis {
	return Top(Fold(Intervals(peaks), sampleRate), n)
}

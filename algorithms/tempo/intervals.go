// Package tempo turns a sequence of peak positions into ranked tempo
// hypotheses: inter-peak interval histogram, octave folding into a canonical
// BPM band and candidate ranking.
package tempo

// LookAhead is how many following peaks each peak is paired with
const LookAhead = 10

// IntervalVote counts how often a sample distance occurred between nearby peaks
type IntervalVote struct {
	Interval int64 `json:"interval"`
	Count    int   `json:"count"`
}

// Intervals builds the interval histogram of peaks. Every peak is paired with
// up to LookAhead following peaks (fewer near the end of the sequence) and
// each distinct non-zero distance collects one vote per pair, in first-seen order.
func Intervals(peaks []int64) []IntervalVote {
	var votes []IntervalVote
	index := make(map[int64]int)

	for n, peak := range peaks {
		last := min(n+LookAhead, len(peaks)-1)
		for i := n + 1; i <= last; i++ {
			interval := peaks[i] - peak
			if interval == 0 {
				continue
			}

			if pos, ok := index[interval]; ok {
				votes[pos].Count++
				continue
			}
			index[interval] = len(votes)
			votes = append(votes, IntervalVote{Interval: interval, Count: 1})
		}
	}

	return votes
}

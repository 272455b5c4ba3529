// Package peaks implements the multi-threshold amplitude peak detection used
// by the streaming tempo analyzer: the threshold ladder, the single block
// scanner and the per-threshold peak ledger that survives across blocks.
package peaks

import (
	"iter"
	"math"
	"strconv"
)

// Threshold is an amplitude threshold expressed in hundredths (0.85 -> 85).
// Integer thresholds can be compared and used as table keys without float drift.
type Threshold int

const (
	// StartThreshold is the ceiling the ladder descends from; it is never a rung itself
	StartThreshold Threshold = 95

	// ThresholdStep is the distance between two adjacent rungs
	ThresholdStep Threshold = 5

	// MinValidThreshold is the initial reliability floor. The ladder stops above it.
	MinValidThreshold Threshold = 30

	// NumRungs is the number of thresholds in the ladder (0.90 down to 0.35)
	NumRungs = int((StartThreshold-MinValidThreshold)/ThresholdStep) - 1
)

// rungs holds the ladder in descending order; rungs[0] is the highest threshold
var rungs = func() [NumRungs]Threshold {
	var r [NumRungs]Threshold
	t := StartThreshold
	for i := range r {
		t -= ThresholdStep
		r[i] = t
	}
	return r
}()

// FromFloat converts an amplitude such as 0.85 to a Threshold
func FromFloat(v float64) Threshold {
	return Threshold(math.Round(v * 100))
}

// Float64 returns the amplitude the threshold stands for
func (t Threshold) Float64() float64 {
	return float64(t) / 100
}

func (t Threshold) String() string {
	return strconv.FormatFloat(t.Float64(), 'f', 2, 64)
}

// Rungs returns a copy of the ladder, highest threshold first
func Rungs() []Threshold {
	out := make([]Threshold, NumRungs)
	copy(out, rungs[:])
	return out
}

// Top returns the highest rung of the ladder
func Top() Threshold {
	return rungs[0]
}

// Index returns the ladder position of t
func Index(t Threshold) (int, bool) {
	if t >= StartThreshold || t <= MinValidThreshold {
		return 0, false
	}
	diff := StartThreshold - ThresholdStep - t
	if diff%ThresholdStep != 0 {
		return 0, false
	}
	return int(diff / ThresholdStep), true
}

// Descending yields (position, threshold) for every rung strictly above floor,
// highest first. Breaking out of the range loop abandons the lower rungs.
func Descending(floor Threshold) iter.Seq2[int, Threshold] {
	return func(yield func(int, Threshold) bool) {
		for i, t := range rungs {
			if t <= floor {
				return
			}
			if !yield(i, t) {
				return
			}
		}
	}
}

// Tracked yields every rung at or above floor, highest first. These are the
// thresholds whose peaks are still being collected.
func Tracked(floor Threshold) iter.Seq2[int, Threshold] {
	return func(yield func(int, Threshold) bool) {
		for i, t := range rungs {
			if t < floor {
				return
			}
			if !yield(i, t) {
				return
			}
		}
	}
}

// MarshalJSON encodes the threshold as its amplitude, e.g. 0.85
func (t Threshold) MarshalJSON() ([]byte, error) {
	return []byte(t.String()), nil
}

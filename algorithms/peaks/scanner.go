package peaks

// ExclusionWindow is the number of samples skipped after a detection so one
// sustained transient registers a single peak
const ExclusionWindow = 10000

// Scan appends to dst the offsets in block, from start onwards, whose
// amplitude exceeds threshold. After each hit the scan resumes
// ExclusionWindow samples later. dst is returned so callers can reuse it
// across blocks without allocating.
func Scan(block []float64, threshold Threshold, start int, dst []int) []int {
	level := threshold.Float64()
	if start < 0 {
		start = 0
	}

	for i := start; i < len(block); i++ {
		if block[i] > level {
			dst = append(dst, i)
			i += ExclusionWindow - 1
		}
	}

	return dst
}

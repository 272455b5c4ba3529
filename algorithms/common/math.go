package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Downmix averages interleaved multi-channel samples into one mono stream.
// A trailing partial frame is dropped.
func Downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		out := make([]float64, len(interleaved))
		copy(out, interleaved)
		return out
	}

	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	for i := range mono {
		mono[i] = floats.Sum(interleaved[i*channels : (i+1)*channels])
	}
	floats.Scale(1/float64(channels), mono)

	return mono
}

// PeakAmplitude returns the largest absolute sample value
func PeakAmplitude(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Max(math.Abs(floats.Max(data)), math.Abs(floats.Min(data)))
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Norm(data, 2) / math.Sqrt(float64(len(data)))
}

// PeakNormalize scales data in place so its peak amplitude becomes target.
// Silent input is left untouched. Returns the gain applied.
func PeakNormalize(data []float64, target float64) float64 {
	peak := PeakAmplitude(data)
	if peak < 1e-10 {
		return 1.0
	}
	gain := target / peak
	floats.Scale(gain, data)
	return gain
}

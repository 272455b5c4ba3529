// Package filters holds the signal conditioning applied to audio before it
// reaches the peak scanner
package filters

import "math"

// DefaultPole gives a cutoff of roughly 8 Hz at 44.1 kHz
const DefaultPole = 0.995

// DCBlocker is a one-pole high-pass filter that removes a constant offset
// from the signal. Amplitude thresholds are absolute, so an offset biases
// every rung toward (or away from) detection.
//
// y[n] = x[n] - x[n-1] + R*y[n-1]
//
// Reference: J. O. Smith III, "Introduction to Digital Filters",
// https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
type DCBlocker struct {
	pole float64
	x1   float64
	y1   float64
}

// NewDCBlocker creates a blocker with the given pole location, which must be
// in (0, 1); anything else falls back to DefaultPole
func NewDCBlocker(pole float64) *DCBlocker {
	if pole <= 0 || pole >= 1 {
		pole = DefaultPole
	}
	return &DCBlocker{pole: pole}
}

// NewDCBlockerWithCutoff derives the pole from a -3 dB cutoff using
// R = 1 - 2*pi*fc/fs, valid for fc much smaller than fs/2
func NewDCBlockerWithCutoff(sampleRate int, cutoff float64) *DCBlocker {
	if sampleRate <= 0 || cutoff <= 0 {
		return NewDCBlocker(DefaultPole)
	}
	pole := 1.0 - 2.0*math.Pi*cutoff/float64(sampleRate)
	return NewDCBlocker(max(min(pole, 0.999), 0.001))
}

// Pole returns the pole location
func (dc *DCBlocker) Pole() float64 {
	return dc.pole
}

// Cutoff returns the -3 dB cutoff at sampleRate
func (dc *DCBlocker) Cutoff(sampleRate int) float64 {
	return (1.0 - dc.pole) * float64(sampleRate) / (2.0 * math.Pi)
}

// Process filters one sample
func (dc *DCBlocker) Process(x float64) float64 {
	y := x - dc.x1 + dc.pole*dc.y1
	dc.x1 = x
	dc.y1 = y
	return y
}

// ProcessInPlace filters samples in place, carrying state across calls so a
// stream can be filtered block by block
func (dc *DCBlocker) ProcessInPlace(samples []float64) {
	for i, x := range samples {
		samples[i] = dc.Process(x)
	}
}

// Reset clears the filter state for a discontinuous stream
func (dc *DCBlocker) Reset() {
	dc.x1 = 0
	dc.y1 = 0
}

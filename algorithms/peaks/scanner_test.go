package peaks

import (
	"math/rand"
	"testing"
)

func TestScanDetectsAndExcludes(t *testing.T) {
	block := make([]float64, 30000)
	block[100] = 0.95
	block[101] = 0.95  // same transient
	block[5000] = 0.99 // inside exclusion window of the first hit
	block[10100] = 0.91
	block[25000] = 0.5 // below threshold

	got := Scan(block, 90, 0, nil)
	want := []int{100, 10100}
	if len(got) != len(want) {
		t.Fatalf("Scan() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Scan() = %v, want %v", got, want)
		}
	}
}

func TestScanIsStrictlyAbove(t *testing.T) {
	block := []float64{0.5, 0.9, 0.3}
	if got := Scan(block, 90, 0, nil); len(got) != 0 {
		t.Errorf("sample equal to threshold detected: %v", got)
	}
}

func TestScanStartOffset(t *testing.T) {
	block := make([]float64, 100)
	block[10] = 1
	block[60] = 1

	if got := Scan(block, 50, 20, nil); len(got) != 1 || got[0] != 60 {
		t.Errorf("Scan(start=20) = %v, want [60]", got)
	}
	if got := Scan(block, 50, -5, nil); len(got) != 1 || got[0] != 10 {
		t.Errorf("Scan(start=-5) = %v, want [10]", got)
	}
	if got := Scan(block, 50, 500, nil); len(got) != 0 {
		t.Errorf("Scan(start past end) = %v, want none", got)
	}
}

func TestScanReusesBuffer(t *testing.T) {
	block := []float64{1, 0, 0}
	buf := make([]int, 0, 4)
	got := Scan(block, 50, 0, buf)
	if &got[:1][0] != &buf[:1][0] {
		t.Error("Scan did not append into the provided buffer")
	}
}

// Higher thresholds never find more peaks than lower ones over the same data
func TestScanMonotonicSensitivity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	block := make([]float64, 200000)
	for i := range block {
		// Sparse transients of random height over low noise
		if rng.Intn(3000) == 0 {
			block[i] = 0.3 + 0.7*rng.Float64()
		} else {
			block[i] = 0.2 * rng.Float64()
		}
	}

	r := Rungs()
	for i := 1; i < len(r); i++ {
		high := len(Scan(block, r[i-1], 0, nil))
		low := len(Scan(block, r[i], 0, nil))
		if high > low {
			t.Errorf("threshold %v found %d peaks, lower threshold %v found %d", r[i-1], high, r[i], low)
		}
	}
}

package analyzer

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-bpm/algorithms/peaks"
	"github.com/RyanBlaney/sonido-bpm/logging"
)

const (
	testSampleRate = 44100
	testBlockSize  = 4096
	testSpacing    = 22050 // 120 BPM
)

// recorder collects published events
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofKind(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// impulseTrain generates unit impulses every spacing samples
func impulseTrain(length, spacing int) []float64 {
	signal := make([]float64, length)
	for i := 0; i < length; i += spacing {
		signal[i] = 1
	}
	return signal
}

func createTestAnalyzer(t *testing.T, cfg *Config) (*Analyzer, *recorder, *fakeClock) {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg.Clock = clock.Now
	cfg.Logger = &logging.NoOpLogger{}
	rec := &recorder{}
	return New(cfg, rec), rec, clock
}

// feed pushes signal block by block and returns the index of the first block
// that produced a stable event, or -1
func feed(a *Analyzer, rec *recorder, signal []float64) int {
	firstStable := -1
	for n, start := 0, 0; start+testBlockSize <= len(signal); n, start = n+1, start+testBlockSize {
		before := len(rec.ofKind(EventStable))
		a.AnalyzeBlock(signal[start:start+testBlockSize], testSampleRate)
		if firstStable < 0 && len(rec.ofKind(EventStable)) > before {
			firstStable = n
		}
	}
	return firstStable
}

func TestAnalyzerImpulseTrainStabilizesAt120(t *testing.T) {
	a, rec, _ := createTestAnalyzer(t, nil)
	signal := impulseTrain(testBlockSize*100, testSpacing)

	first := feed(a, rec, signal)
	if first < 0 {
		t.Fatal("no stable event after 100 blocks")
	}

	// 16 peaks are needed; the 16th impulse lands at sample 330750
	if want := 15 * testSpacing / testBlockSize; first != want {
		t.Errorf("first stable event at block %d, want %d", first, want)
	}

	stable := rec.ofKind(EventStable)
	if len(stable) != 1 {
		t.Fatalf("got %d stable events, want 1", len(stable))
	}
	got := stable[0].Result
	if len(got.Candidates) == 0 || got.Candidates[0].Tempo != 120 {
		t.Fatalf("stable candidates = %v, want 120 first", got.Candidates)
	}
	if got.Threshold != peaks.Top() {
		t.Errorf("stable threshold = %v, want %v", got.Threshold, peaks.Top())
	}
	if got.Summary.Tempo != 120 || got.Summary.Confidence <= 0 {
		t.Errorf("summary = %+v", got.Summary)
	}
	if stable[0].SessionID != a.SessionID() {
		t.Errorf("event session %q, want %q", stable[0].SessionID, a.SessionID())
	}

	snap := a.Snapshot()
	if snap.Phase != Stable || snap.Floor != peaks.Top() {
		t.Errorf("snapshot phase %v floor %v, want stable at %v", snap.Phase, snap.Floor, peaks.Top())
	}
	if len(snap.Thresholds) != 1 {
		t.Errorf("tracked thresholds after promotion = %v, want only the top rung", snap.Thresholds)
	}

	// Blocks after the promotion keep estimating at the floor rung
	results := rec.ofKind(EventResult)
	last := results[len(results)-1].Result
	if last.Err != nil || last.Threshold != peaks.Top() || len(last.Candidates) == 0 || last.Candidates[0].Tempo != 120 {
		t.Errorf("result after promotion = %+v, want 120 at %v", last, peaks.Top())
	}
}

func TestAnalyzerEmitsResultEveryBlock(t *testing.T) {
	a, rec, _ := createTestAnalyzer(t, nil)
	signal := impulseTrain(testBlockSize*20, testSpacing)
	feed(a, rec, signal)

	results := rec.ofKind(EventResult)
	if len(results) != 20 {
		t.Fatalf("got %d result events, want 20", len(results))
	}
	for i, e := range results {
		if e.Block != int64(i+1) {
			t.Errorf("event %d has block %d, want %d", i, e.Block, i+1)
		}
		if !errors.Is(e.Result.Err, ErrInsufficientData) || len(e.Result.Candidates) != 0 {
			t.Errorf("block %d: want empty insufficient-data result, got %+v", i, e.Result)
		}
		if e.Result.Threshold != peaks.MinValidThreshold {
			t.Errorf("block %d: threshold %v, want the floor", i, e.Result.Threshold)
		}
	}
	if len(rec.ofKind(EventStable)) != 0 {
		t.Error("stable event published without enough peaks")
	}
}

func TestAnalyzerBlockCounterAndCursors(t *testing.T) {
	a, _, _ := createTestAnalyzer(t, nil)
	signal := impulseTrain(testBlockSize*60, 9000)

	prev := make(map[peaks.Threshold]int64)
	for n := 0; n < 60; n++ {
		a.AnalyzeBlock(signal[n*testBlockSize:(n+1)*testBlockSize], testSampleRate)
		snap := a.Snapshot()
		if snap.Blocks != int64(n+1) {
			t.Fatalf("block counter %d after %d blocks", snap.Blocks, n+1)
		}
		if snap.Samples != int64((n+1)*testBlockSize) {
			t.Fatalf("sample counter %d after %d blocks", snap.Samples, n+1)
		}
		for _, ts := range snap.Thresholds {
			if ts.Cursor < prev[ts.Threshold] {
				t.Fatalf("cursor of %v moved backwards", ts.Threshold)
			}
			prev[ts.Threshold] = ts.Cursor
		}
	}
}

func TestAnalyzerFloorPromotesUpwardOnly(t *testing.T) {
	a, rec, _ := createTestAnalyzer(t, nil)

	// Quiet impulses only clear the lower rungs
	quiet := impulseTrain(testBlockSize*100, testSpacing)
	for i := range quiet {
		quiet[i] *= 0.62
	}
	feed(a, rec, quiet)

	snap := a.Snapshot()
	if snap.Floor != 60 {
		t.Fatalf("floor after quiet impulses = %v, want 0.60", snap.Floor)
	}

	// Louder material must be able to raise the floor, never lower it
	loud := impulseTrain(testBlockSize*100, testSpacing)
	feed(a, rec, loud)
	snap = a.Snapshot()
	if snap.Floor != peaks.Top() {
		t.Errorf("floor after loud impulses = %v, want %v", snap.Floor, peaks.Top())
	}

	stable := rec.ofKind(EventStable)
	if len(stable) != 2 || stable[0].Result.Threshold != 60 || stable[1].Result.Threshold != peaks.Top() {
		t.Errorf("stable thresholds = %v", stable)
	}
	for i := 1; i < len(stable); i++ {
		if stable[i].Result.Threshold <= stable[i-1].Result.Threshold {
			t.Errorf("floor did not increase: %v then %v", stable[i-1].Result.Threshold, stable[i].Result.Threshold)
		}
	}
}

func TestAnalyzerContinuousReacquisition(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ContinuousAnalysis = true
	cfg.StabilizationTime = time.Second
	a, rec, clock := createTestAnalyzer(t, cfg)

	feed(a, rec, impulseTrain(testBlockSize*100, testSpacing))
	if a.Snapshot().Phase != Stable {
		t.Fatal("analyzer did not stabilize")
	}
	if a.Snapshot().Deadline.IsZero() {
		t.Fatal("no deadline armed with continuous analysis on")
	}

	clock.Advance(500 * time.Millisecond)
	if a.Tick() {
		t.Fatal("reset before the stabilization time elapsed")
	}

	clock.Advance(time.Second)
	if !a.Tick() {
		t.Fatal("no reset after the stabilization time elapsed")
	}

	snap := a.Snapshot()
	if snap.Phase != Warming || snap.Floor != peaks.MinValidThreshold || snap.Blocks != 0 {
		t.Errorf("after timeout: phase %v floor %v blocks %d", snap.Phase, snap.Floor, snap.Blocks)
	}
	for _, ts := range snap.Thresholds {
		if ts.Peaks != 0 || ts.Cursor != 0 {
			t.Errorf("threshold %v kept state after timeout", ts.Threshold)
		}
	}
	if len(snap.Thresholds) != peaks.NumRungs {
		t.Errorf("tracking %d thresholds after timeout, want %d", len(snap.Thresholds), peaks.NumRungs)
	}
	if a.ComputeBPMDelay() != 0 {
		t.Errorf("ComputeBPMDelay = %v, want 0 after timeout", a.ComputeBPMDelay())
	}
	if len(rec.ofKind(EventReset)) != 1 {
		t.Errorf("got %d reset events, want 1", len(rec.ofKind(EventReset)))
	}
	if !snap.Deadline.IsZero() {
		t.Error("deadline still armed after reset")
	}
}

func TestAnalyzerDeadlineCheckedOnBlock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ContinuousAnalysis = true
	cfg.StabilizationTime = time.Second
	a, rec, clock := createTestAnalyzer(t, cfg)

	signal := impulseTrain(testBlockSize*100, testSpacing)
	feed(a, rec, signal)

	clock.Advance(2 * time.Second)
	a.AnalyzeBlock(signal[:testBlockSize], testSampleRate)

	if len(rec.ofKind(EventReset)) != 1 {
		t.Fatalf("got %d reset events, want 1", len(rec.ofKind(EventReset)))
	}
	snap := a.Snapshot()
	if snap.Phase != Warming || snap.Blocks != 1 {
		t.Errorf("phase %v blocks %d, want warming with the new block counted", snap.Phase, snap.Blocks)
	}
	if !snap.Deadline.IsZero() {
		t.Error("deadline armed while warming")
	}
}

func TestAnalyzerContinuousAcquisitionOutlastsStabilizationTime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ContinuousAnalysis = true
	cfg.StabilizationTime = 5 * time.Second
	a, rec, clock := createTestAnalyzer(t, cfg)

	// Advance the clock by the real duration of every block; acquiring 120 BPM
	// takes about 7.5s of audio, longer than the stabilization time
	blockTime := time.Second * testBlockSize / testSampleRate
	signal := impulseTrain(testBlockSize*100, testSpacing)
	for start := 0; start+testBlockSize <= len(signal); start += testBlockSize {
		a.AnalyzeBlock(signal[start:start+testBlockSize], testSampleRate)
		clock.Advance(blockTime)
		if a.Snapshot().Phase == Stable {
			break
		}
		if !a.Snapshot().Deadline.IsZero() {
			t.Fatal("deadline armed while warming")
		}
	}

	if len(rec.ofKind(EventReset)) != 0 {
		t.Fatalf("got %d reset events during acquisition, want 0", len(rec.ofKind(EventReset)))
	}
	if len(rec.ofKind(EventStable)) != 1 {
		t.Fatalf("got %d stable events, want 1", len(rec.ofKind(EventStable)))
	}
	snap := a.Snapshot()
	if snap.Phase != Stable || snap.Deadline.IsZero() {
		t.Errorf("phase %v deadline %v, want stable with a deadline armed", snap.Phase, snap.Deadline)
	}
}

func TestAnalyzerNoTimeoutWithoutContinuous(t *testing.T) {
	a, rec, clock := createTestAnalyzer(t, nil)
	feed(a, rec, impulseTrain(testBlockSize*100, testSpacing))

	clock.Advance(time.Hour)
	if a.Tick() {
		t.Error("reset with continuous analysis off")
	}
	if a.Snapshot().Phase != Stable {
		t.Error("analyzer left the stable phase")
	}
}

func TestAnalyzerResetIdempotent(t *testing.T) {
	a, rec, _ := createTestAnalyzer(t, nil)
	feed(a, rec, impulseTrain(testBlockSize*100, testSpacing))

	a.Reset()
	once := a.Snapshot()
	a.Reset()
	twice := a.Snapshot()

	if once.Phase != Warming || once.Floor != peaks.MinValidThreshold || once.Blocks != 0 || once.Samples != 0 {
		t.Errorf("after Reset: %+v", once)
	}
	a1, _ := json.Marshal(once)
	a2, _ := json.Marshal(twice)
	if string(a1) != string(a2) {
		t.Errorf("Reset twice differs from once:\n%s\n%s", a1, a2)
	}

	// The analyzer acquires again after a reset
	before := len(rec.ofKind(EventStable))
	feed(a, rec, impulseTrain(testBlockSize*100, testSpacing))
	if len(rec.ofKind(EventStable)) != before+1 {
		t.Error("no stable event after reset and new audio")
	}
}

func TestAnalyzerRejectsBadInput(t *testing.T) {
	a, rec, _ := createTestAnalyzer(t, nil)

	if res := a.AnalyzeBlock(nil, testSampleRate); !errors.Is(res.Err, ErrEmptyBlock) {
		t.Errorf("empty block error = %v", res.Err)
	}
	if res := a.AnalyzeBlock(make([]float64, 16), 0); !errors.Is(res.Err, ErrInvalidSampleRate) {
		t.Errorf("zero sample rate error = %v", res.Err)
	}
	if snap := a.Snapshot(); snap.Blocks != 0 {
		t.Errorf("rejected blocks were counted: %d", snap.Blocks)
	}
	if len(rec.events) != 0 {
		t.Errorf("rejected blocks published %d events", len(rec.events))
	}
}

func TestEventJSON(t *testing.T) {
	a, rec, _ := createTestAnalyzer(t, nil)
	feed(a, rec, impulseTrain(testBlockSize*100, testSpacing))

	data, err := json.Marshal(rec.ofKind(EventStable)[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"message":"stable"`, `"threshold":0.90`, `"tempo":120`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("event JSON %s missing %s", data, want)
		}
	}
}

func TestChannelSinkDropsWhenFull(t *testing.T) {
	sink := NewChannelSink(1)
	sink.Publish(Event{Kind: EventResult})
	sink.Publish(Event{Kind: EventStable})

	if sink.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", sink.Dropped())
	}
	if e := <-sink.Events(); e.Kind != EventResult {
		t.Errorf("first event kind %v", e.Kind)
	}
	sink.Close()
	if _, ok := <-sink.Events(); ok {
		t.Error("channel open after Close")
	}
}

// Package analyzer estimates tempo from a live mono signal one fixed-size
// block at a time. Each block is scanned at every tracked amplitude
// threshold; the highest threshold holding enough peaks drives an interval
// histogram whose folded tempo candidates are published as events. The
// lowest trusted threshold (the reliability floor) only rises until the
// analyzer is reset, either explicitly or by the re-acquisition timeout.
package analyzer

import (
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-bpm/algorithms/peaks"
	"github.com/RyanBlaney/sonido-bpm/algorithms/tempo"
	"github.com/RyanBlaney/sonido-bpm/logging"
	"github.com/google/uuid"
)

// Analyzer is the streaming tempo analyzer. AnalyzeBlock must be called
// sequentially by one audio goroutine; configuration, Reset and Tick may come
// from other goroutines and are applied between blocks.
type Analyzer struct {
	mu sync.Mutex

	config    Config
	sink      EventSink
	logger    logging.Logger
	sessionID string

	ledger   *peaks.Ledger
	blocks   int64
	samples  int64
	deadline time.Time
	scratch  []int
}

// New creates an analyzer publishing to sink. A nil config uses
// DefaultConfig and a nil sink discards events.
func New(config *Config, sink EventSink) *Analyzer {
	if config == nil {
		config = DefaultConfig()
	}
	if sink == nil {
		sink = discardSink{}
	}

	cfg := config.withDefaults()
	sessionID := uuid.NewString()

	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.Fields{
		"component": "streaming_analyzer",
		"session":   sessionID,
	})

	return &Analyzer{
		config:    cfg,
		sink:      sink,
		logger:    logger,
		sessionID: sessionID,
		ledger:    peaks.NewLedger(peaks.MinValidThreshold),
	}
}

// SessionID identifies this analyzer in events and logs
func (a *Analyzer) SessionID() string {
	return a.sessionID
}

// AnalyzeBlock processes the next block of the stream and publishes a result
// event, plus a stable event when the reliability floor is promoted.
// The returned Result is the payload of the result event.
func (a *Analyzer) AnalyzeBlock(block []float64, sampleRate int) Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.config.Clock()
	a.expireLocked(now)

	floor := a.ledger.Floor()
	if len(block) == 0 {
		return Result{Threshold: floor, Err: ErrEmptyBlock}
	}
	if sampleRate <= 0 {
		a.logger.Debug("Block skipped", logging.Fields{"sample_rate": sampleRate})
		return Result{Threshold: floor, Err: ErrInvalidSampleRate}
	}

	blockStart := a.samples
	a.scratch = a.ledger.Ingest(block, blockStart, a.scratch)
	a.samples += int64(len(block))
	a.blocks++

	result := a.estimateLocked(sampleRate)
	a.publish(EventResult, result)

	promoted := false
	if result.Err == nil && result.Threshold > floor {
		a.ledger.PruneBelow(result.Threshold)
		a.publish(EventStable, result)
		promoted = true

		a.logger.Debug("Reliability floor promoted", logging.Fields{
			"from":  floor.String(),
			"to":    result.Threshold.String(),
			"tempo": result.Summary.Tempo,
			"block": a.blocks,
		})
	}

	// The deadline only runs while Stable; acquisition itself never times out
	stable := a.ledger.Floor() > peaks.MinValidThreshold
	if a.config.ContinuousAnalysis && stable && (promoted || a.deadline.IsZero()) {
		a.deadline = now.Add(a.config.StabilizationTime)
	}

	return result
}

// estimateLocked picks the highest threshold with more than MinPeaks peaks
// and ranks the tempo candidates of its peaks
func (a *Analyzer) estimateLocked(sampleRate int) Result {
	floor := a.ledger.Floor()

	// A rung above the floor promotes; otherwise the floor rung itself keeps
	// the estimate going. The 0.30 floor is not a rung and never qualifies.
	threshold := floor
	found := false
	for _, t := range peaks.Descending(floor) {
		if a.ledger.Count(t) > a.config.MinPeaks {
			threshold = t
			found = true
			break
		}
	}
	if !found && a.ledger.Count(floor) > a.config.MinPeaks {
		found = true
	}

	if !found {
		a.logger.Debug("Could not find enough samples for a reliable detection", logging.Fields{
			"floor": floor.String(),
			"block": a.blocks,
		})
		return Result{Threshold: floor, Err: ErrInsufficientData}
	}

	candidates := tempo.Estimate(a.ledger.Peaks(threshold), sampleRate, a.config.Candidates)
	return Result{
		Candidates: candidates,
		Threshold:  threshold,
		Summary:    tempo.Summarize(candidates),
	}
}

func (a *Analyzer) publish(kind EventKind, result Result) {
	a.sink.Publish(Event{
		Kind:      kind,
		SessionID: a.sessionID,
		Block:     a.blocks,
		Result:    result,
	})
}

// Tick checks the re-acquisition deadline without a block. Hosts call it
// while audio is paused so a stale estimate still times out. Reports whether
// the analyzer was reset.
func (a *Analyzer) Tick() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.expireLocked(a.config.Clock())
}

// expireLocked resets the analyzer when continuous analysis is on and the
// stabilization deadline passed without a promotion
func (a *Analyzer) expireLocked(now time.Time) bool {
	if !a.config.ContinuousAnalysis || a.deadline.IsZero() || now.Before(a.deadline) {
		return false
	}

	a.logger.Debug("Stabilization timeout, restarting tempo acquisition", logging.Fields{
		"floor":  a.ledger.Floor().String(),
		"blocks": a.blocks,
	})

	a.resetLocked()
	a.config.ComputeBPMDelay = 0
	a.publish(EventReset, Result{Threshold: a.ledger.Floor()})
	return true
}

// Reset returns the analyzer to its initial state: floor at its initial
// value, no peaks, block counter at zero and no pending deadline. Options are kept.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
}

func (a *Analyzer) resetLocked() {
	a.ledger.Reset(peaks.MinValidThreshold)
	a.blocks = 0
	a.samples = 0
	a.deadline = time.Time{}
}

// ComputeBPMDelay returns the current read delay hint for the host
func (a *Analyzer) ComputeBPMDelay() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.config.ComputeBPMDelay
}

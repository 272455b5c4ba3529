package analyzer

import (
	"time"

	"github.com/RyanBlaney/sonido-bpm/algorithms/peaks"
)

// Phase is the stabilization state of an analyzer
type Phase int

const (
	// Warming means no threshold has been trusted yet
	Warming Phase = iota

	// Stable means a reliability floor above the initial one is established
	Stable
)

func (p Phase) String() string {
	if p == Stable {
		return "stable"
	}
	return "warming"
}

// MarshalText encodes the phase by name
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ThresholdState describes the ledger entry of one tracked threshold
type ThresholdState struct {
	Threshold peaks.Threshold `json:"threshold"`
	Peaks     int             `json:"peaks"`
	Cursor    int64           `json:"cursor"`
}

// Snapshot is a point-in-time copy of the analyzer state
type Snapshot struct {
	SessionID string          `json:"session_id"`
	Phase     Phase           `json:"phase"`
	Floor     peaks.Threshold `json:"floor"`
	Blocks    int64           `json:"blocks"`
	Samples   int64           `json:"samples"`

	ContinuousAnalysis bool          `json:"continuous_analysis"`
	StabilizationTime  time.Duration `json:"stabilization_time"`
	ComputeBPMDelay    time.Duration `json:"compute_bpm_delay"`

	// Deadline is the pending re-acquisition deadline, zero when none is armed
	Deadline time.Time `json:"deadline,omitzero"`

	// Thresholds lists the tracked thresholds, highest first
	Thresholds []ThresholdState `json:"thresholds"`
}

// Snapshot returns a copy of the current state
func (a *Analyzer) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	floor := a.ledger.Floor()
	s := Snapshot{
		SessionID:          a.sessionID,
		Phase:              Warming,
		Floor:              floor,
		Blocks:             a.blocks,
		Samples:            a.samples,
		ContinuousAnalysis: a.config.ContinuousAnalysis,
		StabilizationTime:  a.config.StabilizationTime,
		ComputeBPMDelay:    a.config.ComputeBPMDelay,
		Deadline:           a.deadline,
	}
	if floor > peaks.MinValidThreshold {
		s.Phase = Stable
	}

	for _, t := range peaks.Tracked(floor) {
		s.Thresholds = append(s.Thresholds, ThresholdState{
			Threshold: t,
			Peaks:     a.ledger.Count(t),
			Cursor:    a.ledger.Cursor(t),
		})
	}

	return s
}

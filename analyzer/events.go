package analyzer

import (
	"fmt"
	"sync/atomic"

	"github.com/RyanBlaney/sonido-bpm/algorithms/peaks"
	"github.com/RyanBlaney/sonido-bpm/algorithms/tempo"
)

// EventKind identifies what an event reports
type EventKind int

const (
	// EventResult is published for every processed block
	EventResult EventKind = iota

	// EventStable is published when the reliability floor is promoted
	EventStable

	// EventReset is published when a stabilization timeout restarts the analysis
	EventReset
)

func (k EventKind) String() string {
	switch k {
	case EventResult:
		return "result"
	case EventStable:
		return "stable"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name in JSON output
func (k EventKind) MarshalText() ([]byte, error) {
	if k < EventResult || k > EventReset {
		return nil, fmt.Errorf("unknown event kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// Result is the outcome of analyzing one block
type Result struct {
	// Candidates are the best tempo hypotheses, most votes first. Shared
	// between the events of one block; treat as read-only.
	Candidates []tempo.Hypothesis `json:"bpm"`

	// Threshold is the threshold the candidates were computed from, or the
	// current floor when no threshold qualified
	Threshold peaks.Threshold `json:"threshold"`

	Summary tempo.Summary `json:"summary"`

	// Err carries a non-fatal diagnostic such as ErrInsufficientData
	Err error `json:"-"`
}

// Event is published by the analyzer to its sink
type Event struct {
	Kind      EventKind `json:"message"`
	SessionID string    `json:"session_id"`
	Block     int64     `json:"block"`
	Result    Result    `json:"result"`
}

// EventSink receives analyzer events. Publish is called on the audio path
// with the analyzer lock held, so it must not block or call back into the analyzer.
type EventSink interface {
	Publish(event Event)
}

// EventFunc adapts a function to EventSink
type EventFunc func(event Event)

func (f EventFunc) Publish(event Event) {
	f(event)
}

type discardSink struct{}

func (discardSink) Publish(Event) {}

// ChannelSink delivers events over a buffered channel. When the reader falls
// behind, events are dropped and counted instead of blocking the audio path.
type ChannelSink struct {
	ch      chan Event
	dropped atomic.Int64
}

// NewChannelSink creates a channel sink buffering up to capacity events
func NewChannelSink(capacity int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, max(capacity, 1))}
}

func (s *ChannelSink) Publish(event Event) {
	select {
	case s.ch <- event:
	default:
		s.dropped.Add(1)
	}
}

// Events returns the receive side of the sink
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Dropped returns how many events were discarded because the buffer was full
func (s *ChannelSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close closes the event channel. No events may be published afterwards.
func (s *ChannelSink) Close() {
	close(s.ch)
}

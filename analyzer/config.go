package analyzer

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/RyanBlaney/sonido-bpm/algorithms/tempo"
	"github.com/RyanBlaney/sonido-bpm/logging"
	"github.com/spf13/cast"
)

// Option keys accepted by SetOption and Configure
const (
	OptionContinuousAnalysis = "continuousAnalysis"
	OptionStabilizationTime  = "stabilizationTime"
	OptionComputeBPMDelay    = "computeBpmDelay"
)

// MinPeaks is the default number of peaks a threshold must exceed before its
// intervals are trusted
const MinPeaks = 15

// Config configures a streaming analyzer
type Config struct {
	// ContinuousAnalysis enables automatic re-acquisition: when no promotion
	// happens within StabilizationTime the analyzer starts over
	ContinuousAnalysis bool          `json:"continuous_analysis"`
	StabilizationTime  time.Duration `json:"stabilization_time"`

	// ComputeBPMDelay is a hint for the host: how long it may wait between
	// reads of the estimate. The analyzer only stores it, and zeroes it on a
	// re-acquisition reset so the host polls faster.
	ComputeBPMDelay time.Duration `json:"compute_bpm_delay"`

	MinPeaks   int `json:"min_peaks"`
	Candidates int `json:"candidates"`

	Logger logging.Logger   `json:"-"`
	Clock  func() time.Time `json:"-"`
}

// DefaultConfig returns one-shot analysis with a 20s stabilization window and
// a 10s read delay hint
func DefaultConfig() *Config {
	return &Config{
		ContinuousAnalysis: false,
		StabilizationTime:  20 * time.Second,
		ComputeBPMDelay:    10 * time.Second,
		MinPeaks:           MinPeaks,
		Candidates:         tempo.DefaultCandidates,
	}
}

func (c *Config) withDefaults() Config {
	cfg := *c
	def := DefaultConfig()
	if cfg.MinPeaks <= 0 {
		cfg.MinPeaks = def.MinPeaks
	}
	if cfg.Candidates <= 0 {
		cfg.Candidates = def.Candidates
	}
	if cfg.StabilizationTime <= 0 {
		cfg.StabilizationTime = def.StabilizationTime
	}
	if cfg.ComputeBPMDelay < 0 {
		cfg.ComputeBPMDelay = def.ComputeBPMDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return cfg
}

// SetOption applies one configuration key. Unknown keys and bad values are
// logged and leave the analyzer unchanged.
func (a *Analyzer) SetOption(key string, value any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.setOptionLocked(key, value)
}

// Configure applies a set of options in one step, between two blocks.
// Keys are applied in sorted order; every failure is reported.
func (a *Analyzer) Configure(params map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, key := range slices.Sorted(maps.Keys(params)) {
		if err := a.setOptionLocked(key, params[key]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Analyzer) setOptionLocked(key string, value any) error {
	switch key {
	case OptionContinuousAnalysis:
		on, err := cast.ToBoolE(value)
		if err != nil {
			return a.rejectOption(key, value, fmt.Errorf("%w: %s: %v", ErrInvalidOptionValue, key, err))
		}
		a.config.ContinuousAnalysis = on
		if !on {
			a.deadline = time.Time{}
		}

	case OptionStabilizationTime:
		d, err := toDuration(value)
		if err != nil || d <= 0 {
			return a.rejectOption(key, value, fmt.Errorf("%w: %s must be a positive duration", ErrInvalidOptionValue, key))
		}
		a.config.StabilizationTime = d

	case OptionComputeBPMDelay:
		d, err := toDuration(value)
		if err != nil || d < 0 {
			return a.rejectOption(key, value, fmt.Errorf("%w: %s must be a non-negative duration", ErrInvalidOptionValue, key))
		}
		a.config.ComputeBPMDelay = d

	default:
		return a.rejectOption(key, value, fmt.Errorf("%w: %q", ErrUnknownOption, key))
	}

	a.logger.Debug("Option updated", logging.Fields{
		"key":   key,
		"value": value,
	})
	return nil
}

func (a *Analyzer) rejectOption(key string, value any, err error) error {
	a.logger.Warn("Option ignored", logging.Fields{
		"key":   key,
		"value": value,
		"error": err.Error(),
	})
	return err
}

// toDuration accepts time.Duration values, Go duration strings ("20s") and
// plain numbers, which are taken as milliseconds. Booleans and nil are not
// durations even though cast would read them as 1 and 0.
func toDuration(value any) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d, nil
		}
	case bool, nil:
		return 0, fmt.Errorf("%T is not a duration", value)
	}

	ms, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}

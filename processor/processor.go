// Package processor hosts a streaming analyzer on an audio path: it gathers
// the small chunks an audio callback delivers into the fixed-size blocks the
// analyzer expects and forwards configuration messages to it.
package processor

import (
	"fmt"
	"sync"

	"github.com/RyanBlaney/sonido-bpm/algorithms/common"
	"github.com/RyanBlaney/sonido-bpm/analyzer"
	"github.com/RyanBlaney/sonido-bpm/logging"
)

// DefaultBlockSize is the number of samples per analyzed block
const DefaultBlockSize = 4096

// Config holds processor configuration
type Config struct {
	SampleRate int              `json:"sample_rate"`
	BlockSize  int              `json:"block_size"`
	Analyzer   *analyzer.Config `json:"analyzer"`
}

// DefaultConfig returns a 44.1 kHz processor with 4096-sample blocks
func DefaultConfig() *Config {
	return &Config{
		SampleRate: 44100,
		BlockSize:  DefaultBlockSize,
		Analyzer:   analyzer.DefaultConfig(),
	}
}

// Processor feeds an analyzer from an audio callback. Process is meant for a
// single audio goroutine; the other methods may be called from any goroutine.
type Processor struct {
	config   Config
	analyzer *analyzer.Analyzer
	logger   logging.Logger

	mu     sync.Mutex
	buffer *common.BlockBuffer
	last   analyzer.Result
	blocks int64
}

// New creates a processor publishing analyzer events to sink
func New(config *Config, sink analyzer.EventSink) (*Processor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d", analyzer.ErrInvalidSampleRate, cfg.SampleRate)
	}

	a := analyzer.New(cfg.Analyzer, sink)
	logger := logging.WithFields(logging.Fields{
		"component": "bpm_processor",
		"session":   a.SessionID(),
	})

	logger.Debug("Processor created", logging.Fields{
		"sample_rate": cfg.SampleRate,
		"block_size":  cfg.BlockSize,
	})

	return &Processor{
		config:   cfg,
		buffer:   common.NewBlockBuffer(cfg.BlockSize),
		analyzer: a,
		logger:   logger,
	}, nil
}

// Process appends one chunk of mono samples and analyzes every block it
// completes. Returns the number of blocks analyzed.
func (p *Processor) Process(chunk []float64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.Write(chunk, p.analyze)
}

func (p *Processor) analyze(block []float64) {
	p.last = p.analyzer.AnalyzeBlock(block, p.config.SampleRate)
	p.blocks++
}

// Configure applies a configuration message (option key to value)
func (p *Processor) Configure(params map[string]any) error {
	err := p.analyzer.Configure(params)
	if err != nil {
		p.logger.Warn("Configuration partially applied", logging.Fields{
			"error": err.Error(),
		})
	}
	return err
}

// Flush discards samples of an incomplete block, e.g. when the input stream restarts
func (p *Processor) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffer.Reset()
}

// Reset flushes pending samples and resets the analyzer
func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffer.Reset()
	p.analyzer.Reset()
	p.last = analyzer.Result{}
}

// Last returns the result of the most recently analyzed block
func (p *Processor) Last() analyzer.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Blocks returns how many blocks were analyzed since creation
func (p *Processor) Blocks() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blocks
}

// Analyzer exposes the underlying analyzer for snapshots and ticks
func (p *Processor) Analyzer() *analyzer.Analyzer {
	return p.analyzer
}

// Config returns the effective processor configuration
func (p *Processor) Config() Config {
	return p.config
}

// Package config loads the sonido-bpm command configuration from a file and
// the environment
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-bpm/analyzer"
	"github.com/RyanBlaney/sonido-bpm/logging"
	"github.com/RyanBlaney/sonido-bpm/processor"
	"github.com/RyanBlaney/sonido-bpm/transcode"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. SONIDO_BPM_STREAM_BLOCK_SIZE
const EnvPrefix = "SONIDO_BPM"

// Config represents the complete application configuration
type Config struct {
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Input    InputConfig    `mapstructure:"input"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AnalyzerConfig holds the streaming analyzer options
type AnalyzerConfig struct {
	ContinuousAnalysis bool          `mapstructure:"continuous_analysis"`
	StabilizationTime  time.Duration `mapstructure:"stabilization_time"`
	ComputeBPMDelay    time.Duration `mapstructure:"compute_bpm_delay"`
	MinPeaks           int           `mapstructure:"min_peaks"`
	Candidates         int           `mapstructure:"candidates"`
}

// StreamConfig holds block assembly settings
type StreamConfig struct {
	BlockSize  int `mapstructure:"block_size"`
	ChunkSize  int `mapstructure:"chunk_size"`
	EventQueue int `mapstructure:"event_queue"`
}

// InputConfig holds decoding settings
type InputConfig struct {
	Normalize   bool          `mapstructure:"normalize"`
	TargetPeak  float64       `mapstructure:"target_peak"`
	RemoveDC    bool          `mapstructure:"remove_dc"`
	DCCutoff    float64       `mapstructure:"dc_cutoff"`
	MaxDuration time.Duration `mapstructure:"max_duration"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Color bool   `mapstructure:"color"`
}

// Load reads configuration from path (optional) and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// Defaults alone always unmarshal
		panic(err)
	}
	return cfg
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	def := analyzer.DefaultConfig()

	v.SetDefault("analyzer.continuous_analysis", def.ContinuousAnalysis)
	v.SetDefault("analyzer.stabilization_time", def.StabilizationTime)
	v.SetDefault("analyzer.compute_bpm_delay", def.ComputeBPMDelay)
	v.SetDefault("analyzer.min_peaks", def.MinPeaks)
	v.SetDefault("analyzer.candidates", def.Candidates)

	v.SetDefault("stream.block_size", processor.DefaultBlockSize)
	v.SetDefault("stream.chunk_size", 128)
	v.SetDefault("stream.event_queue", 256)

	v.SetDefault("input.normalize", false)
	v.SetDefault("input.target_peak", 1.0)
	v.SetDefault("input.remove_dc", false)
	v.SetDefault("input.dc_cutoff", 10.0)
	v.SetDefault("input.max_duration", "0s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.color", true)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Analyzer.StabilizationTime <= 0 {
		return fmt.Errorf("analyzer.stabilization_time must be positive")
	}
	if c.Analyzer.ComputeBPMDelay < 0 {
		return fmt.Errorf("analyzer.compute_bpm_delay must not be negative")
	}
	if c.Analyzer.MinPeaks < 1 {
		return fmt.Errorf("analyzer.min_peaks must be at least 1")
	}
	if c.Analyzer.Candidates < 1 {
		return fmt.Errorf("analyzer.candidates must be at least 1")
	}

	if c.Stream.BlockSize < 256 {
		return fmt.Errorf("stream.block_size must be at least 256")
	}
	if c.Stream.ChunkSize < 1 || c.Stream.ChunkSize > c.Stream.BlockSize {
		return fmt.Errorf("stream.chunk_size must be between 1 and stream.block_size")
	}
	if c.Stream.EventQueue < 1 {
		return fmt.Errorf("stream.event_queue must be at least 1")
	}

	if c.Input.TargetPeak <= 0 || c.Input.TargetPeak > 1 {
		return fmt.Errorf("input.target_peak must be in (0, 1]")
	}
	if c.Input.RemoveDC && c.Input.DCCutoff <= 0 {
		return fmt.Errorf("input.dc_cutoff must be positive")
	}
	if c.Input.MaxDuration < 0 {
		return fmt.Errorf("input.max_duration must not be negative")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// AnalyzerConfig converts the analyzer section to an analyzer configuration
func (c *Config) AnalyzerConfig() *analyzer.Config {
	return &analyzer.Config{
		ContinuousAnalysis: c.Analyzer.ContinuousAnalysis,
		StabilizationTime:  c.Analyzer.StabilizationTime,
		ComputeBPMDelay:    c.Analyzer.ComputeBPMDelay,
		MinPeaks:           c.Analyzer.MinPeaks,
		Candidates:         c.Analyzer.Candidates,
	}
}

// ProcessorConfig builds the processor configuration for a stream at sampleRate
func (c *Config) ProcessorConfig(sampleRate int) *processor.Config {
	return &processor.Config{
		SampleRate: sampleRate,
		BlockSize:  c.Stream.BlockSize,
		Analyzer:   c.AnalyzerConfig(),
	}
}

// DecoderConfig converts the input section to a decoder configuration
func (c *Config) DecoderConfig() *transcode.DecoderConfig {
	return &transcode.DecoderConfig{
		Normalize:   c.Input.Normalize,
		TargetPeak:  c.Input.TargetPeak,
		RemoveDC:    c.Input.RemoveDC,
		DCCutoff:    c.Input.DCCutoff,
		MaxDuration: c.Input.MaxDuration,
	}
}

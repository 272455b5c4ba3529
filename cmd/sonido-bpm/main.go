package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-bpm/analyzer"
	"github.com/RyanBlaney/sonido-bpm/config"
	"github.com/RyanBlaney/sonido-bpm/logging"
	"github.com/RyanBlaney/sonido-bpm/processor"
	"github.com/RyanBlaney/sonido-bpm/transcode"
	"github.com/alecthomas/kong"
)

var (
	version = "0.1.0"
)

// CLI defines the command-line interface
type CLI struct {
	Version       bool          `short:"v" help:"Show version information"`
	Config        string        `short:"c" type:"path" help:"Path to a YAML, TOML or JSON config file (optional)"`
	BlockSize     int           `help:"Samples per analyzed block (0 keeps the configured value)"`
	Continuous    bool          `help:"Restart acquisition when the estimate stops improving"`
	Stabilization time.Duration `help:"Stabilization time for continuous analysis (0 keeps the configured value)"`
	Normalize     bool          `help:"Peak-normalize the input before analysis"`
	RemoveDC      bool          `name:"remove-dc" help:"Remove DC offset from the input before analysis"`
	Realtime      bool          `help:"Feed audio at playback speed instead of as fast as possible"`
	All           bool          `help:"Print every per-block result, not only stable estimates"`
	JSON          bool          `help:"Print events as JSON lines"`
	LogLevel      string        `help:"Log level (debug, info, warn, error)"`
	File          string        `arg:"" optional:"" name:"file" help:"WAV file to analyze" type:"existingfile"`
}

func main() {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("sonido-bpm"),
		kong.Description("Streaming tempo detection for WAV audio"),
		kong.UsageOnError(),
	)

	if cliArgs.Version {
		printVersion(version)
		os.Exit(0)
	}

	if cliArgs.File == "" {
		printError("No input file specified")
		ctx.PrintUsage(false)
		os.Exit(1)
	}

	cfg, err := loadConfig(cliArgs)
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}

	if err := run(cliArgs, cfg); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies command-line overrides
func loadConfig(cliArgs *CLI) (*config.Config, error) {
	cfg, err := config.Load(cliArgs.Config)
	if err != nil {
		return nil, err
	}

	if cliArgs.BlockSize > 0 {
		cfg.Stream.BlockSize = cliArgs.BlockSize
	}
	if cliArgs.Continuous {
		cfg.Analyzer.ContinuousAnalysis = true
	}
	if cliArgs.Stabilization > 0 {
		cfg.Analyzer.StabilizationTime = cliArgs.Stabilization
	}
	if cliArgs.Normalize {
		cfg.Input.Normalize = true
	}
	if cliArgs.RemoveDC {
		cfg.Input.RemoveDC = true
	}
	if cliArgs.LogLevel != "" {
		cfg.Logging.Level = cliArgs.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(cliArgs *CLI, cfg *config.Config) error {
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logging.SetLevel(level)
	if !cfg.Logging.Color || cliArgs.JSON {
		logging.DisableColors()
	}

	audio, err := transcode.NewDecoder(cfg.DecoderConfig()).DecodeFile(cliArgs.File)
	if err != nil {
		return err
	}
	printInput(cliArgs.File, audio, cliArgs.JSON)

	// Only the events the user asked for go through the queue
	queue := analyzer.NewChannelSink(cfg.Stream.EventQueue)
	sink := analyzer.EventFunc(func(e analyzer.Event) {
		if e.Kind == analyzer.EventResult && !cliArgs.All {
			return
		}
		queue.Publish(e)
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range queue.Events() {
			printEvent(e, cfg.Stream.BlockSize, audio.SampleRate, cliArgs.JSON)
		}
	}()

	proc, err := processor.New(cfg.ProcessorConfig(audio.SampleRate), sink)
	if err != nil {
		queue.Close()
		wg.Wait()
		return err
	}

	stream(proc, audio, cfg.Stream.ChunkSize, cliArgs.Realtime)

	queue.Close()
	wg.Wait()

	printSummary(proc, queue.Dropped(), cliArgs.JSON)
	return nil
}

// stream feeds the decoded signal to the processor chunk by chunk, the way
// an audio callback would deliver it
func stream(proc *processor.Processor, audio *transcode.AudioData, chunkSize int, realtime bool) {
	var ticker *time.Ticker
	if realtime {
		period := time.Duration(float64(chunkSize) / float64(audio.SampleRate) * float64(time.Second))
		ticker = time.NewTicker(period)
		defer ticker.Stop()
	}

	for start := 0; start < len(audio.PCM); start += chunkSize {
		end := min(start+chunkSize, len(audio.PCM))
		proc.Process(audio.PCM[start:end])
		if ticker != nil {
			<-ticker.C
			proc.Analyzer().Tick()
		}
	}
}

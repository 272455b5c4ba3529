// Package transcode decodes audio files into the mono float64 PCM the tempo
// analyzer consumes
package transcode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/RyanBlaney/sonido-bpm/algorithms/common"
	"github.com/RyanBlaney/sonido-bpm/algorithms/filters"
	"github.com/RyanBlaney/sonido-bpm/logging"
	"github.com/mjibson/go-dsp/wav"
)

// readFrames is how many frames are pulled from the WAV reader at a time
const readFrames = 8192

// AudioData represents decoded mono audio
type AudioData struct {
	PCM        []float64     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"` // channel count of the source before downmixing
	Duration   time.Duration `json:"duration"`
	PeakLevel  float64       `json:"peak_level"` // peak amplitude before normalization
	Gain       float64       `json:"gain"`       // gain applied by normalization, 1 when disabled
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// Normalize scales the decoded signal so its peak reaches TargetPeak. The
	// analyzer thresholds are absolute amplitudes, so quiet material benefits.
	Normalize  bool    `json:"normalize"`
	TargetPeak float64 `json:"target_peak"`

	// RemoveDC runs a DC blocker with cutoff DCCutoff (Hz) over the mono
	// signal before normalization
	RemoveDC bool    `json:"remove_dc"`
	DCCutoff float64 `json:"dc_cutoff"`

	// MaxDuration stops decoding after this much audio; zero decodes everything
	MaxDuration time.Duration `json:"max_duration"`
}

// DefaultDecoderConfig returns a decoder configuration without normalization
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		Normalize:  false,
		TargetPeak: 1.0,
		DCCutoff:   10.0,
	}
}

// Decoder decodes PCM and IEEE float WAV data
type Decoder struct {
	config *DecoderConfig
}

// NewDecoder creates a decoder; a nil config uses DefaultDecoderConfig
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// DecodeFile decodes a WAV file
func (d *Decoder) DecodeFile(filename string) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeFile",
		"file":      filename,
	})

	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	audio, err := d.DecodeReader(bufio.NewReader(f))
	if err != nil {
		logger.Error(err, "Failed to decode audio file")
		return nil, err
	}

	logger.Debug("Audio file decoded", logging.Fields{
		"sample_rate": audio.SampleRate,
		"channels":    audio.Channels,
		"duration":    audio.Duration.String(),
		"peak":        audio.PeakLevel,
	})
	return audio, nil
}

// DecodeReader decodes WAV data from reader and downmixes it to mono
func (d *Decoder) DecodeReader(reader io.Reader) (*AudioData, error) {
	w, err := wav.New(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read wav header: %w", err)
	}

	channels := int(w.NumChannels)
	sampleRate := int(w.SampleRate)
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid wav format: %d channels at %d Hz", channels, sampleRate)
	}

	maxFrames := -1
	if d.config.MaxDuration > 0 {
		maxFrames = int(d.config.MaxDuration.Seconds() * float64(sampleRate))
	}

	interleaved, err := readInterleaved(w, channels, maxFrames)
	if err != nil {
		return nil, err
	}

	mono := common.Downmix(interleaved, channels)
	if maxFrames >= 0 && len(mono) > maxFrames {
		mono = mono[:maxFrames]
	}

	if d.config.RemoveDC {
		filters.NewDCBlockerWithCutoff(sampleRate, d.config.DCCutoff).ProcessInPlace(mono)
	}

	audio := &AudioData{
		PCM:        mono,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   time.Duration(float64(len(mono)) / float64(sampleRate) * float64(time.Second)),
		PeakLevel:  common.PeakAmplitude(mono),
		Gain:       1.0,
	}

	if d.config.Normalize {
		target := d.config.TargetPeak
		if target <= 0 {
			target = 1.0
		}
		audio.Gain = common.PeakNormalize(audio.PCM, target)
	}

	return audio, nil
}

// readInterleaved pulls samples in chunks bounded by the sample count in the
// header, then frame by frame until the data chunk ends, so a short or
// mislabelled data chunk never loses a partial read
func readInterleaved(w *wav.Wav, channels, maxFrames int) ([]float64, error) {
	interleaved := make([]float64, 0, max(w.Samples, 0))
	remaining := w.Samples

	for maxFrames < 0 || len(interleaved)/channels < maxFrames {
		n := channels
		if remaining > 0 {
			n = min(readFrames*channels, remaining)
		}

		raw, err := w.ReadSamples(n)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read wav samples: %w", err)
		}

		interleaved, err = appendSamples(interleaved, raw)
		if err != nil {
			return nil, err
		}
		remaining -= n
	}

	return interleaved, nil
}

// appendSamples converts raw WAV samples to float64 in [-1, 1]
func appendSamples(dst []float64, raw any) ([]float64, error) {
	switch s := raw.(type) {
	case []uint8:
		for _, v := range s {
			dst = append(dst, (float64(v)-128)/128)
		}
	case []int16:
		for _, v := range s {
			dst = append(dst, float64(v)/32768)
		}
	case []int32:
		for _, v := range s {
			dst = append(dst, float64(v)/2147483648)
		}
	case []float32:
		for _, v := range s {
			dst = append(dst, float64(v))
		}
	case []float64:
		dst = append(dst, s...)
	default:
		return nil, fmt.Errorf("unsupported wav sample type %T", raw)
	}
	return dst, nil
}

// GetConfig returns the decoder configuration
func (d *Decoder) GetConfig() DecoderConfig {
	return *d.config
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-bpm/analyzer"
	"github.com/RyanBlaney/sonido-bpm/processor"
	"github.com/RyanBlaney/sonido-bpm/transcode"
	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#E07A10") // Sonido orange
	stableColor  = lipgloss.Color("#00AA00")
	mutedColor   = lipgloss.Color("#888888")
	textColor    = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A40000"))

	keyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)

	stableStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(stableColor)

	resetStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(primaryColor)
)

func printVersion(version string) {
	fmt.Println(titleStyle.Render("sonido-bpm"))
	fmt.Printf("%s %s\n", keyStyle.Render("Version:"), valueStyle.Render(version))
	fmt.Println()
}

func printError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("Error:"), message)
}

func printInput(path string, audio *transcode.AudioData, asJSON bool) {
	if asJSON {
		return
	}
	fmt.Println(titleStyle.Render("sonido-bpm"))
	fmt.Printf("%s %s\n", keyStyle.Render("File:    "), valueStyle.Render(path))
	fmt.Printf("%s %s\n", keyStyle.Render("Format:  "),
		valueStyle.Render(fmt.Sprintf("%d Hz, %d ch, %s", audio.SampleRate, audio.Channels, audio.Duration.Round(time.Millisecond))))
	fmt.Printf("%s %s\n", keyStyle.Render("Peak:    "),
		valueStyle.Render(fmt.Sprintf("%.3f (gain %.2f)", audio.PeakLevel, audio.Gain)))
	fmt.Println()
}

// streamTime converts a block counter to a position in the input
func streamTime(block int64, blockSize, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := block * int64(blockSize)
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second)).Round(10 * time.Millisecond)
}

func formatCandidates(result analyzer.Result) string {
	if len(result.Candidates) == 0 {
		return "no estimate yet"
	}
	parts := make([]string, len(result.Candidates))
	for i, c := range result.Candidates {
		parts[i] = fmt.Sprintf("%d (%d)", c.Tempo, c.Count)
	}
	return strings.Join(parts, ", ")
}

func printEvent(e analyzer.Event, blockSize, sampleRate int, asJSON bool) {
	if asJSON {
		data, err := json.Marshal(e)
		if err != nil {
			printError(err.Error())
			return
		}
		fmt.Println(string(data))
		return
	}

	at := keyStyle.Render(fmt.Sprintf("[%8s]", streamTime(e.Block, blockSize, sampleRate)))
	switch e.Kind {
	case analyzer.EventStable:
		fmt.Printf("%s %s %s %s\n", at,
			stableStyle.Render(fmt.Sprintf("%3d BPM", e.Result.Summary.Tempo)),
			keyStyle.Render(fmt.Sprintf("threshold %s, confidence %.0f%%:", e.Result.Threshold, e.Result.Summary.Confidence*100)),
			formatCandidates(e.Result))
	case analyzer.EventReset:
		fmt.Printf("%s %s\n", at, resetStyle.Render("estimate expired, re-acquiring"))
	default:
		fmt.Printf("%s %s %s\n", at,
			keyStyle.Render(fmt.Sprintf("threshold %s:", e.Result.Threshold)),
			formatCandidates(e.Result))
	}
}

func printSummary(proc *processor.Processor, dropped int64, asJSON bool) {
	last := proc.Last()
	snap := proc.Analyzer().Snapshot()

	if asJSON {
		data, err := json.Marshal(struct {
			Result  analyzer.Result   `json:"result"`
			State   analyzer.Snapshot `json:"state"`
			Dropped int64             `json:"dropped_events"`
		}{last, snap, dropped})
		if err != nil {
			printError(err.Error())
			return
		}
		fmt.Println(string(data))
		return
	}

	fmt.Println()
	if last.Summary.Tempo == 0 {
		fmt.Printf("%s %s\n", keyStyle.Render("Tempo:   "), valueStyle.Render("not enough peaks for a reliable detection"))
	} else {
		fmt.Printf("%s %s\n", keyStyle.Render("Tempo:   "), stableStyle.Render(fmt.Sprintf("%d BPM", last.Summary.Tempo)))
		fmt.Printf("%s %s\n", keyStyle.Render("Candidates:"), formatCandidates(last))
	}
	fmt.Printf("%s %s\n", keyStyle.Render("State:   "),
		valueStyle.Render(fmt.Sprintf("%s, floor %s, %d blocks", snap.Phase, snap.Floor, proc.Blocks())))
	if dropped > 0 {
		fmt.Printf("%s %d\n", keyStyle.Render("Dropped events:"), dropped)
	}
}

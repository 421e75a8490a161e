// Package logging handles generation of analysis reports for analysed audio files.
// This file provides console display for analysis-only mode.

package logging

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/linuxmatters/timestruct/internal/audio"
	"github.com/linuxmatters/timestruct/internal/processor"
)

// displayListLimit caps the number of events listed on the console.
const displayListLimit = 20

// DisplayEvents outputs the result of one analysis pass to the console.
// Used by --analysis-only mode for quick inspection without writing files.
func DisplayEvents(w io.Writer, inputPath string, metadata *audio.Metadata, result *processor.PassResult, score []processor.ScoreRecord) {
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "ANALYSIS: %s\n", filepath.Base(inputPath))
	fmt.Fprintln(w, strings.Repeat("=", 70))

	if metadata != nil {
		fmt.Fprintf(w, "Duration:    %s\n", formatDurationHMS(metadata.Duration))
		fmt.Fprintf(w, "Sample Rate: %d Hz\n", metadata.SampleRate)
		fmt.Fprintf(w, "Channels:    %s\n", channelName(metadata.Channels))
		fmt.Fprintln(w)
	}

	if result != nil {
		writeAnalysisSection(w, "ENVELOPE")
		fmt.Fprintf(w, "  Smoothing:      %s\n", formatMetric(result.Smoothing, 4))
		fmt.Fprintf(w, "  Maximum:        %s dBFS\n", formatMetricPeak(result.MaxSample, 1))
		fmt.Fprintf(w, "  Pass time:      %s\n", formatDuration(result.Elapsed))
		fmt.Fprintln(w)
	}

	duration := 0.0
	if metadata != nil {
		duration = metadata.Duration
	}
	stats := ComputeEventStats(score, duration)

	writeAnalysisSection(w, "EVENTS")
	fmt.Fprintf(w, "  Count:          %d (%s)\n", stats.Count, interpretEventRate(stats.RatePerSec))
	if stats.Count == 0 {
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintf(w, "  Mean duration:  %s\n", formatMetricWithUnit(stats.Duration[1], 1, "ms"))
	fmt.Fprintf(w, "  Mean peak:      %s\n", formatMetric(stats.PeakAmp[1], 3))
	fmt.Fprintln(w)

	for i, r := range score {
		if i == displayListLimit {
			fmt.Fprintf(w, "  ... %d more\n", len(score)-displayListLimit)
			break
		}
		fmt.Fprintf(w, "  %4d  %s  %7.1f ms  vel %3d\n",
			r.Index,
			formatTimestamp(time.Duration(r.OnsetMs*float64(time.Millisecond))),
			r.DurationMs,
			r.Velocity)
	}
	fmt.Fprintln(w)
}

// writeAnalysisSection writes a console section header.
func writeAnalysisSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
}

// formatDurationHMS formats seconds as H:MM:SS or M:SS.
func formatDurationHMS(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

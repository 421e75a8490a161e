// Package logging handles generation of analysis reports for analysed audio files

package logging

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/linuxmatters/timestruct/internal/locale"
	"github.com/linuxmatters/timestruct/internal/processor"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ReportSuffix is appended to the output base name to form the report path.
const ReportSuffix = "-timestruct.log"

// ReportData contains all the information needed to generate an analysis report
type ReportData struct {
	InputPath      string
	OutputBase     string // output path without extension; the report goes to OutputBase+ReportSuffix
	StartTime      time.Time
	EndTime        time.Time
	ReadTime       time.Duration
	SmoothingTime  time.Duration
	SegmentingTime time.Duration
	Result         *processor.PassResult
	Envelope       []float64 // smoothed, normalised buffer after the pass
	Flat           []processor.FlatRecord
	Score          []processor.ScoreRecord
	SampleRate     int
	Channels       int
	DurationSecs   float64
	Host           locale.Host
}

// ReportPath returns where GenerateReport writes the report for base.
func ReportPath(base string) string {
	return base + ReportSuffix
}

// GenerateReport writes a detailed analysis report to ReportPath(data.OutputBase).
//
// Report structure:
// 1. Header - file info, host and timestamp
// 2. Processing Summary - stage timings
// 3. Analysis Parameters
// 4. Envelope Statistics
// 5. Event Statistics - Min/Mean/Max table
// 6. Event Listing
func GenerateReport(data ReportData) error {
	f, err := os.Create(ReportPath(data.OutputBase))
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer f.Close()

	writeReport(f, data)
	return nil
}

func writeReport(w io.Writer, data ReportData) {
	writeReportHeader(w, data)
	writeProcessingSummary(w, data)
	writeAnalysisParameters(w, data)
	writeEnvelopeTable(w, data.Envelope)
	writeEventTable(w, data)
	writeEventListing(w, data.Score)
}

// writeSection writes a section header with title and dashed underline.
// The underline length matches the title length.
func writeSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", len(title)))
}

// writeReportHeader outputs the report header with file info and timestamp.
func writeReportHeader(w io.Writer, data ReportData) {
	fmt.Fprintln(w, "Timestruct Analysis Report")
	fmt.Fprintln(w, "==========================")
	fmt.Fprintf(w, "File: %s\n", filepath.Base(data.InputPath))
	fmt.Fprintf(w, "Analysed: %s\n", data.EndTime.Format("2006-01-02 15:04:05 MST"))
	if data.Host.Timezone != "" {
		fmt.Fprintf(w, "Host: %s\n", data.Host)
	}
	fmt.Fprintf(w, "Duration: %s\n", formatDuration(time.Duration(data.DurationSecs*float64(time.Second))))
	fmt.Fprintf(w, "Format: %d Hz, %s\n", data.SampleRate, channelName(data.Channels))
	fmt.Fprintln(w, "")
}

// writeProcessingSummary outputs the time spent in each stage.
func writeProcessingSummary(w io.Writer, data ReportData) {
	writeSection(w, "Processing Summary")

	fmt.Fprintf(w, "Read:        %s\n", formatDuration(data.ReadTime))
	fmt.Fprintf(w, "Smoothing:   %s\n", formatDuration(data.SmoothingTime))
	fmt.Fprintf(w, "Segmenting:  %s\n", formatDuration(data.SegmentingTime))

	totalTime := data.EndTime.Sub(data.StartTime)
	fmt.Fprintf(w, "Total:       %s", formatDuration(totalTime))

	if data.DurationSecs > 0 && totalTime > 0 {
		audioDuration := time.Duration(data.DurationSecs * float64(time.Second))
		rtf := float64(audioDuration) / float64(totalTime)
		fmt.Fprintf(w, " (%.0fx real-time)", rtf)
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "")
}

// writeAnalysisParameters outputs the settings and raw figures of the pass.
func writeAnalysisParameters(w io.Writer, data ReportData) {
	writeSection(w, "Analysis Parameters")

	r := data.Result
	if r == nil {
		fmt.Fprintln(w, "No analysis result")
		fmt.Fprintln(w, "")
		return
	}

	lookAheadMs := math.NaN()
	if data.SampleRate > 0 {
		lookAheadMs = float64(processor.LookAhead) / float64(data.SampleRate) * 1000
	}
	normalise := 1.0
	if r.MaxSample != 0 {
		normalise = 1 / r.MaxSample
	}

	fmt.Fprintf(w, "Smoothing factor:   %s\n", formatMetric(r.Smoothing, 4))
	fmt.Fprintf(w, "Look-ahead:         %d samples (%s)\n", processor.LookAhead, formatMetricWithUnit(lookAheadMs, 1, "ms"))
	fmt.Fprintf(w, "Frames analysed:    %d\n", r.Frames)
	fmt.Fprintf(w, "Envelope maximum:   %s (%s dBFS)\n", formatMetric(r.MaxSample, 6), formatMetricPeak(r.MaxSample, 1))
	fmt.Fprintf(w, "Normalise factor:   %s\n", formatMetric(normalise, 3))
	fmt.Fprintln(w, "")
}

// writeEnvelopeTable summarises the smoothed envelope.
func writeEnvelopeTable(w io.Writer, envelope []float64) {
	writeSection(w, "Envelope Statistics")

	if len(envelope) == 0 {
		fmt.Fprintln(w, "No envelope data")
		fmt.Fprintln(w, "")
		return
	}

	sorted := slices.Clone(envelope)
	slices.Sort(sorted)

	table := NewMetricTable("Value")
	table.AddMetricRow("Mean", []float64{stat.Mean(envelope, nil)}, 4, "", "")
	table.AddMetricRow("Std Dev", []float64{stat.StdDev(envelope, nil)}, 4, "", "")
	table.AddMetricRow("Minimum", []float64{floats.Min(envelope)}, 4, "", "")
	table.AddMetricRow("Median", []float64{stat.Quantile(0.5, stat.Empirical, sorted, nil)}, 4, "", "")
	table.AddMetricRow("95th Percentile", []float64{stat.Quantile(0.95, stat.Empirical, sorted, nil)}, 4, "", "")
	table.AddMetricRow("Maximum", []float64{floats.Max(envelope)}, 4, "", "")

	fmt.Fprint(w, table.String())
	fmt.Fprintln(w, "")
}

// EventStats are the aggregate figures over one pass's events.
type EventStats struct {
	Count        int
	RatePerSec   float64
	Duration     [3]float64 // min, mean, max in ms
	Attack       [3]float64 // open dip to peak, ms
	PeakAmp      [3]float64
	RelativePeak [3]float64
}

// ComputeEventStats derives EventStats from a pass's score records.
// durationSecs is the length of the analysed audio.
func ComputeEventStats(score []processor.ScoreRecord, durationSecs float64) EventStats {
	s := EventStats{Count: len(score)}
	if durationSecs > 0 {
		s.RatePerSec = float64(len(score)) / durationSecs
	}
	if len(score) == 0 {
		nan := [3]float64{math.NaN(), math.NaN(), math.NaN()}
		s.Duration, s.Attack, s.PeakAmp, s.RelativePeak = nan, nan, nan, nan
		return s
	}

	durations := make([]float64, len(score))
	attacks := make([]float64, len(score))
	peaks := make([]float64, len(score))
	rel := make([]float64, len(score))
	for i, r := range score {
		durations[i] = r.DurationMs
		attacks[i] = r.Envelope[1].X * r.DurationMs
		peaks[i] = r.Envelope[1].Y
		rel[i] = r.Envelope[1].X
	}

	s.Duration = minMeanMax(durations)
	s.Attack = minMeanMax(attacks)
	s.PeakAmp = minMeanMax(peaks)
	s.RelativePeak = minMeanMax(rel)
	return s
}

func minMeanMax(x []float64) [3]float64 {
	return [3]float64{floats.Min(x), stat.Mean(x, nil), floats.Max(x)}
}

// interpretEventRate describes how busy the envelope is.
func interpretEventRate(perSec float64) string {
	switch {
	case perSec == 0:
		return "no events"
	case perSec < 0.5:
		return "sparse"
	case perSec < 2:
		return "moderate"
	case perSec < 8:
		return "dense"
	default:
		return "very dense, consider a smaller smoothing factor"
	}
}

// interpretRelativePeak describes where, on average, events peak.
func interpretRelativePeak(rel float64) string {
	switch {
	case math.IsNaN(rel):
		return ""
	case rel < 0.2:
		return "percussive, fast attack"
	case rel < 0.6:
		return "balanced swell"
	default:
		return "slow attack, late peak"
	}
}

// writeEventTable outputs event statistics.
func writeEventTable(w io.Writer, data ReportData) {
	writeSection(w, "Event Statistics")

	stats := ComputeEventStats(data.Score, data.DurationSecs)
	fmt.Fprintf(w, "Events: %d (%s/s, %s)\n", stats.Count,
		formatMetric(stats.RatePerSec, 2), interpretEventRate(stats.RatePerSec))
	if stats.Count == 0 {
		fmt.Fprintln(w, "")
		return
	}
	fmt.Fprintln(w, "")

	table := NewMetricTable("Min", "Mean", "Max")
	table.AddMetricRow("Duration", stats.Duration[:], 1, "ms", "")
	table.AddMetricRow("Attack", stats.Attack[:], 1, "ms", "")
	table.AddMetricRow("Peak Amplitude", stats.PeakAmp[:], 3, "", "")
	table.AddMetricRow("Relative Peak", stats.RelativePeak[:], 3, "", interpretRelativePeak(stats.RelativePeak[1]))

	fmt.Fprint(w, table.String())
	fmt.Fprintln(w, "")
}

// writeEventListing outputs one line per event.
func writeEventListing(w io.Writer, score []processor.ScoreRecord) {
	if len(score) == 0 {
		return
	}
	writeSection(w, "Event Listing")

	fmt.Fprintf(w, "%5s  %12s  %10s  %8s  %8s\n", "#", "Onset", "Duration", "Peak", "Velocity")
	for _, r := range score {
		fmt.Fprintf(w, "%5d  %12s  %7.1f ms  %8.3f  %8d\n",
			r.Index,
			formatTimestamp(time.Duration(r.OnsetMs*float64(time.Millisecond))),
			r.DurationMs,
			r.Envelope[1].Y,
			r.Velocity)
	}
	fmt.Fprintln(w, "")
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}

// formatTimestamp renders an offset as MM:SS.mmm, or H:MM:SS.mmm past an hour.
func formatTimestamp(d time.Duration) string {
	ms := d.Milliseconds()
	h := ms / 3_600_000
	m := (ms / 60_000) % 60
	s := (ms / 1000) % 60
	frac := ms % 1000
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, frac)
	}
	return fmt.Sprintf("%02d:%02d.%03d", m, s, frac)
}

// channelName returns a human-readable channel name
func channelName(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return fmt.Sprintf("%d channels", channels)
	}
}
